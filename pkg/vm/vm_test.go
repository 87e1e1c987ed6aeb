package vm

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/jackc/pkg/util"
)

func TestParse(t *testing.T) {
	src := `// SimpleAdd
push constant 7
push constant 8   // second operand

add
function Main.main 2
label LOOP_START
if-goto LOOP_START
goto END$1
call Math.multiply 2
pop temp 7
push pointer 1
not
return
`
	lines, err := Parse("SimpleAdd.vm", src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []Line{
		{Push{Constant, 7}, 2},
		{Push{Constant, 8}, 3},
		{Arithmetic{OpAdd}, 5},
		{Function{"Main.main", 2}, 6},
		{Label{"LOOP_START"}, 7},
		{IfGoto{"LOOP_START"}, 8},
		{Goto{"END$1"}, 9},
		{Call{"Math.multiply", 2}, 10},
		{Pop{Temp, 7}, 11},
		{Push{Pointer, 1}, 12},
		{Arithmetic{OpNot}, 13},
		{Return{}, 14},
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src  string
		line int
		msg  string
	}{
		{"push constant 1\npop constant 0", 2, "constant segment"},
		{"push temp 8", 1, "temp index"},
		{"pop pointer 2", 1, "pointer index"},
		{"push heap 0", 1, "unknown segment"},
		{"push local -1", 1, "invalid index"},
		{"push local 32768", 1, "invalid index"},
		{"\n\nfoo", 3, "unknown command"},
		{"add 1", 1, "takes 0 operand"},
		{"label 1abc", 1, "invalid label"},
		{"function Main.f 0\nlabel ret.0", 2, "reserved for return addresses"},
		{"goto ret.12", 1, "reserved for return addresses"},
		{"call Foo.bar", 1, "takes 2 operand"},
	}
	for _, tc := range tests {
		_, err := Parse("Bad.vm", tc.src)
		var se *util.SourceError
		if !errors.As(err, &se) {
			t.Errorf("Parse(%q) error = %v; want *util.SourceError", tc.src, err)
			continue
		}
		if se.Line != tc.line || !strings.Contains(se.Msg, tc.msg) {
			t.Errorf("Parse(%q) = line %d %q; want line %d containing %q", tc.src, se.Line, se.Msg, tc.line, tc.msg)
		}
	}
}

func TestFormatRoundTrip(t *testing.T) {
	code := []Instruction{
		Function{"Main.main", 0},
		Push{Constant, 0},
		Arithmetic{OpNot},
		IfGoto{"IF_ELSE0"},
		Call{"Output.printInt", 1},
		Pop{Temp, 0},
		Return{},
	}
	text := Format(code)
	if !strings.HasPrefix(text, "function Main.main 0\npush constant 0\nnot\nif-goto IF_ELSE0\n") {
		t.Errorf("unexpected text:\n%s", text)
	}
	lines, err := Parse("Main.vm", text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff(Number(code), lines); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestOpClasses(t *testing.T) {
	for _, op := range []Op{OpNeg, OpNot} {
		if !op.Unary() || op.Compare() {
			t.Errorf("%s misclassified", op)
		}
	}
	for _, op := range []Op{OpEq, OpGt, OpLt} {
		if op.Unary() || !op.Compare() {
			t.Errorf("%s misclassified", op)
		}
	}
}

func TestReservedLabel(t *testing.T) {
	tests := map[string]bool{
		"ret.0":   true,
		"ret.417": true,
		"ret.":    false,
		"ret.x1":  false,
		"ret":     false,
		"Ret.0":   false,
		"LOOP":    false,
	}
	for name, want := range tests {
		if got := reservedLabel(name); got != want {
			t.Errorf("reservedLabel(%q) = %v; want %v", name, got, want)
		}
	}
	if _, err := Parse("Ok.vm", "label ret.end\ngoto ret.end"); err != nil {
		t.Errorf("Parse with non-numeric ret label: %v", err)
	}
}
