package codegen

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/jackc/pkg/config"
	"github.com/xplshn/jackc/pkg/lexer"
	"github.com/xplshn/jackc/pkg/parser"
	"github.com/xplshn/jackc/pkg/util"
	"github.com/xplshn/jackc/pkg/vm"
)

func generate(t *testing.T, cfg *config.Config, src string) ([]vm.Instruction, *Context, error) {
	t.Helper()
	toks, err := lexer.Lex("Test.jack", src)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	root, err := parser.New("Test.jack", toks).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ctx := NewContext(cfg, "Test.jack")
	code, err := ctx.GenerateClass(root)
	return code, ctx, err
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			"if else",
			`class Main { function void main() { var int x;
				if (x) { let x = 1; } else { let x = 2; }
				return; } }`,
			`function Main.main 1
push local 0
not
if-goto IF_ELSE0
push constant 1
pop local 0
goto IF_END0
label IF_ELSE0
push constant 2
pop local 0
label IF_END0
push constant 0
return`,
		},
		{
			"while and nested if counters",
			`class Main { function int f(int n) {
				while (n > 0) { if (n = 3) { return n; } let n = n - 1; }
				if (true) { } return 0; } }`,
			`function Main.f 0
label WHILE_EXP0
push argument 0
push constant 0
gt
not
if-goto WHILE_END0
push argument 0
push constant 3
eq
not
if-goto IF_ELSE0
push argument 0
return
goto IF_END0
label IF_ELSE0
label IF_END0
push argument 0
push constant 1
sub
pop argument 0
goto WHILE_EXP0
label WHILE_END0
push constant 0
not
not
if-goto IF_ELSE1
goto IF_END1
label IF_ELSE1
label IF_END1
push constant 0
return`,
		},
		{
			"constructor and method",
			`class Point { field int x, y; static int count;
				constructor Point new(int ax, int ay) { let x = ax; let y = ay; let count = count + 1; return this; }
				method int getX() { return x; } }`,
			`function Point.new 0
push constant 2
call Memory.alloc 1
pop pointer 0
push argument 0
pop this 0
push argument 1
pop this 1
push static 0
push constant 1
add
pop static 0
push pointer 0
return
function Point.getX 0
push argument 0
pop pointer 0
push this 0
return`,
		},
		{
			"arrays",
			`class Main { function void main() { var Array a; var int i;
				let a[i] = a[i + 1];
				return; } }`,
			`function Main.main 2
push local 0
push local 1
add
push local 0
push local 1
push constant 1
add
add
pop pointer 1
push that 0
pop temp 0
pop pointer 1
push temp 0
pop that 0
push constant 0
return`,
		},
		{
			"calls",
			`class Game { field Ball ball;
				method void run(int n) { var Ball b;
					do step(n);
					do b.move(1, 2);
					do ball.move(0, 0);
					do Output.printInt(n * 2 / -n);
					return; }
				method void step(int n) { return; } }`,
			`function Game.run 1
push argument 0
pop pointer 0
push pointer 0
push argument 1
call Game.step 2
pop temp 0
push local 0
push constant 1
push constant 2
call Ball.move 3
pop temp 0
push this 0
push constant 0
push constant 0
call Ball.move 3
pop temp 0
push argument 1
push constant 2
call Math.multiply 2
push argument 1
neg
call Math.divide 2
call Output.printInt 1
pop temp 0
push constant 0
return
function Game.step 0
push argument 0
pop pointer 0
push constant 0
return`,
		},
		{
			"constants and strings",
			`class Main { function boolean f() { var String s;
				let s = "Hi";
				return ~(false | null) & true; } }`,
			`function Main.f 1
push constant 2
call String.new 1
push constant 72
call String.appendChar 2
push constant 105
call String.appendChar 2
pop local 0
push constant 0
push constant 0
or
not
push constant 0
not
and
return`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, _, err := generate(t, config.NewConfig(), tc.src)
			if err != nil {
				t.Fatalf("GenerateClass: %v", err)
			}
			if diff := cmp.Diff(lines(tc.want), lines(vm.Format(code))); diff != "" {
				t.Errorf("VM code mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLabelCountersResetPerClass(t *testing.T) {
	src := `class Main { function void main() { while (true) { } return; } }`
	toks, _ := lexer.Lex("Main.jack", src)
	ctx := NewContext(config.NewConfig(), "Main.jack")
	for i := 0; i < 2; i++ {
		root, err := parser.New("Main.jack", toks).Parse()
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		code, err := ctx.GenerateClass(root)
		if err != nil {
			t.Fatalf("GenerateClass: %v", err)
		}
		if got := code[1]; got != (vm.Label{Name: "WHILE_EXP0"}) {
			t.Errorf("run %d: first label = %v; want label WHILE_EXP0", i, got)
		}
	}
}

func TestSourceErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"undeclared", `class Main { function void main() { let y = 1; return; } }`, "undeclared variable 'y'"},
		{"undeclared array", `class Main { function int f() { return q[0]; } }`, "undeclared variable 'q'"},
		{"duplicate local", `class Main { function void main() { var int a, a; return; } }`, "'a' is already declared"},
		{"duplicate param", `class Main { function void main(int a, char a) { return; } }`, "'a' is already declared"},
		{"duplicate field", `class Main { field int a; static int a; }`, "'a' is already declared"},
		{"duplicate subroutine", `class Main { function void f() { return; } method void f() { return; } }`, "subroutine 'f' is already declared in class Main"},
		{"duplicate constructor", `class P { constructor P new() { return this; } constructor P new(int x) { return this; } }`, "subroutine 'new' is already declared"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := generate(t, config.NewConfig(), tc.src)
			var se *util.SourceError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v; want *util.SourceError", err)
			}
			if !strings.Contains(se.Msg, tc.msg) {
				t.Errorf("msg = %q; want %q", se.Msg, tc.msg)
			}
			if util.IsFault(err) {
				t.Errorf("source error reported as fault")
			}
		})
	}
}

func TestFaultOnMalformedTree(t *testing.T) {
	ctx := NewContext(config.NewConfig(), "X.jack")
	_, err := ctx.GenerateClass(nil)
	if !util.IsFault(err) {
		t.Errorf("error = %v; want fault", err)
	}
}

func TestWarnings(t *testing.T) {
	src := `class Main { field int x; static int n;
		function void main() { var int unused, used; var int n;
			let used = 1;
			do helper();
			return; }
		method void helper() { return; } }`

	cfg := config.NewConfig()
	cfg.SetWarning(config.WarnShadow, true)
	_, ctx, err := generate(t, cfg, src)
	if err != nil {
		t.Fatalf("GenerateClass: %v", err)
	}
	var got []string
	for _, d := range ctx.Warnings() {
		got = append(got, d.Warning+": "+d.Msg)
	}
	want := []string{
		"shadow: var 'n' shadows static 'n'",
		"implicit-this: method 'helper' called inside function Main.main",
		"unused-var: unused variable 'unused'",
		"unused-var: unused variable 'n'",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}

	cfg = config.NewConfig()
	cfg.ApplyFlag("-Wno-all")
	_, ctx, err = generate(t, cfg, src)
	if err != nil {
		t.Fatalf("GenerateClass: %v", err)
	}
	if n := len(ctx.Warnings()); n != 0 {
		t.Errorf("got %d warnings with -Wno-all", n)
	}
}

func TestStrictThis(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatStrictThis, true)
	for _, src := range []string{
		`class Main { function Main f() { return this; } }`,
		`class Main { field int x; function int f() { return x; } }`,
		`class Main { function void f() { do g(); return; } method void g() { return; } }`,
	} {
		_, _, err := generate(t, cfg, src)
		var se *util.SourceError
		if !errors.As(err, &se) || !strings.Contains(se.Msg, "inside function Main.") {
			t.Errorf("%s: error = %v; want strict-this source error", src, err)
		}
	}
}
