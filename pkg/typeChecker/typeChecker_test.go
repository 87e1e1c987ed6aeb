package typeChecker

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/jackc/pkg/config"
	"github.com/xplshn/jackc/pkg/lexer"
	"github.com/xplshn/jackc/pkg/parser"
	"github.com/xplshn/jackc/pkg/util"
)

type source struct{ file, text string }

func check(t *testing.T, cfg *config.Config, sources ...source) ([]string, error) {
	t.Helper()
	tc := NewTypeChecker(cfg)
	for _, s := range sources {
		toks, err := lexer.Lex(s.file, s.text)
		if err != nil {
			t.Fatalf("Lex(%s): %v", s.file, err)
		}
		tree, err := parser.New(s.file, toks).Parse()
		if err != nil {
			t.Fatalf("Parse(%s): %v", s.file, err)
		}
		if err := tc.AddClass(s.file, tree); err != nil {
			return nil, err
		}
	}
	var msgs []string
	for _, d := range tc.Check() {
		msgs = append(msgs, d.Warning+": "+d.Msg)
	}
	return msgs, nil
}

const pointJack = `class Point {
  field int x;
  constructor Point new(int ax) { let x = ax; return this; }
  method int getX() { return x; }
  function int origin() { return 0; }
}`

func TestCleanProgram(t *testing.T) {
	mainJack := `class Main {
  function void main() {
    var Point p;
    var String s;
    let p = Point.new(3);
    let s = String.new(4);
    do s.appendChar(65);
    do Output.printInt(p.getX() + Point.origin());
    do Main.helper(p);
    return;
  }
  function void helper(Point q) {
    if (q.getX() > 0) { return; } else { return; }
  }
}`
	got, err := check(t, config.NewConfig(), source{"Main.jack", mainJack}, source{"Point.jack", pointJack})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("unexpected findings:\n%s", strings.Join(got, "\n"))
	}
}

func TestFindings(t *testing.T) {
	mainJack := `class Main {
  field int count;
  function void main() {
    var Point p;
    var int n;
    let p = Point.new();
    do Point.getX();
    do p.origin();
    do n.foo();
    do Point.missing();
    do Math.max(1, 2, 3);
    do helper();
    return 1;
  }
  function int helper() {
    return;
  }
  method int noReturn() {
    let count = 1;
  }
  constructor Main new() {
    return 7;
  }
}`
	got, err := check(t, config.NewConfig(), source{"Main.jack", mainJack}, source{"Point.jack", pointJack})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	want := []string{
		"call-arity: Point.new expects 1 argument(s), got 0",
		"call-kind: method Point.getX called without an object",
		"call-kind: function Point.origin called as a method",
		"call-kind: 'n' has type int and has no subroutines",
		"unknown-subroutine: class Point has no subroutine 'missing'",
		"call-arity: Math.max expects 2 argument(s), got 3",
		"call-kind: function Main.helper called as a method",
		"return: return with a value in void subroutine Main.main",
		"return: return without a value in Main.helper, which returns int",
		"return: Main.noReturn can reach its end without a return",
		"return: constructor Main.new should return this",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("findings (-want +got):\n%s", diff)
	}
}

func TestProgramClassOverridesLibrary(t *testing.T) {
	memoryJack := `class Memory {
  function int alloc(int size, int align) { return 0; }
}`
	mainJack := `class Main {
  function void main() {
    do Memory.alloc(1, 2);
    do Memory.peek(0);
    return;
  }
}`
	got, err := check(t, config.NewConfig(), source{"Main.jack", mainJack}, source{"Memory.jack", memoryJack})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	want := []string{"unknown-subroutine: class Memory has no subroutine 'peek'"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("findings (-want +got):\n%s", diff)
	}
}

func TestUnknownTypes(t *testing.T) {
	src := `class Main {
  field Widget w;
  function void main() {
    do Gadget.run();
    return;
  }
}`
	cfg := config.NewConfig()
	got, err := check(t, cfg, source{"Main.jack", src})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("unknown-type should be off by default, got %v", got)
	}

	cfg.SetWarning(config.WarnUnknownType, true)
	got, err = check(t, cfg, source{"Main.jack", src})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	want := []string{
		"unknown-type: unknown type 'Widget'",
		"unknown-type: call to Gadget.run of unknown class 'Gadget'",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("findings (-want +got):\n%s", diff)
	}
}

func TestClassName(t *testing.T) {
	got, err := check(t, config.NewConfig(), source{"src/Other.jack", "class Main { function void main() { return; } }"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	want := []string{"class-name: class 'Main' is declared in file 'Other.jack'"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("findings (-want +got):\n%s", diff)
	}
}

func TestDuplicates(t *testing.T) {
	tests := []struct {
		name    string
		sources []source
		line    int
		msg     string
	}{
		{
			"class",
			[]source{{"A.jack", "class A { }"}, {"B.jack", "class A { }"}},
			1, "class 'A' is already declared in A.jack",
		},
		{
			"subroutine",
			[]source{{"A.jack", "class A {\n  function void f() { return; }\n  method void f() { return; }\n}"}},
			3, "subroutine 'f' is already declared in class A (line 2)",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := check(t, config.NewConfig(), tc.sources...)
			var se *util.SourceError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v; want *util.SourceError", err)
			}
			if se.Line != tc.line || se.Msg != tc.msg {
				t.Errorf("got line %d %q; want line %d %q", se.Line, se.Msg, tc.line, tc.msg)
			}
		})
	}
}
