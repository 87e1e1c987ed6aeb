package lexer

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/jackc/pkg/token"
	"github.com/xplshn/jackc/pkg/util"
)

type tv struct {
	Type  token.Type
	Value string
}

func strip(toks []token.Token) []tv {
	out := make([]tv, len(toks))
	for i, t := range toks {
		out[i] = tv{t.Type, t.Value}
	}
	return out
}

func TestLex(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []tv
	}{
		{"string", `"hello"`, []tv{{token.StringConst, "hello"}}},
		{"empty", "  \n\t ", []tv{}},
		{
			"let",
			"let x = x+1;",
			[]tv{
				{token.Keyword, "let"}, {token.Ident, "x"}, {token.Symbol, "="},
				{token.Ident, "x"}, {token.Symbol, "+"}, {token.IntConst, "1"}, {token.Symbol, ";"},
			},
		},
		{
			"comments",
			"/** doc\n comment */ class // trailing\nMain { }",
			[]tv{{token.Keyword, "class"}, {token.Ident, "Main"}, {token.Symbol, "{"}, {token.Symbol, "}"}},
		},
		{
			"comment markers in string",
			`do Output.printString("a // b /* c */");`,
			[]tv{
				{token.Keyword, "do"}, {token.Ident, "Output"}, {token.Symbol, "."}, {token.Ident, "printString"},
				{token.Symbol, "("}, {token.StringConst, "a // b /* c */"}, {token.Symbol, ")"}, {token.Symbol, ";"},
			},
		},
		{
			"keyword prefix is identifier",
			"classy _x9 a[i]",
			[]tv{
				{token.Ident, "classy"}, {token.Ident, "_x9"}, {token.Ident, "a"},
				{token.Symbol, "["}, {token.Ident, "i"}, {token.Symbol, "]"},
			},
		},
		{"max int", "32767", []tv{{token.IntConst, "32767"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			toks, err := Lex("Test.jack", tc.src)
			if err != nil {
				t.Fatalf("Lex: %v", err)
			}
			if diff := cmp.Diff(tc.want, strip(toks)); diff != "" {
				t.Errorf("tokens mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		src      string
		wantMsg  string
		wantLine int
		wantCol  int
	}{
		{"let s = \"abc;\n", "unterminated string constant", 1, 9},
		{"\n  \"abc", "unterminated string constant", 2, 3},
		{"let x = 32768;", "out of range", 1, 9},
		{"let 9x = 1;", "invalid identifier '9x'", 1, 5},
		{"var int $a;", "invalid identifier '$a'", 1, 9},
		{"class A { /* open", "unterminated block comment", 1, 11},
		{"do Output.printString(\"h\u00e9\");", "character 'é' is not allowed in a string constant", 1, 25},
		{"let s = \"a\U0001F600\";", "not allowed in a string constant", 1, 11},
		{"let s = \"tab\there\";", "character '\\t' is not allowed", 1, 13},
	}
	for _, tc := range tests {
		_, err := Lex("Bad.jack", tc.src)
		var se *util.SourceError
		if !errors.As(err, &se) {
			t.Errorf("Lex(%q) error = %v; want *util.SourceError", tc.src, err)
			continue
		}
		if !strings.Contains(se.Msg, tc.wantMsg) {
			t.Errorf("Lex(%q) msg = %q; want it to contain %q", tc.src, se.Msg, tc.wantMsg)
		}
		if se.Line != tc.wantLine || se.Column != tc.wantCol {
			t.Errorf("Lex(%q) at %d:%d; want %d:%d", tc.src, se.Line, se.Column, tc.wantLine, tc.wantCol)
		}
		if se.File != "Bad.jack" {
			t.Errorf("Lex(%q) file = %q", tc.src, se.File)
		}
	}
}

func TestPositions(t *testing.T) {
	toks, err := Lex("P.jack", "class P {\n  /* a\n b */ field int x;\n}")
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	var field token.Token
	for _, tok := range toks {
		if tok.Is(token.Keyword, "field") {
			field = tok
		}
	}
	if field.Line != 3 {
		t.Errorf("field on line %d; want 3", field.Line)
	}
	if last := toks[len(toks)-1]; last.Line != 4 || last.Column != 1 || last.Len != 1 {
		t.Errorf("closing brace at %d:%d len %d; want 4:1 len 1", last.Line, last.Column, last.Len)
	}
}

func TestStripCommentsKeepsLines(t *testing.T) {
	src := "a // x\n/* y\nz */b\n"
	got, err := StripComments("S.jack", src)
	if err != nil {
		t.Fatalf("StripComments: %v", err)
	}
	if strings.Count(got, "\n") != strings.Count(src, "\n") {
		t.Errorf("newline count changed: %q", got)
	}
	if strings.Contains(got, "x") || strings.Contains(got, "y") || strings.Contains(got, "z") {
		t.Errorf("comment text survived: %q", got)
	}
}
