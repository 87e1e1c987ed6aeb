package ast

import (
	"strings"
	"testing"

	"github.com/xplshn/jackc/pkg/token"
)

func tok(typ token.Type, v string) token.Token { return token.Token{Type: typ, Value: v, Line: 1, Column: 1} }

func TestNodeHelpers(t *testing.T) {
	class := NewRule(Class, tok(token.Keyword, "class"))
	class.Add(NewTerminal(tok(token.Keyword, "class")), NewTerminal(tok(token.Ident, "Main")))
	dec1 := NewRule(ClassVarDec, tok(token.Keyword, "field"))
	dec2 := NewRule(ClassVarDec, tok(token.Keyword, "static"))
	sub := NewRule(SubroutineDec, tok(token.Keyword, "function"))
	class.Add(dec1, sub, dec2)

	if !class.Child(1).Is("Main") || class.Child(9) != nil || class.Child(-1) != nil {
		t.Errorf("Child lookup broken")
	}
	if got := class.ChildrenOf(ClassVarDec); len(got) != 2 || got[0] != dec1 || got[1] != dec2 {
		t.Errorf("ChildrenOf(ClassVarDec) = %v", got)
	}
	if class.First(SubroutineDec) != sub || class.First(VarDec) != nil {
		t.Errorf("First lookup broken")
	}
	if class.Is("class") {
		t.Errorf("non-terminal matched a lexeme")
	}
	var nilNode *Node
	if nilNode.Is("x") || nilNode.Child(0) != nil {
		t.Errorf("nil node helpers should be safe")
	}
}

func TestDump(t *testing.T) {
	ret := NewRule(ReturnStatement, tok(token.Keyword, "return"))
	ret.Add(NewTerminal(tok(token.Keyword, "return")), NewTerminal(tok(token.Symbol, ";")))
	stmts := NewRule(Statements, ret.Tok)
	stmts.Add(ret)

	var sb strings.Builder
	if err := Dump(&sb, stmts); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	want := "statements\n  returnStatement\n    " + ret.Children[0].Tok.String() + "\n    " + ret.Children[1].Tok.String() + "\n"
	if sb.String() != want {
		t.Errorf("Dump =\n%s\nwant\n%s", sb.String(), want)
	}
	if Rule(99).String() != "Rule(99)" {
		t.Errorf("unknown rule name = %s", Rule(99))
	}
}
