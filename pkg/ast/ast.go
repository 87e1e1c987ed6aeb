// Package ast defines the syntax tree produced by the parser
package ast

import (
	"fmt"
	"io"
	"strings"

	"github.com/xplshn/jackc/pkg/token"
)

// Rule names the grammar production a node was built from
type Rule int

// Rules enum
const (
	Terminal Rule = iota
	Class
	ClassVarDec
	SubroutineDec
	ParameterList
	SubroutineBody
	VarDec
	Statements
	LetStatement
	IfStatement
	WhileStatement
	DoStatement
	ReturnStatement
	Expression
	Term
	ExpressionList
)

var ruleNames = [...]string{
	Terminal:        "terminal",
	Class:           "class",
	ClassVarDec:     "classVarDec",
	SubroutineDec:   "subroutineDec",
	ParameterList:   "parameterList",
	SubroutineBody:  "subroutineBody",
	VarDec:          "varDec",
	Statements:      "statements",
	LetStatement:    "letStatement",
	IfStatement:     "ifStatement",
	WhileStatement:  "whileStatement",
	DoStatement:     "doStatement",
	ReturnStatement: "returnStatement",
	Expression:      "expression",
	Term:            "term",
	ExpressionList:  "expressionList",
}

func (r Rule) String() string {
	if r >= 0 && int(r) < len(ruleNames) {
		return ruleNames[r]
	}
	return fmt.Sprintf("Rule(%d)", int(r))
}

// Node is either a terminal wrapping one token or a non-terminal holding
// its children in source order. Tok of a non-terminal is its first token.
type Node struct {
	Rule     Rule
	Tok      token.Token
	Children []*Node
}

func NewTerminal(tok token.Token) *Node {
	return &Node{Rule: Terminal, Tok: tok}
}

func NewRule(rule Rule, tok token.Token) *Node {
	return &Node{Rule: rule, Tok: tok}
}

func (n *Node) Add(children ...*Node) { n.Children = append(n.Children, children...) }

func (n *Node) IsTerminal() bool { return n.Rule == Terminal }

// Is reports whether n is a terminal with the given lexeme.
func (n *Node) Is(value string) bool {
	return n != nil && n.Rule == Terminal && n.Tok.Value == value
}

// Child returns the i-th child or nil.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// ChildrenOf returns the direct children built from rule.
func (n *Node) ChildrenOf(rule Rule) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Rule == rule {
			out = append(out, c)
		}
	}
	return out
}

// First returns the first direct child built from rule, or nil.
func (n *Node) First(rule Rule) *Node {
	for _, c := range n.Children {
		if c.Rule == rule {
			return c
		}
	}
	return nil
}

// Dump writes an indented rendering of the tree, one node per line.
func Dump(w io.Writer, n *Node) error {
	return dump(w, n, 0)
}

func dump(w io.Writer, n *Node, depth int) error {
	indent := strings.Repeat("  ", depth)
	if n.IsTerminal() {
		_, err := fmt.Fprintf(w, "%s%s\n", indent, n.Tok)
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%s\n", indent, n.Rule); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := dump(w, c, depth+1); err != nil {
			return err
		}
	}
	return nil
}
