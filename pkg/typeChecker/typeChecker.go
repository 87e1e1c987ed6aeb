// Package typeChecker looks across every class of a program for mistakes a
// single-class code generator cannot see: calls with the wrong number of
// arguments, methods called without an object, returns that disagree with
// the declared type and names of unknown types or subroutines. Findings are
// warnings; only duplicate class and subroutine declarations are errors.
package typeChecker

import (
	"path/filepath"
	"strings"

	"github.com/xplshn/jackc/pkg/ast"
	"github.com/xplshn/jackc/pkg/config"
	"github.com/xplshn/jackc/pkg/symtab"
	"github.com/xplshn/jackc/pkg/token"
	"github.com/xplshn/jackc/pkg/util"
)

// Signature describes one declared subroutine.
type Signature struct {
	Class  string
	Name   string
	Kind   string // function, method or constructor
	Return string
	Params []string
	Tok    token.Token
}

type classInfo struct {
	name string
	file string
	tree *ast.Node
	subs map[string]*Signature
}

type TypeChecker struct {
	cfg      *config.Config
	classes  map[string]*classInfo
	order    []*classInfo
	warnings []util.Diagnostic

	current    *classInfo
	sub        *Signature
	classScope *symtab.Table
	subScope   *symtab.Table
}

func NewTypeChecker(cfg *config.Config) *TypeChecker {
	return &TypeChecker{cfg: cfg, classes: make(map[string]*classInfo)}
}

func isPrimitive(typ string) bool {
	return typ == "int" || typ == "char" || typ == "boolean"
}

// AddClass records the declarations of one parsed class. Classes must all be
// added before Check runs.
func (tc *TypeChecker) AddClass(file string, root *ast.Node) error {
	if root == nil || root.Rule != ast.Class || root.Child(1) == nil {
		return util.Faultf("typecheck", "expected class node for %s", file)
	}
	nameTok := root.Child(1).Tok
	if prev, ok := tc.classes[nameTok.Value]; ok {
		return util.ErrorAt(file, nameTok, "class '%s' is already declared in %s", nameTok.Value, prev.file)
	}

	info := &classInfo{name: nameTok.Value, file: file, tree: root, subs: make(map[string]*Signature)}
	for _, dec := range root.ChildrenOf(ast.SubroutineDec) {
		sig := signatureOf(info.name, dec)
		if sig == nil {
			return util.Faultf("typecheck", "malformed subroutine in %s", file)
		}
		if prev, ok := info.subs[sig.Name]; ok {
			return util.ErrorAt(file, sig.Tok, "subroutine '%s' is already declared in class %s (line %d)", sig.Name, info.name, prev.Tok.Line)
		}
		info.subs[sig.Name] = sig
	}

	if base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)); base != info.name {
		tc.warnIn(file, config.WarnClassName, nameTok, "class '%s' is declared in file '%s'", info.name, filepath.Base(file))
	}
	tc.classes[info.name] = info
	tc.order = append(tc.order, info)
	return nil
}

// signatureOf reads kind, return type, name and parameter types of a
// subroutineDec node.
func signatureOf(class string, dec *ast.Node) *Signature {
	kw, ret, name, params := dec.Child(0), dec.Child(1), dec.Child(2), dec.First(ast.ParameterList)
	if kw == nil || ret == nil || name == nil || params == nil {
		return nil
	}
	sig := &Signature{Class: class, Name: name.Tok.Value, Kind: kw.Tok.Value, Return: ret.Tok.Value, Tok: name.Tok}
	for i := 0; i < len(params.Children); i += 3 {
		sig.Params = append(sig.Params, params.Children[i].Tok.Value)
	}
	return sig
}

// lookupSub finds class.name among program classes first, then the
// operating system library.
func (tc *TypeChecker) lookupSub(class, name string) (*Signature, bool) {
	if info, ok := tc.classes[class]; ok {
		sig, found := info.subs[name]
		return sig, found
	}
	if subs, ok := osLibrary[class]; ok {
		sig, found := subs[name]
		return sig, found
	}
	return nil, false
}

// knownClass reports whether class is declared by the program or the OS.
func (tc *TypeChecker) knownClass(class string) bool {
	if _, ok := tc.classes[class]; ok {
		return true
	}
	_, ok := osLibrary[class]
	return ok
}

func (tc *TypeChecker) warnIn(file string, w config.Warning, tok token.Token, format string, args ...any) {
	if !tc.cfg.IsWarningEnabled(w) {
		return
	}
	tc.warnings = append(tc.warnings, util.WarningAt(tc.cfg.WarningName(w), file, tok, format, args...))
}

func (tc *TypeChecker) warn(w config.Warning, tok token.Token, format string, args ...any) {
	tc.warnIn(tc.current.file, w, tok, format, args...)
}

// Check walks every class added so far and returns all findings, including
// those recorded by AddClass, in source order per class.
func (tc *TypeChecker) Check() []util.Diagnostic {
	for _, info := range tc.order {
		tc.checkClass(info)
	}
	return tc.warnings
}

func (tc *TypeChecker) checkClass(info *classInfo) {
	tc.current = info
	tc.classScope = symtab.New()
	for _, dec := range info.tree.ChildrenOf(ast.ClassVarDec) {
		kind := symtab.Static
		if dec.Child(0).Is("field") {
			kind = symtab.Field
		}
		tc.declare(tc.classScope, dec, kind)
	}
	for _, dec := range info.tree.ChildrenOf(ast.SubroutineDec) {
		tc.checkSubroutine(dec)
	}
}

// declare defines the names of a classVarDec or varDec and checks the type.
func (tc *TypeChecker) declare(scope *symtab.Table, dec *ast.Node, kind symtab.Kind) {
	typ := dec.Child(1)
	if typ == nil {
		return
	}
	tc.checkType(typ.Tok, false)
	for _, n := range dec.Children[2:] {
		if n.Tok.Type == token.Ident {
			// duplicates are reported by code generation
			_, _ = scope.Define(n.Tok.Value, typ.Tok.Value, kind)
		}
	}
}

func (tc *TypeChecker) checkType(tok token.Token, allowVoid bool) {
	if isPrimitive(tok.Value) || (allowVoid && tok.Value == "void") {
		return
	}
	if tok.Value == "void" {
		tc.warn(config.WarnUnknownType, tok, "'void' is only valid as a return type")
		return
	}
	if !tc.knownClass(tok.Value) {
		tc.warn(config.WarnUnknownType, tok, "unknown type '%s'", tok.Value)
	}
}

func (tc *TypeChecker) checkSubroutine(dec *ast.Node) {
	tc.sub = tc.current.subs[dec.Child(2).Tok.Value]
	tc.subScope = symtab.New()

	tc.checkType(dec.Child(1).Tok, true)
	if tc.sub.Kind == "constructor" && tc.sub.Return != tc.current.name {
		tc.warn(config.WarnReturn, dec.Child(1).Tok, "constructor %s.%s should return %s, not %s",
			tc.current.name, tc.sub.Name, tc.current.name, tc.sub.Return)
	}
	if tc.sub.Kind == "method" {
		_, _ = tc.subScope.Define("this", tc.current.name, symtab.Arg)
	}
	params := dec.First(ast.ParameterList)
	for i := 0; i+1 < len(params.Children); i += 3 {
		tc.checkType(params.Children[i].Tok, false)
		_, _ = tc.subScope.Define(params.Children[i+1].Tok.Value, params.Children[i].Tok.Value, symtab.Arg)
	}

	body := dec.First(ast.SubroutineBody)
	if body == nil {
		return
	}
	for _, v := range body.ChildrenOf(ast.VarDec) {
		tc.declare(tc.subScope, v, symtab.Var)
	}
	stmts := body.First(ast.Statements)
	if stmts == nil {
		return
	}
	tc.checkStatements(stmts)
	if !alwaysReturns(stmts) {
		tc.warn(config.WarnReturn, dec.Child(2).Tok, "%s.%s can reach its end without a return", tc.current.name, tc.sub.Name)
	}
}

// alwaysReturns reports whether every path through stmts ends in a return.
func alwaysReturns(stmts *ast.Node) bool {
	if len(stmts.Children) == 0 {
		return false
	}
	last := stmts.Children[len(stmts.Children)-1]
	switch last.Rule {
	case ast.ReturnStatement:
		return true
	case ast.IfStatement:
		branches := last.ChildrenOf(ast.Statements)
		return len(branches) == 2 && alwaysReturns(branches[0]) && alwaysReturns(branches[1])
	}
	return false
}

func (tc *TypeChecker) checkStatements(stmts *ast.Node) {
	for _, s := range stmts.Children {
		switch s.Rule {
		case ast.DoStatement:
			if len(s.Children) > 2 {
				tc.checkCall(s.Children[1 : len(s.Children)-1])
			}
		case ast.ReturnStatement:
			tc.checkReturn(s)
		case ast.IfStatement, ast.WhileStatement, ast.LetStatement:
			for _, c := range s.Children {
				switch c.Rule {
				case ast.Expression:
					tc.checkExpr(c)
				case ast.Statements:
					tc.checkStatements(c)
				}
			}
		}
	}
}

func (tc *TypeChecker) checkReturn(node *ast.Node) {
	expr := node.First(ast.Expression)
	switch {
	case expr != nil:
		tc.checkExpr(expr)
		if tc.sub.Return == "void" {
			tc.warn(config.WarnReturn, node.Tok, "return with a value in void subroutine %s.%s", tc.current.name, tc.sub.Name)
		} else if tc.sub.Kind == "constructor" && !returnsThis(expr) {
			tc.warn(config.WarnReturn, node.Tok, "constructor %s.%s should return this", tc.current.name, tc.sub.Name)
		}
	case tc.sub.Return != "void":
		tc.warn(config.WarnReturn, node.Tok, "return without a value in %s.%s, which returns %s", tc.current.name, tc.sub.Name, tc.sub.Return)
	}
}

func returnsThis(expr *ast.Node) bool {
	if len(expr.Children) != 1 {
		return false
	}
	term := expr.Children[0]
	return len(term.Children) == 1 && term.Children[0].Is("this")
}

// checkExpr visits every term and checks the calls among them.
func (tc *TypeChecker) checkExpr(node *ast.Node) {
	for _, c := range node.Children {
		switch c.Rule {
		case ast.Term:
			tc.checkTerm(c)
		case ast.Expression:
			tc.checkExpr(c)
		}
	}
}

func (tc *TypeChecker) checkTerm(node *ast.Node) {
	first, next := node.Child(0), node.Child(1)
	if first != nil && first.Tok.Type == token.Ident && (next.Is("(") || next.Is(".")) {
		tc.checkCall(node.Children)
		return
	}
	for _, c := range node.Children {
		switch c.Rule {
		case ast.Term:
			tc.checkTerm(c)
		case ast.Expression:
			tc.checkExpr(c)
		}
	}
}

// checkCall validates one call written as name ['.' name] '(' list ')' and
// then descends into its arguments.
func (tc *TypeChecker) checkCall(parts []*ast.Node) {
	var list *ast.Node
	for _, p := range parts {
		if p.Rule == ast.ExpressionList {
			list = p
		}
	}
	if len(parts) < 4 || list == nil {
		return
	}
	args := list.ChildrenOf(ast.Expression)
	for _, a := range args {
		tc.checkExpr(a)
	}

	head := parts[0].Tok
	if !parts[1].Is(".") {
		tc.checkTarget(head, tc.current.name, head.Value, len(args), "method")
		return
	}

	subTok := parts[2].Tok
	if v, ok := symtab.Resolve(head.Value, tc.subScope, tc.classScope); ok {
		if isPrimitive(v.Type) {
			tc.warn(config.WarnCallKind, head, "'%s' has type %s and has no subroutines", head.Value, v.Type)
			return
		}
		tc.checkTarget(subTok, v.Type, subTok.Value, len(args), "method")
		return
	}
	tc.checkTarget(subTok, head.Value, subTok.Value, len(args), "function")
}

// checkTarget compares a call against the callee's signature. how is the
// kind the call site implies: "method" when an object is passed.
func (tc *TypeChecker) checkTarget(tok token.Token, class, name string, nargs int, how string) {
	if !tc.knownClass(class) {
		// an implicit call names the current class, which is always known
		tc.warn(config.WarnUnknownType, tok, "call to %s.%s of unknown class '%s'", class, name, class)
		return
	}
	sig, ok := tc.lookupSub(class, name)
	if !ok {
		tc.warn(config.WarnUnknownSub, tok, "class %s has no subroutine '%s'", class, name)
		return
	}
	switch {
	case how == "method" && sig.Kind != "method":
		tc.warn(config.WarnCallKind, tok, "%s %s.%s called as a method", sig.Kind, class, name)
	case how == "function" && sig.Kind == "method":
		tc.warn(config.WarnCallKind, tok, "method %s.%s called without an object", class, name)
	}
	if len(sig.Params) != nargs {
		tc.warn(config.WarnCallArity, tok, "%s.%s expects %d argument(s), got %d", class, name, len(sig.Params), nargs)
	}
}
