package codegen

import (
	"fmt"

	"github.com/xplshn/jackc/pkg/ast"
	"github.com/xplshn/jackc/pkg/config"
	"github.com/xplshn/jackc/pkg/symtab"
	"github.com/xplshn/jackc/pkg/token"
	"github.com/xplshn/jackc/pkg/util"
	"github.com/xplshn/jackc/pkg/vm"
)

const stage = "codegen"

type subKind int

const (
	kindFunction subKind = iota
	kindMethod
	kindConstructor
)

// Context carries the state of compiling one class. A Context may be reused
// for several classes; GenerateClass resets it.
type Context struct {
	cfg         *config.Config
	file        string
	className   string
	classScope  *symtab.Table
	subScope    *symtab.Table
	currentKind subKind
	currentName string
	declTokens  map[string]token.Token
	code        []vm.Instruction
	ifCount     int
	whileCount  int
	warnings    []util.Diagnostic
}

func NewContext(cfg *config.Config, file string) *Context {
	return &Context{cfg: cfg, file: file}
}

// Warnings returns the diagnostics collected by the last GenerateClass.
func (ctx *Context) Warnings() []util.Diagnostic { return ctx.warnings }

func (ctx *Context) emit(insts ...vm.Instruction) { ctx.code = append(ctx.code, insts...) }

func (ctx *Context) fault(n *ast.Node, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if n != nil {
		msg = fmt.Sprintf("%s (at %s, %d:%d)", msg, n.Rule, n.Tok.Line, n.Tok.Column)
	}
	return util.Faultf(stage, "%s", msg)
}

func (ctx *Context) errorAt(tok token.Token, format string, args ...any) error {
	return util.ErrorAt(ctx.file, tok, format, args...)
}

func (ctx *Context) warn(w config.Warning, tok token.Token, format string, args ...any) {
	if !ctx.cfg.IsWarningEnabled(w) {
		return
	}
	ctx.warnings = append(ctx.warnings, util.WarningAt(ctx.cfg.WarningName(w), ctx.file, tok, format, args...))
}

// GenerateClass translates one parsed class into VM code.
func (ctx *Context) GenerateClass(root *ast.Node) ([]vm.Instruction, error) {
	if root == nil || root.Rule != ast.Class {
		return nil, ctx.fault(root, "expected class node")
	}
	name := root.Child(1)
	if name == nil || name.Tok.Type != token.Ident {
		return nil, ctx.fault(root, "class without a name")
	}

	ctx.className = name.Tok.Value
	ctx.classScope = symtab.New()
	ctx.subScope = nil
	ctx.code = nil
	ctx.ifCount, ctx.whileCount = 0, 0
	ctx.warnings = nil

	for _, dec := range root.ChildrenOf(ast.ClassVarDec) {
		kind := symtab.Static
		if dec.Child(0).Is("field") {
			kind = symtab.Field
		}
		if err := ctx.declare(ctx.classScope, dec, kind); err != nil {
			return nil, err
		}
	}
	declared := map[string]bool{}
	for _, sub := range root.ChildrenOf(ast.SubroutineDec) {
		if n := sub.Child(2); n != nil {
			if declared[n.Tok.Value] {
				return nil, ctx.errorAt(n.Tok, "subroutine '%s' is already declared in class %s", n.Tok.Value, ctx.className)
			}
			declared[n.Tok.Value] = true
		}
		if err := ctx.codegenSubroutine(sub); err != nil {
			return nil, err
		}
	}
	return ctx.code, nil
}

// declare defines every name of a classVarDec or varDec node.
func (ctx *Context) declare(scope *symtab.Table, dec *ast.Node, kind symtab.Kind) error {
	typ := dec.Child(1)
	if typ == nil || len(dec.Children) < 4 {
		return ctx.fault(dec, "malformed declaration")
	}
	for _, n := range dec.Children[2:] {
		if n.Tok.Type != token.Ident {
			continue
		}
		if err := ctx.define(scope, n.Tok, typ.Tok.Value, kind); err != nil {
			return err
		}
	}
	return nil
}

func (ctx *Context) define(scope *symtab.Table, tok token.Token, typ string, kind symtab.Kind) error {
	if _, err := scope.Define(tok.Value, typ, kind); err != nil {
		return ctx.errorAt(tok, "%v", err)
	}
	if scope == ctx.subScope {
		if outer, ok := ctx.classScope.Lookup(tok.Value); ok {
			ctx.warn(config.WarnShadow, tok, "%s '%s' shadows %s '%s'", kind, tok.Value, outer.Kind, outer.Name)
		}
		if kind == symtab.Var {
			ctx.declTokens[tok.Value] = tok
		}
	}
	return nil
}

func (ctx *Context) codegenSubroutine(node *ast.Node) error {
	kw, name := node.Child(0), node.Child(2)
	params, body := node.First(ast.ParameterList), node.First(ast.SubroutineBody)
	if kw == nil || name == nil || params == nil || body == nil {
		return ctx.fault(node, "malformed subroutine declaration")
	}

	switch kw.Tok.Value {
	case "constructor":
		ctx.currentKind = kindConstructor
	case "method":
		ctx.currentKind = kindMethod
	case "function":
		ctx.currentKind = kindFunction
	default:
		return ctx.fault(kw, "unknown subroutine kind '%s'", kw.Tok.Value)
	}
	ctx.currentName = name.Tok.Value
	ctx.subScope = symtab.New()
	ctx.declTokens = make(map[string]token.Token)

	if ctx.currentKind == kindMethod {
		if _, err := ctx.subScope.Define("this", ctx.className, symtab.Arg); err != nil {
			return ctx.fault(node, "%v", err)
		}
	}
	for i := 0; i+1 < len(params.Children); i += 3 {
		typ, pname := params.Children[i], params.Children[i+1]
		if err := ctx.define(ctx.subScope, pname.Tok, typ.Tok.Value, symtab.Arg); err != nil {
			return err
		}
	}
	for _, dec := range body.ChildrenOf(ast.VarDec) {
		if err := ctx.declare(ctx.subScope, dec, symtab.Var); err != nil {
			return err
		}
	}

	ctx.emit(vm.Function{Name: ctx.className + "." + ctx.currentName, Locals: ctx.subScope.Count(symtab.Var)})
	switch ctx.currentKind {
	case kindConstructor:
		ctx.emit(
			vm.Push{Segment: vm.Constant, Index: ctx.classScope.Count(symtab.Field)},
			vm.Call{Name: "Memory.alloc", Args: 1},
			vm.Pop{Segment: vm.Pointer, Index: 0},
		)
	case kindMethod:
		ctx.emit(
			vm.Push{Segment: vm.Argument, Index: 0},
			vm.Pop{Segment: vm.Pointer, Index: 0},
		)
	}

	stmts := body.First(ast.Statements)
	if stmts == nil {
		return ctx.fault(body, "subroutine body without statements")
	}
	if err := ctx.codegenStatements(stmts); err != nil {
		return err
	}

	for _, e := range ctx.subScope.Entries() {
		if e.Kind == symtab.Var && e.Uses == 0 {
			ctx.warn(config.WarnUnusedVar, ctx.declTokens[e.Name], "unused variable '%s'", e.Name)
		}
	}
	return nil
}

// Statements

func (ctx *Context) codegenStatements(node *ast.Node) error {
	for _, stmt := range node.Children {
		if err := ctx.codegenStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (ctx *Context) codegenStmt(node *ast.Node) error {
	switch node.Rule {
	case ast.LetStatement:
		return ctx.codegenLet(node)
	case ast.IfStatement:
		return ctx.codegenIf(node)
	case ast.WhileStatement:
		return ctx.codegenWhile(node)
	case ast.DoStatement:
		return ctx.codegenDo(node)
	case ast.ReturnStatement:
		return ctx.codegenReturn(node)
	}
	return ctx.fault(node, "unexpected statement")
}

func (ctx *Context) codegenLet(node *ast.Node) error {
	name := node.Child(1)
	exprs := node.ChildrenOf(ast.Expression)
	if name == nil || len(exprs) == 0 || len(exprs) > 2 {
		return ctx.fault(node, "malformed let statement")
	}
	v, err := ctx.variable(name.Tok)
	if err != nil {
		return err
	}

	if len(exprs) == 1 {
		if err := ctx.codegenExpr(exprs[0]); err != nil {
			return err
		}
		ctx.emit(vm.Pop{Segment: v.Kind.Segment(), Index: v.Index})
		return nil
	}

	ctx.emit(vm.Push{Segment: v.Kind.Segment(), Index: v.Index})
	if err := ctx.codegenExpr(exprs[0]); err != nil {
		return err
	}
	ctx.emit(vm.Arithmetic{Op: vm.OpAdd})
	if err := ctx.codegenExpr(exprs[1]); err != nil {
		return err
	}
	ctx.emit(
		vm.Pop{Segment: vm.Temp, Index: 0},
		vm.Pop{Segment: vm.Pointer, Index: 1},
		vm.Push{Segment: vm.Temp, Index: 0},
		vm.Pop{Segment: vm.That, Index: 0},
	)
	return nil
}

// codegenIf always emits both labels, even without an else branch.
func (ctx *Context) codegenIf(node *ast.Node) error {
	cond := node.First(ast.Expression)
	branches := node.ChildrenOf(ast.Statements)
	if cond == nil || len(branches) == 0 || len(branches) > 2 {
		return ctx.fault(node, "malformed if statement")
	}
	n := ctx.ifCount
	ctx.ifCount++
	elseLabel, endLabel := fmt.Sprintf("IF_ELSE%d", n), fmt.Sprintf("IF_END%d", n)

	if err := ctx.codegenExpr(cond); err != nil {
		return err
	}
	ctx.emit(vm.Arithmetic{Op: vm.OpNot}, vm.IfGoto{Name: elseLabel})
	if err := ctx.codegenStatements(branches[0]); err != nil {
		return err
	}
	ctx.emit(vm.Goto{Name: endLabel}, vm.Label{Name: elseLabel})
	if len(branches) == 2 {
		if err := ctx.codegenStatements(branches[1]); err != nil {
			return err
		}
	}
	ctx.emit(vm.Label{Name: endLabel})
	return nil
}

func (ctx *Context) codegenWhile(node *ast.Node) error {
	cond, body := node.First(ast.Expression), node.First(ast.Statements)
	if cond == nil || body == nil {
		return ctx.fault(node, "malformed while statement")
	}
	n := ctx.whileCount
	ctx.whileCount++
	expLabel, endLabel := fmt.Sprintf("WHILE_EXP%d", n), fmt.Sprintf("WHILE_END%d", n)

	ctx.emit(vm.Label{Name: expLabel})
	if err := ctx.codegenExpr(cond); err != nil {
		return err
	}
	ctx.emit(vm.Arithmetic{Op: vm.OpNot}, vm.IfGoto{Name: endLabel})
	if err := ctx.codegenStatements(body); err != nil {
		return err
	}
	ctx.emit(vm.Goto{Name: expLabel}, vm.Label{Name: endLabel})
	return nil
}

func (ctx *Context) codegenDo(node *ast.Node) error {
	if len(node.Children) < 2 {
		return ctx.fault(node, "malformed do statement")
	}
	// children after 'do' and before ';' form the call
	if err := ctx.codegenCall(node, node.Children[1:len(node.Children)-1]); err != nil {
		return err
	}
	ctx.emit(vm.Pop{Segment: vm.Temp, Index: 0})
	return nil
}

func (ctx *Context) codegenReturn(node *ast.Node) error {
	if expr := node.First(ast.Expression); expr != nil {
		if err := ctx.codegenExpr(expr); err != nil {
			return err
		}
	} else {
		ctx.emit(vm.Push{Segment: vm.Constant, Index: 0})
	}
	ctx.emit(vm.Return{})
	return nil
}
