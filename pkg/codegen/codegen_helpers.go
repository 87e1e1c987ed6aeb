package codegen

import (
	"strconv"

	"github.com/xplshn/jackc/pkg/ast"
	"github.com/xplshn/jackc/pkg/config"
	"github.com/xplshn/jackc/pkg/symtab"
	"github.com/xplshn/jackc/pkg/token"
	"github.com/xplshn/jackc/pkg/vm"
)

var binaryOps = map[string]vm.Instruction{
	"+": vm.Arithmetic{Op: vm.OpAdd},
	"-": vm.Arithmetic{Op: vm.OpSub},
	"&": vm.Arithmetic{Op: vm.OpAnd},
	"|": vm.Arithmetic{Op: vm.OpOr},
	"<": vm.Arithmetic{Op: vm.OpLt},
	">": vm.Arithmetic{Op: vm.OpGt},
	"=": vm.Arithmetic{Op: vm.OpEq},
	"*": vm.Call{Name: "Math.multiply", Args: 2},
	"/": vm.Call{Name: "Math.divide", Args: 2},
}

// lookup resolves a variable in the subroutine scope, then the class scope,
// and counts the reference.
func (ctx *Context) lookup(name string) (symtab.Entry, bool) {
	if e, ok := ctx.subScope.Lookup(name); ok {
		ctx.subScope.Touch(name)
		return e, true
	}
	e, ok := ctx.classScope.Lookup(name)
	return e, ok
}

func (ctx *Context) variable(tok token.Token) (symtab.Entry, error) {
	e, ok := ctx.lookup(tok.Value)
	if !ok {
		return e, ctx.errorAt(tok, "undeclared variable '%s'", tok.Value)
	}
	if e.Kind == symtab.Field {
		if err := ctx.implicitThis(tok, "field '%s' used", tok.Value); err != nil {
			return e, err
		}
	}
	return e, nil
}

// implicitThis flags uses of the current object inside a function, where no
// object exists.
func (ctx *Context) implicitThis(tok token.Token, format string, args ...any) error {
	if ctx.currentKind != kindFunction {
		return nil
	}
	format += " inside function %s.%s"
	args = append(args, ctx.className, ctx.currentName)
	if ctx.cfg.IsFeatureEnabled(config.FeatStrictThis) {
		return ctx.errorAt(tok, format, args...)
	}
	ctx.warn(config.WarnImplicitThis, tok, format, args...)
	return nil
}

func (ctx *Context) pushVar(e symtab.Entry) {
	ctx.emit(vm.Push{Segment: e.Kind.Segment(), Index: e.Index})
}

// Expressions are evaluated strictly left to right.
func (ctx *Context) codegenExpr(node *ast.Node) error {
	if node == nil || node.Rule != ast.Expression || len(node.Children)%2 == 0 {
		return ctx.fault(node, "malformed expression")
	}
	if err := ctx.codegenTerm(node.Children[0]); err != nil {
		return err
	}
	for i := 1; i+1 < len(node.Children); i += 2 {
		op := node.Children[i]
		inst, ok := binaryOps[op.Tok.Value]
		if !op.IsTerminal() || !ok {
			return ctx.fault(op, "unknown operator '%s'", op.Tok.Value)
		}
		if err := ctx.codegenTerm(node.Children[i+1]); err != nil {
			return err
		}
		ctx.emit(inst)
	}
	return nil
}

func (ctx *Context) codegenTerm(node *ast.Node) error {
	if node == nil || node.Rule != ast.Term || len(node.Children) == 0 {
		return ctx.fault(node, "malformed term")
	}
	first := node.Children[0]
	if !first.IsTerminal() {
		return ctx.fault(node, "term starts with %s", first.Rule)
	}
	tok := first.Tok

	switch tok.Type {
	case token.IntConst:
		n, err := strconv.Atoi(tok.Value)
		if err != nil || n > token.MaxInt {
			return ctx.fault(first, "bad integer constant '%s'", tok.Value)
		}
		ctx.emit(vm.Push{Segment: vm.Constant, Index: n})
		return nil
	case token.StringConst:
		ctx.codegenString(tok.Value)
		return nil
	case token.Keyword:
		return ctx.codegenKeyword(tok)
	case token.Symbol:
		return ctx.codegenSymbolTerm(node, tok)
	case token.Ident:
		return ctx.codegenIdentTerm(node, tok)
	}
	return ctx.fault(first, "unexpected %s in term", tok)
}

func (ctx *Context) codegenString(s string) {
	runes := []rune(s)
	ctx.emit(
		vm.Push{Segment: vm.Constant, Index: len(runes)},
		vm.Call{Name: "String.new", Args: 1},
	)
	for _, r := range runes {
		ctx.emit(
			vm.Push{Segment: vm.Constant, Index: int(r)},
			vm.Call{Name: "String.appendChar", Args: 2},
		)
	}
}

func (ctx *Context) codegenKeyword(tok token.Token) error {
	switch tok.Value {
	case "true":
		ctx.emit(vm.Push{Segment: vm.Constant, Index: 0}, vm.Arithmetic{Op: vm.OpNot})
	case "false", "null":
		ctx.emit(vm.Push{Segment: vm.Constant, Index: 0})
	case "this":
		if err := ctx.implicitThis(tok, "'this' used"); err != nil {
			return err
		}
		ctx.emit(vm.Push{Segment: vm.Pointer, Index: 0})
	default:
		return ctx.fault(nil, "keyword '%s' is not a constant", tok.Value)
	}
	return nil
}

func (ctx *Context) codegenSymbolTerm(node *ast.Node, tok token.Token) error {
	switch tok.Value {
	case "(":
		return ctx.codegenExpr(node.Child(1))
	case "-", "~":
		if err := ctx.codegenTerm(node.Child(1)); err != nil {
			return err
		}
		op := vm.OpNeg
		if tok.Value == "~" {
			op = vm.OpNot
		}
		ctx.emit(vm.Arithmetic{Op: op})
		return nil
	}
	return ctx.fault(node, "unexpected symbol '%s' in term", tok.Value)
}

func (ctx *Context) codegenIdentTerm(node *ast.Node, tok token.Token) error {
	next := node.Child(1)
	switch {
	case next == nil:
		e, err := ctx.variable(tok)
		if err != nil {
			return err
		}
		ctx.pushVar(e)
		return nil
	case next.Is("["):
		e, err := ctx.variable(tok)
		if err != nil {
			return err
		}
		ctx.pushVar(e)
		if err := ctx.codegenExpr(node.Child(2)); err != nil {
			return err
		}
		ctx.emit(
			vm.Arithmetic{Op: vm.OpAdd},
			vm.Pop{Segment: vm.Pointer, Index: 1},
			vm.Push{Segment: vm.That, Index: 0},
		)
		return nil
	case next.Is("("), next.Is("."):
		return ctx.codegenCall(node, node.Children)
	}
	return ctx.fault(node, "unexpected %s after identifier", next.Tok)
}

// codegenCall handles the three call shapes. parts holds
// name ['.' name] '(' expressionList ')'.
func (ctx *Context) codegenCall(node *ast.Node, parts []*ast.Node) error {
	var list *ast.Node
	for _, p := range parts {
		if p.Rule == ast.ExpressionList {
			list = p
		}
	}
	if len(parts) < 4 || list == nil {
		return ctx.fault(node, "malformed subroutine call")
	}
	args := list.ChildrenOf(ast.Expression)
	pushArgs := func() error {
		for _, a := range args {
			if err := ctx.codegenExpr(a); err != nil {
				return err
			}
		}
		return nil
	}

	head := parts[0].Tok
	if !parts[1].Is(".") {
		if err := ctx.implicitThis(head, "method '%s' called", head.Value); err != nil {
			return err
		}
		ctx.emit(vm.Push{Segment: vm.Pointer, Index: 0})
		if err := pushArgs(); err != nil {
			return err
		}
		ctx.emit(vm.Call{Name: ctx.className + "." + head.Value, Args: len(args) + 1})
		return nil
	}

	sub := parts[2].Tok.Value
	if e, ok := ctx.lookup(head.Value); ok {
		if e.Kind == symtab.Field {
			if err := ctx.implicitThis(head, "field '%s' used", head.Value); err != nil {
				return err
			}
		}
		ctx.pushVar(e)
		if err := pushArgs(); err != nil {
			return err
		}
		ctx.emit(vm.Call{Name: e.Type + "." + sub, Args: len(args) + 1})
		return nil
	}
	if err := pushArgs(); err != nil {
		return err
	}
	ctx.emit(vm.Call{Name: head.Value + "." + sub, Args: len(args)})
	return nil
}
