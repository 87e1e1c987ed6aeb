package parser

import (
	"github.com/xplshn/jackc/pkg/ast"
	"github.com/xplshn/jackc/pkg/token"
	"github.com/xplshn/jackc/pkg/util"
)

// Parser holds the state for parsing one class
type Parser struct {
	file     string
	tokens   []token.Token
	pos      int
	current  token.Token
	previous token.Token
	eof      token.Token
}

// New creates a Parser over a token stream produced by the lexer
func New(file string, tokens []token.Token) *Parser {
	p := &Parser{file: file, tokens: tokens, eof: token.Token{Type: token.EOF, Line: 1, Column: 1}}
	if n := len(tokens); n > 0 {
		last := tokens[n-1]
		p.eof.Line, p.eof.Column = last.Line, last.Column+last.Len
	}
	p.current = p.at(0)
	return p
}

// Parse parses exactly one class. Nothing may follow its closing brace.
func (p *Parser) Parse() (*ast.Node, error) {
	class, err := p.parseClass()
	if err != nil {
		return nil, err
	}
	if !p.check(token.EOF) {
		return nil, util.ErrorAt(p.file, p.current, "expected end of input after class, got %s", p.current)
	}
	return class, nil
}

// Parser helpers
func (p *Parser) at(i int) token.Token {
	if i < len(p.tokens) {
		return p.tokens[i]
	}
	return p.eof
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens) {
		p.previous = p.current
		p.pos++
		p.current = p.at(p.pos)
	}
}

func (p *Parser) peek() token.Token { return p.at(p.pos + 1) }

func (p *Parser) check(typ token.Type) bool { return p.current.Type == typ }

func (p *Parser) checkValue(typ token.Type, values ...string) bool {
	if p.current.Type != typ {
		return false
	}
	for _, v := range values {
		if p.current.Value == v {
			return true
		}
	}
	return false
}

func (p *Parser) errorf(what string, rule ast.Rule) error {
	return util.ErrorAt(p.file, p.current, "expected %s, got %s (in %s)", what, p.current, rule)
}

// take consumes the current token as a terminal.
func (p *Parser) take() *ast.Node {
	n := ast.NewTerminal(p.current)
	p.advance()
	return n
}

// expect consumes a token of the given type whose lexeme is one of values.
// An empty values list accepts any lexeme.
func (p *Parser) expect(rule ast.Rule, what string, typ token.Type, values ...string) (*ast.Node, error) {
	if (len(values) == 0 && p.check(typ)) || p.checkValue(typ, values...) {
		return p.take(), nil
	}
	return nil, p.errorf(what, rule)
}

func (p *Parser) symbol(rule ast.Rule, sym string) (*ast.Node, error) {
	return p.expect(rule, "'"+sym+"'", token.Symbol, sym)
}

func (p *Parser) identifier(rule ast.Rule, what string) (*ast.Node, error) {
	return p.expect(rule, what, token.Ident)
}

// seq runs each step in order and appends the produced nodes to parent.
func seq(parent *ast.Node, steps ...func() (*ast.Node, error)) error {
	for _, step := range steps {
		n, err := step()
		if err != nil {
			return err
		}
		if n != nil {
			parent.Add(n)
		}
	}
	return nil
}

func (p *Parser) sym(rule ast.Rule, s string) func() (*ast.Node, error) {
	return func() (*ast.Node, error) { return p.symbol(rule, s) }
}

func (p *Parser) ident(rule ast.Rule, what string) func() (*ast.Node, error) {
	return func() (*ast.Node, error) { return p.identifier(rule, what) }
}

// Declarations

func (p *Parser) parseClass() (*ast.Node, error) {
	node := ast.NewRule(ast.Class, p.current)
	err := seq(node,
		func() (*ast.Node, error) { return p.expect(ast.Class, "'class'", token.Keyword, "class") },
		p.ident(ast.Class, "class name"),
		p.sym(ast.Class, "{"),
	)
	if err != nil {
		return nil, err
	}
	for p.checkValue(token.Keyword, "static", "field") {
		dec, err := p.parseClassVarDec()
		if err != nil {
			return nil, err
		}
		node.Add(dec)
	}
	for p.checkValue(token.Keyword, "constructor", "function", "method") {
		dec, err := p.parseSubroutineDec()
		if err != nil {
			return nil, err
		}
		node.Add(dec)
	}
	if err := seq(node, p.sym(ast.Class, "}")); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *Parser) parseType(rule ast.Rule, allowVoid bool) (*ast.Node, error) {
	if p.checkValue(token.Keyword, "int", "char", "boolean") || p.check(token.Ident) {
		return p.take(), nil
	}
	if allowVoid && p.checkValue(token.Keyword, "void") {
		return p.take(), nil
	}
	if allowVoid {
		return nil, p.errorf("return type", rule)
	}
	return nil, p.errorf("type", rule)
}

// parseNameList parses varName (',' varName)* ';'.
func (p *Parser) parseNameList(node *ast.Node) error {
	for {
		if err := seq(node, p.ident(node.Rule, "variable name")); err != nil {
			return err
		}
		if !p.checkValue(token.Symbol, ",") {
			break
		}
		node.Add(p.take())
	}
	return seq(node, p.sym(node.Rule, ";"))
}

func (p *Parser) parseClassVarDec() (*ast.Node, error) {
	node := ast.NewRule(ast.ClassVarDec, p.current)
	node.Add(p.take())
	typ, err := p.parseType(ast.ClassVarDec, false)
	if err != nil {
		return nil, err
	}
	node.Add(typ)
	if err := p.parseNameList(node); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *Parser) parseSubroutineDec() (*ast.Node, error) {
	node := ast.NewRule(ast.SubroutineDec, p.current)
	node.Add(p.take())
	err := seq(node,
		func() (*ast.Node, error) { return p.parseType(ast.SubroutineDec, true) },
		p.ident(ast.SubroutineDec, "subroutine name"),
		p.sym(ast.SubroutineDec, "("),
		p.parseParameterList,
		p.sym(ast.SubroutineDec, ")"),
		p.parseSubroutineBody,
	)
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (p *Parser) parseParameterList() (*ast.Node, error) {
	node := ast.NewRule(ast.ParameterList, p.current)
	if p.checkValue(token.Symbol, ")") {
		return node, nil
	}
	for {
		typ, err := p.parseType(ast.ParameterList, false)
		if err != nil {
			return nil, err
		}
		node.Add(typ)
		if err := seq(node, p.ident(ast.ParameterList, "parameter name")); err != nil {
			return nil, err
		}
		if !p.checkValue(token.Symbol, ",") {
			return node, nil
		}
		node.Add(p.take())
	}
}

func (p *Parser) parseSubroutineBody() (*ast.Node, error) {
	node := ast.NewRule(ast.SubroutineBody, p.current)
	if err := seq(node, p.sym(ast.SubroutineBody, "{")); err != nil {
		return nil, err
	}
	for p.checkValue(token.Keyword, "var") {
		dec, err := p.parseVarDec()
		if err != nil {
			return nil, err
		}
		node.Add(dec)
	}
	if err := seq(node, p.parseStatements, p.sym(ast.SubroutineBody, "}")); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *Parser) parseVarDec() (*ast.Node, error) {
	node := ast.NewRule(ast.VarDec, p.current)
	node.Add(p.take())
	typ, err := p.parseType(ast.VarDec, false)
	if err != nil {
		return nil, err
	}
	node.Add(typ)
	if err := p.parseNameList(node); err != nil {
		return nil, err
	}
	return node, nil
}

// Statements

func (p *Parser) parseStatements() (*ast.Node, error) {
	node := ast.NewRule(ast.Statements, p.current)
	for p.check(token.Keyword) {
		var (
			stmt *ast.Node
			err  error
		)
		switch p.current.Value {
		case "let":
			stmt, err = p.parseLet()
		case "if":
			stmt, err = p.parseIf()
		case "while":
			stmt, err = p.parseWhile()
		case "do":
			stmt, err = p.parseDo()
		case "return":
			stmt, err = p.parseReturn()
		default:
			return node, nil
		}
		if err != nil {
			return nil, err
		}
		node.Add(stmt)
	}
	return node, nil
}

func (p *Parser) parseLet() (*ast.Node, error) {
	node := ast.NewRule(ast.LetStatement, p.current)
	node.Add(p.take())
	if err := seq(node, p.ident(ast.LetStatement, "variable name")); err != nil {
		return nil, err
	}
	if p.checkValue(token.Symbol, "[") {
		if err := seq(node, p.sym(ast.LetStatement, "["), p.parseExpression, p.sym(ast.LetStatement, "]")); err != nil {
			return nil, err
		}
	}
	if err := seq(node, p.sym(ast.LetStatement, "="), p.parseExpression, p.sym(ast.LetStatement, ";")); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *Parser) parseBlock(node *ast.Node) error {
	return seq(node, p.sym(node.Rule, "{"), p.parseStatements, p.sym(node.Rule, "}"))
}

func (p *Parser) parseCondition(node *ast.Node) error {
	return seq(node, p.sym(node.Rule, "("), p.parseExpression, p.sym(node.Rule, ")"))
}

func (p *Parser) parseIf() (*ast.Node, error) {
	node := ast.NewRule(ast.IfStatement, p.current)
	node.Add(p.take())
	if err := p.parseCondition(node); err != nil {
		return nil, err
	}
	if err := p.parseBlock(node); err != nil {
		return nil, err
	}
	if p.checkValue(token.Keyword, "else") {
		node.Add(p.take())
		if err := p.parseBlock(node); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (p *Parser) parseWhile() (*ast.Node, error) {
	node := ast.NewRule(ast.WhileStatement, p.current)
	node.Add(p.take())
	if err := p.parseCondition(node); err != nil {
		return nil, err
	}
	if err := p.parseBlock(node); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *Parser) parseDo() (*ast.Node, error) {
	node := ast.NewRule(ast.DoStatement, p.current)
	node.Add(p.take())
	if err := p.parseSubroutineCall(node); err != nil {
		return nil, err
	}
	if err := seq(node, p.sym(ast.DoStatement, ";")); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *Parser) parseReturn() (*ast.Node, error) {
	node := ast.NewRule(ast.ReturnStatement, p.current)
	node.Add(p.take())
	if !p.checkValue(token.Symbol, ";") {
		if err := seq(node, p.parseExpression); err != nil {
			return nil, err
		}
	}
	if err := seq(node, p.sym(ast.ReturnStatement, ";")); err != nil {
		return nil, err
	}
	return node, nil
}

// Expressions

func isOp(tok token.Token) bool {
	if tok.Type != token.Symbol {
		return false
	}
	switch tok.Value {
	case "+", "-", "*", "/", "&", "|", "<", ">", "=":
		return true
	}
	return false
}

// parseExpression keeps terms and operators flat; there is no precedence.
func (p *Parser) parseExpression() (*ast.Node, error) {
	node := ast.NewRule(ast.Expression, p.current)
	if err := seq(node, p.parseTerm); err != nil {
		return nil, err
	}
	for isOp(p.current) {
		node.Add(p.take())
		if err := seq(node, p.parseTerm); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (p *Parser) parseTerm() (*ast.Node, error) {
	node := ast.NewRule(ast.Term, p.current)
	tok := p.current
	switch {
	case tok.Type == token.IntConst, tok.Type == token.StringConst:
		node.Add(p.take())
	case p.checkValue(token.Keyword, "true", "false", "null", "this"):
		node.Add(p.take())
	case p.checkValue(token.Symbol, "("):
		if err := seq(node, p.sym(ast.Term, "("), p.parseExpression, p.sym(ast.Term, ")")); err != nil {
			return nil, err
		}
	case p.checkValue(token.Symbol, "-", "~"):
		node.Add(p.take())
		if err := seq(node, p.parseTerm); err != nil {
			return nil, err
		}
	case tok.Type == token.Ident:
		next := p.peek()
		switch {
		case next.Is(token.Symbol, "["):
			node.Add(p.take())
			if err := seq(node, p.sym(ast.Term, "["), p.parseExpression, p.sym(ast.Term, "]")); err != nil {
				return nil, err
			}
		case next.Is(token.Symbol, "("), next.Is(token.Symbol, "."):
			if err := p.parseSubroutineCall(node); err != nil {
				return nil, err
			}
		default:
			node.Add(p.take())
		}
	default:
		return nil, p.errorf("term", ast.Term)
	}
	return node, nil
}

// parseSubroutineCall appends the call's tokens directly to parent.
func (p *Parser) parseSubroutineCall(parent *ast.Node) error {
	rule := parent.Rule
	if err := seq(parent, p.ident(rule, "subroutine, class or variable name")); err != nil {
		return err
	}
	if p.checkValue(token.Symbol, ".") {
		if err := seq(parent, p.sym(rule, "."), p.ident(rule, "subroutine name")); err != nil {
			return err
		}
	}
	return seq(parent, p.sym(rule, "("), p.parseExpressionList, p.sym(rule, ")"))
}

func (p *Parser) parseExpressionList() (*ast.Node, error) {
	node := ast.NewRule(ast.ExpressionList, p.current)
	if p.checkValue(token.Symbol, ")") {
		return node, nil
	}
	for {
		if err := seq(node, p.parseExpression); err != nil {
			return nil, err
		}
		if !p.checkValue(token.Symbol, ",") {
			return node, nil
		}
		node.Add(p.take())
	}
}
