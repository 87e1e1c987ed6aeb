package lexer

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/xplshn/jackc/pkg/token"
	"github.com/xplshn/jackc/pkg/util"
)

// StripComments blanks out // and /* */ comments. Newlines inside block
// comments are kept so token positions still match the original text.
func StripComments(file, src string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(src))
	runes := []rune(src)
	line, col := 1, 1
	inString := false

	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		next := rune(0)
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch {
		case inString:
			if ch == '"' || ch == '\n' {
				inString = false
			}
		case ch == '"':
			inString = true
		case ch == '/' && next == '/':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			if i < len(runes) {
				sb.WriteRune('\n')
				line, col = line+1, 1
			}
			continue
		case ch == '/' && next == '*':
			startLine, startCol := line, col
			i += 2
			col += 2
			closed := false
			for ; i < len(runes); i++ {
				if runes[i] == '*' && i+1 < len(runes) && runes[i+1] == '/' {
					i++
					col += 2
					closed = true
					break
				}
				if runes[i] == '\n' {
					sb.WriteRune('\n')
					line, col = line+1, 1
				} else {
					col++
				}
			}
			if !closed {
				return "", util.Errorf(file, startLine, startCol, "unterminated block comment")
			}
			sb.WriteRune(' ')
			continue
		}

		sb.WriteRune(ch)
		if ch == '\n' {
			line, col = line+1, 1
		} else {
			col++
		}
	}
	return sb.String(), nil
}

type Lexer struct {
	file   string
	source []rune
	pos    int
	line   int
	column int
}

func NewLexer(file, source string) *Lexer {
	return &Lexer{file: file, source: []rune(source), line: 1, column: 1}
}

// Lex strips comments and tokenizes the result.
func Lex(file, src string) ([]token.Token, error) {
	stripped, err := StripComments(file, src)
	if err != nil {
		return nil, err
	}
	return NewLexer(file, stripped).Tokenize()
}

// Tokenize scans the whole source. The result never contains an EOF token.
func (l *Lexer) Tokenize() ([]token.Token, error) {
	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == token.EOF {
			return toks, nil
		}
		toks = append(toks, tok)
	}
}

func (l *Lexer) Next() (token.Token, error) {
	l.skipWhitespace()
	startPos, startCol, startLine := l.pos, l.column, l.line

	if l.isAtEnd() {
		return l.makeToken(token.EOF, "", startPos, startCol, startLine), nil
	}

	ch := l.peek()
	if token.Symbols[ch] {
		l.advance()
		return l.makeToken(token.Symbol, string(ch), startPos, startCol, startLine), nil
	}
	if ch == '"' {
		l.advance()
		return l.stringLiteral(startPos, startCol, startLine)
	}
	return l.word(startPos, startCol, startLine)
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(typ token.Type, value string, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Type: typ, Value: value,
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
}

func (l *Lexer) skipWhitespace() {
	for !l.isAtEnd() && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

func (l *Lexer) stringLiteral(startPos, startCol, startLine int) (token.Token, error) {
	contentStart := l.pos
	for {
		if l.isAtEnd() || l.peek() == '\n' || l.peek() == '\r' {
			tok := l.makeToken(token.StringConst, "", startPos, startCol, startLine)
			return tok, util.ErrorAt(l.file, tok, "unterminated string constant")
		}
		ch := l.peek()
		if ch == '"' {
			break
		}
		// the character set is printable ASCII
		if ch < 32 || ch > 126 {
			tok := token.Token{Type: token.StringConst, Value: string(ch), Line: l.line, Column: l.column, Len: 1}
			return tok, util.ErrorAt(l.file, tok, "character %q is not allowed in a string constant", ch)
		}
		l.advance()
	}
	value := string(l.source[contentStart:l.pos])
	l.advance()
	return l.makeToken(token.StringConst, value, startPos, startCol, startLine), nil
}

// word reads up to the next whitespace, symbol or quote and classifies the run.
func (l *Lexer) word(startPos, startCol, startLine int) (token.Token, error) {
	for !l.isAtEnd() {
		ch := l.peek()
		if unicode.IsSpace(ch) || token.Symbols[ch] || ch == '"' {
			break
		}
		l.advance()
	}
	run := string(l.source[startPos:l.pos])

	switch {
	case token.Keywords[run]:
		return l.makeToken(token.Keyword, run, startPos, startCol, startLine), nil
	case isDigits(run):
		tok := l.makeToken(token.IntConst, run, startPos, startCol, startLine)
		if n, err := strconv.Atoi(run); err != nil || n > token.MaxInt {
			return tok, util.ErrorAt(l.file, tok, "integer constant %s is out of range 0..%d", run, token.MaxInt)
		}
		return tok, nil
	case isIdentifier(run):
		return l.makeToken(token.Ident, run, startPos, startCol, startLine), nil
	}
	tok := l.makeToken(token.Ident, run, startPos, startCol, startLine)
	return tok, util.ErrorAt(l.file, tok, "invalid identifier '%s'", run)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return s != ""
}

// Tokenize scans src, which must already be free of comments.
func Tokenize(file, src string) ([]token.Token, error) {
	return NewLexer(file, src).Tokenize()
}
