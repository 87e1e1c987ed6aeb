package token

import "fmt"

type Type int

const (
	EOF Type = iota
	Keyword
	Symbol
	Ident
	IntConst
	StringConst
)

var typeNames = map[Type]string{
	EOF:         "end of input",
	Keyword:     "keyword",
	Symbol:      "symbol",
	Ident:       "identifier",
	IntConst:    "integerConstant",
	StringConst: "stringConstant",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

var Keywords = map[string]bool{
	"class":       true,
	"constructor": true,
	"function":    true,
	"method":      true,
	"field":       true,
	"static":      true,
	"var":         true,
	"int":         true,
	"char":        true,
	"boolean":     true,
	"void":        true,
	"true":        true,
	"false":       true,
	"null":        true,
	"this":        true,
	"let":         true,
	"do":          true,
	"if":          true,
	"else":        true,
	"while":       true,
	"return":      true,
}

// Symbols are always a single character.
var Symbols = map[rune]bool{
	'{': true, '}': true, '(': true, ')': true, '[': true, ']': true,
	'.': true, ',': true, ';': true, '+': true, '-': true, '*': true,
	'/': true, '&': true, '|': true, '<': true, '>': true, '=': true,
	'~': true,
}

// MaxInt is the largest integer constant the language accepts.
const MaxInt = 32767

type Token struct {
	Type   Type
	Value  string
	Line   int
	Column int
	Len    int
}

// Is reports whether the token has the given type and lexeme.
func (t Token) Is(typ Type, value string) bool {
	return t.Type == typ && t.Value == value
}

func (t Token) String() string {
	switch t.Type {
	case EOF:
		return "end of input"
	case StringConst:
		return fmt.Sprintf("%s %q", t.Type, t.Value)
	default:
		return fmt.Sprintf("%s '%s'", t.Type, t.Value)
	}
}
