package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xplshn/jackc/pkg/config"
	"github.com/xplshn/jackc/pkg/util"
)

type Segment int

const (
	Argument Segment = iota
	Local
	Static
	Constant
	This
	That
	Pointer
	Temp
)

var segmentNames = [...]string{
	Argument: "argument",
	Local:    "local",
	Static:   "static",
	Constant: "constant",
	This:     "this",
	That:     "that",
	Pointer:  "pointer",
	Temp:     "temp",
}

func (s Segment) String() string {
	if s >= 0 && int(s) < len(segmentNames) {
		return segmentNames[s]
	}
	return fmt.Sprintf("Segment(%d)", int(s))
}

func ParseSegment(name string) (Segment, bool) {
	for i, n := range segmentNames {
		if n == name {
			return Segment(i), true
		}
	}
	return 0, false
}

type Op int

const (
	OpAdd Op = iota
	OpSub
	OpNeg
	OpEq
	OpGt
	OpLt
	OpAnd
	OpOr
	OpNot
)

var opNames = [...]string{
	OpAdd: "add", OpSub: "sub", OpNeg: "neg",
	OpEq: "eq", OpGt: "gt", OpLt: "lt",
	OpAnd: "and", OpOr: "or", OpNot: "not",
}

func (o Op) String() string {
	if o >= 0 && int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

func ParseOp(name string) (Op, bool) {
	for i, n := range opNames {
		if n == name {
			return Op(i), true
		}
	}
	return 0, false
}

// Unary reports whether the op consumes a single stack value.
func (o Op) Unary() bool { return o == OpNeg || o == OpNot }

// Compare reports whether the op produces a boolean from two values.
func (o Op) Compare() bool { return o == OpEq || o == OpGt || o == OpLt }

type Instruction interface {
	isInstruction()
	String() string
}

type Push struct {
	Segment Segment
	Index   int
}
type Pop struct {
	Segment Segment
	Index   int
}
type Arithmetic struct{ Op Op }
type Label struct{ Name string }
type Goto struct{ Name string }
type IfGoto struct{ Name string }
type Function struct {
	Name   string
	Locals int
}
type Call struct {
	Name string
	Args int
}
type Return struct{}

func (Push) isInstruction()       {}
func (Pop) isInstruction()        {}
func (Arithmetic) isInstruction() {}
func (Label) isInstruction()      {}
func (Goto) isInstruction()       {}
func (IfGoto) isInstruction()     {}
func (Function) isInstruction()   {}
func (Call) isInstruction()       {}
func (Return) isInstruction()     {}

func (i Push) String() string       { return fmt.Sprintf("push %s %d", i.Segment, i.Index) }
func (i Pop) String() string        { return fmt.Sprintf("pop %s %d", i.Segment, i.Index) }
func (i Arithmetic) String() string { return i.Op.String() }
func (i Label) String() string      { return "label " + i.Name }
func (i Goto) String() string       { return "goto " + i.Name }
func (i IfGoto) String() string     { return "if-goto " + i.Name }
func (i Function) String() string   { return fmt.Sprintf("function %s %d", i.Name, i.Locals) }
func (i Call) String() string       { return fmt.Sprintf("call %s %d", i.Name, i.Args) }
func (Return) String() string       { return "return" }

// Line is an instruction tagged with its 1-based source line.
type Line struct {
	Inst Instruction
	Num  int
}

// Number assigns consecutive line numbers to generated code.
func Number(code []Instruction) []Line {
	lines := make([]Line, len(code))
	for i, inst := range code {
		lines[i] = Line{Inst: inst, Num: i + 1}
	}
	return lines
}

// Format renders code in the textual VM format, one instruction per line.
func Format(code []Instruction) string {
	var sb strings.Builder
	for _, inst := range code {
		sb.WriteString(inst.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Parse reads textual VM code. Trailing // comments and blank lines are
// ignored. file only labels diagnostics.
func Parse(file, text string) ([]Line, error) {
	var lines []Line
	for i, raw := range strings.Split(text, "\n") {
		if idx := strings.Index(raw, "//"); idx >= 0 {
			raw = raw[:idx]
		}
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			continue
		}
		inst, err := parseFields(fields)
		if err != nil {
			return nil, util.Errorf(file, i+1, 0, "%v", err)
		}
		lines = append(lines, Line{Inst: inst, Num: i + 1})
	}
	return lines, nil
}

func parseFields(f []string) (Instruction, error) {
	want := func(n int) error {
		if len(f) != n {
			return fmt.Errorf("'%s' takes %d operand(s), got %d", f[0], n-1, len(f)-1)
		}
		return nil
	}

	switch f[0] {
	case "push", "pop":
		if err := want(3); err != nil {
			return nil, err
		}
		seg, ok := ParseSegment(f[1])
		if !ok {
			return nil, fmt.Errorf("unknown segment '%s'", f[1])
		}
		idx, err := parseIndex(f[2])
		if err != nil {
			return nil, err
		}
		if err := checkIndex(seg, idx); err != nil {
			return nil, err
		}
		if f[0] == "push" {
			return Push{seg, idx}, nil
		}
		if seg == Constant {
			return nil, fmt.Errorf("cannot pop to the constant segment")
		}
		return Pop{seg, idx}, nil
	case "label", "goto", "if-goto":
		if err := want(2); err != nil {
			return nil, err
		}
		if !validSymbol(f[1]) {
			return nil, fmt.Errorf("invalid label name '%s'", f[1])
		}
		if reservedLabel(f[1]) {
			return nil, fmt.Errorf("label name '%s' is reserved for return addresses", f[1])
		}
		switch f[0] {
		case "label":
			return Label{f[1]}, nil
		case "goto":
			return Goto{f[1]}, nil
		}
		return IfGoto{f[1]}, nil
	case "function", "call":
		if err := want(3); err != nil {
			return nil, err
		}
		if !validSymbol(f[1]) {
			return nil, fmt.Errorf("invalid function name '%s'", f[1])
		}
		n, err := parseIndex(f[2])
		if err != nil {
			return nil, err
		}
		if f[0] == "function" {
			return Function{f[1], n}, nil
		}
		return Call{f[1], n}, nil
	case "return":
		if err := want(1); err != nil {
			return nil, err
		}
		return Return{}, nil
	}

	if op, ok := ParseOp(f[0]); ok {
		if err := want(1); err != nil {
			return nil, err
		}
		return Arithmetic{op}, nil
	}
	return nil, fmt.Errorf("unknown command '%s'", f[0])
}

func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > config.MaxAddress {
		return 0, fmt.Errorf("invalid index '%s'", s)
	}
	return n, nil
}

// checkIndex enforces the fixed sizes of the temp and pointer segments.
func checkIndex(seg Segment, idx int) error {
	switch {
	case seg == Temp && idx > 7:
		return fmt.Errorf("temp index %d out of range 0..7", idx)
	case seg == Pointer && idx > 1:
		return fmt.Errorf("pointer index %d out of range 0..1", idx)
	}
	return nil
}

// reservedLabel reports whether name has the form ret.<k> used for the
// return labels emitted for each call.
func reservedLabel(name string) bool {
	k, ok := strings.CutPrefix(name, "ret.")
	if !ok || k == "" {
		return false
	}
	for _, c := range k {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// validSymbol accepts the characters a Hack assembly symbol may contain and
// rejects a leading digit.
func validSymbol(s string) bool {
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("_.$:", r):
		default:
			return false
		}
	}
	return true
}
