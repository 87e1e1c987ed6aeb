// Package vmtrans expands stack-machine commands into Hack assembly.
package vmtrans

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xplshn/jackc/pkg/asm"
	"github.com/xplshn/jackc/pkg/config"
	"github.com/xplshn/jackc/pkg/util"
	"github.com/xplshn/jackc/pkg/vm"
)

const stage = "vmtrans"

// bootstrapPrefix scopes the return label of the startup call.
const bootstrapPrefix = "Bootstrap"

var segmentBase = map[vm.Segment]string{
	vm.Local:    "LCL",
	vm.Argument: "ARG",
	vm.This:     "THIS",
	vm.That:     "THAT",
}

var binaryComp = map[vm.Op]string{
	vm.OpAdd: "D+M",
	vm.OpSub: "M-D",
	vm.OpAnd: "D&M",
	vm.OpOr:  "D|M",
}

var unaryComp = map[vm.Op]string{
	vm.OpNeg: "-M",
	vm.OpNot: "!M",
}

var compareJump = map[vm.Op]string{
	vm.OpEq: "JEQ",
	vm.OpGt: "JGT",
	vm.OpLt: "JLT",
}

// Translator keeps the naming state shared by every file of one program.
type Translator struct {
	cfg      *config.Config
	file     string
	function string
	retCount int
	out      []asm.Instruction
	err      error
}

func New(cfg *config.Config) *Translator {
	return &Translator{cfg: cfg}
}

// prefix scopes labels: the enclosing function, or the file before any
// function has been declared.
func (t *Translator) prefix() string {
	if t.function != "" {
		return t.function
	}
	return t.file
}

// emit parses each line of assembly and appends it to the output.
func (t *Translator) emit(lines ...string) {
	for _, l := range lines {
		if t.err != nil {
			return
		}
		inst, err := asm.ParseLine(l)
		if err != nil {
			t.err = util.Faultf(stage, "generated bad assembly %q: %v", l, err)
			return
		}
		t.out = append(t.out, inst)
	}
}

func (t *Translator) take() ([]asm.Instruction, error) {
	out, err := t.out, t.err
	t.out, t.err = nil, nil
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Bootstrap sets SP to the stack base and calls the configured entry
// function with no arguments.
func (t *Translator) Bootstrap() ([]asm.Instruction, error) {
	saved := t.function
	t.function = bootstrapPrefix
	defer func() { t.function = saved }()

	if t.cfg.IsFeatureEnabled(config.FeatComments) {
		t.out = append(t.out, asm.Comment{Text: "bootstrap"})
	}
	t.emit("@"+strconv.Itoa(config.StackBase), "D=A", "@SP", "M=D")
	t.call(vm.Call{Name: t.cfg.Entry})
	return t.take()
}

// TranslateFile translates the commands of one .vm file. file may be a path;
// its base name without extension scopes static variables.
func (t *Translator) TranslateFile(file string, lines []vm.Line) ([]asm.Instruction, error) {
	t.file = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	t.function = ""
	var out []asm.Instruction
	for _, l := range lines {
		insts, err := t.Translate(l.Inst, l.Num)
		if err != nil {
			return nil, err
		}
		out = append(out, insts...)
	}
	return out, nil
}

// Translate expands a single command. line is its 1-based position in the
// current file and keeps comparison labels unique.
func (t *Translator) Translate(inst vm.Instruction, line int) ([]asm.Instruction, error) {
	if t.cfg.IsFeatureEnabled(config.FeatComments) {
		t.out = append(t.out, asm.Comment{Text: inst.String()})
	}

	switch in := inst.(type) {
	case vm.Push:
		t.push(in)
	case vm.Pop:
		t.pop(in)
	case vm.Arithmetic:
		t.arithmetic(in.Op, line)
	case vm.Label:
		t.emit("(" + t.prefix() + "$" + in.Name + ")")
	case vm.Goto:
		t.emit("@"+t.prefix()+"$"+in.Name, "0;JMP")
	case vm.IfGoto:
		t.emit("@SP", "AM=M-1", "D=M", "@"+t.prefix()+"$"+in.Name, "D;JNE")
	case vm.Function:
		t.function = in.Name
		t.emit("(" + in.Name + ")")
		for i := 0; i < in.Locals; i++ {
			t.emit("@SP", "A=M", "M=0", "@SP", "M=M+1")
		}
	case vm.Call:
		t.call(in)
	case vm.Return:
		t.ret()
	default:
		t.err = util.Faultf(stage, "unknown VM command %T", inst)
	}
	return t.take()
}

// pushD pushes the D register.
func (t *Translator) pushD() {
	t.emit("@SP", "A=M", "M=D", "@SP", "M=M+1")
}

// fixedAddress returns the symbol of a static, temp or pointer slot.
func (t *Translator) fixedAddress(seg vm.Segment, idx int) (string, bool) {
	switch seg {
	case vm.Static:
		return fmt.Sprintf("%s.%d", t.file, idx), true
	case vm.Temp:
		if idx >= config.TempSize {
			t.err = util.Faultf(stage, "temp %d out of range", idx)
			return "", false
		}
		return strconv.Itoa(config.TempBase + idx), true
	case vm.Pointer:
		switch idx {
		case 0:
			return "THIS", true
		case 1:
			return "THAT", true
		}
		t.err = util.Faultf(stage, "pointer %d out of range", idx)
		return "", false
	}
	t.err = util.Faultf(stage, "segment %s has no fixed address", seg)
	return "", false
}

func (t *Translator) push(in vm.Push) {
	idx := strconv.Itoa(in.Index)
	switch in.Segment {
	case vm.Constant:
		t.emit("@"+idx, "D=A")
	case vm.Local, vm.Argument, vm.This, vm.That:
		t.emit("@"+idx, "D=A", "@"+segmentBase[in.Segment], "A=D+M", "D=M")
	default:
		addr, ok := t.fixedAddress(in.Segment, in.Index)
		if !ok {
			return
		}
		t.emit("@"+addr, "D=M")
	}
	t.pushD()
}

// pop stages computed addresses in R13.
func (t *Translator) pop(in vm.Pop) {
	idx := strconv.Itoa(in.Index)
	switch in.Segment {
	case vm.Constant:
		t.err = util.Faultf(stage, "cannot pop to the constant segment")
	case vm.Local, vm.Argument, vm.This, vm.That:
		t.emit(
			"@"+idx, "D=A", "@"+segmentBase[in.Segment], "D=D+M", "@R13", "M=D",
			"@SP", "AM=M-1", "D=M", "@R13", "A=M", "M=D",
		)
	default:
		addr, ok := t.fixedAddress(in.Segment, in.Index)
		if !ok {
			return
		}
		t.emit("@SP", "AM=M-1", "D=M", "@"+addr, "M=D")
	}
}

func (t *Translator) arithmetic(op vm.Op, line int) {
	if comp, ok := unaryComp[op]; ok {
		t.emit("@SP", "A=M-1", "M="+comp)
		return
	}
	if comp, ok := binaryComp[op]; ok {
		t.emit("@SP", "AM=M-1", "D=M", "A=A-1", "M="+comp)
		return
	}
	jump, ok := compareJump[op]
	if !ok {
		t.err = util.Faultf(stage, "unknown arithmetic op %s", op)
		return
	}
	name := strings.ToUpper(op.String())
	trueLabel := fmt.Sprintf("%s_TRUE.%s.%d", name, t.prefix(), line)
	endLabel := fmt.Sprintf("%s_END.%s.%d", name, t.prefix(), line)
	t.emit(
		"@SP", "AM=M-1", "D=M", "A=A-1", "D=M-D",
		"@"+trueLabel, "D;"+jump,
		"@SP", "A=M-1", "M=0",
		"@"+endLabel, "0;JMP",
		"("+trueLabel+")",
		"@SP", "A=M-1", "M=-1",
		"("+endLabel+")",
	)
}

func (t *Translator) call(in vm.Call) {
	ret := fmt.Sprintf("%s$ret.%d", t.prefix(), t.retCount)
	t.retCount++

	t.emit("@"+ret, "D=A")
	t.pushD()
	for _, reg := range []string{"LCL", "ARG", "THIS", "THAT"} {
		t.emit("@"+reg, "D=M")
		t.pushD()
	}
	t.emit(
		"@SP", "D=M", "@5", "D=D-A", "@"+strconv.Itoa(in.Args), "D=D-A", "@ARG", "M=D",
		"@SP", "D=M", "@LCL", "M=D",
		"@"+in.Name, "0;JMP",
		"("+ret+")",
	)
}

// ret reads the return address into R14 before *ARG is overwritten, since
// with zero arguments both share a slot.
func (t *Translator) ret() {
	t.emit(
		"@LCL", "D=M", "@R13", "M=D",
		"@5", "A=D-A", "D=M", "@R14", "M=D",
		"@SP", "AM=M-1", "D=M", "@ARG", "A=M", "M=D",
		"@ARG", "D=M+1", "@SP", "M=D",
	)
	for _, reg := range []string{"THAT", "THIS", "ARG", "LCL"} {
		t.emit("@R13", "AM=M-1", "D=M", "@"+reg, "M=D")
	}
	t.emit("@R14", "A=M", "0;JMP")
}
