package cpu

import (
	"testing"

	"github.com/xplshn/jackc/pkg/asm"
)

func load(t *testing.T, src string) *CPU {
	t.Helper()
	words, err := asm.Assemble("test.asm", src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return New(words)
}

func TestAdd(t *testing.T) {
	c := load(t, "@2\nD=A\n@3\nD=D+A\n@0\nM=D\n")
	if err := c.Run(100); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if c.RAM[0] != 5 {
		t.Errorf("RAM[0] = %d; want 5", c.RAM[0])
	}
	if c.Cycles != 6 {
		t.Errorf("Cycles = %d; want 6", c.Cycles)
	}
}

func TestMax(t *testing.T) {
	src := `@R0
D=M
@R1
D=D-M
@FIRST
D;JGT
@R1
D=M
@STORE
0;JMP
(FIRST)
@R0
D=M
(STORE)
@R2
M=D
(END)
@END
0;JMP
`
	tests := []struct{ a, b, want int16 }{
		{3, 9, 9},
		{12, -4, 12},
		{-7, -2, -2},
		{5, 5, 5},
	}
	for _, tc := range tests {
		c := load(t, src)
		c.RAM[0], c.RAM[1] = uint16(tc.a), uint16(tc.b)
		if err := c.Run(1000); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if got := int16(c.RAM[2]); got != tc.want {
			t.Errorf("max(%d, %d) = %d; want %d", tc.a, tc.b, got, tc.want)
		}
		if !c.Spinning() {
			t.Errorf("expected CPU to stop in the END loop, PC=%d", c.PC)
		}
	}
}

func TestALU(t *testing.T) {
	tests := []struct {
		comp string
		d, a int16
		want int16
	}{
		{"0", 5, 7, 0},
		{"1", 5, 7, 1},
		{"-1", 5, 7, -1},
		{"!D", 5, 7, ^int16(5)},
		{"-A", 5, 7, -7},
		{"D-1", 5, 7, 4},
		{"A+1", 5, 7, 8},
		{"D-A", 5, 7, -2},
		{"A-D", 5, 7, 2},
		{"D&A", 6, 3, 2},
		{"D|A", 6, 3, 7},
	}
	for _, tc := range tests {
		c, err := asm.NewC("D", tc.comp, "")
		if err != nil {
			t.Fatalf("NewC(%s): %v", tc.comp, err)
		}
		word, err := c.Encode()
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		cpu := New([]uint16{word})
		cpu.D, cpu.A = uint16(tc.d), uint16(tc.a)
		if err := cpu.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
		if got := int16(cpu.D); got != tc.want {
			t.Errorf("%s with D=%d A=%d = %d; want %d", tc.comp, tc.d, tc.a, got, tc.want)
		}
	}
}

func TestDestUsesOldA(t *testing.T) {
	// AM=M-1 must write memory at the address A held before the update.
	c := load(t, "@SP\nAM=M-1\n")
	c.RAM[0] = 260
	if err := c.Run(10); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if c.RAM[0] != 259 || c.A != 259 {
		t.Errorf("RAM[0]=%d A=%d; want 259 259", c.RAM[0], c.A)
	}
}

func TestHalt(t *testing.T) {
	c := New([]uint16{1})
	if err := c.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if err := c.Step(); err != ErrHalted {
		t.Errorf("Step past ROM = %v; want ErrHalted", err)
	}
	if err := New([]uint16{0xA000}).Step(); err == nil {
		t.Errorf("malformed C-instruction accepted")
	}
}
