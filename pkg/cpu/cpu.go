// Package cpu emulates the Hack computer closely enough to run assembled
// programs: ROM, RAM, the A/D registers and the ALU. Screen and keyboard
// are plain memory.
package cpu

import (
	"errors"
	"fmt"
)

const RAMSize = 32768

// ErrHalted is returned by Step once the program counter leaves ROM.
var ErrHalted = errors.New("program counter past end of ROM")

type CPU struct {
	ROM []uint16
	RAM [RAMSize]uint16

	A  uint16
	D  uint16
	PC uint16

	Cycles int
}

func New(rom []uint16) *CPU {
	return &CPU{ROM: rom}
}

// Reset clears registers and the cycle count; memory is left alone.
func (c *CPU) Reset() {
	c.A, c.D, c.PC, c.Cycles = 0, 0, 0, 0
}

func (c *CPU) read(addr uint16) uint16 {
	if int(addr) >= RAMSize {
		return 0
	}
	return c.RAM[addr]
}

// alu computes the Hack ALU output for the six control bits c1..c6.
func alu(x, y uint16, ctrl uint16) uint16 {
	if ctrl&0b100000 != 0 {
		x = 0
	}
	if ctrl&0b010000 != 0 {
		x = ^x
	}
	if ctrl&0b001000 != 0 {
		y = 0
	}
	if ctrl&0b000100 != 0 {
		y = ^y
	}
	var out uint16
	if ctrl&0b000010 != 0 {
		out = x + y
	} else {
		out = x & y
	}
	if ctrl&0b000001 != 0 {
		out = ^out
	}
	return out
}

func jumps(out uint16, j uint16) bool {
	v := int16(out)
	switch {
	case v < 0:
		return j&0b100 != 0
	case v == 0:
		return j&0b010 != 0
	default:
		return j&0b001 != 0
	}
}

// Step executes one instruction.
func (c *CPU) Step() error {
	if int(c.PC) >= len(c.ROM) {
		return ErrHalted
	}
	inst := c.ROM[c.PC]
	c.Cycles++

	if inst&0x8000 == 0 {
		c.A = inst
		c.PC++
		return nil
	}
	if inst&0xE000 != 0xE000 {
		return fmt.Errorf("invalid instruction %016b at %d", inst, c.PC)
	}

	y := c.A
	if inst&0x1000 != 0 {
		y = c.read(c.A)
	}
	out := alu(c.D, y, (inst>>6)&0x3F)
	addrM := c.A

	if inst&0b001000 != 0 {
		if int(addrM) >= RAMSize {
			return fmt.Errorf("write to address %d out of RAM at %d", addrM, c.PC)
		}
		c.RAM[addrM] = out
	}
	if inst&0b010000 != 0 {
		c.D = out
	}
	if inst&0b100000 != 0 {
		c.A = out
	}

	if jumps(out, inst&0b111) {
		c.PC = addrM
	} else {
		c.PC++
	}
	return nil
}

// Spinning reports whether the CPU sits in the conventional "@k; 0;JMP"
// self-loop that ends Hack programs.
func (c *CPU) Spinning() bool {
	pc := int(c.PC)
	if pc+1 >= len(c.ROM) {
		return false
	}
	return c.ROM[pc] == uint16(pc) && c.ROM[pc+1] == 0b1110101010000111
}

// Run executes up to maxSteps instructions. It stops early, without error,
// when the program leaves ROM or reaches its terminating self-loop.
func (c *CPU) Run(maxSteps int) error {
	for i := 0; i < maxSteps; i++ {
		if c.Spinning() {
			return nil
		}
		if err := c.Step(); err != nil {
			if errors.Is(err, ErrHalted) {
				return nil
			}
			return err
		}
	}
	return nil
}

// SP returns the stack pointer held in RAM[0].
func (c *CPU) SP() uint16 { return c.RAM[0] }

// Top returns the value on top of the VM stack.
func (c *CPU) Top() int16 {
	sp := int(c.RAM[0])
	if sp == 0 || sp > RAMSize {
		return 0
	}
	return int16(c.RAM[sp-1])
}
