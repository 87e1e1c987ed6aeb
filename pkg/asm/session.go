package asm

import (
	"fmt"

	"github.com/xplshn/jackc/pkg/config"
)

// Session assembles one line at a time. Labels bind to the current address
// as they are entered, so a symbol used before its label is allocated as a
// variable, exactly as a one-pass reader would see it.
type Session struct {
	symbols map[string]uint16
	nextVar uint16
	Words   []uint16
}

func NewSession() *Session {
	return &Session{symbols: Predefined(), nextVar: config.VarBase}
}

// Feed parses and encodes line, returning a human-readable echo. Blank and
// comment lines produce no output.
func (s *Session) Feed(line string) (string, error) {
	inst, err := ParseLine(line)
	if err != nil || inst == nil {
		return "", err
	}
	switch in := inst.(type) {
	case Comment:
		return "", nil
	case LabelDef:
		if _, ok := Predefined()[in.Name]; ok {
			return "", fmt.Errorf("cannot redefine predefined symbol %q", in.Name)
		}
		if addr, ok := s.symbols[in.Name]; ok {
			return "", fmt.Errorf("symbol %q already bound to %d", in.Name, addr)
		}
		s.symbols[in.Name] = uint16(len(s.Words))
		return fmt.Sprintf("(%s) = %d", in.Name, len(s.Words)), nil
	case AInstr:
		if in.Symbol != "" {
			if _, ok := s.symbols[in.Symbol]; !ok {
				s.symbols[in.Symbol] = s.nextVar
				s.nextVar++
			}
		}
	}
	w, err := Encode(inst, s.symbols)
	if err != nil {
		return "", err
	}
	s.Words = append(s.Words, w)
	return fmt.Sprintf("%5d  %016b  %s", len(s.Words)-1, w, inst), nil
}

// Lookup returns the address bound to a symbol so far.
func (s *Session) Lookup(name string) (uint16, bool) {
	addr, ok := s.symbols[name]
	return addr, ok
}
