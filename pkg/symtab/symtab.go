// Package symtab tracks the variables visible while compiling one class.
// A class scope holds statics and fields; a subroutine scope holds arguments
// and locals. Both are plain Tables recreated at each boundary.
package symtab

import (
	"fmt"

	"github.com/xplshn/jackc/pkg/vm"
)

type Kind int

const (
	Static Kind = iota
	Field
	Arg
	Var
)

func (k Kind) String() string {
	switch k {
	case Static:
		return "static"
	case Field:
		return "field"
	case Arg:
		return "arg"
	case Var:
		return "var"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Segment is the VM memory segment variables of this kind live in.
func (k Kind) Segment() vm.Segment {
	switch k {
	case Static:
		return vm.Static
	case Field:
		return vm.This
	case Arg:
		return vm.Argument
	default:
		return vm.Local
	}
}

type Entry struct {
	Name  string
	Type  string
	Kind  Kind
	Index int
	// Uses counts reads and writes, for unused-variable warnings.
	Uses int
}

type Table struct {
	entries map[string]*Entry
	order   []string
	counts  [Var + 1]int
}

func New() *Table {
	return &Table{entries: make(map[string]*Entry)}
}

// Define records name with the next free index of its kind.
func (t *Table) Define(name, typ string, kind Kind) (Entry, error) {
	if prev, ok := t.entries[name]; ok {
		return Entry{}, fmt.Errorf("'%s' is already declared as %s %s", name, prev.Kind, prev.Type)
	}
	e := &Entry{Name: name, Type: typ, Kind: kind, Index: t.counts[kind]}
	t.counts[kind]++
	t.entries[name] = e
	t.order = append(t.order, name)
	return *e, nil
}

func (t *Table) Lookup(name string) (Entry, bool) {
	if e, ok := t.entries[name]; ok {
		return *e, true
	}
	return Entry{}, false
}

func (t *Table) Count(kind Kind) int { return t.counts[kind] }

// Touch marks name as used.
func (t *Table) Touch(name string) {
	if e, ok := t.entries[name]; ok {
		e.Uses++
	}
}

// Entries returns a copy of every entry in declaration order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, *t.entries[name])
	}
	return out
}

// Resolve looks name up in each scope in turn; the first hit wins. Nil
// scopes are skipped.
func Resolve(name string, scopes ...*Table) (Entry, bool) {
	for _, s := range scopes {
		if s == nil {
			continue
		}
		if e, ok := s.Lookup(name); ok {
			return e, true
		}
	}
	return Entry{}, false
}
