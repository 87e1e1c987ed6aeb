// Package compiler chains the stages into whole-program pipelines and holds
// the file handling shared by the command-line tools.
package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/xplshn/jackc/pkg/asm"
	"github.com/xplshn/jackc/pkg/ast"
	"github.com/xplshn/jackc/pkg/codegen"
	"github.com/xplshn/jackc/pkg/config"
	"github.com/xplshn/jackc/pkg/lexer"
	"github.com/xplshn/jackc/pkg/parser"
	"github.com/xplshn/jackc/pkg/typeChecker"
	"github.com/xplshn/jackc/pkg/util"
	"github.com/xplshn/jackc/pkg/vm"
	"github.com/xplshn/jackc/pkg/vmtrans"
)

// Unit is one source file held in memory.
type Unit struct {
	Name   string
	Source string
}

type ClassResult struct {
	File     string
	Tree     *ast.Node
	Code     []vm.Instruction
	Warnings []util.Diagnostic
}

// Name is the class name declared in the file.
func (r *ClassResult) Name() string {
	if id := r.Tree.Child(1); id != nil {
		return id.Tok.Value
	}
	return ""
}

// VMUnit is a parsed or generated .vm file.
type VMUnit struct {
	Name  string
	Lines []vm.Line
}

type Program struct {
	Classes []*ClassResult
	Asm     []asm.Instruction
	Binary  []uint16
}

// CompileClass runs the front end over a single .jack file.
func CompileClass(file, src string, cfg *config.Config) (*ClassResult, error) {
	toks, err := lexer.Lex(file, src)
	if err != nil {
		return nil, err
	}
	tree, err := parser.New(file, toks).Parse()
	if err != nil {
		return nil, err
	}
	ctx := codegen.NewContext(cfg, file)
	code, err := ctx.GenerateClass(tree)
	if err != nil {
		return nil, err
	}
	return &ClassResult{File: file, Tree: tree, Code: code, Warnings: ctx.Warnings()}, nil
}

// CompileJack compiles units in order and stops at the first failure. With
// the typecheck feature on, the classes are then checked against each other
// and the findings join the warnings of the class they point into.
func CompileJack(units []Unit, cfg *config.Config) ([]*ClassResult, error) {
	results := make([]*ClassResult, 0, len(units))
	for _, u := range units {
		r, err := CompileClass(u.Name, u.Source, cfg)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if !cfg.IsFeatureEnabled(config.FeatTyped) {
		return results, nil
	}

	tc := typeChecker.NewTypeChecker(cfg)
	byFile := make(map[string]*ClassResult, len(results))
	for _, r := range results {
		if err := tc.AddClass(r.File, r.Tree); err != nil {
			return nil, err
		}
		byFile[r.File] = r
	}
	for _, d := range tc.Check() {
		if r, ok := byFile[d.File]; ok {
			r.Warnings = append(r.Warnings, d)
		}
	}
	return results, nil
}

// ParseVM parses textual .vm units.
func ParseVM(units []Unit) ([]VMUnit, error) {
	out := make([]VMUnit, 0, len(units))
	for _, u := range units {
		lines, err := vm.Parse(u.Name, u.Source)
		if err != nil {
			return nil, err
		}
		out = append(out, VMUnit{Name: u.Name, Lines: lines})
	}
	return out, nil
}

// TranslateVM translates every unit into one assembly program, preceded by
// the bootstrap sequence when that feature is enabled.
func TranslateVM(units []VMUnit, cfg *config.Config) ([]asm.Instruction, error) {
	tr := vmtrans.New(cfg)
	var out []asm.Instruction
	if cfg.IsFeatureEnabled(config.FeatBootstrap) {
		boot, err := tr.Bootstrap()
		if err != nil {
			return nil, err
		}
		out = append(out, boot...)
	}
	for _, u := range units {
		insts, err := tr.TranslateFile(u.Name, u.Lines)
		if err != nil {
			return nil, err
		}
		out = append(out, insts...)
	}
	return out, nil
}

// Assemble turns generated assembly into machine words.
func Assemble(name string, insts []asm.Instruction) ([]uint16, error) {
	a := asm.NewAssembler()
	a.File = name
	words, err := a.Assemble(asm.Number(insts))
	if err != nil {
		if util.IsFault(err) {
			return nil, err
		}
		// Generated assembly that fails to assemble is our defect, not the user's.
		return nil, util.Faultf("asm", "%v", err)
	}
	return words, nil
}

// Build runs the full pipeline from Jack sources to a Hack binary.
func Build(units []Unit, cfg *config.Config) (*Program, error) {
	classes, err := CompileJack(units, cfg)
	if err != nil {
		return nil, err
	}
	vmUnits := make([]VMUnit, len(classes))
	for i, c := range classes {
		vmUnits[i] = VMUnit{Name: c.File, Lines: vm.Number(c.Code)}
	}
	insts, err := TranslateVM(vmUnits, cfg)
	if err != nil {
		return nil, err
	}
	words, err := Assemble("program.asm", insts)
	if err != nil {
		return nil, err
	}
	return &Program{Classes: classes, Asm: insts, Binary: words}, nil
}

// CollectFiles returns path itself when it is a file with the given
// extension, or the matching files of a directory in lexical order.
func CollectFiles(path, ext string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrUsage, err)
	}
	if !info.IsDir() {
		if filepath.Ext(path) != ext {
			return nil, fmt.Errorf("%w: '%s' is not a %s file", util.ErrUsage, path, ext)
		}
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("could not read directory '%s': %w", path, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ext {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no %s files in '%s'", util.ErrUsage, ext, path)
	}
	sort.Strings(files)
	return files, nil
}

// CollectLibraries gathers the ext files of every directory in dirs. A class
// the program already defines is skipped, as is any class an earlier
// directory provided.
func CollectLibraries(program []string, dirs []string, ext string) ([]string, error) {
	seen := make(map[string]bool, len(program))
	for _, p := range program {
		seen[filepath.Base(p)] = true
	}
	var libs []string
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", util.ErrUsage, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: library path '%s' is not a directory", util.ErrUsage, dir)
		}
		files, err := CollectFiles(dir, ext)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if base := filepath.Base(f); !seen[base] {
				seen[base] = true
				libs = append(libs, f)
			}
		}
	}
	return libs, nil
}

// ReadUnits loads every path into memory.
func ReadUnits(paths []string) ([]Unit, error) {
	units := make([]Unit, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("could not read file '%s': %w", p, err)
		}
		units = append(units, Unit{Name: p, Source: string(data)})
	}
	return units, nil
}

// OutputPath names the combined output for input: <dir>/<dir>.ext for a
// directory, or input with its extension replaced.
func OutputPath(input string, isDir bool, ext string) string {
	if isDir {
		clean := filepath.Clean(input)
		return filepath.Join(clean, filepath.Base(clean)+ext)
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext
}

// Hash fingerprints a set of inputs by name and content.
func Hash(units []Unit) uint64 {
	h := xxhash.New()
	for _, u := range units {
		h.WriteString(u.Name)
		h.Write([]byte{0})
		h.WriteString(u.Source)
		h.Write([]byte{0})
	}
	return h.Sum64()
}
