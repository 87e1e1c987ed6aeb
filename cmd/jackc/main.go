package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xplshn/jackc/pkg/asm"
	"github.com/xplshn/jackc/pkg/ast"
	"github.com/xplshn/jackc/pkg/cli"
	"github.com/xplshn/jackc/pkg/compiler"
	"github.com/xplshn/jackc/pkg/config"
	"github.com/xplshn/jackc/pkg/util"
	"github.com/xplshn/jackc/pkg/vm"
)

func main() {
	app := cli.NewApp("jackc")
	app.Synopsis = "[options] <file.jack|dir>"
	app.Description = "A compiler for the Jack language. Produces stack-machine code by default, or carries the program all the way down to Hack assembly or binary."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/jackc>"

	var (
		outFile string
		target  string
		dumpAST bool
		quiet   bool
		libDirs []string
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the output into <file>.", "file")
	fs.String(&target, "target", "t", "vm", "Stop after producing vm, asm or hack output.", "stage")
	fs.Bool(&dumpAST, "dump-ast", "", false, "Print the syntax tree of every class and exit.")
	fs.Bool(&quiet, "quiet", "q", false, "Do not print progress messages.")
	fs.List(&libDirs, "lib", "L", nil, "Compile the classes in <dir> along with the program. Classes the program defines take precedence.", "dir")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(args []string) error {
		cfg.ApplyFlagGroups(warningFlags, featureFlags)
		if len(args) != 1 {
			return &cli.UsageError{Msg: "expected exactly one input file or directory"}
		}
		if target != "vm" && target != "asm" && target != "hack" {
			return &cli.UsageError{Msg: fmt.Sprintf("unknown target '%s'", target)}
		}

		input := args[0]
		files, err := compiler.CollectFiles(input, ".jack")
		if err != nil {
			if errors.Is(err, util.ErrUsage) {
				return &cli.UsageError{Msg: err.Error(), Err: err}
			}
			util.Report(os.Stderr, err, "")
			return err
		}
		info, _ := os.Stat(input)
		isDir := info != nil && info.IsDir()
		if outFile != "" && target == "vm" && len(files) > 1 {
			return &cli.UsageError{Msg: "-o cannot be used with -t vm on a directory"}
		}

		libs, err := compiler.CollectLibraries(files, libDirs, ".jack")
		if err != nil {
			if errors.Is(err, util.ErrUsage) {
				return &cli.UsageError{Msg: err.Error(), Err: err}
			}
			util.Report(os.Stderr, err, "")
			return err
		}
		isLib := make(map[string]bool, len(libs))
		for _, l := range libs {
			isLib[l] = true
		}

		units, err := compiler.ReadUnits(append(files, libs...))
		if err != nil {
			util.Report(os.Stderr, err, "")
			return err
		}
		progress := func(format string, a ...any) {
			if !quiet {
				fmt.Printf(format, a...)
			}
		}

		progress("Compiling %d class(es)...\n", len(units))
		classes, err := compiler.CompileJack(units, cfg)
		if err != nil {
			return report(err, units)
		}
		for _, c := range classes {
			for _, w := range c.Warnings {
				util.Warn(os.Stderr, w, sourceOf(units, w.File))
			}
		}

		if dumpAST {
			for _, c := range classes {
				fmt.Printf("// %s\n", c.File)
				if err := ast.Dump(os.Stdout, c.Tree); err != nil {
					return err
				}
			}
			return nil
		}

		if target == "vm" {
			for _, c := range classes {
				if isLib[c.File] {
					continue
				}
				out := outFile
				if out == "" {
					out = strings.TrimSuffix(c.File, filepath.Ext(c.File)) + ".vm"
				}
				progress("Writing '%s'...\n", out)
				if err := writeFile(out, vm.Format(c.Code)); err != nil {
					return err
				}
			}
			return nil
		}

		progress("Translating to assembly...\n")
		vmUnits := make([]compiler.VMUnit, len(classes))
		for i, c := range classes {
			vmUnits[i] = compiler.VMUnit{Name: c.File, Lines: vm.Number(c.Code)}
		}
		insts, err := compiler.TranslateVM(vmUnits, cfg)
		if err != nil {
			return report(err, units)
		}

		out := outFile
		if out == "" {
			out = compiler.OutputPath(input, isDir, "."+target)
		}
		if target == "asm" {
			progress("Writing '%s'...\n", out)
			return writeFile(out, asm.Render(insts))
		}

		progress("Assembling...\n")
		words, err := compiler.Assemble(out, insts)
		if err != nil {
			return report(err, units)
		}
		progress("Writing '%s' (%d words)...\n", out, len(words))
		return writeFile(out, asm.Format(words))
	}

	if err := app.Run(os.Args[1:]); err != nil {
		var ue *cli.UsageError
		if errors.As(err, &ue) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func sourceOf(units []compiler.Unit, file string) string {
	for _, u := range units {
		if u.Name == file {
			return u.Source
		}
	}
	return ""
}

// report prints err against the unit it points into.
func report(err error, units []compiler.Unit) error {
	var se *util.SourceError
	source := ""
	if errors.As(err, &se) {
		source = sourceOf(units, se.File)
	}
	util.Report(os.Stderr, err, source)
	return err
}

func writeFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		err = fmt.Errorf("could not write '%s': %w", path, err)
		util.Report(os.Stderr, err, "")
		return err
	}
	return nil
}
