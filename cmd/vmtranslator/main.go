package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/xplshn/jackc/pkg/asm"
	"github.com/xplshn/jackc/pkg/cli"
	"github.com/xplshn/jackc/pkg/compiler"
	"github.com/xplshn/jackc/pkg/config"
	"github.com/xplshn/jackc/pkg/util"
)

func main() {
	app := cli.NewApp("vmtranslator")
	app.Synopsis = "[options] <file.vm|dir>"
	app.Description = "Translates stack-machine code into Hack assembly. A directory is translated as one program and gets the startup sequence unless -Fno-bootstrap is given."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/jackc>"

	var (
		outFile string
		entry   string
		quiet   bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the output into <file>.", "file")
	fs.String(&entry, "entry", "e", config.DefaultMain, "Function called by the startup sequence.", "name")
	fs.Bool(&quiet, "quiet", "q", false, "Do not print progress messages.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(args []string) error {
		if len(args) != 1 {
			return &cli.UsageError{Msg: "expected exactly one input file or directory"}
		}
		input := args[0]
		files, err := compiler.CollectFiles(input, ".vm")
		if err != nil {
			if errors.Is(err, util.ErrUsage) {
				return &cli.UsageError{Msg: err.Error(), Err: err}
			}
			util.Report(os.Stderr, err, "")
			return err
		}
		info, _ := os.Stat(input)
		isDir := info != nil && info.IsDir()

		// Directory input defaults to a bootstrapped program; -F flags still win.
		cfg.SetFeature(config.FeatBootstrap, isDir)
		cfg.ApplyFlagGroups(warningFlags, featureFlags)
		cfg.Entry = entry

		units, err := compiler.ReadUnits(files)
		if err != nil {
			util.Report(os.Stderr, err, "")
			return err
		}
		vmUnits, err := compiler.ParseVM(units)
		if err != nil {
			return report(err, units)
		}
		if !quiet {
			fmt.Printf("Translating %d file(s)...\n", len(vmUnits))
		}
		insts, err := compiler.TranslateVM(vmUnits, cfg)
		if err != nil {
			return report(err, units)
		}

		out := outFile
		if out == "" {
			out = compiler.OutputPath(input, isDir, ".asm")
		}
		if !quiet {
			fmt.Printf("Writing '%s'...\n", out)
		}
		if err := os.WriteFile(out, []byte(asm.Render(insts)), 0o644); err != nil {
			err = fmt.Errorf("could not write '%s': %w", out, err)
			util.Report(os.Stderr, err, "")
			return err
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		var ue *cli.UsageError
		if errors.As(err, &ue) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func report(err error, units []compiler.Unit) error {
	source := ""
	var se *util.SourceError
	if errors.As(err, &se) {
		for _, u := range units {
			if u.Name == se.File {
				source = u.Source
			}
		}
	}
	util.Report(os.Stderr, err, source)
	return err
}
