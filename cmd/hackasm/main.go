package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xplshn/jackc/pkg/asm"
	"github.com/xplshn/jackc/pkg/cli"
	"github.com/xplshn/jackc/pkg/compiler"
	"github.com/xplshn/jackc/pkg/cpu"
	"github.com/xplshn/jackc/pkg/util"
)

func main() {
	app := cli.NewApp("hackasm")
	app.Synopsis = "[options] <file.asm|dir>"
	app.Description = "Assembles Hack assembly into binary machine code. Every .asm file of a directory gets its own .hack file."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/jackc>"

	var (
		outFile     string
		interactive bool
		runSteps    int
		quiet       bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the output into <file> (single input only).", "file")
	fs.Bool(&interactive, "interactive", "i", false, "Assemble lines typed at a prompt.")
	fs.Int(&runSteps, "run", "", 0, "Execute the result for up to <steps> instructions and print the machine state.", "steps")
	fs.Bool(&quiet, "quiet", "q", false, "Do not print progress messages.")

	app.Action = func(args []string) error {
		if interactive {
			if len(args) != 0 {
				return &cli.UsageError{Msg: "-i takes no input files"}
			}
			return repl()
		}
		if len(args) != 1 {
			return &cli.UsageError{Msg: "expected exactly one input file or directory"}
		}

		files, err := compiler.CollectFiles(args[0], ".asm")
		if err != nil {
			if errors.Is(err, util.ErrUsage) {
				return &cli.UsageError{Msg: err.Error(), Err: err}
			}
			util.Report(os.Stderr, err, "")
			return err
		}
		if outFile != "" && len(files) > 1 {
			return &cli.UsageError{Msg: "-o cannot be used with a directory"}
		}
		units, err := compiler.ReadUnits(files)
		if err != nil {
			util.Report(os.Stderr, err, "")
			return err
		}

		// Assemble everything before writing anything.
		outputs := make([][]uint16, len(units))
		for i, u := range units {
			if !quiet {
				fmt.Printf("Assembling '%s'...\n", u.Name)
			}
			words, err := asm.Assemble(u.Name, u.Source)
			if err != nil {
				util.Report(os.Stderr, err, u.Source)
				return err
			}
			outputs[i] = words
		}

		for i, u := range units {
			out := outFile
			if out == "" {
				out = compiler.OutputPath(u.Name, false, ".hack")
			}
			if err := os.WriteFile(out, []byte(asm.Format(outputs[i])), 0o644); err != nil {
				err = fmt.Errorf("could not write '%s': %w", out, err)
				util.Report(os.Stderr, err, "")
				return err
			}
			if !quiet {
				fmt.Printf("Wrote '%s' (%d words)\n", out, len(outputs[i]))
			}
			if runSteps > 0 {
				if err := run(outputs[i], runSteps); err != nil {
					return err
				}
			}
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

func run(words []uint16, steps int) error {
	c := cpu.New(words)
	if err := c.Run(steps); err != nil {
		util.Report(os.Stderr, err, "")
		return err
	}
	fmt.Println(state(c))
	return nil
}

func state(c *cpu.CPU) string {
	return fmt.Sprintf("pc=%d cycles=%d sp=%d top=%d A=%d D=%d", c.PC, c.Cycles, c.SP(), c.Top(), c.A, int16(c.D))
}

var replHelp = strings.TrimSpace(`
Type Hack assembly one line at a time. Labels bind to the next address as
soon as they are entered, so a symbol used before its label becomes a variable.

  :sym NAME   show the address bound to NAME
  :dump       print the words assembled so far
  :run N      execute the words so far for up to N steps
  :reset      start over with an empty program
  :quit       leave
`)
