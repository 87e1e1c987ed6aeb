package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/xplshn/jackc/pkg/asm"
	"github.com/xplshn/jackc/pkg/cpu"
)

const historyFile = ".hackasm_history"

func repl() error {
	fmt.Println("hackasm interactive mode, :help for commands")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	s := asm.NewSession()
	for {
		line, err := ln.Prompt(fmt.Sprintf("%5d> ", len(s.Words)))
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(trimmed)

		if strings.HasPrefix(trimmed, ":") {
			if done := command(&s, trimmed); done {
				return nil
			}
			continue
		}
		out, err := s.Feed(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if out != "" {
			fmt.Println(out)
		}
	}
}

// command runs a ':' directive and reports whether the loop should end.
func command(s **asm.Session, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q":
		return true
	case ":help":
		fmt.Println(replHelp)
	case ":reset":
		*s = asm.NewSession()
	case ":dump":
		fmt.Print(asm.Format((*s).Words))
	case ":sym":
		if len(fields) != 2 {
			fmt.Fprintln(os.Stderr, "usage: :sym NAME")
			break
		}
		if addr, ok := (*s).Lookup(fields[1]); ok {
			fmt.Printf("%s = %d\n", fields[1], addr)
		} else {
			fmt.Printf("%s is not bound\n", fields[1])
		}
	case ":run":
		steps := 10000
		if len(fields) == 2 {
			n, err := strconv.Atoi(fields[1])
			if err != nil || n <= 0 {
				fmt.Fprintf(os.Stderr, "invalid step count '%s'\n", fields[1])
				break
			}
			steps = n
		}
		c := cpu.New((*s).Words)
		if err := c.Run(steps); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			break
		}
		fmt.Println(state(c))
	default:
		fmt.Fprintf(os.Stderr, "unknown command '%s', :help for a list\n", fields[0])
	}
	return false
}
