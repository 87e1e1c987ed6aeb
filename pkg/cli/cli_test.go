package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	var (
		out    string
		target string
		quiet  bool
		steps  int
		libs   []string
	)
	fs := NewFlagSet("test")
	fs.String(&out, "output", "o", "", "output file", "file")
	fs.String(&target, "target", "t", "vm", "target", "stage")
	fs.Bool(&quiet, "quiet", "q", false, "quiet")
	fs.Int(&steps, "run", "", 0, "cycles", "n")
	fs.List(&libs, "lib", "L", nil, "library", "dir")

	err := fs.Parse([]string{"-o", "a.hack", "--target=hack", "-q", "--run", "100", "-Llib", "--lib", "os", "Main.jack", "--", "-x"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if out != "a.hack" || target != "hack" || !quiet || steps != 100 {
		t.Errorf("got out=%q target=%q quiet=%v steps=%d", out, target, quiet, steps)
	}
	if diff := cmp.Diff([]string{"lib", "os"}, libs); diff != "" {
		t.Errorf("lib mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Main.jack", "-x"}, fs.Args()); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	tests := [][]string{
		{"--nope"},
		{"-z"},
		{"--output"},
		{"--run", "abc"},
	}
	for _, args := range tests {
		var out string
		var steps int
		fs := NewFlagSet("test")
		fs.String(&out, "output", "o", "", "output file", "file")
		fs.Int(&steps, "run", "", 0, "cycles", "n")
		if err := fs.Parse(args); err == nil {
			t.Errorf("Parse(%v) succeeded; want error", args)
		}
	}
}

func TestFlagGroups(t *testing.T) {
	on, off := false, false
	fs := NewFlagSet("test")
	fs.AddFlagGroup("Warning Flags", "", "warning", "Available Warnings:", []FlagGroupEntry{
		{Name: "shadow", Prefix: "W", Usage: "shadowing", Enabled: &on, Disabled: &off},
	})
	if err := fs.Parse([]string{"-Wno-shadow"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if on || !off {
		t.Errorf("on=%v off=%v; want false true", on, off)
	}
}

func TestRunUsageError(t *testing.T) {
	app := NewApp("jackc")
	app.Synopsis = "[options] <file.jack|dir>"
	var stdout, stderr bytes.Buffer
	app.Out, app.Err = &stdout, &stderr
	app.Action = func(args []string) error {
		return &UsageError{Msg: "missing input"}
	}
	err := app.Run(nil)
	var ue *UsageError
	if !errors.As(err, &ue) {
		t.Fatalf("Run error = %v; want *UsageError", err)
	}
	if !strings.Contains(stdout.String(), "jackc: missing input") || !strings.Contains(stdout.String(), "Usage: jackc") {
		t.Errorf("usage not printed to Out:\n%s", stdout.String())
	}
	if stderr.Len() != 0 {
		t.Errorf("unexpected stderr output %q", stderr.String())
	}
}

func TestHelp(t *testing.T) {
	app := NewApp("hackasm")
	app.Synopsis = "<file.asm>"
	app.Description = "Assembles Hack programs."
	var stdout bytes.Buffer
	app.Out = &stdout
	var quiet bool
	app.FlagSet.Bool(&quiet, "quiet", "q", false, "Suppress progress output")
	if err := app.Run([]string{"--help"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, want := range []string{"Synopsis", "hackasm <file.asm>", "Assembles Hack programs.", "-q, --quiet"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("help page lacks %q:\n%s", want, stdout.String())
		}
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("one two three four five", 10)
	want := []string{"one two", "three four", "five"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("wrapText mismatch (-want +got):\n%s", diff)
	}
}
