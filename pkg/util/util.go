// Package util holds the diagnostics shared by every stage: source errors for
// invalid input, faults for compiler defects, and warnings.
package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xplshn/jackc/pkg/token"
	"golang.org/x/term"
)

// ErrUsage marks a command-line mistake; drivers print the usage page for it.
var ErrUsage = errors.New("usage error")

// SourceError reports input the toolchain rejects. Line and Column are 1-based;
// zero means unknown.
type SourceError struct {
	File   string
	Line   int
	Column int
	Len    int
	Msg    string
}

func (e *SourceError) Error() string {
	var sb strings.Builder
	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(":")
	}
	if e.Line > 0 {
		fmt.Fprintf(&sb, "%d:", e.Line)
		if e.Column > 0 {
			fmt.Fprintf(&sb, "%d:", e.Column)
		}
	}
	if sb.Len() > 0 {
		sb.WriteString(" ")
	}
	sb.WriteString(e.Msg)
	return sb.String()
}

// Errorf builds a SourceError at an explicit position.
func Errorf(file string, line, col int, format string, args ...any) error {
	return &SourceError{File: file, Line: line, Column: col, Msg: fmt.Sprintf(format, args...)}
}

// ErrorAt builds a SourceError spanning tok.
func ErrorAt(file string, tok token.Token, format string, args ...any) error {
	return &SourceError{
		File: file, Line: tok.Line, Column: tok.Column, Len: tok.Len,
		Msg: fmt.Sprintf(format, args...),
	}
}

// Fault is raised when a stage receives input an earlier stage should never
// have produced.
type Fault struct {
	Stage string
	Msg   string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("internal compiler error (%s): %s", f.Stage, f.Msg)
}

func Faultf(stage, format string, args ...any) error {
	return &Fault{Stage: stage, Msg: fmt.Sprintf(format, args...)}
}

func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}

// Diagnostic is a non-fatal finding tied to a named warning.
type Diagnostic struct {
	Warning string
	File    string
	Line    int
	Column  int
	Len     int
	Msg     string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: warning: %s [-W%s]", d.File, d.Line, d.Column, d.Msg, d.Warning)
}

// WarningAt builds a Diagnostic spanning tok.
func WarningAt(warning, file string, tok token.Token, format string, args ...any) Diagnostic {
	return Diagnostic{
		Warning: warning, File: file, Line: tok.Line, Column: tok.Column, Len: tok.Len,
		Msg: fmt.Sprintf(format, args...),
	}
}

type palette struct{ red, yellow, green, none string }

func colours(w io.Writer) palette {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return palette{"\033[31m", "\033[33m", "\033[32m", "\033[0m"}
	}
	return palette{}
}

// Report prints err for a human. source, when non-empty, is the text of the
// file the error points into and is used to show the offending line.
func Report(w io.Writer, err error, source string) {
	c := colours(w)
	var fault *Fault
	if errors.As(err, &fault) {
		fmt.Fprintf(w, "%sinternal compiler error:%s [%s] %s\n", c.red, c.none, fault.Stage, fault.Msg)
		return
	}
	var se *SourceError
	if !errors.As(err, &se) {
		fmt.Fprintf(w, "%serror:%s %v\n", c.red, c.none, err)
		return
	}
	fmt.Fprintf(w, "%s:%d:%d: %serror:%s %s\n", orUnknown(se.File), se.Line, se.Column, c.red, c.none, se.Msg)
	printSourceLine(w, c, source, se.Line, se.Column, se.Len)
}

// Warn prints a warning in the same shape as Report.
func Warn(w io.Writer, d Diagnostic, source string) {
	c := colours(w)
	fmt.Fprintf(w, "%s:%d:%d: %swarning:%s %s [-W%s]\n", orUnknown(d.File), d.Line, d.Column, c.yellow, c.none, d.Msg, d.Warning)
	printSourceLine(w, c, source, d.Line, d.Column, d.Len)
}

func orUnknown(name string) string {
	if name == "" {
		return "unknown"
	}
	return name
}

func printSourceLine(w io.Writer, c palette, source string, line, col, length int) {
	if source == "" || line <= 0 {
		return
	}
	lines := strings.Split(source, "\n")
	if line > len(lines) {
		return
	}
	text := strings.TrimRight(lines[line-1], "\r")
	fmt.Fprintf(w, "  %s\n", text)
	if col <= 0 {
		return
	}
	fmt.Fprintf(w, "  %s%s^", strings.Repeat(" ", col-1), c.green)
	if length > 1 {
		fmt.Fprint(w, strings.Repeat("~", length-1))
	}
	fmt.Fprintln(w, c.none)
}
