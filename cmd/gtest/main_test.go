package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/jackc/pkg/asm"
	"github.com/xplshn/jackc/pkg/compiler"
	"github.com/xplshn/jackc/pkg/config"
	"github.com/xplshn/jackc/pkg/util"
)

func TestLoadHack(t *testing.T) {
	words, err := loadHack("0000000000000010\n1110110000010000\n\n")
	if err != nil {
		t.Fatalf("loadHack: %v", err)
	}
	if diff := cmp.Diff([]uint16{2, 0xEC10}, words); diff != "" {
		t.Errorf("words (-want +got):\n%s", diff)
	}
	for _, bad := range []string{"0101", "000000000000001x"} {
		if _, err := loadHack(bad); err == nil {
			t.Errorf("loadHack(%q) succeeded", bad)
		}
	}
}

func TestEmulate(t *testing.T) {
	// @7 D=A @SP A=M M=D @SP M=M+1 with SP preset by @256 D=A @SP M=D
	words := []uint16{256, 0xEC10, 0, 0xE308, 7, 0xEC10, 0, 0xFC20, 0xE308, 0, 0xFDC8}
	m, err := emulate(words)
	if err != nil {
		t.Fatalf("emulate: %v", err)
	}
	if !m.Finished {
		t.Errorf("program did not finish")
	}
	if diff := cmp.Diff([]int16{7}, m.Stack); diff != "" {
		t.Errorf("stack (-want +got):\n%s", diff)
	}
	if m.Pointers[0] != 257 {
		t.Errorf("SP = %d; want 257", m.Pointers[0])
	}
}

func TestNormalize(t *testing.T) {
	got := normalize("/tmp/x/Main.jack:3:5: error: boom\nplain line")
	want := "Main.jack:3:5: error: boom\nplain line"
	if got != want {
		t.Errorf("normalize = %q; want %q", got, want)
	}
}

func TestProgramKind(t *testing.T) {
	dir := t.TempDir()
	jack := filepath.Join(dir, "Loop")
	if err := os.Mkdir(jack, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(jack, "Main.jack"), []byte("class Main {}"), 0o644); err != nil {
		t.Fatal(err)
	}
	asmFile := filepath.Join(dir, "Max.asm")
	if err := os.WriteFile(asmFile, []byte("@0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	for path, want := range map[string]string{jack: ".jack", asmFile: ".asm"} {
		got, err := programKind(path)
		if err != nil || got != want {
			t.Errorf("programKind(%s) = %q, %v; want %q", path, got, err, want)
		}
	}
	empty := filepath.Join(dir, "empty")
	if err := os.Mkdir(empty, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := programKind(empty); err == nil {
		t.Errorf("programKind on an empty directory succeeded")
	}
}

func readGolden(t *testing.T, program string) *BuildResult {
	t.Helper()
	data, err := os.ReadFile(getJSONPath(program))
	if err != nil {
		t.Fatalf("golden for %s: %v", program, err)
	}
	var golden BuildResult
	if err := json.Unmarshal(data, &golden); err != nil {
		t.Fatalf("golden for %s: %v", program, err)
	}
	return &golden
}

func TestGoldenMachine(t *testing.T) {
	program := filepath.Join("..", "..", "tests", "Max.asm")
	golden := readGolden(t, program)

	src, err := os.ReadFile(program)
	if err != nil {
		t.Fatal(err)
	}
	lines, err := asm.Parse(program, string(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	words, err := asm.NewAssembler().Assemble(lines)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	m, err := emulate(words)
	if err != nil {
		t.Fatalf("emulate: %v", err)
	}
	if diff := cmp.Diff(golden.Machine, m); diff != "" {
		t.Errorf("machine (-golden +got):\n%s", diff)
	}
}

func TestGoldenDiagnostics(t *testing.T) {
	program := filepath.Join("..", "..", "tests", "BadLet")
	golden := readGolden(t, program)
	if len(golden.Steps) != 1 || golden.Steps[0].ExitCode != 1 || golden.Machine != nil {
		t.Fatalf("golden = %+v; want one failing step and no machine", golden)
	}

	files, err := compiler.CollectFiles(program, ".jack")
	if err != nil {
		t.Fatal(err)
	}
	units, err := compiler.ReadUnits(files)
	if err != nil {
		t.Fatal(err)
	}
	_, err = compiler.CompileJack(units, config.NewConfig())
	if err == nil {
		t.Fatalf("CompileJack succeeded")
	}
	var stderr bytes.Buffer
	util.Report(&stderr, err, units[0].Source)
	if diff := cmp.Diff(normalize(golden.Steps[0].Stderr), normalize(stderr.String())); diff != "" {
		t.Errorf("stderr (-golden +got):\n%s", diff)
	}
}

func TestCompareResults(t *testing.T) {
	golden := &BuildResult{
		Steps:   []Execution{{Tool: "hackasm"}},
		Machine: &Machine{Words: 3, Cycles: 2, Finished: true, Pointers: []int16{0, 0, 0, 0, 0}},
	}
	same := &BuildResult{
		Steps:   []Execution{{Tool: "hackasm", Duration: 5}},
		Machine: &Machine{Words: 3, Cycles: 2, Finished: true, Pointers: []int16{0, 0, 0, 0, 0}},
	}
	if r := compareResults("p", golden, same); r.Status != "PASS" {
		t.Errorf("status = %s; want PASS\n%s", r.Status, r.Diff)
	}
	other := &BuildResult{
		Steps: []Execution{{Tool: "hackasm", ExitCode: 1, Stderr: "/x/Max.asm:1:0: error: boom"}},
	}
	if r := compareResults("p", golden, other); r.Status != "FAIL" || r.Diff == "" {
		t.Errorf("status = %s; want FAIL with a diff", r.Status)
	}
}
