// gtest builds every test program with the toolchain binaries, runs the
// result on the emulator and compares the final machine state with a golden
// .json file stored next to the program.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/jackc/pkg/compiler"
	"github.com/xplshn/jackc/pkg/cpu"
)

type Execution struct {
	Tool     string        `json:"tool"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out,omitempty"`
}

// Machine is the part of the emulator state a golden file pins down.
type Machine struct {
	Words    int     `json:"words"`
	Cycles   int     `json:"cycles"`
	Finished bool    `json:"finished"`
	Pointers []int16 `json:"pointers"`
	Stack    []int16 `json:"stack"`
	Watch    []int16 `json:"watch,omitempty"`
}

type BuildResult struct {
	Steps   []Execution `json:"steps"`
	Machine *Machine    `json:"machine,omitempty"`
}

type FileTestResult struct {
	File    string       `json:"file"`
	Status  string       `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message string       `json:"message,omitempty"`
	Diff    string       `json:"diff,omitempty"`
	Golden  *BuildResult `json:"golden,omitempty"`
	Target  *BuildResult `json:"target,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	jackcBin       = flag.String("jackc", "./jackc", "Path to the jackc binary.")
	vmtransBin     = flag.String("vmtranslator", "./vmtranslator", "Path to the vmtranslator binary.")
	hackasmBin     = flag.String("hackasm", "./hackasm", "Path to the hackasm binary.")
	toolArgs       = flag.String("args", "", "Extra arguments for the first tool of each pipeline (space-separated).")
	generateGolden = flag.String("generate-golden", "", "Generate golden .json files for the given programs (space-separated).")
	testFiles      = flag.String("test-files", "tests/*", "Glob pattern(s) for programs to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Programs to skip (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each tool invocation.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	maxSteps       = flag.Int("steps", 1_000_000, "Maximum number of instructions to emulate.")
	watch          = flag.String("watch", "", "RAM range recorded in the result, as start:count.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
	jsonDir        = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to the program's directory).")
	ignoreLines    = flag.String("ignore-lines", "", "Comma-separated substrings to ignore when comparing tool output.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

// Stack slots recorded above the stack base.
const stackWindow = 32

func main() {
	flag.Parse()
	log.SetFlags(0)

	tempDir, err := os.MkdirTemp("", "gtest-*")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to create temp directory: %v\n", cRed, cNone, err)
	}
	defer os.RemoveAll(tempDir)
	setupInterruptHandler(tempDir)

	if *generateGolden != "" {
		for _, program := range strings.Fields(*generateGolden) {
			handleGenerateGolden(program, tempDir)
		}
		return
	}
	handleRunTestSuite(tempDir)
}

func setupInterruptHandler(tempDir string) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		os.RemoveAll(tempDir)
		fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled. Cleaning up...\n", cYellow, cNone)
		os.Exit(1)
	}()
}

func getJSONPath(program string) string {
	name := "." + filepath.Base(filepath.Clean(program)) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, name)
	}
	if info, err := os.Stat(program); err == nil && info.IsDir() {
		return filepath.Join(program, name)
	}
	return filepath.Join(filepath.Dir(program), name)
}

// hashProgram fingerprints every source file that makes up a program.
func hashProgram(program string) (string, error) {
	var paths []string
	info, err := os.Stat(program)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		for _, ext := range []string{".jack", ".vm", ".asm"} {
			files, err := compiler.CollectFiles(program, ext)
			if err == nil {
				paths = append(paths, files...)
			}
		}
	} else {
		paths = []string{program}
	}
	units, err := compiler.ReadUnits(paths)
	if err != nil {
		return "", err
	}
	for i := range units {
		units[i].Name = filepath.Base(units[i].Name)
	}
	return fmt.Sprintf("%x", compiler.Hash(units)), nil
}

func handleGenerateGolden(program, tempDir string) {
	log.Printf("Generating golden file for %s...\n", program)

	hash, err := hashProgram(program)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Could not hash %s: %v\n", cRed, cNone, program, err)
	}
	result, err := buildAndRun(program, tempDir, hash)
	if err != nil && result == nil {
		log.Fatalf("%s[ERROR]%s Could not build %s: %v\n", cRed, cNone, program, err)
	}

	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to marshal golden data to JSON: %v\n", cRed, cNone, err)
	}
	goldenFile := getJSONPath(program)
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0o755); err != nil {
			log.Fatalf("%s[ERROR]%s Failed to create directory %s: %v\n", cRed, cNone, *jsonDir, err)
		}
	}
	if err := os.WriteFile(goldenFile, jsonData, 0o644); err != nil {
		log.Fatalf("%s[ERROR]%s Failed to write golden file %s: %v\n", cRed, cNone, goldenFile, err)
	}
	log.Printf("%s[SUCCESS]%s Golden file created at %s\n", cGreen, cNone, goldenFile)
}

func handleRunTestSuite(tempDir string) {
	programs, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(programs) == 0 {
		log.Println("No test programs found matching the pattern(s).")
		return
	}

	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		if abs, err := filepath.Abs(f); err == nil {
			skipList[abs] = true
		}
	}

	type task struct{ program, hash string }
	tasks := make(chan task, len(programs))
	resultsChan := make(chan *FileTestResult, len(programs))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				resultsChan <- testProgram(t.program, tempDir, t.hash)
			}
		}()
	}

	// Programs with identical sources only run once.
	seenHashes := make(map[string]string)
	for _, program := range programs {
		if skipList[program] {
			resultsChan <- &FileTestResult{File: program, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		hash, err := hashProgram(program)
		if err != nil {
			resultsChan <- &FileTestResult{File: program, Status: "ERROR", Message: fmt.Sprintf("Failed to read program for hashing: %v", err)}
			continue
		}
		if original, seen := seenHashes[hash]; seen {
			resultsChan <- &FileTestResult{File: program, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", original)}
			continue
		}
		seenHashes[hash] = program
		tasks <- task{program, hash}
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool { return allResults[i].File < allResults[j].File })

	printSummary(allResults)
	resultsMap := writeJSONReport(allResults)
	if hasFailures(resultsMap) {
		os.Exit(1)
	}
}

func testProgram(program, tempDir, hash string) *FileTestResult {
	goldenFile := getJSONPath(program)
	goldenData, err := os.ReadFile(goldenFile)
	if errors.Is(err, os.ErrNotExist) {
		return &FileTestResult{File: program, Status: "SKIP", Message: "Cannot test without a corresponding .json golden file"}
	}
	if err != nil {
		return &FileTestResult{File: program, Status: "ERROR", Message: fmt.Sprintf("Could not read golden file %s: %v", goldenFile, err)}
	}
	var golden BuildResult
	if err := json.Unmarshal(goldenData, &golden); err != nil {
		return &FileTestResult{File: program, Status: "ERROR", Message: fmt.Sprintf("Could not parse golden file %s: %v", goldenFile, err)}
	}

	target, err := buildAndRun(program, tempDir, hash)
	if target == nil {
		return &FileTestResult{File: program, Status: "ERROR", Message: err.Error()}
	}
	if *verbose && err != nil {
		log.Printf("[%s] %v", program, err)
	}
	return compareResults(program, &golden, target)
}

func compareResults(program string, golden, target *BuildResult) *FileTestResult {
	var diffs strings.Builder
	failed := false

	ignored := []string{}
	if *ignoreLines != "" {
		ignored = strings.Split(*ignoreLines, ",")
	}

	if len(golden.Steps) != len(target.Steps) {
		failed = true
		fmt.Fprintf(&diffs, "Pipeline stopped after %d step(s); golden ran %d.\n", len(target.Steps), len(golden.Steps))
	}
	for i := 0; i < len(golden.Steps) && i < len(target.Steps); i++ {
		g, t := golden.Steps[i], target.Steps[i]
		if g.ExitCode != t.ExitCode {
			failed = true
			fmt.Fprintf(&diffs, "Step '%s' exit code mismatch:\n  - Golden: %d\n  - Target: %d\n", g.Tool, g.ExitCode, t.ExitCode)
		}
		// Paths differ between runs; only messages are compared.
		gErr := normalize(filterOutput(g.Stderr, ignored))
		tErr := normalize(filterOutput(t.Stderr, ignored))
		if gErr != tErr {
			failed = true
			fmt.Fprintf(&diffs, "Step '%s' STDERR mismatch:\n%s", g.Tool, cmp.Diff(gErr, tErr))
		}
	}

	if diff := cmp.Diff(golden.Machine, target.Machine); diff != "" {
		failed = true
		fmt.Fprintf(&diffs, "Machine state mismatch (-golden +target):\n%s", diff)
	}

	if failed {
		return &FileTestResult{File: program, Status: "FAIL", Message: "Build output or machine state mismatch", Diff: diffs.String(), Golden: golden, Target: target}
	}
	return &FileTestResult{File: program, Status: "PASS", Message: "Matches golden file", Golden: golden, Target: target}
}

// normalize drops the directory part of "file:line:col" prefixes.
func normalize(output string) string {
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		if idx := strings.Index(line, ":"); idx > 0 {
			head := line[:idx]
			if strings.ContainsAny(head, `/\`) {
				lines[i] = filepath.Base(head) + line[idx:]
			}
		}
	}
	return strings.Join(lines, "\n")
}

// executeCommand runs a command with a timeout and captures its output.
func executeCommand(ctx context.Context, command string, args ...string) Execution {
	start := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Execution{
		Tool:     filepath.Base(command),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.ExitCode = -1
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case err != nil:
		res.ExitCode = -2
		res.Stderr += "\nExecution error: " + err.Error()
	}
	return res
}

type step struct {
	bin  string
	args []string
}

// pipeline picks the tools that carry program down to a .hack file.
func pipeline(program, tempDir, hash string) ([]step, string, error) {
	hack := filepath.Join(tempDir, hash+".hack")
	asmOut := filepath.Join(tempDir, hash+".asm")
	extra := strings.Fields(*toolArgs)
	with := func(args ...string) []string {
		return append(append([]string{"-q"}, extra...), args...)
	}

	switch kind, err := programKind(program); {
	case err != nil:
		return nil, "", err
	case kind == ".jack":
		return []step{{*jackcBin, with("-t", "hack", "-o", hack, program)}}, hack, nil
	case kind == ".vm":
		return []step{
			{*vmtransBin, with("-o", asmOut, program)},
			{*hackasmBin, []string{"-q", "-o", hack, asmOut}},
		}, hack, nil
	default:
		return []step{{*hackasmBin, with("-o", hack, program)}}, hack, nil
	}
}

// programKind reports the source extension a program is written in.
func programKind(program string) (string, error) {
	info, err := os.Stat(program)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		ext := filepath.Ext(program)
		if ext != ".jack" && ext != ".vm" && ext != ".asm" {
			return "", fmt.Errorf("unsupported program %s", program)
		}
		return ext, nil
	}
	for _, ext := range []string{".jack", ".vm", ".asm"} {
		if _, err := compiler.CollectFiles(program, ext); err == nil {
			return ext, nil
		}
	}
	return "", fmt.Errorf("no sources in %s", program)
}

// buildAndRun returns a partial result alongside err when one of the tools
// fails; the failure itself is part of what golden files record.
func buildAndRun(program, tempDir, hash string) (*BuildResult, error) {
	steps, hack, err := pipeline(program, tempDir, hash)
	if err != nil {
		return nil, err
	}

	result := &BuildResult{}
	for _, s := range steps {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		res := executeCommand(ctx, s.bin, s.args...)
		cancel()
		result.Steps = append(result.Steps, res)
		if res.ExitCode != 0 || res.TimedOut {
			return result, fmt.Errorf("%s failed with exit code %d", res.Tool, res.ExitCode)
		}
	}

	data, err := os.ReadFile(hack)
	if err != nil {
		return result, fmt.Errorf("build succeeded but %s was not created", hack)
	}
	words, err := loadHack(string(data))
	if err != nil {
		return result, err
	}
	m, err := emulate(words)
	if err != nil {
		return result, err
	}
	result.Machine = m
	return result, nil
}

func emulate(words []uint16) (*Machine, error) {
	c := cpu.New(words)
	if err := c.Run(*maxSteps); err != nil {
		return nil, err
	}

	m := &Machine{
		Words:    len(words),
		Cycles:   c.Cycles,
		Finished: c.Spinning() || int(c.PC) >= len(words),
	}
	for i := 0; i < 5; i++ {
		m.Pointers = append(m.Pointers, int16(c.RAM[i]))
	}
	for addr := 256; addr < int(c.SP()) && addr < 256+stackWindow; addr++ {
		m.Stack = append(m.Stack, int16(c.RAM[addr]))
	}
	if *watch != "" {
		var start, count int
		if _, err := fmt.Sscanf(*watch, "%d:%d", &start, &count); err != nil {
			return nil, fmt.Errorf("invalid -watch %q: %w", *watch, err)
		}
		for addr := start; addr < start+count && addr < cpu.RAMSize; addr++ {
			m.Watch = append(m.Watch, int16(c.RAM[addr]))
		}
	}
	return m, nil
}

// loadHack reads the text form written by hackasm.
func loadHack(text string) ([]uint16, error) {
	var words []uint16
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) != 16 {
			return nil, fmt.Errorf("line %d: expected 16 bits, got %q", i+1, line)
		}
		var w uint16
		for _, b := range line {
			switch b {
			case '0':
				w <<= 1
			case '1':
				w = w<<1 | 1
			default:
				return nil, fmt.Errorf("line %d: invalid bit %q", i+1, b)
			}
		}
		words = append(words, w)
	}
	return words, nil
}

// filterOutput removes lines containing any of the given substrings.
func filterOutput(output string, ignored []string) string {
	if len(ignored) == 0 || output == "" {
		return output
	}
	lines := strings.Split(output, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		skip := false
		for _, sub := range ignored {
			if sub != "" && strings.Contains(line, sub) {
				skip = true
				break
			}
		}
		if !skip {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%6dµs", d.Microseconds())
	}
	return fmt.Sprintf("%6dms", d.Milliseconds())
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored int
	var totalBuild time.Duration
	var totalCycles, built int

	for _, result := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, result.File, cNone)

		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
			fmt.Println(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		}

		if result.Target == nil {
			continue
		}
		var build time.Duration
		for _, s := range result.Target.Steps {
			build += s.Duration
			if *verbose {
				fmt.Printf("  %-14s exit %d %s\n", s.Tool, s.ExitCode, formatDuration(s.Duration))
			}
		}
		totalBuild += build
		if m := result.Target.Machine; m != nil {
			built++
			totalCycles += m.Cycles
			fmt.Printf("  [build %s | %d words | %d cycles]\n", formatDuration(build), m.Words, m.Cycles)
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results))
	if built > 0 {
		fmt.Println("---")
		fmt.Printf("Average build time %s, average run %d cycles over %d program(s).\n",
			strings.TrimSpace(formatDuration(totalBuild/time.Duration(built))), totalCycles/built, built)
	}
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "-") {
			b.WriteString(cRed)
		} else if strings.HasPrefix(trimmed, "+") {
			b.WriteString(cGreen)
		}
		b.WriteString("    " + line + cNone + "\n")
	}
	return b.String()
}

func writeJSONReport(results []*FileTestResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return resultsMap
	}

	outputFile := *outputJSON
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0o755); err != nil {
			log.Printf("%s[ERROR]%s Failed to create dir %s: %v\n", cRed, cNone, *jsonDir, err)
		}
		outputFile = filepath.Join(*jsonDir, *outputJSON)
	}
	if err := os.WriteFile(outputFile, jsonData, 0o644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, outputFile, err)
	} else {
		fmt.Printf("Full test report saved to %s\n", outputFile)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var all []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil || seen[abs] || strings.HasPrefix(filepath.Base(abs), ".") {
				continue
			}
			if _, err := programKind(abs); err == nil {
				all = append(all, abs)
				seen[abs] = true
			}
		}
	}
	return all, nil
}
