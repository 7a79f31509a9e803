package cli

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/me/dispatch/internal/jobfile"
	"github.com/me/dispatch/pkg/model"
)

func testdataPath(rel string) string {
	return filepath.Join("..", "..", "testdata", rel)
}

// runCLI executes the root command and returns what it wrote to stdout.
// Logs go to stderr and are discarded.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(io.Discard)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

// simArgs runs unpaced against the simulated controller.
func simArgs(extra ...string) []string {
	return append([]string{"--controller", "sim", "--tick", "0", "--dump-every", "0"}, extra...)
}

func TestRun_MissingArgument(t *testing.T) {
	_, err := runCLI(t, simArgs()...)
	if !errors.Is(err, model.ErrMissingArgument) {
		t.Fatalf("err = %v, want ErrMissingArgument", err)
	}
}

func TestRun_MissingFile(t *testing.T) {
	_, err := runCLI(t, simArgs(filepath.Join(t.TempDir(), "nope.txt"))...)
	if !errors.Is(err, model.ErrFileOpen) {
		t.Fatalf("err = %v, want ErrFileOpen", err)
	}
}

func TestRun_SyntaxError(t *testing.T) {
	_, err := runCLI(t, simArgs(testdataPath("jobs/bad-token.txt"))...)
	var se *jobfile.SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *jobfile.SyntaxError", err)
	}
	if se.Token != 3 {
		t.Errorf("token = %d, want 3", se.Token)
	}
}

func TestRun_InvalidFlag(t *testing.T) {
	_, err := runCLI(t, "--controller", "sim", "--aging", "sideways", testdataPath("jobs/system.txt"))
	if err == nil {
		t.Fatal("expected an error for an unknown aging mode")
	}
}

func TestRun_Summary(t *testing.T) {
	out, err := runCLI(t, simArgs(testdataPath("jobs/mixed.txt"))...)
	if err != nil {
		t.Fatalf("run: %v\noutput: %s", err, out)
	}
	if !strings.HasPrefix(out, "jobslist:\n<0>, <1>, <2>\n") {
		t.Errorf("output should open with the job list, got:\n%s", out)
	}
	if got := strings.Count(out, string(model.OutcomeCompleted)); got != 5 {
		t.Errorf("completed jobs = %d, want 5\n%s", got, out)
	}
	if !strings.Contains(out, "5 jobs, last tick") {
		t.Errorf("missing summary footer:\n%s", out)
	}
}

func TestRun_SystemJobTick(t *testing.T) {
	out, err := runCLI(t, simArgs(testdataPath("jobs/system.txt"))...)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "1 jobs, last tick 3") {
		t.Errorf("a 3-tick system job should finish at tick 3:\n%s", out)
	}
}

func TestRun_QueueDumps(t *testing.T) {
	out, err := runCLI(t, "--controller", "sim", "--tick", "0", "--dump-every", "1",
		testdataPath("jobs/two-tiers.txt"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"tick 0\n", "joblist:\n", "sysqueue:\n", "p2:\n", "p3:\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q", want)
		}
	}
}

func TestRun_ConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "dispatch.yaml")
	data := "controller: sim\ntick: 0s\ndump_every: 0\nadmission: immediate\n"
	if err := os.WriteFile(cfgPath, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "--config", cfgPath, testdataPath("jobs/system.txt"))
	if err != nil {
		t.Fatalf("run with config file: %v", err)
	}
	if strings.Contains(out, "tick 0\n") {
		t.Error("dump_every: 0 in the config file should disable dumps")
	}

	t.Setenv("DISPATCH_AGING", "bogus")
	if _, err := runCLI(t, "--config", cfgPath, testdataPath("jobs/system.txt")); err == nil {
		t.Error("DISPATCH_AGING should override the config file and fail validation")
	}
	if _, err := runCLI(t, "--config", cfgPath, "--aging", "promote", testdataPath("jobs/system.txt")); err != nil {
		t.Errorf("--aging should override DISPATCH_AGING: %v", err)
	}
}

func TestValidate(t *testing.T) {
	out, err := runCLI(t, "validate", testdataPath("jobs/mixed.txt"))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	for _, want := range []string{"<0>, <1>, <2>", "<9>, <7>, <1>  (priority clamped to 0)", "5 jobs OK"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestValidate_YAML(t *testing.T) {
	out, err := runCLI(t, "validate", testdataPath("jobs/mixed.yaml"))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "3 jobs OK") {
		t.Errorf("output:\n%s", out)
	}
}

func TestValidate_Truncated(t *testing.T) {
	if _, err := runCLI(t, "validate", testdataPath("jobs/truncated.txt")); err == nil {
		t.Fatal("truncated job file should fail validation")
	}
}

func TestEvents_NoJournal(t *testing.T) {
	t.Setenv("DISPATCH_JOURNAL", "")
	if _, err := runCLI(t, "events"); err == nil {
		t.Fatal("events without a journal should fail")
	}
}

func TestEvents_Journal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	if _, err := runCLI(t, simArgs("--journal", dbPath, testdataPath("jobs/mixed.txt"))...); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, err := runCLI(t, "events", "--journal", dbPath)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("want a header and one run, got:\n%s", out)
	}
	fields := strings.Fields(lines[1])
	runID := fields[0]
	if !strings.HasPrefix(runID, "run_") {
		t.Fatalf("run id = %q", runID)
	}

	out, err = runCLI(t, "events", "--journal", dbPath, "--run", runID, "--kind", "complete")
	if err != nil {
		t.Fatalf("events --run: %v", err)
	}
	lines = strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 6 {
		t.Errorf("want a header and 5 complete events, got:\n%s", out)
	}

	out, err = runCLI(t, "events", "--journal", dbPath, "--run", "run_missing")
	if err != nil {
		t.Fatalf("events --run missing: %v", err)
	}
	if !strings.Contains(out, "No events found.") {
		t.Errorf("output:\n%s", out)
	}

	if _, err := runCLI(t, "events", "--journal", dbPath, "--kind", "explode"); err == nil {
		t.Error("unknown kind should be rejected")
	}
}
