//go:build unix

package scheduler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/me/dispatch/internal/process"
	"github.com/me/dispatch/pkg/model"
)

// workloadScript builds cmd/workload and wraps it in a script that runs it
// with the given tick interval, the way the dispatcher invokes a workload.
func workloadScript(t *testing.T, interval time.Duration) string {
	t.Helper()
	gobin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not on PATH")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "workload")
	out, err := exec.Command(gobin, "build", "-o", bin, "github.com/me/dispatch/cmd/workload").CombinedOutput()
	if err != nil {
		t.Fatalf("build workload: %v\n%s", err, out)
	}

	script := filepath.Join(dir, "process")
	body := fmt.Sprintf("#!/bin/sh\nexec %s -interval %s \"$@\"\n", bin, interval)
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return script
}

func TestRun_OSControllerWithWorkload(t *testing.T) {
	if testing.Short() {
		t.Skip("runs real processes for about two seconds")
	}

	const tick = 50 * time.Millisecond
	// The workload ticks a little slower than the dispatcher, as a real
	// process would under scheduling jitter.
	script := workloadScript(t, tick+tick/5)

	osCfg := process.DefaultOSConfig()
	osCfg.Workload = script
	osCfg.AckTimeout = 2 * time.Second
	osCfg.Stdout = nil
	osCfg.Stderr = nil
	logger := testLogger()
	ctrl := process.NewOSController(osCfg, logger)

	// A long tier-3 job preempted by a one-tick tier-1 job every other tick.
	triples := [][3]int{{0, 3, 12}}
	for arrival := 1; arrival <= 21; arrival += 2 {
		triples = append(triples, [3]int{arrival, 1, 1})
	}
	triples = append(triples, [3]int{4, 2, 3})

	cfg := DefaultConfig()
	cfg.Tick = tick
	cfg.WatchdogCeiling = 0
	cfg.DumpEvery = 0
	rec := &recorder{}
	d, err := New(cfg, ctrl, jobs(triples...), logger, WithSink(rec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if n := rec.count(1, model.EventPreempt); n < 5 {
		t.Errorf("long job preempted %d times, want at least 5", n)
	}
	for _, j := range d.Jobs() {
		if j.Outcome != model.OutcomeCompleted {
			t.Errorf("job %d outcome = %s (state %s, err %q)", j.Seq, j.Outcome, j.State, j.Err)
		}
		if j.RanTicks != j.TotalProcessorTime {
			t.Errorf("job %d RanTicks = %d, want %d", j.Seq, j.RanTicks, j.TotalProcessorTime)
		}
		if j.PID == 0 {
			t.Errorf("job %d never got a process", j.Seq)
		}
	}
}
