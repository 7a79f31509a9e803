//go:build unix

// Command workload is the program the dispatcher starts for each job. It
// runs for the given number of one-second ticks, printing a line per tick.
// Time spent stopped does not count against the budget.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

func main() {
	interval := flag.Duration("interval", time.Second, "Length of one tick")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-interval d] <ticks>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	budget, err := strconv.Atoi(flag.Arg(0))
	if err != nil || budget < 0 {
		fmt.Fprintf(os.Stderr, "workload: invalid tick count %q\n", flag.Arg(0))
		os.Exit(2)
	}

	os.Exit(run(budget, *interval))
}

// run returns the exit status: 0 after the budget, 128+signo when interrupted.
func run(budget int, interval time.Duration) int {
	pid := os.Getpid()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)
	cont := make(chan os.Signal, 1)
	signal.Notify(cont, syscall.SIGCONT)
	defer signal.Stop(cont)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	m := newMeter(interval, time.Now())
	grace := min(maxContGrace, interval/10)
	resume := func() {
		ticker.Reset(interval)
		m.resumed(time.Now())
		fmt.Printf("%7d; continued\n", pid)
	}

	for m.done < budget {
		select {
		case sig := <-stop:
			fmt.Printf("%7d; terminated by %v after %d of %d ticks\n", pid, sig, m.done, budget)
			return 128 + int(sig.(syscall.Signal))
		case <-cont:
			resume()
		case <-ticker.C:
			now := time.Now()
			// A tick that was due while stopped fires together with the continue.
			select {
			case <-cont:
				resume()
				continue
			case <-time.After(grace):
			}
			if m.tick(now) {
				fmt.Printf("%7d; tick %d of %d\n", pid, m.done, budget)
			}
		}
	}
	return 0
}

// maxContGrace bounds how long a tick waits for a SIGCONT delivered alongside it.
const maxContGrace = 5 * time.Millisecond

// meter counts whole ticks of running time. A process cannot see its own
// SIGSTOP, so a tick that arrives late is taken to span a stop and is not
// counted. The partial tick before a stop is lost.
type meter struct {
	interval time.Duration
	last     time.Time
	done     int
}

func newMeter(interval time.Duration, now time.Time) *meter {
	return &meter{interval: interval, last: now}
}

// tick records a ticker fire at now and reports whether it was counted.
func (m *meter) tick(now time.Time) bool {
	gap := now.Sub(m.last)
	m.last = now
	if gap > m.interval+m.interval/4 {
		return false
	}
	m.done++
	return true
}

// resumed restarts the current tick after a continue.
func (m *meter) resumed(now time.Time) {
	m.last = now
}
