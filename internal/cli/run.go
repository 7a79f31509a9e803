package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/me/dispatch/internal/jobfile"
	"github.com/me/dispatch/internal/journal"
	"github.com/me/dispatch/internal/metrics"
	"github.com/me/dispatch/internal/process"
	"github.com/me/dispatch/internal/scheduler"
	"github.com/me/dispatch/internal/server"
	"github.com/me/dispatch/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

// runBatch parses path and dispatches its jobs until all of them have
// left scheduling or the process is interrupted.
func runBatch(cmd *cobra.Command, path string) error {
	descs, err := jobfile.New(logger).ParseFile(path)
	if err != nil {
		return err
	}

	reg := process.NewRegistry(logger)
	reg.Register(process.NewOSController(cfg.OSConfig(), logger))
	reg.Register(process.NewSimController(logger))
	ctrl, err := reg.Get(cfg.Controller)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	rec := metrics.New()
	if err := rec.Register(promReg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	out := cmd.OutOrStdout()
	opts := []scheduler.Option{
		scheduler.WithDumpWriter(out),
		scheduler.WithSink(rec),
		scheduler.WithObserver(rec.Observe),
	}

	var j journal.Journal
	if cfg.Journal != "" {
		sj, err := journal.Open(cfg.Journal, logger)
		if err != nil {
			return err
		}
		defer sj.Close()
		if err := sj.Migrate(ctx); err != nil {
			return err
		}
		j = sj
		opts = append(opts, scheduler.WithSink(j))
	}

	d, err := scheduler.New(cfg.SchedulerConfig(), ctrl, descs, logger, opts...)
	if err != nil {
		return err
	}

	srvDone := make(chan error, 1)
	srvCtx, stopSrv := context.WithCancel(ctx)
	defer stopSrv()
	if cfg.StatusAddr != "" {
		var srvOpts []server.Option
		if j != nil {
			srvOpts = append(srvOpts, server.WithJournal(j))
		}
		srv := server.New(d, promReg, logger, srvOpts...)
		go func() { srvDone <- srv.ListenAndServe(srvCtx, cfg.StatusAddr) }()
	} else {
		srvDone <- nil
	}

	runErr := d.Run(ctx)
	printSummary(out, d.CurrentTick(), d.Jobs())

	stopSrv()
	if err := <-srvDone; err != nil {
		logger.Error("status server", "error", err)
	}

	if errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run %s interrupted at tick %d", d.RunID(), d.CurrentTick())
	}
	return runErr
}

func printSummary(w io.Writer, tick int, jobs []model.Job) {
	fmt.Fprintf(w, "\n%-4s  %-40s  %-4s  %-5s  %-10s  %s\n", "SEQ", "ID", "PRIO", "TICKS", "OUTCOME", "PID")
	fmt.Fprintf(w, "%-4s  %-40s  %-4s  %-5s  %-10s  %s\n", "---", "--", "----", "-----", "-------", "---")
	for _, job := range jobs {
		outcome := string(job.Outcome)
		if outcome == "" {
			outcome = job.State.String()
		}
		fmt.Fprintf(w, "%-4d  %-40s  %-4d  %-5d  %-10s  %d\n",
			job.Seq, job.ID, job.Priority, job.RanTicks, outcome, job.PID)
	}
	fmt.Fprintf(w, "\n%d jobs, last tick %d\n", len(jobs), tick)
}
