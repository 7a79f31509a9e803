package cli

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/me/dispatch/internal/journal"
	"github.com/me/dispatch/pkg/model"
	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	var (
		runID string
		jobID string
		kind  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List journaled runs, or the events of one run",
		Long: "Without --run, events lists every run in the journal, newest first.\n" +
			"With --run, it lists that run's events in the order they were recorded.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Journal == "" {
				return errors.New("no journal configured (use --journal or DISPATCH_JOURNAL)")
			}
			if kind != "" && !model.EventKind(kind).Valid() {
				return fmt.Errorf("unknown event kind %q", kind)
			}

			j, err := journal.Open(cfg.Journal, logger)
			if err != nil {
				return err
			}
			defer j.Close()
			ctx := cmd.Context()
			if err := j.Migrate(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if runID == "" && jobID == "" && kind == "" {
				runs, err := j.Runs(ctx)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs found.")
					return nil
				}
				fmt.Fprintf(out, "%-44s  %-16s  %-6s  %-6s  %s\n", "RUN", "STARTED", "TICKS", "EVENTS", "FAILED")
				for _, r := range runs {
					fmt.Fprintf(out, "%-44s  %-16s  %-6d  %-6d  %d\n",
						r.RunID, humanize.Time(r.StartedAt), r.LastTick, r.Events, r.Failed)
				}
				return nil
			}

			events, err := j.Events(ctx, journal.Filter{
				RunID: runID,
				JobID: jobID,
				Kind:  model.EventKind(kind),
				Limit: limit,
			})
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(out, "No events found.")
				return nil
			}
			fmt.Fprintf(out, "%-5s  %-9s  %-4s  %-4s  %-5s  %-8s  %s\n", "TICK", "KIND", "SEQ", "PRIO", "LEFT", "PID", "DETAIL")
			for _, ev := range events {
				fmt.Fprintf(out, "%-5d  %-9s  %-4d  %-4d  %-5d  %-8d  %s\n",
					ev.Tick, ev.Kind, ev.Seq, ev.Priority, ev.Remaining, ev.PID, ev.Detail)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run ID")
	cmd.Flags().StringVar(&jobID, "job", "", "Job ID")
	cmd.Flags().StringVar(&kind, "kind", "", "Event kind (admit, start, preempt, ...)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum events to list (0 for all)")
	return cmd
}
