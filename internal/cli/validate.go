package cli

import (
	"fmt"

	"github.com/me/dispatch/internal/jobfile"
	"github.com/me/dispatch/pkg/model"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <jobfile>",
		Short: "Parse a job file and print its jobs in arrival order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return model.ErrMissingArgument
			}
			descs, err := jobfile.New(logger).ParseFile(args[0])
			if err != nil {
				return err
			}
			jobfile.SortByArrival(descs)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-4s  %s\n", "SEQ", "ARRIVAL, PRIORITY, TIME")
			for _, d := range descs {
				note := ""
				if d.Priority < 0 || d.Priority >= model.NumTiers {
					note = fmt.Sprintf("  (priority clamped to %d)", model.TierSystem)
				}
				fmt.Fprintf(out, "%-4d  %s%s\n", d.Seq, d, note)
			}
			fmt.Fprintf(out, "\n%d jobs OK\n", len(descs))
			return nil
		},
	}
}
