// Package cli implements the dispatch command line.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/me/dispatch/internal/config"
	"github.com/me/dispatch/internal/logging"
	"github.com/me/dispatch/pkg/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	flagConfig string
	flagDebug  bool

	logger *slog.Logger
	cfg    config.DispatcherConfig
)

// NewRootCmd creates the root cobra command for the dispatch CLI.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "dispatch <jobfile>",
		Short: "Tiered process dispatcher",
		Long: "dispatch admits the jobs listed in a job description file and runs them as\n" +
			"real processes under a four-tier priority policy: a FCFS system tier and\n" +
			"three round-robin user tiers with one-tick quanta.",
		Args: cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd, v); err != nil {
				return err
			}
			loaded, err := config.Load(v, flagConfig)
			if err != nil {
				return err
			}
			if flagDebug {
				loaded.LogLevel = "debug"
			}
			cfg = loaded
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return model.ErrMissingArgument
			}
			return runBatch(cmd, args[0])
		},
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "YAML config file")
	pf.BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	pf.String("journal", "", "SQLite event journal path (or DISPATCH_JOURNAL env)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text, json)")

	f := root.Flags()
	f.Duration("tick", 0, "Real duration of one tick (0 runs unpaced)")
	f.Int("watchdog-ticks", 0, "Process lifetime ceiling in ticks (0 disables)")
	f.Duration("ack-timeout", 0, "Max wait for a process to acknowledge a signal")
	f.String("workload", "", "Program started for each job")
	f.String("controller", "", "Controller backend (os, sim)")
	f.String("aging", "", "Priority change on preemption (demote, promote)")
	f.String("admission", "", "Admission mode (arrival, immediate)")
	f.Int("dump-every", 0, "Ticks between queue dumps (0 disables)")
	f.String("status-addr", "", "Status server listen address, e.g. :9090")

	root.AddCommand(
		newValidateCmd(),
		newEventsCmd(),
	)

	return root
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"tick":           config.KeyTick,
	"watchdog-ticks": config.KeyWatchdogTicks,
	"ack-timeout":    config.KeyAckTimeout,
	"workload":       config.KeyWorkload,
	"controller":     config.KeyController,
	"aging":          config.KeyAging,
	"admission":      config.KeyAdmission,
	"dump-every":     config.KeyDumpEvery,
	"journal":        config.KeyJournal,
	"status-addr":    config.KeyStatusAddr,
	"log-level":      config.KeyLogLevel,
	"log-format":     config.KeyLogFormat,
}

// bindFlags binds the flags that were set on the command line, so that an
// unset flag never hides a file or env value.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for name, key := range flagKeys {
		fl := cmd.Flags().Lookup(name)
		if fl == nil || !fl.Changed {
			continue
		}
		if err := v.BindPFlag(key, fl); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}
