// Package config loads dispatcher settings from defaults, a YAML file,
// DISPATCH_* environment variables and command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/me/dispatch/internal/logging"
	"github.com/me/dispatch/internal/process"
	"github.com/me/dispatch/internal/scheduler"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "DISPATCH"

// Configuration keys.
const (
	KeyTick          = "tick"
	KeyWatchdogTicks = "watchdog_ticks"
	KeyAckTimeout    = "ack_timeout"
	KeyWorkload      = "workload"
	KeyController    = "controller"
	KeyAging         = "aging"
	KeyAdmission     = "admission"
	KeyDumpEvery     = "dump_every"
	KeyJournal       = "journal"
	KeyStatusAddr    = "status_addr"
	KeyLogLevel      = "log_level"
	KeyLogFormat     = "log_format"
)

// DispatcherConfig holds configuration for a dispatcher run.
type DispatcherConfig struct {
	Tick          time.Duration // Real duration of one simulated tick (default 1s)
	WatchdogTicks int           // Process lifetime ceiling in ticks (default 20, 0 disables)
	AckTimeout    time.Duration // Max wait for a stop, continue or exit acknowledgement
	Workload      string        // Program started for each job (default "./process")
	Controller    string        // Controller backend: os, sim
	Aging         string        // Priority adjustment on preemption: demote, promote
	Admission     string        // Admission mode: arrival, immediate
	DumpEvery     int           // Ticks between queue dumps (0 disables)
	Journal       string        // SQLite journal path ("" disables)
	StatusAddr    string        // Status server listen address ("" disables)
	LogLevel      string        // Log level: debug, info, warn, error
	LogFormat     string        // Log format: text, json
}

// DefaultDispatcherConfig returns the reference pacing: one-second ticks
// and a 20-tick watchdog.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Tick:          time.Second,
		WatchdogTicks: 20,
		AckTimeout:    5 * time.Second,
		Workload:      "./process",
		Controller:    "os",
		Aging:         string(scheduler.AgingDemote),
		Admission:     string(scheduler.AdmitOnArrival),
		DumpEvery:     5,
		LogLevel:      "info",
		LogFormat:     logging.FormatText,
	}
}

// SetDefaults registers DefaultDispatcherConfig values on v.
func SetDefaults(v *viper.Viper) {
	d := DefaultDispatcherConfig()
	v.SetDefault(KeyTick, d.Tick)
	v.SetDefault(KeyWatchdogTicks, d.WatchdogTicks)
	v.SetDefault(KeyAckTimeout, d.AckTimeout)
	v.SetDefault(KeyWorkload, d.Workload)
	v.SetDefault(KeyController, d.Controller)
	v.SetDefault(KeyAging, d.Aging)
	v.SetDefault(KeyAdmission, d.Admission)
	v.SetDefault(KeyDumpEvery, d.DumpEvery)
	v.SetDefault(KeyJournal, d.Journal)
	v.SetDefault(KeyStatusAddr, d.StatusAddr)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFormat, d.LogFormat)
}

// Load reads a DispatcherConfig from v. Flags must already be bound to v.
// A non-empty file is read as YAML and must exist.
func Load(v *viper.Viper, file string) (DispatcherConfig, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return DispatcherConfig{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := DispatcherConfig{
		Tick:          v.GetDuration(KeyTick),
		WatchdogTicks: v.GetInt(KeyWatchdogTicks),
		AckTimeout:    v.GetDuration(KeyAckTimeout),
		Workload:      v.GetString(KeyWorkload),
		Controller:    v.GetString(KeyController),
		Aging:         v.GetString(KeyAging),
		Admission:     v.GetString(KeyAdmission),
		DumpEvery:     v.GetInt(KeyDumpEvery),
		Journal:       v.GetString(KeyJournal),
		StatusAddr:    v.GetString(KeyStatusAddr),
		LogLevel:      v.GetString(KeyLogLevel),
		LogFormat:     v.GetString(KeyLogFormat),
	}
	if err := cfg.Validate(); err != nil {
		return DispatcherConfig{}, err
	}
	return cfg, nil
}

// Validate checks every field.
func (c DispatcherConfig) Validate() error {
	if c.WatchdogTicks < 0 {
		return fmt.Errorf("%s must not be negative: %d", KeyWatchdogTicks, c.WatchdogTicks)
	}
	if c.AckTimeout <= 0 {
		return fmt.Errorf("%s must be positive: %s", KeyAckTimeout, c.AckTimeout)
	}
	switch c.Controller {
	case "os", "sim":
	default:
		return fmt.Errorf("unknown %s %q (want os or sim)", KeyController, c.Controller)
	}
	if c.Controller == "os" && c.Workload == "" {
		return fmt.Errorf("%s is required for the os controller", KeyWorkload)
	}
	if _, err := logging.ParseFormat(c.LogFormat); err != nil {
		return err
	}
	return c.SchedulerConfig().Validate()
}

// SchedulerConfig converts c into dispatcher settings. The watchdog
// ceiling is WatchdogTicks whole ticks; with unpaced ticks it is disabled.
func (c DispatcherConfig) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		Tick:            c.Tick,
		WatchdogCeiling: time.Duration(c.WatchdogTicks) * c.Tick,
		Aging:           scheduler.Aging(c.Aging),
		Admission:       scheduler.Admission(c.Admission),
		DumpEvery:       c.DumpEvery,
	}
}

// OSConfig converts c into OS controller settings.
func (c DispatcherConfig) OSConfig() process.OSConfig {
	cfg := process.DefaultOSConfig()
	cfg.Workload = c.Workload
	cfg.AckTimeout = c.AckTimeout
	return cfg
}
