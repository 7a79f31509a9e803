package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/me/dispatch/internal/scheduler"
	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != DefaultDispatcherConfig() {
		t.Errorf("Load() = %+v, want defaults %+v", cfg, DefaultDispatcherConfig())
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch.yaml")
	body := "tick: 250ms\nwatchdog_ticks: 8\naging: promote\ncontroller: sim\njournal: /tmp/j.db\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DISPATCH_AGING", "demote")
	t.Setenv("DISPATCH_DUMP_EVERY", "0")

	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tick != 250*time.Millisecond || cfg.WatchdogTicks != 8 || cfg.Controller != "sim" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Aging != "demote" {
		t.Errorf("Aging = %q, want env override demote", cfg.Aging)
	}
	if cfg.DumpEvery != 0 {
		t.Errorf("DumpEvery = %d, want 0", cfg.DumpEvery)
	}
	if cfg.Journal != "/tmp/j.db" {
		t.Errorf("Journal = %q", cfg.Journal)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(viper.New(), filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load should fail for a missing config file")
	}
}

func TestLoad_ExplicitValueWins(t *testing.T) {
	v := viper.New()
	v.Set(KeyController, "sim")
	t.Setenv("DISPATCH_CONTROLLER", "os")

	cfg, err := Load(v, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Controller != "sim" {
		t.Errorf("Controller = %q, want sim", cfg.Controller)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*DispatcherConfig)
		wantErr bool
	}{
		{"defaults", func(*DispatcherConfig) {}, false},
		{"sim without workload", func(c *DispatcherConfig) { c.Controller = "sim"; c.Workload = "" }, false},
		{"os without workload", func(c *DispatcherConfig) { c.Workload = "" }, true},
		{"unknown controller", func(c *DispatcherConfig) { c.Controller = "docker" }, true},
		{"unknown aging", func(c *DispatcherConfig) { c.Aging = "random" }, true},
		{"unknown admission", func(c *DispatcherConfig) { c.Admission = "batch" }, true},
		{"negative watchdog", func(c *DispatcherConfig) { c.WatchdogTicks = -1 }, true},
		{"zero ack timeout", func(c *DispatcherConfig) { c.AckTimeout = 0 }, true},
		{"negative tick", func(c *DispatcherConfig) { c.Tick = -time.Second }, true},
		{"bad log format", func(c *DispatcherConfig) { c.LogFormat = "xml" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDispatcherConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSchedulerConfig(t *testing.T) {
	cfg := DefaultDispatcherConfig()
	cfg.Tick = 100 * time.Millisecond
	cfg.WatchdogTicks = 20
	cfg.Aging = "promote"

	sc := cfg.SchedulerConfig()
	if sc.WatchdogCeiling != 2*time.Second {
		t.Errorf("WatchdogCeiling = %s, want 2s", sc.WatchdogCeiling)
	}
	if sc.Aging != scheduler.AgingPromote {
		t.Errorf("Aging = %q", sc.Aging)
	}

	oc := cfg.OSConfig()
	if oc.Workload != "./process" || oc.AckTimeout != 5*time.Second {
		t.Errorf("OSConfig = %+v", oc)
	}
}
