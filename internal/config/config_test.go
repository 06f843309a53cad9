package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	ledger "github.com/vadim/linkpilot/internal/domain/ledger/entity"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	limits := cfg.Limits.ByAction()
	want := map[ledger.ActionType]int{
		ledger.ActionConnect: 100,
		ledger.ActionFollow:  150,
		ledger.ActionLike:    300,
		ledger.ActionComment: 50,
		ledger.ActionMessage: 20,
	}
	for action, n := range want {
		if limits[action] != n {
			t.Errorf("limit %s = %d, want %d", action, limits[action], n)
		}
	}

	if cfg.Database.Driver != "sqlite" || !cfg.LinkedIn.Simulated() {
		t.Errorf("unexpected defaults %+v %+v", cfg.Database, cfg.LinkedIn)
	}
	if cfg.Scheduler.PublishEvery != 5*time.Minute || len(cfg.Scheduler.EngagementAt) != 2 {
		t.Errorf("unexpected scheduler defaults %+v", cfg.Scheduler)
	}
	if cfg.Automation.BatchCap != 10 || cfg.Automation.PublishingTimeout != 30*time.Minute {
		t.Errorf("unexpected automation defaults %+v", cfg.Automation)
	}
}

func TestLoadEnvOverridesLimits(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DAILY_FOLLOW_LIMIT", "5")
	t.Setenv("SCHEDULER_ENGAGEMENT_AT", "08:30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Limits.Follow != 5 {
		t.Errorf("follow limit = %d", cfg.Limits.Follow)
	}
	if len(cfg.Scheduler.EngagementAt) != 1 || cfg.Scheduler.EngagementAt[0] != "08:30" {
		t.Errorf("engagement times = %v", cfg.Scheduler.EngagementAt)
	}
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	base, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"unknown linkedin mode", func(c *Config) { c.LinkedIn.Mode = "scrape" }},
		{"negative limit", func(c *Config) { c.Limits.Like = -1 }},
		{"zero batch cap", func(c *Config) { c.Automation.BatchCap = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("database:\n  driver: sqlite\n  sqlite_path: /tmp/lp.db\nlimits:\n  message: 7\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if cfg.Database.SQLitePath != "/tmp/lp.db" || cfg.Limits.Message != 7 {
		t.Errorf("unexpected config %+v %+v", cfg.Database, cfg.Limits)
	}
	if cfg.Limits.Connect != 100 {
		t.Errorf("defaults must still apply, connect = %d", cfg.Limits.Connect)
	}
}
