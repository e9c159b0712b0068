package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Universe.Source != "builtin" {
		t.Errorf("expected builtin universe, got %q", cfg.Universe.Source)
	}
	if cfg.Leverage.DangerBelow != 130 || cfg.Leverage.CautionBelow != 160 {
		t.Errorf("unexpected default bands %v/%v", cfg.Leverage.DangerBelow, cfg.Leverage.CautionBelow)
	}
	if cfg.Leverage.DefaultLTV != 60 || cfg.Leverage.DefaultRate != 2.5 {
		t.Errorf("unexpected leverage defaults %v/%v", cfg.Leverage.DefaultLTV, cfg.Leverage.DefaultRate)
	}
	if cfg.Scan.CacheTTL != 10*time.Minute {
		t.Errorf("unexpected cache ttl %v", cfg.Scan.CacheTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	if cfg.TelegramEnabled() {
		t.Error("telegram should be disabled without credentials")
	}
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
universe:
  source: twse
scan:
  concurrency: 8
  cache_ttl: 30s
leverage:
  danger_below: 140
  caution_below: 180
server:
  addr: ":8080"
`)
	t.Setenv("SCAN_CONCURRENCY", "2")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Universe.Source != "twse" {
		t.Errorf("expected twse, got %q", cfg.Universe.Source)
	}
	if cfg.Scan.Concurrency != 2 {
		t.Errorf("expected env override 2, got %d", cfg.Scan.Concurrency)
	}
	if cfg.Scan.CacheTTL != 30*time.Second {
		t.Errorf("expected 30s, got %v", cfg.Scan.CacheTTL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug, got %q", cfg.Log.Level)
	}
	policy := cfg.RiskPolicy()
	if policy.DangerBelow.IntPart() != 140 || policy.CautionBelow.IntPart() != 180 {
		t.Errorf("unexpected policy %s/%s", policy.DangerBelow, policy.CautionBelow)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected :8080, got %q", cfg.Server.Addr)
	}
}

func TestLoad_ExplicitZeroValuesKept(t *testing.T) {
	path := writeConfig(t, `
scan:
  requests_per_second: 0
  cache_ttl: 0s
leverage:
  default_rate: 0
  default_ltv: 0
database:
  sqlite_path: ""
report:
  json_path: ""
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Scan.RequestsPerSecond != 0 || cfg.Scan.CacheTTL != 0 {
		t.Errorf("expected unlimited, uncached scans, got rps=%v ttl=%v", cfg.Scan.RequestsPerSecond, cfg.Scan.CacheTTL)
	}
	if cfg.Leverage.DefaultRate != 0 || cfg.Leverage.DefaultLTV != 0 {
		t.Errorf("expected zero leverage defaults, got ltv=%v rate=%v", cfg.Leverage.DefaultLTV, cfg.Leverage.DefaultRate)
	}
	if cfg.Database.SQLitePath != "" || cfg.Report.JSONPath != "" {
		t.Errorf("expected history and export disabled, got %q / %q", cfg.Database.SQLitePath, cfg.Report.JSONPath)
	}
	// Untouched keys still get defaults.
	if cfg.Scan.Concurrency != 4 || cfg.Leverage.MaxLTV != 60 {
		t.Errorf("unexpected defaults concurrency=%d max_ltv=%v", cfg.Scan.Concurrency, cfg.Leverage.MaxLTV)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("explicit zeros should validate: %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "scan: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"half telegram", func(c *Config) { c.Telegram.BotToken = "x" }},
		{"bad universe", func(c *Config) { c.Universe.Source = "otc" }},
		{"zero concurrency", func(c *Config) { c.Scan.Concurrency = 0 }},
		{"ltv above max", func(c *Config) { c.Leverage.DefaultLTV = 70 }},
		{"max ltv over 100", func(c *Config) { c.Leverage.MaxLTV = 120 }},
		{"negative rate", func(c *Config) { c.Leverage.DefaultRate = -1 }},
		{"inverted bands", func(c *Config) { c.Leverage.DangerBelow = 170 }},
		{"zero amount", func(c *Config) { c.Portfolio.DefaultAmount = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
