package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"ETFSentinel/internal/calculator"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"data_source"`
	Universe struct {
		Source  string `yaml:"source"` // builtin | twse
		ISINURL string `yaml:"isin_url"`
	} `yaml:"universe"`
	Scan struct {
		Concurrency       int           `yaml:"concurrency"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		CacheTTL          time.Duration `yaml:"cache_ttl"`
		TopN              int           `yaml:"top_n"`
	} `yaml:"scan"`
	Schedule struct {
		ScanCron     string `yaml:"scan_cron"`
		WeeklyCron   string `yaml:"weekly_cron"`
		UniverseCron string `yaml:"universe_cron"`
	} `yaml:"schedule"`
	Leverage struct {
		DefaultLTV   float64 `yaml:"default_ltv"`
		MaxLTV       float64 `yaml:"max_ltv"`
		DefaultRate  float64 `yaml:"default_rate"`
		DangerBelow  float64 `yaml:"danger_below"`
		CautionBelow float64 `yaml:"caution_below"`
	} `yaml:"leverage"`
	Portfolio struct {
		DefaultAmount float64 `yaml:"default_amount"`
	} `yaml:"portfolio"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Report struct {
		JSONPath string `yaml:"json_path"`
	} `yaml:"report"`
	Server struct {
		Addr              string   `yaml:"addr"` // empty disables the HTTP API
		AllowedOrigins    []string `yaml:"allowed_origins"`
		RequestsPerSecond float64  `yaml:"requests_per_second"` // 0 disables rate limiting
		Burst             int      `yaml:"burst"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console | json, empty picks by terminal
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads .env and the YAML file over the defaults, then applies environment
// variable overrides. Keys present in the file win over defaults even when zero,
// so `requests_per_second: 0` means unlimited and `sqlite_path: ""` disables history.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	if cfg.Server.RequestsPerSecond > 0 && cfg.Server.Burst == 0 {
		cfg.Server.Burst = 20
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("QUOTE_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("QUOTE_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("UNIVERSE_SOURCE"); v != "" {
		cfg.Universe.Source = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SCAN_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scan.Concurrency = n
		}
	}
	if v := os.Getenv("CRON_SCAN"); v != "" {
		cfg.Schedule.ScanCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Default returns the configuration used for keys the file leaves out.
func Default() *Config {
	cfg := &Config{}
	cfg.Universe.Source = "builtin"
	cfg.Universe.ISINURL = "https://isin.twse.com.tw/isin/C_public.jsp?strMode=2"
	cfg.Scan.Concurrency = 4
	cfg.Scan.RequestsPerSecond = 2
	cfg.Scan.CacheTTL = 10 * time.Minute
	cfg.Scan.TopN = 10
	// Taiwan market closes at 13:30 local time.
	cfg.Schedule.ScanCron = "0 0 14 * * 1-5"
	cfg.Schedule.WeeklyCron = "0 0 8 * * 1"
	cfg.Schedule.UniverseCron = "0 0 6 * * 1"
	cfg.Leverage.DefaultLTV = 60
	cfg.Leverage.MaxLTV = 60
	cfg.Leverage.DefaultRate = 2.5
	cfg.Leverage.DangerBelow = 130
	cfg.Leverage.CautionBelow = 160
	cfg.Portfolio.DefaultAmount = 100000
	cfg.Database.SQLitePath = "data/etf_sentinel.db"
	cfg.Report.JSONPath = "data/latest_ranking.json"
	cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.Log.Level = "info"
	return cfg
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if c.Universe.Source != "builtin" && c.Universe.Source != "twse" {
		return fmt.Errorf("universe.source must be builtin or twse, got %q", c.Universe.Source)
	}
	if c.Scan.Concurrency < 1 {
		return fmt.Errorf("scan.concurrency must be positive")
	}
	if c.Scan.RequestsPerSecond < 0 {
		return fmt.Errorf("scan.requests_per_second must not be negative")
	}
	if c.Server.RequestsPerSecond < 0 {
		return fmt.Errorf("server.requests_per_second must not be negative")
	}
	if c.Leverage.MaxLTV <= 0 || c.Leverage.MaxLTV > 100 {
		return fmt.Errorf("leverage.max_ltv must be in (0, 100]")
	}
	if c.Leverage.DefaultLTV < 0 || c.Leverage.DefaultLTV > c.Leverage.MaxLTV {
		return fmt.Errorf("leverage.default_ltv must be in [0, max_ltv]")
	}
	if c.Leverage.DefaultRate < 0 {
		return fmt.Errorf("leverage.default_rate must not be negative")
	}
	if err := c.RiskPolicy().Validate(); err != nil {
		return fmt.Errorf("leverage thresholds: %w", err)
	}
	if c.Portfolio.DefaultAmount <= 0 {
		return fmt.Errorf("portfolio.default_amount must be positive")
	}
	return nil
}

// TelegramEnabled reports whether bot credentials are present.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// RiskPolicy returns the maintenance-ratio bands from the leverage section.
func (c *Config) RiskPolicy() calculator.RiskPolicy {
	return calculator.RiskPolicy{
		DangerBelow:  decimal.NewFromFloat(c.Leverage.DangerBelow),
		CautionBelow: decimal.NewFromFloat(c.Leverage.CautionBelow),
	}
}
