package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phuslu/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"ETFSentinel/internal/api"
	"ETFSentinel/internal/collector"
	"ETFSentinel/internal/config"
	"ETFSentinel/internal/logger"
	"ETFSentinel/internal/notifier"
	"ETFSentinel/internal/portfolio"
	"ETFSentinel/internal/ranking"
	"ETFSentinel/internal/recorder"
	"ETFSentinel/internal/scheduler"
	"ETFSentinel/internal/universe"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	log.Info().Str("config", cfgPath).Msg("ETFSentinel starting...")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init fetcher
	var fetcher collector.Fetcher
	if cfg.DataSource.BaseURL != "" {
		fetcher = collector.NewRESTFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy)
	} else {
		fetcher = collector.NewYahooFetcher(cfg.Proxy)
	}
	log.Info().Str("source", fetcher.Name()).Msg("data source ready")

	// Init universe
	var source universe.Source = universe.BuiltinSource{}
	if cfg.Universe.Source == "twse" {
		source = universe.NewTWSESource(cfg.Universe.ISINURL, cfg.Proxy)
	}
	reg := universe.NewRegistry(source)
	if cfg.Universe.Source == "twse" {
		refreshCtx, cancel := context.WithTimeout(ctx, time.Minute)
		if err := reg.Refresh(refreshCtx); err != nil {
			log.Warn().Err(err).Msg("initial universe refresh failed, using builtin list")
		}
		cancel()
	}

	col := collector.NewCollector(fetcher, collector.Options{
		Concurrency:       cfg.Scan.Concurrency,
		RequestsPerSecond: cfg.Scan.RequestsPerSecond,
		CacheTTL:          cfg.Scan.CacheTTL,
	})

	// Init recorder
	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			rec = sr
		}
	}
	defer rec.Close()

	// Init leaderboard, seeded from the last export so /top answers before the first scan
	board := ranking.NewBoard()
	if cfg.Report.JSONPath != "" {
		snap, err := ranking.ReadJSON(cfg.Report.JSONPath)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.Report.JSONPath).Msg("read last ranking")
		} else if board.Restore(snap) {
			log.Info().Str("run_id", snap.RunID).Int("rows", len(snap.Rows)).Msg("ranking restored")
		}
	}
	scanner := ranking.NewScanner(col, reg, board, rec, cfg.Report.JSONPath)

	pm := portfolio.NewManager(col, reg, rec, portfolio.Limits{
		MaxLTV: decimal.NewFromFloat(cfg.Leverage.MaxLTV),
		Policy: cfg.RiskPolicy(),
	})

	defaults := scheduler.Defaults{
		TopN:          cfg.Scan.TopN,
		Amount:        decimal.NewFromFloat(cfg.Portfolio.DefaultAmount),
		LTV:           decimal.NewFromFloat(cfg.Leverage.DefaultLTV),
		Rate:          decimal.NewFromFloat(cfg.Leverage.DefaultRate),
		RefreshSource: cfg.Universe.Source == "twse",
	}

	// Init Telegram notifier
	var tn *notifier.TelegramNotifier
	var sender scheduler.Sender
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		sender = tn
	} else {
		log.Warn().Msg("telegram disabled, reports are only logged")
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, scanner, reg, pm, sender, defaults)
	if err := sched.RegisterAll(cfg.Schedule.ScanCron, cfg.Schedule.WeeklyCron, cfg.Schedule.UniverseCron); err != nil {
		log.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	g, gctx := errgroup.WithContext(ctx)

	if tn != nil {
		g.Go(func() error {
			log.Info().Msg("telegram polling started")
			tn.StartPolling(gctx, sched.HandleCommand)
			return nil
		})
	}

	if cfg.Server.Addr != "" {
		srv := &http.Server{
			Addr: cfg.Server.Addr,
			Handler: api.NewRouter(scanner, reg, pm, api.Options{
				AllowedOrigins:    cfg.Server.AllowedOrigins,
				RequestsPerSecond: cfg.Server.RequestsPerSecond,
				Burst:             cfg.Server.Burst,
				DefaultAmount:     defaults.Amount,
				DefaultLTV:        defaults.LTV,
				DefaultRate:       defaults.Rate,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("addr", srv.Addr).Msg("http server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, scanning now")
		go sched.RunScanNow()
	}

	log.Info().Msg("ETFSentinel is running. Press Ctrl+C to stop.")
	<-gctx.Done()
	log.Info().Msg("shutdown signal received, stopping...")
	stop()

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("ETFSentinel stopped")
}
