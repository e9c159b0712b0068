package scheduler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"ETFSentinel/internal/collector"
	"ETFSentinel/internal/model"
	"ETFSentinel/internal/notifier"
	"ETFSentinel/internal/portfolio"
	"ETFSentinel/internal/ranking"
	"ETFSentinel/internal/universe"
)

// Sender delivers a report to the chat.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Defaults are the values used when a command omits an argument.
type Defaults struct {
	TopN          int
	Amount        decimal.Decimal
	LTV           decimal.Decimal
	Rate          decimal.Decimal
	RefreshSource bool // refresh the universe on the universe cron
}

// Scheduler manages all cron tasks and answers chat commands.
type Scheduler struct {
	Cron      *cron.Cron
	Scanner   *ranking.Scanner
	Universe  *universe.Registry
	Portfolio *portfolio.Manager
	Notifier  Sender
	Defaults  Defaults
	Ctx       context.Context
}

// NewScheduler creates a new Scheduler. tn may be nil when Telegram is disabled.
func NewScheduler(ctx context.Context, sc *ranking.Scanner, reg *universe.Registry, pm *portfolio.Manager, tn Sender, d Defaults) *Scheduler {
	if d.TopN <= 0 {
		d.TopN = 10
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds(), cron.WithLocation(collector.MarketZone)),
		Scanner:   sc,
		Universe:  reg,
		Portfolio: pm,
		Notifier:  tn,
		Defaults:  d,
		Ctx:       ctx,
	}
}

// RegisterAll registers the scan, weekly report and universe refresh tasks.
func (s *Scheduler) RegisterAll(scanCron, weeklyCron, universeCron string) error {
	if _, err := s.Cron.AddFunc(scanCron, s.scanTask); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	if _, err := s.Cron.AddFunc(weeklyCron, s.weeklyTask); err != nil {
		return fmt.Errorf("register weekly task: %w", err)
	}
	if s.Defaults.RefreshSource {
		if _, err := s.Cron.AddFunc(universeCron, s.universeTask); err != nil {
			return fmt.Errorf("register universe task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunScanNow executes the scan task immediately (for RUN_ON_START).
func (s *Scheduler) RunScanNow() {
	s.scanTask()
}

func (s *Scheduler) scanTask() {
	res, err := s.Scanner.Run(s.Ctx, nil)
	if err != nil {
		if errors.Is(err, ranking.ErrScanInProgress) {
			log.Warn().Msg("scan skipped, previous scan still running")
			return
		}
		log.Error().Err(err).Msg("daily scan")
		s.trySend(notifier.FormatError("每日掃描失敗", err))
		return
	}
	log.Info().Str("run_id", res.Snapshot.RunID).Int("ranked", len(res.Snapshot.Rows)).Msg("daily scan done")
}

func (s *Scheduler) weeklyTask() {
	log.Info().Msg("running weekly report")
	board := s.Scanner.Board
	if board.Empty() {
		s.scanTask()
	}
	snap := board.Snapshot()
	s.trySend(notifier.FormatRanking(board.Top(s.Defaults.TopN), snap.TakenAt, 0))
}

func (s *Scheduler) universeTask() {
	ctx, cancel := context.WithTimeout(s.Ctx, 2*time.Minute)
	defer cancel()
	if err := s.Universe.Refresh(ctx); err != nil {
		s.trySend(notifier.FormatError("更新 ETF 清單失敗", err))
	}
}

const helpText = `可用命令:
• /scan 重新掃描
• /top [n] 月配息排行
• /search 關鍵字
• /etf 代號 或 代號 名稱
• /add 代號 [名稱] [金額]
• /remove 編號
• /portfolio 查看組合
• /leverage [成數] [利率]
• /clear 清空組合`

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	// Group chats append the bot name: /top@etf_bot
	if i := strings.IndexByte(name, '@'); i > 0 {
		name = name[:i]
	}

	ctx, cancel := context.WithTimeout(s.Ctx, 5*time.Minute)
	defer cancel()

	switch name {
	case "/scan":
		res, err := s.Scanner.Run(ctx, nil)
		if err != nil {
			return replyError(err)
		}
		return notifier.FormatRanking(top(res.Snapshot.Rows, s.Defaults.TopN), res.Snapshot.TakenAt, len(res.Skipped))

	case "/top":
		n := s.Defaults.TopN
		if len(args) > 0 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v <= 0 {
				return "用法: /top [n]"
			}
			n = v
		}
		snap := s.Scanner.Board.Snapshot()
		return notifier.FormatRanking(s.Scanner.Board.Top(n), snap.TakenAt, 0)

	case "/search":
		if len(args) == 0 {
			return "用法: /search 關鍵字"
		}
		q := strings.Join(args, " ")
		etfs := s.Universe.Search(q)
		if len(etfs) == 0 {
			return "找不到符合的 ETF"
		}
		var b strings.Builder
		b.WriteString(fmt.Sprintf("🔍 共 %d 檔\n", len(etfs)))
		for _, e := range etfs {
			b.WriteString("• " + e.Label() + "\n")
		}
		return html.EscapeString(b.String())

	case "/etf":
		if len(args) == 0 {
			return "用法: /etf 代號"
		}
		opt, _ := universe.ParseOption(strings.Join(args, " "))
		etf, _ := s.Universe.Lookup(opt.Symbol)
		if r, rank, ok := s.Scanner.Board.Lookup(etf.Symbol); ok {
			return notifier.FormatETF(r, rank)
		}
		r, err := s.Portfolio.Preview(ctx, etf.Symbol)
		if err != nil {
			return replyError(err)
		}
		return notifier.FormatETF(r, 0)

	case "/add":
		if len(args) == 0 {
			return "用法: /add 代號 [金額]"
		}
		opt, amountArg := s.splitSelector(args)
		amount := s.Defaults.Amount
		if amountArg != "" {
			v, err := parseAmount(amountArg)
			if err != nil {
				return "金額格式錯誤: " + html.EscapeString(amountArg)
			}
			amount = v
		}
		h, err := s.Portfolio.Add(ctx, opt.Symbol, amount)
		if err != nil {
			return replyError(err)
		}
		return notifier.FormatHoldingAdded(h)

	case "/remove":
		if len(args) == 0 {
			return "用法: /remove 編號"
		}
		h, err := s.Portfolio.Remove(args[0])
		if err != nil {
			return replyError(err)
		}
		return fmt.Sprintf("🗑 已移除 %s %d 張", html.EscapeString(h.Symbol), h.Lots)

	case "/portfolio":
		return notifier.FormatPortfolio(s.Portfolio.Holdings(), s.Portfolio.Summary())

	case "/leverage":
		ltv, rate := s.Defaults.LTV, s.Defaults.Rate
		var err error
		if len(args) > 0 {
			if ltv, err = decimal.NewFromString(strings.TrimSuffix(args[0], "%")); err != nil {
				return "用法: /leverage [成數] [利率]"
			}
		}
		if len(args) > 1 {
			if rate, err = decimal.NewFromString(strings.TrimSuffix(args[1], "%")); err != nil {
				return "用法: /leverage [成數] [利率]"
			}
		}
		proj, err := s.Portfolio.Leverage(ltv, rate)
		if err != nil {
			return replyError(err)
		}
		return notifier.FormatLeverage(s.Portfolio.Summary(), proj)

	case "/clear":
		n := s.Portfolio.Clear()
		return fmt.Sprintf("🧹 已清空組合 (%d 筆)", n)

	default:
		return helpText
	}
}

// splitSelector separates "/add" arguments into the ETF and an optional amount.
// The ETF may be a bare code or a full label such as "0056.TW 元大高股息"; the
// amount, when given, is the last argument.
func (s *Scheduler) splitSelector(args []string) (model.ETF, string) {
	whole, _ := universe.ParseOption(strings.Join(args, " "))
	if len(args) == 1 || s.isListedLabel(whole) {
		return whole, ""
	}
	opt, _ := universe.ParseOption(strings.Join(args[:len(args)-1], " "))
	return opt, args[len(args)-1]
}

func (s *Scheduler) isListedLabel(opt model.ETF) bool {
	if opt.Name == "" {
		return false
	}
	etf, ok := s.Universe.Lookup(opt.Symbol)
	return ok && etf.Name == opt.Name
}

// parseAmount accepts plain numbers with optional thousands separators or a 萬 suffix.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(s, ",", "")
	mul := decimal.NewFromInt(1)
	if strings.HasSuffix(s, "萬") {
		s = strings.TrimSuffix(s, "萬")
		mul = decimal.NewFromInt(10000)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Mul(mul), nil
}

func replyError(err error) string {
	switch {
	case errors.Is(err, portfolio.ErrUnknownSymbol):
		return "❌ 不在 ETF 清單中: " + html.EscapeString(err.Error())
	case errors.Is(err, portfolio.ErrNothingPurchasable):
		return "❌ 金額不足一張: " + html.EscapeString(err.Error())
	case errors.Is(err, portfolio.ErrHoldingNotFound):
		return "❌ 找不到該筆持股"
	case errors.Is(err, portfolio.ErrInvalidAmount):
		return "❌ 金額必須大於 0"
	case errors.Is(err, portfolio.ErrInvalidLTV), errors.Is(err, portfolio.ErrInvalidRate):
		return "❌ " + html.EscapeString(err.Error())
	case errors.Is(err, collector.ErrNoPrice):
		return "❌ 目前無法取得報價"
	case errors.Is(err, ranking.ErrScanInProgress):
		return "⏳ 掃描進行中，請稍後再試"
	default:
		return notifier.FormatError("指令失敗", err)
	}
}

func top(rows []model.Ranking, n int) []model.Ranking {
	if n > 0 && n < len(rows) {
		return rows[:n]
	}
	return rows
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Error().Err(err).Msg("send notification")
	}
}
