package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/tradebot/config"
	"github.com/alejandrodnm/tradebot/internal/adapters/exec"
	"github.com/alejandrodnm/tradebot/internal/adapters/marketdata"
	"github.com/alejandrodnm/tradebot/internal/adapters/notify"
	"github.com/alejandrodnm/tradebot/internal/adapters/state"
	"github.com/alejandrodnm/tradebot/internal/application/engine"
	"github.com/alejandrodnm/tradebot/internal/application/engine/live"
	"github.com/alejandrodnm/tradebot/internal/domain"
	"github.com/alejandrodnm/tradebot/internal/ports"
	"github.com/alejandrodnm/tradebot/internal/risk"
	"github.com/alejandrodnm/tradebot/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	mode := flag.String("mode", "", "run mode: dry-run|backtest|live (overrides config)")
	once := flag.Bool("once", false, "run one cycle and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full tables instead of compact 1-line summaries")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *mode != "" {
		cfg.Mode = *mode
		if err := cfg.Validate(); err != nil {
			slog.Error("invalid mode override", "err", err)
			os.Exit(1)
		}
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *table {
		cfg.Notifications.Console.Table = true
	}
	setupLogger(cfg.Log)

	effMode, demoted := cfg.EffectiveMode()
	if demoted {
		slog.Warn("live mode requested without confirm_live — degrading to dry-run, no real orders will be sent")
	}

	slog.Info("tradebot starting",
		"config", *configPath,
		"mode", effMode,
		"interval", cfg.CycleInterval(),
		"symbols", len(cfg.EnabledSymbols()),
		"once", *once,
	)

	strategies, err := buildStrategies(cfg)
	if err != nil {
		slog.Error("failed to build strategies", "err", err)
		os.Exit(1)
	}
	if len(strategies) == 0 {
		slog.Error("no enabled strategies configured")
		os.Exit(1)
	}

	notifier := buildNotifier(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if effMode == domain.ModeBacktest {
		if err := runBacktest(ctx, cfg, strategies, notifier); err != nil {
			slog.Error("backtest failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := runLoop(ctx, cfg, effMode, strategies, notifier, *once); err != nil {
		slog.Error("engine exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("tradebot stopped cleanly")
}

// runLoop wires and runs the dry-run/live loop.
func runLoop(
	ctx context.Context,
	cfg *config.Config,
	effMode domain.Mode,
	strategies []strategy.Strategy,
	notifier ports.Notifier,
	once bool,
) error {
	store := state.NewFileStore(cfg.State.Path)
	engineState, err := loadOrFreshState(ctx, store, cfg, effMode)
	if err != nil {
		return err
	}

	journal, err := state.NewSQLiteJournal(cfg.State.JournalDSN)
	if err != nil {
		return err
	}
	defer journal.Close()

	pipeline := buildPipeline(cfg, strategies)
	pipeline.Data = marketdata.NewMock(cfg.CycleInterval())
	pipeline.Limiter = risk.NewRateLimiter(cfg.Execution.MaxOrdersPerMinute, time.Minute)
	pipeline.Journal = journal

	eng := live.New(
		live.Config{
			Mode:        effMode,
			Interval:    cfg.CycleInterval(),
			Once:        once,
			SaveRetries: cfg.State.SaveRetries,
		},
		pipeline,
		symbolNames(cfg),
		store,
		notifier,
		engineState,
	)
	return eng.Run(ctx)
}

// loadOrFreshState restores the persisted snapshot or starts fresh. A
// corrupt snapshot (primary and backup both unreadable) aborts startup.
func loadOrFreshState(ctx context.Context, store *state.FileStore, cfg *config.Config, effMode domain.Mode) (*domain.EngineState, error) {
	st, ok, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.Info("no previous state, starting fresh", "initial_capital", cfg.Execution.InitialCapital)
		return domain.NewEngineState(domain.NewLedger(cfg.Execution.InitialCapital), effMode), nil
	}
	slog.Info("state restored",
		"last_processed", st.LastProcessed,
		"cash", st.Ledger.Cash,
		"positions", len(st.Ledger.Positions),
	)
	st.Mode = effMode
	return st, nil
}

// buildPipeline assembles the pieces shared by every mode.
func buildPipeline(cfg *config.Config, strategies []strategy.Strategy) *engine.Pipeline {
	feeRate := cfg.Execution.TakerFee
	if domain.OrderType(cfg.Execution.OrderType) == domain.OrderTypeLimit {
		feeRate = cfg.Execution.MakerFee
	}

	perSymbol := make(map[string]risk.SymbolLimits)
	for _, s := range cfg.EnabledSymbols() {
		perSymbol[s.Symbol] = risk.SymbolLimits{
			MaxPositionSize: s.MaxPositionSize,
			MinTradeSize:    s.MinTradeSize,
		}
	}

	return &engine.Pipeline{
		Strategies: strategies,
		Risk: risk.NewManager(risk.Limits{
			MinConfidence:      cfg.Execution.MinConfidenceThreshold,
			MaxCapitalFraction: cfg.Execution.MaxCapitalFraction,
			LotSize:            cfg.Execution.LotSize,
			SlippageFraction:   cfg.SlippageFraction(),
			FeeFraction:        feeRate,
			OrderType:          domain.OrderType(cfg.Execution.OrderType),
			PerSymbol:          perSymbol,
		}),
		Executor: exec.NewSimulator(exec.SimulatorConfig{
			SlippageFraction:  cfg.SlippageFraction(),
			MakerFee:          cfg.Execution.MakerFee,
			TakerFee:          cfg.Execution.TakerFee,
			OrderTimeout:      cfg.OrderTimeout(),
			AllowPartialFills: cfg.Execution.AllowPartialFills,
		}),
		Workers:           cfg.Engine.EvalWorkers,
		Lookback:          cfg.Engine.Lookback,
		Timeframe:         cfg.Engine.Timeframe,
		MinConfidence:     cfg.Execution.MinConfidenceThreshold,
		FlatEpsilon:       cfg.Execution.MergeFlatEpsilon,
		LiquidityFraction: cfg.Execution.LiquidityFraction,
		CashTolerance:     cfg.Execution.CashTolerance,
	}
}

// buildStrategies instantiates every enabled strategy from the registry.
func buildStrategies(cfg *config.Config) ([]strategy.Strategy, error) {
	registry := strategy.Builtin()
	var out []strategy.Strategy
	for _, sc := range cfg.Strategies {
		if !sc.Enabled {
			continue
		}
		st, err := registry.Create(sc.Name, sc.Params)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// buildNotifier wires console plus, when credentials exist, Telegram.
// Missing credentials disable the channel without failing startup.
func buildNotifier(cfg *config.Config) ports.Notifier {
	channels := notify.Multi{notify.NewConsole(cfg.Notifications.Console.Table)}

	tg := cfg.Notifications.Telegram
	if tg.BotToken != "" && tg.ChatID != "" {
		channels = append(channels, notify.NewTelegram(tg.BotToken, tg.ChatID, tg.RateLimitPerMinute))
		slog.Info("telegram notifications enabled")
	} else {
		slog.Info("telegram notifications disabled (no credentials)")
	}
	return channels
}

func symbolNames(cfg *config.Config) []string {
	var out []string
	for _, s := range cfg.EnabledSymbols() {
		out = append(out, s.Symbol)
	}
	return out
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
