package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/tradebot/internal/domain"
)

// Config es la configuración completa del bot.
type Config struct {
	Mode          string             `yaml:"mode"`         // dry-run | backtest | live
	ConfirmLive   bool               `yaml:"confirm_live"` // requerido para que live envíe órdenes reales
	Symbols       []SymbolConfig     `yaml:"symbols"`
	Strategies    []StrategyConfig   `yaml:"strategies"`
	Engine        EngineConfig       `yaml:"engine"`
	Execution     ExecutionConfig    `yaml:"execution"`
	Backtest      BacktestConfig     `yaml:"backtest"`
	Notifications NotificationConfig `yaml:"notifications"`
	State         StateConfig        `yaml:"state"`
	Log           LogConfig          `yaml:"log"`
}

// SymbolConfig es un símbolo a operar y sus límites de riesgo.
type SymbolConfig struct {
	Symbol          string  `yaml:"symbol"`
	Enabled         bool    `yaml:"enabled"`
	MaxPositionSize float64 `yaml:"max_position_size"` // cantidad máxima absoluta
	MinTradeSize    float64 `yaml:"min_trade_size"`
}

// StrategyConfig es una estrategia habilitada con sus parámetros.
type StrategyConfig struct {
	Name    string             `yaml:"name"`
	Enabled bool               `yaml:"enabled"`
	Params  map[string]float64 `yaml:"params"`
}

// EngineConfig controla el loop del engine.
type EngineConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds"`
	Timeframe       string `yaml:"timeframe"`
	Lookback        int    `yaml:"lookback"`     // barras de histórico por evaluación
	EvalWorkers     int    `yaml:"eval_workers"` // goroutines para evaluación paralela (0 = NumCPU*2)
}

// ExecutionConfig son los parámetros de ejecución y riesgo.
type ExecutionConfig struct {
	InitialCapital         float64 `yaml:"initial_capital"`
	OrderType              string  `yaml:"order_type"` // market | limit
	OrderTimeoutSeconds    int     `yaml:"order_timeout_seconds"`
	SlippagePercent        float64 `yaml:"slippage_percent"` // 0.1 = 0.1%
	MakerFee               float64 `yaml:"maker_fee"`        // fracción sobre el notional
	TakerFee               float64 `yaml:"taker_fee"`
	MaxOrdersPerMinute     int     `yaml:"max_orders_per_minute"`
	MinConfidenceThreshold float64 `yaml:"min_confidence_threshold"`
	AllowPartialFills      bool    `yaml:"allow_partial_fills"`
	MaxCapitalFraction     float64 `yaml:"max_capital_fraction"` // fracción de cash por trade
	MergeFlatEpsilon       float64 `yaml:"merge_flat_epsilon"`   // |net confidence| < eps → flat
	LiquidityFraction      float64 `yaml:"liquidity_fraction"`   // fracción del volumen de barra ejecutable
	LotSize                float64 `yaml:"lot_size"`             // precisión de cantidades
	CashTolerance          float64 `yaml:"cash_tolerance"`       // tolerancia de cash negativo (USD)
}

// BacktestConfig controla el modo backtest.
type BacktestConfig struct {
	Bars             int  `yaml:"bars"`               // barras históricas a reproducir
	RateLimitEnabled bool `yaml:"rate_limit_enabled"` // rate limiter con tiempo simulado
}

// NotificationConfig agrupa los canales de notificación.
type NotificationConfig struct {
	Console  ConsoleConfig  `yaml:"console"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// ConsoleConfig controla el notificador de consola.
type ConsoleConfig struct {
	Table bool `yaml:"table"` // tabla completa en vez de resumen de 1 línea
}

// TelegramConfig son las credenciales del canal Telegram. Si falta el token
// o el chat ID, el canal se deshabilita sin fallar el arranque.
type TelegramConfig struct {
	BotToken           string `yaml:"bot_token"`
	ChatID             string `yaml:"chat_id"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

// StateConfig controla la persistencia del EngineState y el journal.
type StateConfig struct {
	Path        string `yaml:"path"`         // snapshot JSON (el backup va a path+".bak")
	JournalDSN  string `yaml:"journal_dsn"`  // SQLite para fills/ciclos/equity, o ":memory:"
	SaveRetries int    `yaml:"save_retries"` // reintentos de Save antes de abortar el run
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate falla rápido ante límites inválidos, antes de ejecutar ningún ciclo.
func (c *Config) Validate() error {
	switch domain.Mode(c.Mode) {
	case domain.ModeDryRun, domain.ModeBacktest, domain.ModeLive:
	default:
		return fmt.Errorf("config.Validate: mode must be one of dry-run, backtest, live; got %q", c.Mode)
	}
	if c.Execution.InitialCapital <= 0 {
		return fmt.Errorf("config.Validate: execution.initial_capital must be > 0")
	}
	if ot := domain.OrderType(c.Execution.OrderType); ot != domain.OrderTypeMarket && ot != domain.OrderTypeLimit {
		return fmt.Errorf("config.Validate: execution.order_type must be market or limit; got %q", c.Execution.OrderType)
	}
	if c.Execution.SlippagePercent < 0 || c.Execution.SlippagePercent > 5 {
		return fmt.Errorf("config.Validate: execution.slippage_percent must be in [0, 5]")
	}
	if c.Execution.MaxOrdersPerMinute <= 0 {
		return fmt.Errorf("config.Validate: execution.max_orders_per_minute must be > 0")
	}
	if c.Execution.MinConfidenceThreshold < 0 || c.Execution.MinConfidenceThreshold > 1 {
		return fmt.Errorf("config.Validate: execution.min_confidence_threshold must be in [0, 1]")
	}
	if c.Execution.MaxCapitalFraction <= 0 || c.Execution.MaxCapitalFraction > 1 {
		return fmt.Errorf("config.Validate: execution.max_capital_fraction must be in (0, 1]")
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config.Validate: at least one symbol is required")
	}
	for _, s := range c.Symbols {
		if s.Symbol == "" {
			return fmt.Errorf("config.Validate: symbol entries need a symbol name")
		}
		if s.MaxPositionSize <= 0 {
			return fmt.Errorf("config.Validate: symbol %s: max_position_size must be > 0", s.Symbol)
		}
	}
	for _, s := range c.Strategies {
		if s.Name == "" {
			return fmt.Errorf("config.Validate: strategy entries need a name")
		}
	}
	return nil
}

// EffectiveMode devuelve el modo real de ejecución. live sin confirm_live se
// degrada a dry-run (demoted=true); el caller debe loguearlo como warning,
// nunca esconderlo.
func (c *Config) EffectiveMode() (mode domain.Mode, demoted bool) {
	m := domain.Mode(c.Mode)
	if m == domain.ModeLive && !c.ConfirmLive {
		return domain.ModeDryRun, true
	}
	return m, false
}

// CycleInterval devuelve el intervalo entre ciclos como time.Duration.
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Engine.IntervalSeconds) * time.Second
}

// OrderTimeout devuelve el timeout de órdenes como time.Duration.
func (c *Config) OrderTimeout() time.Duration {
	return time.Duration(c.Execution.OrderTimeoutSeconds) * time.Second
}

// SlippageFraction devuelve el slippage como fracción (0.1% → 0.001).
func (c *Config) SlippageFraction() float64 {
	return c.Execution.SlippagePercent / 100
}

// EnabledSymbols devuelve solo los símbolos habilitados, en el orden del YAML.
func (c *Config) EnabledSymbols() []SymbolConfig {
	out := make([]SymbolConfig, 0, len(c.Symbols))
	for _, s := range c.Symbols {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notifications.Telegram.ChatID = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = string(domain.ModeDryRun)
	}
	if cfg.Engine.IntervalSeconds <= 0 {
		cfg.Engine.IntervalSeconds = 60
	}
	if cfg.Engine.Timeframe == "" {
		cfg.Engine.Timeframe = "1h"
	}
	if cfg.Engine.Lookback <= 0 {
		cfg.Engine.Lookback = 200
	}
	if cfg.Execution.InitialCapital == 0 {
		cfg.Execution.InitialCapital = 10000
	}
	if cfg.Execution.OrderType == "" {
		cfg.Execution.OrderType = string(domain.OrderTypeMarket)
	}
	if cfg.Execution.OrderTimeoutSeconds <= 0 {
		cfg.Execution.OrderTimeoutSeconds = 60
	}
	if cfg.Execution.MakerFee == 0 {
		cfg.Execution.MakerFee = 0.001
	}
	if cfg.Execution.TakerFee == 0 {
		cfg.Execution.TakerFee = 0.001
	}
	if cfg.Execution.MaxOrdersPerMinute == 0 {
		cfg.Execution.MaxOrdersPerMinute = 10
	}
	if cfg.Execution.MinConfidenceThreshold == 0 {
		cfg.Execution.MinConfidenceThreshold = 0.6
	}
	if cfg.Execution.MaxCapitalFraction == 0 {
		cfg.Execution.MaxCapitalFraction = 0.1
	}
	if cfg.Execution.MergeFlatEpsilon == 0 {
		cfg.Execution.MergeFlatEpsilon = 0.05
	}
	if cfg.Execution.LiquidityFraction == 0 {
		cfg.Execution.LiquidityFraction = 0.1
	}
	if cfg.Execution.LotSize == 0 {
		cfg.Execution.LotSize = 0.0001
	}
	if cfg.Execution.CashTolerance == 0 {
		cfg.Execution.CashTolerance = 0.01
	}
	if cfg.Backtest.Bars <= 0 {
		cfg.Backtest.Bars = 1000
	}
	if cfg.Notifications.Telegram.RateLimitPerMinute <= 0 {
		cfg.Notifications.Telegram.RateLimitPerMinute = 10
	}
	if cfg.State.Path == "" {
		cfg.State.Path = "state/engine.json"
	}
	if cfg.State.JournalDSN == "" {
		cfg.State.JournalDSN = "tradebot.db"
	}
	if cfg.State.SaveRetries <= 0 {
		cfg.State.SaveRetries = 3
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
