package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"multiStratBot/internal/domain"
)

// Config holds all application configuration. Process-level settings come
// from environment variables (optionally a .env file); the traded portfolio
// comes from a YAML file because it is structured and versioned alongside the
// deployment.
type Config struct {
	// Terminal selection
	Terminal       string // currently "binance"
	BinanceAPIKey  string
	BinanceSecret  string
	BinanceTestnet bool

	// Cycle scheduling
	BarMinutes            int
	PostCloseDelaySeconds int

	// Broker connection resilience
	MaxConnectRetries int
	ConnectRetryDelay time.Duration

	// Export database
	DBPath string

	// Logging
	LogLevel      string
	LogFilePath   string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool

	// Portfolio
	Portfolio Portfolio
}

// Portfolio is the YAML-defined trading universe: which symbols to trade,
// which strategies run on them, and the drawdown limits that gate them.
type Portfolio struct {
	Symbols    []SymbolEntry   `yaml:"symbols"`
	Strategies []StrategyEntry `yaml:"strategies"`
	Risk       RiskEntry       `yaml:"risk"`
}

// SymbolEntry is one traded symbol in the portfolio file.
type SymbolEntry struct {
	Name          string  `yaml:"name"`
	BaseTimeframe string  `yaml:"base_timeframe"`
	LotSize       float64 `yaml:"lot_size"`
}

// StrategyEntry is one configured strategy in the portfolio file.
type StrategyEntry struct {
	Name      string             `yaml:"name"`
	Kind      string             `yaml:"kind"`
	Symbol    string             `yaml:"symbol"`
	Timeframe string             `yaml:"timeframe"`
	Params    map[string]float64 `yaml:"params"`
}

// RiskEntry holds the drawdown limits in the portfolio file.
type RiskEntry struct {
	InitialBalance       float64            `yaml:"initial_balance"`
	GlobalMaxDrawdownPct *float64           `yaml:"global_max_drawdown_pct"`
	PerAssetDrawdownPct  map[string]float64 `yaml:"per_asset_max_drawdown_pct"`
	PerStratDrawdownPct  map[string]float64 `yaml:"per_strategy_max_drawdown_pct"`
}

// LoadConfig loads configuration from environment variables (.env file) and
// the portfolio YAML file.
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string

	cfg.Terminal = getEnv("TERMINAL", "binance")
	cfg.BinanceAPIKey = getEnv("BINANCE_API_KEY", "")
	cfg.BinanceSecret = getEnv("BINANCE_API_SECRET", "")
	cfg.BinanceTestnet = getEnvAsBool("IS_TESTNET", true) // default to testnet for safety
	if cfg.Terminal == "binance" && (cfg.BinanceAPIKey == "" || cfg.BinanceSecret == "") {
		errs = append(errs, "BINANCE_API_KEY and BINANCE_API_SECRET must be set for the binance terminal")
	}

	cfg.BarMinutes = getEnvAsInt("BAR_MINUTES", 1)
	if cfg.BarMinutes < 1 {
		errs = append(errs, "BAR_MINUTES must be at least 1")
	}
	cfg.PostCloseDelaySeconds = getEnvAsInt("POST_CLOSE_DELAY_SECONDS", 5)
	if cfg.PostCloseDelaySeconds < 1 || cfg.PostCloseDelaySeconds >= cfg.BarMinutes*60 {
		errs = append(errs, fmt.Sprintf("POST_CLOSE_DELAY_SECONDS must be in [1, %d)", cfg.BarMinutes*60))
	}

	cfg.MaxConnectRetries = getEnvAsInt("MAX_CONNECT_RETRIES", 3)
	if cfg.MaxConnectRetries < 1 {
		errs = append(errs, "MAX_CONNECT_RETRIES must be at least 1")
	}
	retryDelaySeconds := getEnvAsInt("CONNECT_RETRY_DELAY_SECONDS", 1)
	if retryDelaySeconds < 1 {
		errs = append(errs, "CONNECT_RETRY_DELAY_SECONDS must be at least 1")
	}
	cfg.ConnectRetryDelay = time.Duration(retryDelaySeconds) * time.Second

	cfg.DBPath = getEnv("DB_PATH", "./data/multistratbot.db")

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFilePath = getEnv("LOG_FILE_PATH", "./logs/multistratbot.log")
	cfg.LogMaxSizeMB = getEnvAsInt("LOG_MAX_SIZE_MB", 50)
	cfg.LogMaxBackups = getEnvAsInt("LOG_MAX_BACKUPS", 5)
	cfg.LogMaxAgeDays = getEnvAsInt("LOG_MAX_AGE_DAYS", 30)
	cfg.LogCompress = getEnvAsBool("LOG_COMPRESS", true)

	portfolioPath := getEnv("PORTFOLIO_PATH", "./config/portfolio.yaml")
	portfolio, perrs := loadPortfolio(portfolioPath)
	cfg.Portfolio = portfolio
	errs = append(errs, perrs...)

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// loadPortfolio reads and validates the portfolio file, collecting every
// problem instead of stopping at the first one.
func loadPortfolio(path string) (Portfolio, []string) {
	var p Portfolio
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, []string{fmt.Sprintf("cannot read portfolio file %q: %v", path, err)}
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, []string{fmt.Sprintf("cannot parse portfolio file %q: %v", path, err)}
	}

	var errs []string
	if len(p.Symbols) == 0 {
		errs = append(errs, "portfolio must define at least one symbol")
	}
	symbolNames := make(map[string]bool, len(p.Symbols))
	for i, s := range p.Symbols {
		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("symbols[%d]: name must be set", i))
			continue
		}
		if symbolNames[s.Name] {
			errs = append(errs, fmt.Sprintf("symbols[%d]: duplicate symbol %q", i, s.Name))
		}
		symbolNames[s.Name] = true
		if !domain.Timeframe(s.BaseTimeframe).IsValid() {
			errs = append(errs, fmt.Sprintf("symbols[%d]: invalid base timeframe %q", i, s.BaseTimeframe))
		}
		if s.LotSize <= 0 {
			errs = append(errs, fmt.Sprintf("symbols[%d]: lot size must be positive", i))
		}
	}

	strategyNames := make(map[string]bool, len(p.Strategies))
	for i, s := range p.Strategies {
		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("strategies[%d]: name must be set", i))
			continue
		}
		if strategyNames[s.Name] {
			errs = append(errs, fmt.Sprintf("strategies[%d]: duplicate strategy %q", i, s.Name))
		}
		strategyNames[s.Name] = true
		if s.Kind == "" {
			errs = append(errs, fmt.Sprintf("strategies[%d]: kind must be set", i))
		}
		if !symbolNames[s.Symbol] {
			errs = append(errs, fmt.Sprintf("strategies[%d]: unknown symbol %q", i, s.Symbol))
		}
		if !domain.Timeframe(s.Timeframe).IsValid() {
			errs = append(errs, fmt.Sprintf("strategies[%d]: invalid timeframe %q", i, s.Timeframe))
		}
	}

	if p.Risk.InitialBalance < 0 {
		errs = append(errs, "risk: initial balance cannot be negative")
	}
	if p.Risk.GlobalMaxDrawdownPct != nil && (*p.Risk.GlobalMaxDrawdownPct <= 0 || *p.Risk.GlobalMaxDrawdownPct > 100) {
		errs = append(errs, "risk: global max drawdown must be in (0, 100]")
	}
	for sym := range p.Risk.PerAssetDrawdownPct {
		if !symbolNames[sym] {
			errs = append(errs, fmt.Sprintf("risk: per-asset limit for unknown symbol %q", sym))
		}
	}
	for name := range p.Risk.PerStratDrawdownPct {
		if !strategyNames[name] {
			errs = append(errs, fmt.Sprintf("risk: per-strategy limit for unknown strategy %q", name))
		}
	}

	return p, errs
}

// SymbolConfigs converts the portfolio symbols to their domain form.
func (p Portfolio) SymbolConfigs() []domain.SymbolConfig {
	out := make([]domain.SymbolConfig, 0, len(p.Symbols))
	for _, s := range p.Symbols {
		out = append(out, domain.SymbolConfig{
			Name:          s.Name,
			BaseTimeframe: domain.Timeframe(s.BaseTimeframe),
			LotSize:       s.LotSize,
		})
	}
	return out
}

// StrategyConfigs converts the portfolio strategies to their domain form.
func (p Portfolio) StrategyConfigs() []domain.StrategyConfig {
	out := make([]domain.StrategyConfig, 0, len(p.Strategies))
	for _, s := range p.Strategies {
		out = append(out, domain.StrategyConfig{
			Name:      s.Name,
			Kind:      s.Kind,
			Symbol:    s.Symbol,
			Timeframe: domain.Timeframe(s.Timeframe),
			Params:    s.Params,
		})
	}
	return out
}

// RiskLimits converts the portfolio risk section to its domain form.
func (p Portfolio) RiskLimits() domain.RiskLimits {
	return domain.RiskLimits{
		GlobalMaxDrawdownPct:      p.Risk.GlobalMaxDrawdownPct,
		PerAssetMaxDrawdownPct:    p.Risk.PerAssetDrawdownPct,
		PerStrategyMaxDrawdownPct: p.Risk.PerStratDrawdownPct,
		InitialBalance:            p.Risk.InitialBalance,
	}
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
