package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"signalTrader/internal/adapters/logger"
	"signalTrader/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Trading Parameters
	QuoteAsset           string
	Leverage             int
	MarginType           domain.MarginType
	TradableBalanceRatio decimal.Decimal // share of the balance used for sizing, in (0, 1]
	MaxOpenTrades        int
	StopLoss             decimal.Decimal // initial stop distance, e.g. 0.02 for 2%
	EntryOrderType       domain.OrderType
	OrderFillWait        time.Duration
	OrderFillPollCount   int
	TradingPairs         []string

	// Trailing Stop
	TrailingStopEnabled       bool
	TrailingActivationPercent decimal.Decimal
	TrailingDistancePercent   decimal.Decimal
	TrailingCheckInterval     time.Duration

	// Signal Intake
	HTTPAddr                string
	ExpectedWebhookInterval string
	SignalQueueSize         int

	// Exchange connection
	ExchangeTimeout           time.Duration
	ExchangeRequestsPerSecond float64

	// Telegram
	TelegramBotToken string
	TelegramChatID   int64

	// Database
	DBPath string

	// Logging
	LogLevel  logger.LogLevel
	LogFormat logger.Format
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety
	if cfg.APIKey == "" {
		errs = append(errs, "BINANCE_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "BINANCE_API_SECRET must be set")
	}

	// Trading Parameters
	cfg.QuoteAsset = strings.ToUpper(getEnv("QUOTE_ASSET", "USDT"))

	cfg.Leverage, err = getEnvAsIntRequired("LEVERAGE", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LEVERAGE: %v", err))
	} else if cfg.Leverage <= 0 {
		errs = append(errs, "LEVERAGE must be positive")
	}

	switch mt := domain.MarginType(strings.ToUpper(getEnv("MARGIN_TYPE", string(domain.MarginIsolated)))); mt {
	case domain.MarginIsolated, domain.MarginCrossed:
		cfg.MarginType = mt
	default:
		errs = append(errs, "MARGIN_TYPE must be ISOLATED or CROSSED")
	}

	cfg.TradableBalanceRatio, err = getEnvAsDecimalRequired("TRADABLE_BALANCE_RATIO", "0.8")
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TRADABLE_BALANCE_RATIO: %v", err))
	} else if !cfg.TradableBalanceRatio.IsPositive() || cfg.TradableBalanceRatio.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, "TRADABLE_BALANCE_RATIO must be in (0, 1]")
	}

	cfg.MaxOpenTrades, err = getEnvAsIntRequired("MAX_OPEN_TRADES", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_OPEN_TRADES: %v", err))
	} else if cfg.MaxOpenTrades <= 0 {
		errs = append(errs, "MAX_OPEN_TRADES must be positive")
	}

	cfg.StopLoss, err = getEnvAsDecimalRequired("STOP_LOSS", "0.02")
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_LOSS: %v", err))
	} else if !inOpenUnitInterval(cfg.StopLoss) {
		errs = append(errs, "STOP_LOSS must be between 0.0 and 1.0 (exclusive)")
	}

	switch ot := domain.OrderType(strings.ToUpper(getEnv("ENTRY_ORDER_TYPE", string(domain.OrderTypeMarket)))); ot {
	case domain.OrderTypeMarket, domain.OrderTypeLimit:
		cfg.EntryOrderType = ot
	default:
		errs = append(errs, "ENTRY_ORDER_TYPE must be MARKET or LIMIT")
	}

	fillWait, err := getEnvAsFloatRequired("ORDER_FILL_WAIT_SECONDS", 2)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ORDER_FILL_WAIT_SECONDS: %v", err))
	} else if fillWait < 0 {
		errs = append(errs, "ORDER_FILL_WAIT_SECONDS cannot be negative")
	}
	cfg.OrderFillWait = time.Duration(fillWait * float64(time.Second))

	cfg.OrderFillPollCount, err = getEnvAsIntRequired("ORDER_FILL_POLL_ATTEMPTS", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ORDER_FILL_POLL_ATTEMPTS: %v", err))
	} else if cfg.OrderFillPollCount < 0 {
		errs = append(errs, "ORDER_FILL_POLL_ATTEMPTS cannot be negative")
	}

	cfg.TradingPairs = getEnvAsList("TRADING_PAIRS")

	// Trailing Stop
	cfg.TrailingStopEnabled = getEnvAsBool("TRAILING_STOP_ENABLED", true)

	cfg.TrailingActivationPercent, err = getEnvAsDecimalRequired("TRAILING_STOP_ACTIVATION_PERCENTAGE", "0.02")
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TRAILING_STOP_ACTIVATION_PERCENTAGE: %v", err))
	} else if cfg.TrailingActivationPercent.IsNegative() {
		errs = append(errs, "TRAILING_STOP_ACTIVATION_PERCENTAGE cannot be negative")
	}

	cfg.TrailingDistancePercent, err = getEnvAsDecimalRequired("TRAILING_STOP_DISTANCE_PERCENTAGE", "0.01")
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TRAILING_STOP_DISTANCE_PERCENTAGE: %v", err))
	} else if !inOpenUnitInterval(cfg.TrailingDistancePercent) {
		errs = append(errs, "TRAILING_STOP_DISTANCE_PERCENTAGE must be between 0.0 and 1.0 (exclusive)")
	}

	checkSeconds, err := getEnvAsIntRequired("TRAILING_STOP_CHECK_INTERVAL_SECONDS", 60)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TRAILING_STOP_CHECK_INTERVAL_SECONDS: %v", err))
	} else if checkSeconds <= 0 {
		errs = append(errs, "TRAILING_STOP_CHECK_INTERVAL_SECONDS must be positive")
	}
	cfg.TrailingCheckInterval = time.Duration(checkSeconds) * time.Second

	// Signal Intake
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":5000")
	cfg.ExpectedWebhookInterval = getEnv("EXPECTED_WEBHOOK_INTERVAL", "15m")

	cfg.SignalQueueSize, err = getEnvAsIntRequired("SIGNAL_QUEUE_SIZE", 16)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SIGNAL_QUEUE_SIZE: %v", err))
	} else if cfg.SignalQueueSize <= 0 {
		errs = append(errs, "SIGNAL_QUEUE_SIZE must be positive")
	}

	// Exchange connection
	timeoutSeconds := getEnvAsInt("EXCHANGE_TIMEOUT_SECONDS", 10)
	if timeoutSeconds <= 0 {
		errs = append(errs, "EXCHANGE_TIMEOUT_SECONDS must be positive")
	}
	cfg.ExchangeTimeout = time.Duration(timeoutSeconds) * time.Second

	cfg.ExchangeRequestsPerSecond = getEnvAsFloat("EXCHANGE_REQUESTS_PER_SECOND", 10)
	if cfg.ExchangeRequestsPerSecond <= 0 {
		errs = append(errs, "EXCHANGE_REQUESTS_PER_SECOND must be positive")
	}

	// Telegram (optional)
	cfg.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	if raw := getEnv("TELEGRAM_CHAT_ID", ""); raw != "" {
		cfg.TelegramChatID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid TELEGRAM_CHAT_ID: %v", err))
		}
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/signal_trader.db")

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	switch f := logger.Format(strings.ToLower(getEnv("LOG_FORMAT", string(logger.FormatJSON)))); f {
	case logger.FormatJSON, logger.FormatConsole:
		cfg.LogFormat = f
	default:
		errs = append(errs, "LOG_FORMAT must be json or console")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

func inOpenUnitInterval(d decimal.Decimal) bool {
	return d.IsPositive() && d.LessThan(decimal.NewFromInt(1))
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsDecimalRequired(key, defaultValue string) (decimal.Decimal, error) {
	valueStr := getEnv(key, defaultValue)
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value into upper-case items.
func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.ToUpper(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}
