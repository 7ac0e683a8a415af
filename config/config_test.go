package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalTrader/internal/adapters/logger"
	"signalTrader/internal/domain"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BINANCE_API_KEY", "key")
	t.Setenv("BINANCE_API_SECRET", "secret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsTestnet)
	assert.Equal(t, "USDT", cfg.QuoteAsset)
	assert.Equal(t, 10, cfg.Leverage)
	assert.Equal(t, domain.MarginIsolated, cfg.MarginType)
	assert.True(t, cfg.TradableBalanceRatio.Equal(decimal.RequireFromString("0.8")))
	assert.Equal(t, 5, cfg.MaxOpenTrades)
	assert.True(t, cfg.StopLoss.Equal(decimal.RequireFromString("0.02")))
	assert.Equal(t, domain.OrderTypeMarket, cfg.EntryOrderType)
	assert.Equal(t, 2*time.Second, cfg.OrderFillWait)
	assert.Equal(t, 3, cfg.OrderFillPollCount)
	assert.Empty(t, cfg.TradingPairs)
	assert.True(t, cfg.TrailingStopEnabled)
	assert.True(t, cfg.TrailingActivationPercent.Equal(decimal.RequireFromString("0.02")))
	assert.True(t, cfg.TrailingDistancePercent.Equal(decimal.RequireFromString("0.01")))
	assert.Equal(t, time.Minute, cfg.TrailingCheckInterval)
	assert.Equal(t, ":5000", cfg.HTTPAddr)
	assert.Equal(t, "15m", cfg.ExpectedWebhookInterval)
	assert.Equal(t, 16, cfg.SignalQueueSize)
	assert.Equal(t, 10*time.Second, cfg.ExchangeTimeout)
	assert.Equal(t, float64(10), cfg.ExchangeRequestsPerSecond)
	assert.Equal(t, int64(0), cfg.TelegramChatID)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	assert.Equal(t, logger.FormatJSON, cfg.LogFormat)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("IS_TESTNET", "false")
	t.Setenv("LEVERAGE", "3")
	t.Setenv("MARGIN_TYPE", "crossed")
	t.Setenv("ENTRY_ORDER_TYPE", "limit")
	t.Setenv("TRADING_PAIRS", " btcusdt, ETHUSDT ,,")
	t.Setenv("TRAILING_STOP_ENABLED", "false")
	t.Setenv("ORDER_FILL_WAIT_SECONDS", "0.5")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.False(t, cfg.IsTestnet)
	assert.Equal(t, 3, cfg.Leverage)
	assert.Equal(t, domain.MarginCrossed, cfg.MarginType)
	assert.Equal(t, domain.OrderTypeLimit, cfg.EntryOrderType)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.TradingPairs)
	assert.False(t, cfg.TrailingStopEnabled)
	assert.Equal(t, 500*time.Millisecond, cfg.OrderFillWait)
	assert.Equal(t, int64(-100123), cfg.TelegramChatID)
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
	assert.Equal(t, logger.FormatConsole, cfg.LogFormat)
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing api key", map[string]string{"BINANCE_API_KEY": ""}, "BINANCE_API_KEY must be set"},
		{"bad leverage", map[string]string{"LEVERAGE": "x"}, "invalid LEVERAGE"},
		{"zero leverage", map[string]string{"LEVERAGE": "0"}, "LEVERAGE must be positive"},
		{"margin type", map[string]string{"MARGIN_TYPE": "PORTFOLIO"}, "MARGIN_TYPE"},
		{"ratio above one", map[string]string{"TRADABLE_BALANCE_RATIO": "1.5"}, "TRADABLE_BALANCE_RATIO"},
		{"stop loss", map[string]string{"STOP_LOSS": "1"}, "STOP_LOSS"},
		{"max open trades", map[string]string{"MAX_OPEN_TRADES": "0"}, "MAX_OPEN_TRADES"},
		{"entry type", map[string]string{"ENTRY_ORDER_TYPE": "STOP"}, "ENTRY_ORDER_TYPE"},
		{"distance", map[string]string{"TRAILING_STOP_DISTANCE_PERCENTAGE": "0"}, "TRAILING_STOP_DISTANCE_PERCENTAGE"},
		{"queue size", map[string]string{"SIGNAL_QUEUE_SIZE": "-1"}, "SIGNAL_QUEUE_SIZE"},
		{"chat id", map[string]string{"TELEGRAM_CHAT_ID": "abc"}, "TELEGRAM_CHAT_ID"},
		{"log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
