package main

import (
	"context"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"signalTrader/config"
	"signalTrader/internal/adapters/binanceclient"
	"signalTrader/internal/adapters/logger"
	"signalTrader/internal/adapters/sqlite"
	"signalTrader/internal/adapters/telegram"
	"signalTrader/internal/adapters/webhook"
	"signalTrader/internal/app"
	"signalTrader/internal/metrics"
	"signalTrader/internal/registry"
	"signalTrader/internal/risk"
	"signalTrader/internal/trailing"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}

func run() error {
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat)
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Trade Journal (SQLite)
	journal, err := sqlite.NewJournal(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		return fmt.Errorf("failed to initialize trade journal: %w", err)
	}
	defer func() {
		if err := journal.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing trade journal")
		}
	}()

	// 4. Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:            cfg.APIKey,
		SecretKey:         cfg.SecretKey,
		UseTestnet:        cfg.IsTestnet,
		Logger:            appLogger,
		Timeout:           cfg.ExchangeTimeout,
		RequestsPerSecond: cfg.ExchangeRequestsPerSecond,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Binance client: %w", err)
	}

	// 5. Notifier (Telegram)
	notifier, err := telegram.New(telegram.Config{
		BotToken: cfg.TelegramBotToken,
		ChatID:   cfg.TelegramChatID,
		Logger:   appLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram notifier: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := notifier.Close(closeCtx); err != nil {
			appLogger.Warn(ctx, "Pending Telegram messages dropped on exit", map[string]interface{}{"error": err.Error()})
		}
	}()

	// 6. Metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(promRegistry)

	// 7. Trading core
	tradeRegistry := registry.New()
	sizer, err := risk.NewPositionSizer(risk.SizerConfig{
		TradableBalanceRatio: cfg.TradableBalanceRatio,
		MaxOpenTrades:        cfg.MaxOpenTrades,
		StopLossPercent:      cfg.StopLoss,
	})
	if err != nil {
		return fmt.Errorf("invalid sizing configuration: %w", err)
	}

	processor, err := app.NewSignalProcessor(app.ProcessorConfig{
		QuoteAsset:       cfg.QuoteAsset,
		Leverage:         cfg.Leverage,
		MarginType:       cfg.MarginType,
		EntryOrderType:   cfg.EntryOrderType,
		FillWait:         cfg.OrderFillWait,
		FillPollAttempts: cfg.OrderFillPollCount,
	}, appLogger, binanceClient, notifier, journal, tradeRegistry, sizer, recorder)
	if err != nil {
		return fmt.Errorf("failed to initialize signal processor: %w", err)
	}
	dispatcher := app.NewDispatcher(processor, appLogger, recorder, cfg.SignalQueueSize)

	var trailingWorker app.Worker
	if cfg.TrailingStopEnabled {
		engine, err := trailing.NewEngine(trailing.Config{
			ActivationPercent: cfg.TrailingActivationPercent,
			DistancePercent:   cfg.TrailingDistancePercent,
			CheckInterval:     cfg.TrailingCheckInterval,
		}, appLogger, binanceClient, notifier, journal, tradeRegistry, recorder)
		if err != nil {
			return fmt.Errorf("failed to initialize trailing stop engine: %w", err)
		}
		trailingWorker = engine
	}

	// 8. Signal Intake (HTTP)
	if cfg.LogLevel != logger.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := webhook.NewHandler(webhook.Config{
		Rules:     webhook.NewRules(cfg.ExpectedWebhookInterval, cfg.TradingPairs),
		Submitter: dispatcher,
		Trades:    tradeRegistry,
		Journal:   journal,
		Logger:    appLogger,
		Gatherer:  promRegistry,
	})
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           webhook.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 9. Application Service
	tradingService, err := app.NewTradingService(app.ServiceConfig{
		QuoteAsset:      cfg.QuoteAsset,
		ShutdownTimeout: 15 * time.Second,
	}, appLogger, binanceClient, notifier, journal, tradeRegistry, dispatcher, trailingWorker, server)
	if err != nil {
		return fmt.Errorf("failed to initialize trading service: %w", err)
	}
	appLogger.Info(ctx, "Trading service initialized", map[string]interface{}{
		"addr": cfg.HTTPAddr, "testnet": cfg.IsTestnet, "trailing": cfg.TrailingStopEnabled, "pairs": cfg.TradingPairs,
	})

	if err := tradingService.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "Trading service exited with error")
		return fmt.Errorf("trading service exited with error: %w", err)
	}

	appLogger.Info(ctx, "Application finished gracefully.")
	return nil
}
