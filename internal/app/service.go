package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"signalTrader/internal/ports"
	"signalTrader/internal/registry"
)

// HTTPServer is the subset of *http.Server used by the service.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// Worker is a background loop that runs until its context is cancelled.
type Worker interface {
	Run(ctx context.Context)
}

// balanceNotifier is implemented by notifiers that can render a balance report.
type balanceNotifier interface {
	NotifyBalance(ctx context.Context, balance decimal.Decimal, openTrades int, realized *decimal.Decimal)
}

// ServiceConfig holds the settings used by TradingService.
type ServiceConfig struct {
	QuoteAsset      string
	ShutdownTimeout time.Duration
}

// TradingService wires the intake, the signal worker and the trailing engine together
// and owns their lifecycle.
type TradingService struct {
	cfg        ServiceConfig
	logger     ports.Logger
	exchange   ports.ExchangeClient
	notifier   ports.Notifier
	journal    ports.TradeJournal
	registry   *registry.Registry
	dispatcher Worker
	trailing   Worker // nil when trailing stops are disabled
	server     HTTPServer
}

// NewTradingService creates a new application service instance. trailing may be nil.
func NewTradingService(
	cfg ServiceConfig,
	logger ports.Logger,
	exchange ports.ExchangeClient,
	notifier ports.Notifier,
	journal ports.TradeJournal,
	reg *registry.Registry,
	dispatcher Worker,
	trailing Worker,
	server HTTPServer,
) (*TradingService, error) {
	if logger == nil || exchange == nil || notifier == nil || journal == nil || reg == nil || dispatcher == nil || server == nil {
		return nil, fmt.Errorf("%w: missing required dependencies for TradingService", ports.ErrConfigurationError)
	}
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &TradingService{
		cfg:        cfg,
		logger:     logger,
		exchange:   exchange,
		notifier:   notifier,
		journal:    journal,
		registry:   reg,
		dispatcher: dispatcher,
		trailing:   trailing,
		server:     server,
	}, nil
}

// Start connects to the exchange, starts the workers and serves HTTP until ctx is
// cancelled or SIGINT/SIGTERM is received.
func (s *TradingService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Trading Service...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.exchange.SetServerTime(ctx); err != nil {
		s.logger.Error(ctx, err, "Failed to synchronize server time")
		return fmt.Errorf("failed to set server time: %w", err)
	}
	if err := s.exchange.Ping(ctx); err != nil {
		s.logger.Error(ctx, err, "Exchange is not reachable")
		return fmt.Errorf("failed to ping exchange: %w", err)
	}
	s.logger.Info(ctx, "Exchange connection verified")

	balanceText := "unavailable"
	if bal, err := s.exchange.GetAccountBalance(ctx, s.cfg.QuoteAsset); err != nil {
		s.logger.Warn(ctx, "Start: Could not read initial balance", map[string]interface{}{"error": err.Error()})
	} else {
		balanceText = bal.StringFixed(2)
		s.logger.Info(ctx, "Initial balance", map[string]interface{}{"asset": s.cfg.QuoteAsset, "balance": balanceText})
	}
	s.notifier.NotifyInfo(ctx, fmt.Sprintf("🤖 Trading Bot Server Started\n🟢 Listening for webhook signals.\n💰 Initial %s Balance: %s",
		s.cfg.QuoteAsset, balanceText))

	workCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.dispatcher.Run(workCtx)
	}()
	if s.trailing != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.trailing.Run(workCtx)
		}()
	} else {
		s.logger.Info(ctx, "Trailing stop engine disabled")
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	s.logger.Info(ctx, "Trading Service started")

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info(ctx, "Main context cancelled, initiating shutdown...")
	case err := <-serverErr:
		s.logger.Error(ctx, err, "HTTP server stopped unexpectedly")
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancelShutdown()

	// In-flight webhook requests still wait on the dispatcher, so it stops after the server.
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(shutdownCtx, "HTTP server shutdown incomplete", map[string]interface{}{"error": err.Error()})
	}
	stopWorkers()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		s.logger.Warn(shutdownCtx, "Timeout waiting for workers to stop")
	}

	s.reportOnShutdown(shutdownCtx)
	s.logger.Info(shutdownCtx, "Trading Service stopped.")
	return runErr
}

func (s *TradingService) reportOnShutdown(ctx context.Context) {
	open := s.registry.Count()
	if open > 0 {
		s.logger.Warn(ctx, "Shutting down with managed trades; their stops remain on the exchange", map[string]interface{}{
			"symbols": s.registry.SnapshotSymbols(),
		})
	}

	if bn, ok := s.notifier.(balanceNotifier); ok {
		bal, err := s.exchange.GetAccountBalance(ctx, s.cfg.QuoteAsset)
		if err == nil {
			var realized *decimal.Decimal
			if total, err := s.journal.GetTotalProfit(ctx); err == nil {
				realized = &total
			}
			bn.NotifyBalance(ctx, bal, open, realized)
		}
	}
	s.notifier.NotifyInfo(ctx, "🛑 Trading Bot Server Stopped")
}
