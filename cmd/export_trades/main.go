package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"signalTrader/config"
	"signalTrader/internal/adapters/logger"
	"signalTrader/internal/adapters/sqlite"
	"signalTrader/internal/utils"
)

func main() {
	limit := flag.Int("limit", 500, "number of most recent closed trades to export")
	out := flag.String("out", "", "output CSV path (default data/trades_<date>.csv)")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	ctx := context.Background()
	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat)

	// 3. Open Trade Journal
	journal, err := sqlite.NewJournal(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to open trade journal: %v", err)
	}
	defer journal.Close()

	trades, err := journal.FindRecent(ctx, *limit)
	if err != nil {
		appLogger.Error(ctx, err, "Error reading closed trades")
		return
	}
	appLogger.Info(ctx, "Fetched closed trades", map[string]interface{}{"count": len(trades)})

	filename := *out
	if filename == "" {
		filename = fmt.Sprintf("data/trades_%s.csv", time.Now().UTC().Format("20060102"))
	}
	if err := utils.WriteTradesToCSV(trades, filename); err != nil {
		appLogger.Error(ctx, err, "Error writing CSV")
		return
	}
	total, err := journal.GetTotalProfit(ctx)
	if err != nil {
		appLogger.Warn(ctx, "Could not compute realized P&L", map[string]interface{}{"error": err.Error()})
	}
	appLogger.Info(ctx, "Saved to", map[string]interface{}{"filename": filename, "realized_pnl": total.StringFixed(2)})
}
