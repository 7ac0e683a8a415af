package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"signalTrader/internal/domain"
	"signalTrader/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Journal implements ports.TradeJournal using SQLite.
// Decimal values are stored as TEXT so they round-trip exactly.
type Journal struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite journal.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewJournal opens (or creates) the journal database and ensures its schema.
func NewJournal(cfg Config) (*Journal, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite journal")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/signal_trader.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	j := &Journal{db: db, logger: cfg.Logger}
	if err := j.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite trade journal ready", map[string]interface{}{"path": dbPath})

	return j, nil
}

func (j *Journal) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		entry_order_id INTEGER NOT NULL,
		stop_order_id INTEGER NOT NULL,
		quantity TEXT NOT NULL,
		entry_price TEXT NOT NULL,
		stop_price TEXT NOT NULL,
		opened_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		note TEXT DEFAULT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trade_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		entry_order_id INTEGER NOT NULL,
		entry_price TEXT NOT NULL,
		exit_price TEXT NOT NULL,
		quantity TEXT NOT NULL,
		pnl TEXT NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP NOT NULL,
		close_reason TEXT NULL,
		estimated INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol_status ON trades (symbol, status);
	CREATE INDEX IF NOT EXISTS idx_trade_history_exit_time ON trade_history (exit_time);
	`
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		j.logger.Info(context.Background(), "Closing SQLite database connection")
		return j.db.Close()
	}
	return nil
}

// RecordOpen stores a newly opened trade.
func (j *Journal) RecordOpen(ctx context.Context, rec domain.TradeRecord) error {
	const query = `
	INSERT INTO trades (symbol, direction, entry_order_id, stop_order_id, quantity, entry_price,
	                    stop_price, opened_at, status, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := j.db.ExecContext(ctx, query,
		rec.Symbol, string(rec.Direction), rec.EntryOrderID, rec.StopOrderID,
		rec.Quantity.String(), rec.EntryPrice.String(), rec.CurrentStopPrice.String(),
		rec.OpenedAt.UTC(), string(domain.StatusOpen), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert trade for symbol %s: %w", rec.Symbol, err)
	}
	j.logger.Debug(ctx, "Trade recorded", map[string]interface{}{"symbol": rec.Symbol, "entryOrderID": rec.EntryOrderID})
	return nil
}

// RecordClose stores a closed trade in the history and marks the matching open row closed.
func (j *Journal) RecordClose(ctx context.Context, trade domain.ClosedTrade) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s close: %w", trade.Symbol, err)
	}
	defer tx.Rollback()

	const insert = `
	INSERT INTO trade_history (symbol, direction, entry_order_id, entry_price, exit_price, quantity, pnl,
	                           entry_time, exit_time, close_reason, estimated)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, insert,
		trade.Symbol, string(trade.Direction), trade.EntryOrderID,
		trade.EntryPrice.String(), trade.ExitPrice.String(), trade.Quantity.String(), trade.PNL.String(),
		trade.EntryTime.UTC(), trade.ExitTime.UTC(), string(trade.CloseReason), trade.Estimated)
	if err != nil {
		return fmt.Errorf("failed to insert trade history for symbol %s: %w", trade.Symbol, err)
	}

	if err := setStatus(ctx, tx, trade.Symbol, trade.EntryOrderID, domain.StatusClosed, string(trade.CloseReason)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit close for symbol %s: %w", trade.Symbol, err)
	}
	j.logger.Debug(ctx, "Trade close recorded", map[string]interface{}{
		"symbol": trade.Symbol, "pnl": trade.PNL.String(), "reason": trade.CloseReason,
	})
	return nil
}

// RecordOrphan marks a trade as orphaned. A row is created if the trade was never recorded as open.
func (j *Journal) RecordOrphan(ctx context.Context, rec domain.TradeRecord, reason string) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE trades SET status = ?, note = ?, updated_at = ? WHERE symbol = ? AND entry_order_id = ?`,
		string(domain.StatusOrphaned), reason, time.Now().UTC(), rec.Symbol, rec.EntryOrderID)
	if err != nil {
		return fmt.Errorf("failed to mark trade orphaned for symbol %s: %w", rec.Symbol, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	const query = `
	INSERT INTO trades (symbol, direction, entry_order_id, stop_order_id, quantity, entry_price,
	                    stop_price, opened_at, status, note, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	openedAt := rec.OpenedAt
	if openedAt.IsZero() {
		openedAt = time.Now()
	}
	_, err = j.db.ExecContext(ctx, query,
		rec.Symbol, string(rec.Direction), rec.EntryOrderID, rec.StopOrderID,
		rec.Quantity.String(), rec.EntryPrice.String(), rec.CurrentStopPrice.String(),
		openedAt.UTC(), string(domain.StatusOrphaned), reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert orphaned trade for symbol %s: %w", rec.Symbol, err)
	}
	j.logger.Warn(ctx, "Orphaned trade recorded", map[string]interface{}{"symbol": rec.Symbol, "reason": reason})
	return nil
}

// FindRecent retrieves the most recent closed trades, newest first.
func (j *Journal) FindRecent(ctx context.Context, limit int) ([]domain.ClosedTrade, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
	SELECT symbol, direction, entry_order_id, entry_price, exit_price, quantity, pnl,
	       entry_time, exit_time, close_reason, estimated
	FROM trade_history
	ORDER BY exit_time DESC, id DESC LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade history: %w", err)
	}
	defer rows.Close()

	trades := make([]domain.ClosedTrade, 0)
	for rows.Next() {
		t, err := scanClosedTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade history during FindRecent: %w", err)
		}
		trades = append(trades, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade history rows: %w", err)
	}
	return trades, nil
}

// GetTotalProfit sums realized P&L across the trade history.
func (j *Journal) GetTotalProfit(ctx context.Context) (decimal.Decimal, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT pnl FROM trade_history`)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to calculate total profit: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan pnl: %w", err)
		}
		pnl, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid pnl %q in trade history: %w", raw, err)
		}
		total = total.Add(pnl)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating pnl rows: %w", err)
	}
	return total, nil
}

// CountByStatus counts rows in the trades table with the given status.
func (j *Journal) CountByStatus(ctx context.Context, status domain.TradeStatus) (int, error) {
	var count int
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trades WHERE status = ?`, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades with status %s: %w", status, err)
	}
	return count, nil
}

func setStatus(ctx context.Context, tx *sql.Tx, symbol string, entryOrderID int64, status domain.TradeStatus, note string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE trades SET status = ?, note = ?, updated_at = ? WHERE symbol = ? AND entry_order_id = ? AND status = ?`,
		string(status), note, time.Now().UTC(), symbol, entryOrderID, string(domain.StatusOpen))
	if err != nil {
		return fmt.Errorf("failed to update trade status for symbol %s: %w", symbol, err)
	}
	return nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanClosedTrade(s scanner) (domain.ClosedTrade, error) {
	var (
		t                                    domain.ClosedTrade
		direction                            string
		entryPrice, exitPrice, quantity, pnl string
		closeReason                          sql.NullString
	)
	err := s.Scan(&t.Symbol, &direction, &t.EntryOrderID, &entryPrice, &exitPrice, &quantity, &pnl,
		&t.EntryTime, &t.ExitTime, &closeReason, &t.Estimated)
	if err != nil {
		return t, err
	}
	t.Direction = domain.Direction(direction)
	if t.EntryPrice, err = decimal.NewFromString(entryPrice); err != nil {
		return t, err
	}
	if t.ExitPrice, err = decimal.NewFromString(exitPrice); err != nil {
		return t, err
	}
	if t.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return t, err
	}
	if t.PNL, err = decimal.NewFromString(pnl); err != nil {
		return t, err
	}
	if closeReason.Valid && closeReason.String != "" {
		t.CloseReason = domain.CloseReason(closeReason.String)
	} else {
		t.CloseReason = domain.CloseReasonUnknown
	}
	return t, nil
}
