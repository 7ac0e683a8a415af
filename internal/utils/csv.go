package utils

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"signalTrader/internal/domain"
)

var tradeHeader = []string{
	"symbol", "direction", "entry_order_id", "entry_price", "exit_price",
	"quantity", "pnl", "entry_time", "exit_time", "close_reason", "estimated",
}

// WriteTradesToCSV writes closed trades to filename, replacing any existing file.
func WriteTradesToCSV(trades []domain.ClosedTrade, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteTrades(file, trades)
}

// WriteTrades writes a header row followed by one row per trade.
func WriteTrades(w io.Writer, trades []domain.ClosedTrade) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		writer.Write([]string{
			t.Symbol,
			string(t.Direction),
			strconv.FormatInt(t.EntryOrderID, 10),
			t.EntryPrice.String(),
			t.ExitPrice.String(),
			t.Quantity.String(),
			t.PNL.String(),
			t.EntryTime.UTC().Format(time.RFC3339),
			t.ExitTime.UTC().Format(time.RFC3339),
			string(t.CloseReason),
			strconv.FormatBool(t.Estimated),
		})
	}
	writer.Flush()
	return writer.Error()
}
