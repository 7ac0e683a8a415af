package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"signalTrader/internal/domain"
	"signalTrader/internal/ports"
)

// looseString accepts a JSON string or number and keeps its text.
type looseString struct {
	value string
	set   bool
}

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		s.value, s.set = v, true
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	s.value, s.set = n.String(), true
	return nil
}

// Payload is the body of a TradingView-style alert.
type Payload struct {
	SignalType looseString `json:"signal_type"`
	Ticker     looseString `json:"ticker"`
	ClosePrice looseString `json:"close_price"`
	Exchange   looseString `json:"exchange"`
	Interval   looseString `json:"interval"`
}

// Rules configures payload validation.
type Rules struct {
	ExpectedInterval string // empty disables the check
	TradingPairs     map[string]struct{}
}

// NewRules builds Rules from a list of allowed symbols. An empty list allows every symbol.
func NewRules(expectedInterval string, pairs []string) Rules {
	r := Rules{ExpectedInterval: strings.TrimSpace(expectedInterval)}
	if len(pairs) > 0 {
		r.TradingPairs = make(map[string]struct{}, len(pairs))
		for _, p := range pairs {
			if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
				r.TradingPairs[p] = struct{}{}
			}
		}
	}
	return r
}

// NormalizeTicker strips an exchange prefix and a perpetual suffix:
// "BINANCE:BTCUSDT.P" becomes "BTCUSDT".
func NormalizeTicker(raw string) string {
	t := strings.TrimSpace(raw)
	if i := strings.Index(t, ":"); i >= 0 {
		t = t[i+1:]
	}
	t = strings.ToUpper(t)
	switch {
	case strings.HasSuffix(t, ".PERP"):
		t = strings.TrimSuffix(t, ".PERP")
	case strings.HasSuffix(t, ".P"):
		t = strings.TrimSuffix(t, ".P")
	}
	return t
}

// Warnings lists non-fatal observations about a payload.
type Warnings []string

// Validate checks p against the rules and builds a Signal. All failures wrap ports.ErrValidation.
func (r Rules) Validate(p Payload, now time.Time) (domain.Signal, Warnings, error) {
	var warnings Warnings
	required := []struct {
		name  string
		field looseString
	}{
		{"signal_type", p.SignalType},
		{"ticker", p.Ticker},
		{"close_price", p.ClosePrice},
		{"exchange", p.Exchange},
		{"interval", p.Interval},
	}
	for _, f := range required {
		if !f.field.set || strings.TrimSpace(f.field.value) == "" {
			return domain.Signal{}, nil, fmt.Errorf("%w: missing field: %s", ports.ErrValidation, f.name)
		}
	}

	dir, err := domain.ParseDirection(p.SignalType.value)
	if err != nil {
		return domain.Signal{}, nil, fmt.Errorf("%w: invalid signal_type, must be 'long' or 'short'", ports.ErrValidation)
	}

	if r.ExpectedInterval != "" && strings.TrimSpace(p.Interval.value) != r.ExpectedInterval {
		return domain.Signal{}, nil, fmt.Errorf("%w: invalid interval, expected %s", ports.ErrValidation, r.ExpectedInterval)
	}

	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(p.Exchange.value)), "BINANCE") {
		warnings = append(warnings, fmt.Sprintf("unexpected exchange %q, expected BINANCE", p.Exchange.value))
	}

	symbol := NormalizeTicker(p.Ticker.value)
	if symbol == "" {
		return domain.Signal{}, nil, fmt.Errorf("%w: empty ticker", ports.ErrValidation)
	}
	if r.TradingPairs != nil {
		if _, ok := r.TradingPairs[symbol]; !ok {
			return domain.Signal{}, nil, fmt.Errorf("%w: ticker %s is not in TRADING_PAIRS", ports.ErrValidation, symbol)
		}
	}

	price, err := decimal.NewFromString(strings.TrimSpace(p.ClosePrice.value))
	if err != nil {
		return domain.Signal{}, nil, fmt.Errorf("%w: invalid close_price format", ports.ErrValidation)
	}
	if !price.IsPositive() {
		return domain.Signal{}, nil, fmt.Errorf("%w: close_price must be positive", ports.ErrValidation)
	}

	return domain.Signal{
		ID:             uuid.NewString(),
		Symbol:         symbol,
		Direction:      dir,
		ReferencePrice: price,
		ReceivedAt:     now,
	}, warnings, nil
}
