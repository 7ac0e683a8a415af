// Package metrics exposes Prometheus instruments for the trading pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "signaltrader"

// Recorder groups the bot's instruments. A nil *Recorder is valid and records nothing.
type Recorder struct {
	signals          *prometheus.CounterVec
	orders           *prometheus.CounterVec
	stopUpdates      prometheus.Counter
	orphaned         prometheus.Counter
	closedByExchange prometheus.Counter
	openTrades       prometheus.Gauge
	cycleDuration    prometheus.Histogram
}

// New registers all instruments with reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Signals processed, by outcome",
		}, []string{"outcome"}),
		orders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Orders sent to the exchange, by purpose and status",
		}, []string{"symbol", "purpose", "status"}),
		stopUpdates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stop_updates_total",
			Help:      "Protective stops replaced by the trailing engine",
		}),
		orphaned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphaned_trades_total",
			Help:      "Positions left without protection and evicted from management",
		}),
		closedByExchange: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "closed_by_exchange_total",
			Help:      "Managed trades found flat on the exchange",
		}),
		openTrades: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_trades",
			Help:      "Trades currently under management",
		}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trailing_cycle_duration_seconds",
			Help:      "Duration of one trailing-stop cycle",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// SignalProcessed counts a processed signal by outcome.
func (r *Recorder) SignalProcessed(outcome string) {
	if r == nil {
		return
	}
	r.signals.WithLabelValues(outcome).Inc()
}

// OrderPlaced counts an order attempt. purpose is e.g. "entry", "stop", "close".
func (r *Recorder) OrderPlaced(symbol, purpose string, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.orders.WithLabelValues(symbol, purpose, status).Inc()
}

func (r *Recorder) StopReplaced() {
	if r == nil {
		return
	}
	r.stopUpdates.Inc()
}

func (r *Recorder) TradeOrphaned() {
	if r == nil {
		return
	}
	r.orphaned.Inc()
}

func (r *Recorder) ClosedByExchange() {
	if r == nil {
		return
	}
	r.closedByExchange.Inc()
}

// SetOpenTrades sets the managed trade gauge.
func (r *Recorder) SetOpenTrades(n int) {
	if r == nil {
		return
	}
	r.openTrades.Set(float64(n))
}

// ObserveCycle records how long a trailing-stop cycle took.
func (r *Recorder) ObserveCycle(d time.Duration) {
	if r == nil {
		return
	}
	r.cycleDuration.Observe(d.Seconds())
}
