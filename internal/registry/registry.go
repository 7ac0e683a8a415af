// Package registry holds the in-memory set of trades managed by this process.
package registry

import (
	"sort"
	"sync"

	"signalTrader/internal/domain"
)

// Registry is the authoritative, volatile record of managed trades, keyed by symbol.
// At most one record exists per symbol. Records are copied in and out so that no
// caller shares a mutable record with another goroutine.
type Registry struct {
	mu       sync.RWMutex
	trades   map[string]domain.TradeRecord
	settings map[string]bool

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		trades:   make(map[string]domain.TradeRecord),
		settings: make(map[string]bool),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Get returns a copy of the record for symbol.
func (r *Registry) Get(symbol string) (domain.TradeRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.trades[symbol]
	return rec, ok
}

// Upsert inserts or replaces the record for rec.Symbol.
func (r *Registry) Upsert(rec domain.TradeRecord) {
	r.mu.Lock()
	r.trades[rec.Symbol] = rec
	r.mu.Unlock()
}

// Remove deletes the record for symbol. Removing an absent symbol is a no-op.
func (r *Registry) Remove(symbol string) {
	r.mu.Lock()
	delete(r.trades, symbol)
	r.mu.Unlock()
}

// Count returns the number of managed trades.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trades)
}

// SnapshotSymbols returns the managed symbols in sorted order.
// The slice is a copy and is safe to iterate while the registry changes.
func (r *Registry) SnapshotSymbols() []string {
	r.mu.RLock()
	symbols := make([]string, 0, len(r.trades))
	for s := range r.trades {
		symbols = append(symbols, s)
	}
	r.mu.RUnlock()
	sort.Strings(symbols)
	return symbols
}

// Snapshot returns copies of all records ordered by symbol.
func (r *Registry) Snapshot() []domain.TradeRecord {
	r.mu.RLock()
	out := make([]domain.TradeRecord, 0, len(r.trades))
	for _, rec := range r.trades {
		out = append(out, rec)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// MarkSettingsApplied remembers that leverage and margin mode were set for symbol in this session.
func (r *Registry) MarkSettingsApplied(symbol string) {
	r.mu.Lock()
	r.settings[symbol] = true
	r.mu.Unlock()
}

func (r *Registry) SettingsApplied(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings[symbol]
}

func (r *Registry) symbolLock(symbol string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	l, ok := r.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		r.locks[symbol] = l
	}
	return l
}

// LockSymbol blocks until the operation lock for symbol is held and returns its release func.
// The operation lock serialises multi-step exchange sequences for one symbol; it is
// independent of the lock guarding the map.
func (r *Registry) LockSymbol(symbol string) func() {
	l := r.symbolLock(symbol)
	l.Lock()
	return l.Unlock
}

// TryLockSymbol acquires the operation lock for symbol only if it is free.
func (r *Registry) TryLockSymbol(symbol string) (func(), bool) {
	l := r.symbolLock(symbol)
	if !l.TryLock() {
		return nil, false
	}
	return l.Unlock, true
}
