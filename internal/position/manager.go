package position

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ExitReason names the condition that closed a position.
type ExitReason string

const (
	ExitTakeProfit ExitReason = "take_profit"
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTimeout    ExitReason = "timeout"
)

// Config holds exit thresholds in percent.
type Config struct {
	TakeProfitPct    float64       // exit when net > TakeProfitPct
	StopLossPct      float64       // exit when net < StopLossPct
	RoundTripCostPct float64       // fees and slippage deducted from gross move
	MaxHold          time.Duration // exit when held longer
}

// DefaultConfig returns the reference thresholds.
func DefaultConfig() Config {
	return Config{
		TakeProfitPct:    1.0,
		StopLossPct:      -3.0,
		RoundTripCostPct: 0.4,
		MaxHold:          10 * time.Minute,
	}
}

// Position is one open spot holding.
type Position struct {
	InstID     string          `json:"inst_id"`
	EntryPrice float64         `json:"entry_price"` // ask at decision time
	EntryTime  time.Time       `json:"entry_time"`
	QuoteSize  decimal.Decimal `json:"quote_size"` // quote spent on entry
	BaseSize   decimal.Decimal `json:"base_size"`  // estimated base received
	ClOrdID    string          `json:"cl_ord_id"`
}

// ExitDecision is returned when a position must be sold.
type ExitDecision struct {
	Position Position
	Reason   ExitReason
	Bid      float64
	NetPct   float64
	Held     time.Duration
}

// Manager tracks at most one position per instrument. Evaluate and Open
// are called from the trading loop; readers may snapshot concurrently.
type Manager struct {
	cfg       Config
	positions map[string]*Position
	mu        sync.RWMutex
}

// NewManager creates a manager with cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:       cfg,
		positions: make(map[string]*Position),
	}
}

// Open records a position. It reports false if one is already open for the instrument.
func (m *Manager) Open(pos Position) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.positions[pos.InstID]; exists {
		return false
	}
	m.positions[pos.InstID] = &pos
	return true
}

// NetPct is the gross move from entry to bid minus the round-trip cost, in percent.
func (m *Manager) NetPct(entry, bid float64) float64 {
	return (bid-entry)*100/entry - m.cfg.RoundTripCostPct
}

// Evaluate checks exits for instID at bid. The first matching condition,
// in the order take-profit, stop-loss, timeout, removes the position.
func (m *Manager) Evaluate(instID string, bid float64, now time.Time) *ExitDecision {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, exists := m.positions[instID]
	if !exists {
		return nil
	}

	net := m.NetPct(pos.EntryPrice, bid)
	held := now.Sub(pos.EntryTime)

	var reason ExitReason
	switch {
	case net > m.cfg.TakeProfitPct:
		reason = ExitTakeProfit
	case net < m.cfg.StopLossPct:
		reason = ExitStopLoss
	case held > m.cfg.MaxHold:
		reason = ExitTimeout
	default:
		return nil
	}

	delete(m.positions, instID)
	return &ExitDecision{
		Position: *pos,
		Reason:   reason,
		Bid:      bid,
		NetPct:   net,
		Held:     held,
	}
}

// Has reports whether instID is held.
func (m *Manager) Has(instID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.positions[instID]
	return ok
}

// Count is the number of open positions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.positions)
}

// Get returns a copy of the position for instID.
func (m *Manager) Get(instID string) (Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.positions[instID]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Snapshot returns copies of all open positions ordered by entry time.
func (m *Manager) Snapshot() []Position {
	m.mu.RLock()
	out := make([]Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].InstID < out[j].InstID
		}
		return out[i].EntryTime.Before(out[j].EntryTime)
	})
	return out
}
