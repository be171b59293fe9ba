package risk

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// PositionView is the part of the position book the gate consults.
type PositionView interface {
	Has(instID string) bool
	Count() int
}

// Gate admits entries: one per instrument, a global position cap and a
// sizing policy. Approved instruments are marked entering until Release.
type Gate struct {
	cfg       Config
	positions PositionView

	mu       sync.Mutex
	entering map[string]struct{}
	metrics  Metrics
}

// NewGate creates a gate over positions.
func NewGate(cfg Config, positions PositionView) *Gate {
	if cfg.Sizing == "" {
		cfg.Sizing = SizingFixed
	}
	return &Gate{
		cfg:       cfg,
		positions: positions,
		entering:  make(map[string]struct{}),
		metrics:   Metrics{RejectionsTotal: make(map[Reason]uint64)},
	}
}

// Admit decides whether instID may be bought with available quote balance.
// On approval the instrument is marked entering before Admit returns.
func (g *Gate) Admit(instID string, available float64) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.metrics.ChecksTotal++

	if _, busy := g.entering[instID]; busy || g.positions.Has(instID) {
		return g.reject(ReasonAlreadyOpen)
	}
	if g.positions.Count()+len(g.entering) >= g.cfg.MaxPositions {
		return g.reject(ReasonPositionCap)
	}

	size, ok := g.size(available)
	if !ok {
		return g.reject(ReasonInsufficientBalance)
	}

	g.entering[instID] = struct{}{}
	g.metrics.ApprovalsTotal++
	return Decision{Allowed: true, Size: size}
}

func (g *Gate) size(available float64) (decimal.Decimal, bool) {
	switch g.cfg.Sizing {
	case SizingAllIn:
		if available <= g.cfg.MinBalance {
			return decimal.Zero, false
		}
		size := decimal.NewFromFloat(available).Truncate(g.cfg.QuoteDecimals)
		return size, size.IsPositive()
	default:
		if available < g.cfg.BetSize {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(g.cfg.BetSize), true
	}
}

func (g *Gate) reject(r Reason) Decision {
	g.metrics.RejectionsTotal[r]++
	return Decision{Reason: r}
}

// Release clears the entering mark for instID.
func (g *Gate) Release(instID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entering, instID)
}

// Entering lists instruments between approval and Release.
func (g *Gate) Entering() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.entering))
	for id := range g.entering {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// GetMetrics returns a copy of the gate counters.
func (g *Gate) GetMetrics() Metrics {
	g.mu.Lock()
	defer g.mu.Unlock()
	rej := make(map[Reason]uint64, len(g.metrics.RejectionsTotal))
	for k, v := range g.metrics.RejectionsTotal {
		rej[k] = v
	}
	return Metrics{
		ChecksTotal:     g.metrics.ChecksTotal,
		ApprovalsTotal:  g.metrics.ApprovalsTotal,
		RejectionsTotal: rej,
	}
}

// Config returns the gate configuration.
func (g *Gate) Config() Config { return g.cfg }
