package strategy

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"flash-sniper/pkg/exchanges/okx"
)

// Params tune the flash-crash detector.
type Params struct {
	Window     time.Duration // price history retention
	StaleAfter time.Duration // ticks older than this are ignored
	CrashPct   float64       // signal when change <= CrashPct (negative)
}

// DefaultParams returns the reference detector settings.
func DefaultParams() Params {
	return Params{
		Window:     5 * time.Second,
		StaleAfter: 2 * time.Second,
		CrashPct:   -2.5,
	}
}

// Signal asks to buy InstID at Ask.
type Signal struct {
	InstID    string
	Ask       float64
	Bid       float64
	Last      float64
	ChangePct float64
	Floor     float64 // oldest retained price
}

// FlashCrash detects sharp drops against the oldest price in the window.
// It is not safe for concurrent use; the trading loop owns it.
type FlashCrash struct {
	params    Params
	histories map[string]*PriceHistory
	log       *logrus.Entry
}

// NewFlashCrash creates a detector.
func NewFlashCrash(p Params) *FlashCrash {
	return &FlashCrash{
		params:    p,
		histories: make(map[string]*PriceHistory),
		log:       logrus.WithField("component", "flash-crash"),
	}
}

// Stale reports whether t is too old to act on at now.
func (f *FlashCrash) Stale(t okx.Ticker, now time.Time) bool {
	return now.Sub(t.TS) > f.params.StaleAfter
}

// OnTick records t and returns a buy signal when the drop crosses CrashPct.
// Stale ticks and derivatives leave no trace in the history.
func (f *FlashCrash) OnTick(t okx.Ticker, now time.Time) *Signal {
	if f.Stale(t, now) {
		return nil
	}
	if strings.Contains(t.InstID, "SWAP") {
		return nil
	}
	if t.Ask < t.Bid {
		f.log.WithFields(logrus.Fields{
			"inst": t.InstID,
			"ask":  t.Ask,
			"bid":  t.Bid,
		}).Warn("crossed book")
	}

	h, ok := f.histories[t.InstID]
	if !ok {
		h = &PriceHistory{}
		f.histories[t.InstID] = h
	}
	h.Push(now, t.Last)
	h.Evict(now, f.params.Window)

	floor, _ := h.Oldest()
	if floor.Price <= 0 {
		return nil
	}
	change := (t.Last - floor.Price) * 100 / floor.Price
	if change > f.params.CrashPct {
		return nil
	}

	return &Signal{
		InstID:    t.InstID,
		Ask:       t.Ask,
		Bid:       t.Bid,
		Last:      t.Last,
		ChangePct: change,
		Floor:     floor.Price,
	}
}

// HistoryLen returns the retained sample count for instID.
func (f *FlashCrash) HistoryLen(instID string) int {
	if h, ok := f.histories[instID]; ok {
		return h.Len()
	}
	return 0
}
