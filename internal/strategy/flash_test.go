package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"flash-sniper/pkg/exchanges/okx"
)

var t0 = time.Unix(1700000000, 0)

func tick(inst string, last, ask, bid float64, ts time.Time) okx.Ticker {
	return okx.Ticker{InstID: inst, Last: last, Ask: ask, Bid: bid, TS: ts}
}

func TestPriceHistoryEviction(t *testing.T) {
	var h PriceHistory
	for i := 0; i < 10; i++ {
		h.Push(t0.Add(time.Duration(i)*time.Second), float64(100+i))
	}
	h.Evict(t0.Add(9*time.Second), 5*time.Second)

	require.Equal(t, 6, h.Len())
	oldest, ok := h.Oldest()
	require.True(t, ok)
	require.Equal(t, 104.0, oldest.Price)
	newest, _ := h.Newest()
	require.Equal(t, 109.0, newest.Price)

	h.Evict(t0.Add(time.Minute), 5*time.Second)
	require.Zero(t, h.Len())
	_, ok = h.Oldest()
	require.False(t, ok)
}

func TestPriceHistoryCompacts(t *testing.T) {
	var h PriceHistory
	for i := 0; i < 1000; i++ {
		at := t0.Add(time.Duration(i) * 100 * time.Millisecond)
		h.Push(at, 1)
		h.Evict(at, time.Second)
	}
	require.LessOrEqual(t, h.Len(), 11)
	require.Less(t, len(h.samples), 200)
}

func TestFlashCrashSignal(t *testing.T) {
	f := NewFlashCrash(DefaultParams())

	require.Nil(t, f.OnTick(tick("X-USDT", 100, 100.1, 99.9, t0), t0))

	now := t0.Add(2500 * time.Millisecond)
	sig := f.OnTick(tick("X-USDT", 96, 96.2, 95.8, now), now)
	require.NotNil(t, sig)
	require.Equal(t, "X-USDT", sig.InstID)
	require.Equal(t, 96.2, sig.Ask)
	require.Equal(t, 100.0, sig.Floor)
	require.InDelta(t, -4.0, sig.ChangePct, 1e-9)
}

func TestFlashCrashThresholds(t *testing.T) {
	tests := []struct {
		name   string
		second float64
		signal bool
	}{
		{"small dip", 98, false},
		{"exactly threshold", 97.5, true},
		{"rally", 105, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFlashCrash(DefaultParams())
			f.OnTick(tick("X-USDT", 100, 100, 100, t0), t0)
			now := t0.Add(time.Second)
			sig := f.OnTick(tick("X-USDT", tt.second, tt.second, tt.second, now), now)
			require.Equal(t, tt.signal, sig != nil)
		})
	}
}

func TestFlashCrashWindowFloor(t *testing.T) {
	f := NewFlashCrash(DefaultParams())
	f.OnTick(tick("X-USDT", 100, 100, 100, t0), t0)

	// The 100 sample has left the window by t0+6s, so the floor is 97.
	at := t0.Add(6 * time.Second)
	require.Nil(t, f.OnTick(tick("X-USDT", 97, 97, 97, at), at))
	at = at.Add(time.Second)
	require.Nil(t, f.OnTick(tick("X-USDT", 96, 96, 96, at), at))
	require.Equal(t, 2, f.HistoryLen("X-USDT"))
}

func TestFlashCrashStaleTickDoesNotMutate(t *testing.T) {
	f := NewFlashCrash(DefaultParams())
	now := t0.Add(10 * time.Second)

	stale := tick("X-USDT", 50, 50, 50, now.Add(-2001*time.Millisecond))
	require.True(t, f.Stale(stale, now))
	require.Nil(t, f.OnTick(stale, now))
	require.Zero(t, f.HistoryLen("X-USDT"))

	fresh := tick("X-USDT", 100, 100, 100, now.Add(-2000*time.Millisecond))
	require.False(t, f.Stale(fresh, now))
	require.Nil(t, f.OnTick(fresh, now))
	require.Equal(t, 1, f.HistoryLen("X-USDT"))
}

func TestFlashCrashSkipsDerivatives(t *testing.T) {
	f := NewFlashCrash(DefaultParams())
	f.OnTick(tick("BTC-USDT-SWAP", 100, 100, 100, t0), t0)
	now := t0.Add(time.Second)
	require.Nil(t, f.OnTick(tick("BTC-USDT-SWAP", 50, 50, 50, now), now))
	require.Zero(t, f.HistoryLen("BTC-USDT-SWAP"))
}

func TestFlashCrashCrossedBookStillProcessed(t *testing.T) {
	f := NewFlashCrash(DefaultParams())
	f.OnTick(tick("X-USDT", 100, 100, 100, t0), t0)
	now := t0.Add(time.Second)
	sig := f.OnTick(tick("X-USDT", 90, 89, 91, now), now)
	require.NotNil(t, sig)
	require.Equal(t, 89.0, sig.Ask)
}
