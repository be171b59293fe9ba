package balance

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"flash-sniper/pkg/exchanges/okx"
)

// Balance is the cached quote-currency balance.
type Balance struct {
	Ccy       string    `json:"ccy"`
	Available float64   `json:"available"`
	Cash      float64   `json:"cash"`
	Updates   uint64    `json:"updates"`
	LastSync  time.Time `json:"last_sync"`
}

// Manager caches the available balance pushed on the account channel.
// Every update overwrites the previous value.
type Manager struct {
	quoteCcy string
	cache    *BalanceCache
	log      *logrus.Entry
}

// BalanceCache caches balance data
type BalanceCache struct {
	available float64
	cash      float64
	updates   uint64
	lastSync  time.Time
	mu        sync.RWMutex
}

// NewManager creates a cache for quoteCcy (e.g. USDT).
func NewManager(quoteCcy string) *Manager {
	return &Manager{
		quoteCcy: quoteCcy,
		cache:    &BalanceCache{},
		log:      logrus.WithField("component", "balance"),
	}
}

// OnAccountUpdate applies an account push. Pushes without the quote
// currency leave the cache untouched.
func (m *Manager) OnAccountUpdate(data json.RawMessage) error {
	accounts, err := okx.DecodeAccount(data)
	if err != nil {
		return fmt.Errorf("account update: %w", err)
	}

	for _, acc := range accounts {
		for _, d := range acc.Details {
			if d.Ccy != m.quoteCcy {
				continue
			}
			avail, _ := d.AvailBal.Float64()
			cash, _ := d.CashBal.Float64()
			m.set(avail, cash)
			m.log.WithFields(logrus.Fields{
				"ccy":       d.Ccy,
				"available": d.AvailBal.String(),
			}).Info("💰 balance updated")
		}
	}
	return nil
}

func (m *Manager) set(available, cash float64) {
	m.cache.mu.Lock()
	defer m.cache.mu.Unlock()
	m.cache.available = available
	m.cache.cash = cash
	m.cache.updates++
	m.cache.lastSync = time.Now()
}

// Available returns the cached available balance.
func (m *Manager) Available() float64 {
	m.cache.mu.RLock()
	defer m.cache.mu.RUnlock()
	return m.cache.available
}

// Snapshot returns the cached balance.
func (m *Manager) Snapshot() Balance {
	m.cache.mu.RLock()
	defer m.cache.mu.RUnlock()
	return Balance{
		Ccy:       m.quoteCcy,
		Available: m.cache.available,
		Cash:      m.cache.cash,
		Updates:   m.cache.updates,
		LastSync:  m.cache.lastSync,
	}
}

// SetInitialBalance seeds the cache before the first account push.
func (m *Manager) SetInitialBalance(amount float64) {
	m.set(amount, amount)
}
