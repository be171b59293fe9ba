package strategy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultWatchlist is the spot watch-list used when no file overrides it.
var DefaultWatchlist = []string{
	"WIF-USDT", "PEPE-USDT", "BONK-USDT", "DOGE-USDT", "SOL-USDT",
	"JUP-USDT", "WLD-USDT", "ORDI-USDT", "SUI-USDT", "NEAR-USDT",
}

// ExitConfig is the exit section of the strategy file.
type ExitConfig struct {
	TakeProfitPct    float64       `yaml:"take_profit_pct"`
	StopLossPct      float64       `yaml:"stop_loss_pct"`
	RoundTripCostPct float64       `yaml:"round_trip_cost_pct"`
	MaxHold          time.Duration `yaml:"max_hold"`
}

// RiskConfig is the risk section of the strategy file.
type RiskConfig struct {
	MaxPositions  int           `yaml:"max_positions"`
	BetSize       float64       `yaml:"bet_size"`
	MinBalance    float64       `yaml:"min_balance"`
	EntryBurst    int           `yaml:"entry_burst"`
	EntryInterval time.Duration `yaml:"entry_interval"`
	TakerFeePct   float64       `yaml:"taker_fee_pct"`
	SizeDecimals  int32         `yaml:"size_decimals"`
}

// SignalConfig is the signal section of the strategy file.
type SignalConfig struct {
	Window     time.Duration `yaml:"window"`
	StaleAfter time.Duration `yaml:"stale_after"`
	CrashPct   float64       `yaml:"crash_pct"`
}

// FileConfig is the top-level YAML structure.
type FileConfig struct {
	QuoteCcy  string       `yaml:"quote_ccy"`
	Watchlist []string     `yaml:"watchlist"`
	Signal    SignalConfig `yaml:"signal"`
	Exit      ExitConfig   `yaml:"exit"`
	Risk      RiskConfig   `yaml:"risk"`
}

// DefaultFileConfig mirrors the reference constants.
func DefaultFileConfig() FileConfig {
	p := DefaultParams()
	return FileConfig{
		QuoteCcy:  "USDT",
		Watchlist: append([]string(nil), DefaultWatchlist...),
		Signal: SignalConfig{
			Window:     p.Window,
			StaleAfter: p.StaleAfter,
			CrashPct:   p.CrashPct,
		},
		Exit: ExitConfig{
			TakeProfitPct:    1.0,
			StopLossPct:      -3.0,
			RoundTripCostPct: 0.4,
			MaxHold:          10 * time.Minute,
		},
		Risk: RiskConfig{
			MaxPositions:  3,
			BetSize:       25,
			MinBalance:    10,
			EntryBurst:    3,
			EntryInterval: 2 * time.Second,
			TakerFeePct:   0.1,
			SizeDecimals:  6,
		},
	}
}

// LoadConfig reads the strategy file over the defaults. A missing file is
// not an error.
func LoadConfig(path string) (FileConfig, error) {
	cfg := DefaultFileConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *FileConfig) normalize() {
	c.QuoteCcy = strings.ToUpper(strings.TrimSpace(c.QuoteCcy))
	seen := make(map[string]bool, len(c.Watchlist))
	out := c.Watchlist[:0]
	for _, id := range c.Watchlist {
		id = strings.ToUpper(strings.TrimSpace(id))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	c.Watchlist = out
}

// Validate rejects values the engine cannot run with.
func (c FileConfig) Validate() error {
	switch {
	case c.QuoteCcy == "":
		return errors.New("quote_ccy is empty")
	case len(c.Watchlist) == 0:
		return errors.New("watchlist is empty")
	case c.Signal.Window <= 0:
		return errors.New("signal.window must be positive")
	case c.Signal.StaleAfter <= 0:
		return errors.New("signal.stale_after must be positive")
	case c.Signal.CrashPct >= 0:
		return fmt.Errorf("signal.crash_pct must be negative, got %v", c.Signal.CrashPct)
	case c.Exit.TakeProfitPct <= c.Exit.StopLossPct:
		return errors.New("exit.take_profit_pct must exceed exit.stop_loss_pct")
	case c.Exit.MaxHold <= 0:
		return errors.New("exit.max_hold must be positive")
	case c.Risk.MaxPositions <= 0:
		return errors.New("risk.max_positions must be positive")
	case c.Risk.BetSize <= 0:
		return errors.New("risk.bet_size must be positive")
	case c.Risk.EntryBurst <= 0 || c.Risk.EntryInterval <= 0:
		return errors.New("risk.entry_burst and risk.entry_interval must be positive")
	case c.Risk.SizeDecimals < 0:
		return errors.New("risk.size_decimals must not be negative")
	}
	return nil
}

// Params converts the signal section.
func (c FileConfig) Params() Params {
	return Params{
		Window:     c.Signal.Window,
		StaleAfter: c.Signal.StaleAfter,
		CrashPct:   c.Signal.CrashPct,
	}
}
