package strategy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultFileConfig(), cfg)
	require.Len(t, cfg.Watchlist, 10)
	require.Equal(t, -2.5, cfg.Params().CrashPct)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeFile(t, `
quote_ccy: usdt
watchlist: [" wif-usdt ", "PEPE-USDT", "WIF-USDT", ""]
signal:
  window: 3s
  crash_pct: -3
exit:
  max_hold: 5m
risk:
  max_positions: 2
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "USDT", cfg.QuoteCcy)
	require.Equal(t, []string{"WIF-USDT", "PEPE-USDT"}, cfg.Watchlist)
	require.Equal(t, 3*time.Second, cfg.Signal.Window)
	require.Equal(t, 2*time.Second, cfg.Signal.StaleAfter) // untouched default
	require.Equal(t, -3.0, cfg.Signal.CrashPct)
	require.Equal(t, 5*time.Minute, cfg.Exit.MaxHold)
	require.Equal(t, 1.0, cfg.Exit.TakeProfitPct)
	require.Equal(t, 2, cfg.Risk.MaxPositions)
	require.Equal(t, 25.0, cfg.Risk.BetSize)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"positive crash", "signal:\n  crash_pct: 2\n"},
		{"empty watchlist", "watchlist: []\n"},
		{"inverted exits", "exit:\n  take_profit_pct: -5\n"},
		{"zero cap", "risk:\n  max_positions: 0\n"},
		{"bad duration", "signal:\n  window: soon\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestExampleFileMatchesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "strategy.example.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultFileConfig(), cfg)
}
