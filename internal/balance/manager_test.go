package balance

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOnAccountUpdateLastWriteWins(t *testing.T) {
	m := NewManager("USDT")

	require.NoError(t, m.OnAccountUpdate(json.RawMessage(
		`[{"details":[{"ccy":"BTC","availBal":"1"},{"ccy":"USDT","availBal":"50","cashBal":"55"}]}]`)))
	require.Equal(t, 50.0, m.Available())

	require.NoError(t, m.OnAccountUpdate(json.RawMessage(
		`[{"details":[{"ccy":"USDT","availBal":"12.5","cashBal":"12.5"}]}]`)))
	require.Equal(t, 12.5, m.Available())

	snap := m.Snapshot()
	require.Equal(t, "USDT", snap.Ccy)
	require.Equal(t, uint64(2), snap.Updates)
	require.False(t, snap.LastSync.IsZero())
}

func TestOnAccountUpdateIgnoresOtherCurrencies(t *testing.T) {
	m := NewManager("USDT")
	m.SetInitialBalance(30)

	require.NoError(t, m.OnAccountUpdate(json.RawMessage(`[{"details":[{"ccy":"ETH","availBal":"2"}]}]`)))
	require.Equal(t, 30.0, m.Available())
}

func TestOnAccountUpdateMalformed(t *testing.T) {
	m := NewManager("USDT")
	m.SetInitialBalance(30)

	require.Error(t, m.OnAccountUpdate(json.RawMessage(`{"details":`)))
	require.Error(t, m.OnAccountUpdate(json.RawMessage(`[{"details":[{"ccy":"USDT","availBal":"x"}]}]`)))
	require.Equal(t, 30.0, m.Available())
}
