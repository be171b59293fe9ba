package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, ApplyMigrations(database))
	return database
}

func TestApplyMigrationsIdempotent(t *testing.T) {
	database := newTestDB(t)
	require.NoError(t, ApplyMigrations(database))

	var n int
	err := database.DB.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info('positions') WHERE name='exit_cl_ord_id'").Scan(&n)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestJournalRoundTrip(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	_, err := database.DB.Exec(InsertOrderSQL, "snip4d21", "req-1", "X-USDT", "buy", "25", "quote_ccy", "cash", "entry", now)
	require.NoError(t, err)
	_, err = database.DB.Exec(AckOrderSQL, "123", "0", "", now, "snip4d21", "snip4d21", "req-1")
	require.NoError(t, err)

	_, err = database.DB.Exec(OpenPositionSQL, "X-USDT", "snip4d21", 96.2, "25", "0.259", now)
	require.NoError(t, err)
	_, err = database.DB.Exec(ClosePositionSQL, 98.0, 1.47, "take_profit", 500, now.Add(time.Second), "snip4d22", "X-USDT")
	require.NoError(t, err)

	q := database.Queries()
	orders, err := q.RecentOrders(ctx, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, "X-USDT", orders[0].InstID)
	require.Equal(t, "123", orders[0].OrdID.String)
	require.True(t, now.Equal(orders[0].CreatedAt))

	positions, err := q.RecentPositions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.False(t, positions[0].Open())
	require.Equal(t, "take_profit", positions[0].ExitReason.String)
	require.Equal(t, 96.2, positions[0].EntryPrice)
}

func TestNewRejectsEmptyPath(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}
