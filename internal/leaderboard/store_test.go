package leaderboard

import (
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

// setupTestStore connects to LEADERBOARD_TEST_DSN and starts from an empty table.
func setupTestStore(t *testing.T) *Store {
	dsn := os.Getenv("LEADERBOARD_TEST_DSN")
	if dsn == "" {
		t.Skip("LEADERBOARD_TEST_DSN not set")
	}
	s, err := NewStore(t.Context(), StoreConfig{URL: dsn, Limit: 10})
	require.NoError(t, err, "Failed to create test database connection")
	require.NoError(t, s.InitSchema(t.Context()))
	_, err = s.db.ExecContext(t.Context(), "TRUNCATE TABLE trades")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_LeaderboardAndVolume(t *testing.T) {
	s := setupTestStore(t)
	alice := common.HexToAddress("0x00000000000000000000000000000000000A11cE")
	bob := common.HexToAddress("0x0000000000000000000000000000000000000B0b")

	trades := []Trade{
		{ChainID: 8453, Address: alice, Aggregator: "Odos", TxHash: common.HexToHash("0x01"), VolumeUSD: 100, PnLUSD: 5},
		{ChainID: 8453, Address: alice, Aggregator: "Clober", TxHash: common.HexToHash("0x02"), VolumeUSD: 50, PnLUSD: -1},
		{ChainID: 8453, Address: bob, Aggregator: "Odos", TxHash: common.HexToHash("0x03"), VolumeUSD: 10, PnLUSD: 9},
		{ChainID: 1, Address: bob, Aggregator: "Odos", TxHash: common.HexToHash("0x04"), VolumeUSD: 999, PnLUSD: 999},
	}
	for _, tr := range trades {
		require.NoError(t, s.RecordTrade(t.Context(), tr))
	}
	// Duplicate hashes are ignored.
	require.NoError(t, s.RecordTrade(t.Context(), trades[0]))

	board, err := s.Leaderboard(t.Context(), 8453)
	require.NoError(t, err)
	require.Len(t, board, 2)
	require.Equal(t, bob, board[0].Address)
	require.Equal(t, 1, board[0].Rank)
	require.Equal(t, alice, board[1].Address)
	require.Equal(t, int64(2), board[1].Trades)
	require.InDelta(t, 150, board[1].VolumeUSD, 1e-9)

	v, err := s.UserVolume(t.Context(), 8453, alice)
	require.NoError(t, err)
	require.InDelta(t, 150, v.VolumeUSD, 1e-9)
	require.Equal(t, int64(2), v.Trades)

	none, err := s.UserVolume(t.Context(), 8453, common.HexToAddress("0x1"))
	require.NoError(t, err)
	require.Zero(t, none.Trades)
}
