package leaderboard

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRedisCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	c, err := NewRedisCache(t.Context(), RedisConfig{Address: addr, Prefix: "swapquote-test:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	var missing Volume
	require.ErrorIs(t, c.GetJSON(t.Context(), "absent", &missing), ErrCacheMiss)

	want := Volume{Address: trader, VolumeUSD: 1.5, Trades: 1}
	require.NoError(t, c.SetJSON(t.Context(), "volume", want, time.Minute))
	var got Volume
	require.NoError(t, c.GetJSON(t.Context(), "volume", &got))
	require.Equal(t, want, got)
}
