package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryNonceStore_SingleUse(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryNonceStore()

	require.NoError(t, s.Issue(ctx, "n1", time.Minute))
	require.Error(t, s.Issue(ctx, "n1", time.Minute))

	ok, err := s.Consume(ctx, "n1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Consume(ctx, "n1")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = s.Consume(ctx, "never-issued")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryNonceStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryNonceStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Issue(ctx, "n1", time.Minute))
	now = now.Add(2 * time.Minute)
	ok, err := s.Consume(ctx, "n1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryIdempotencyStore()

	ok, err := s.Reserve(ctx, "0xa1", "k1", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Reserve(ctx, "0xa1", "k1", time.Hour)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = s.Reserve(ctx, "0xb0", "k1", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Release(ctx, "0xa1", "k1"))
	ok, err = s.Reserve(ctx, "0xa1", "k1", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryRateCounter(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryRateCounter()
	for want := int64(1); want <= 3; want++ {
		got, err := c.Hit(ctx, "ip", time.Minute)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	got, err := c.Hit(ctx, "other", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), got)
}
