// internal/dedup/guard_test.go
package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prestamos/internal/inbox"
	"prestamos/internal/store"
)

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func TestShouldSendWithNoHistory(t *testing.T) {
	g := NewGuard(inbox.New(store.NewMemory()), WithClock(clock))
	ok, err := g.ShouldSend(context.Background(), "u1", inbox.TypeDueSoon)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestShouldSendRespectsWindowAndType(t *testing.T) {
	ctx := context.Background()
	in := inbox.New(store.NewMemory())
	g := NewGuard(in, WithClock(clock))

	_, err := in.Append(ctx, inbox.Record{UserID: "u1", Type: inbox.TypeDueSoon, CreatedAt: now.Add(-2 * time.Hour)})
	require.NoError(t, err)
	_, err = in.Append(ctx, inbox.Record{UserID: "u1", Type: inbox.TypeOverdue, CreatedAt: now.Add(-30 * time.Hour)})
	require.NoError(t, err)

	ok, err := g.ShouldSend(ctx, "u1", inbox.TypeDueSoon)
	require.NoError(t, err)
	assert.False(t, ok, "same type inside the window")

	ok, err = g.ShouldSend(ctx, "u1", inbox.TypeOverdue)
	require.NoError(t, err)
	assert.True(t, ok, "same type outside the window")

	ok, err = g.ShouldSend(ctx, "u2", inbox.TypeDueSoon)
	require.NoError(t, err)
	assert.True(t, ok, "other user")

	ok, err = g.ShouldSendWithin(ctx, "u1", inbox.TypeDueSoon, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "narrower window")
}

func TestLookbackIsBounded(t *testing.T) {
	ctx := context.Background()
	in := inbox.New(store.NewMemory())
	g := NewGuard(in, WithClock(clock), WithLookback(2))

	_, err := in.Append(ctx, inbox.Record{UserID: "u1", Type: inbox.TypeNewDebt, CreatedAt: now.Add(-time.Hour)})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := in.Append(ctx, inbox.Record{UserID: "u1", Type: inbox.TypeBulk, CreatedAt: now})
		require.NoError(t, err)
	}

	ok, err := g.ShouldSend(ctx, "u1", inbox.TypeNewDebt)
	require.NoError(t, err)
	assert.True(t, ok, "the matching record is older than the lookback")
}

type failingLookup struct{}

func (failingLookup) Recent(context.Context, string, int) ([]inbox.Record, error) {
	return nil, errors.New("store down")
}

func TestLookupFailureIsReturned(t *testing.T) {
	_, err := NewGuard(failingLookup{}).ShouldSend(context.Background(), "u1", inbox.TypeDueSoon)
	assert.Error(t, err)
}

func TestRedisCooldown(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	g := NewGuard(inbox.New(store.NewMemory()),
		WithClock(clock),
		WithCooldown(NewRedisCooldown(rdb)),
		WithWindow(time.Hour),
	)

	ok, err := g.ShouldSend(ctx, "u1", inbox.TypeDebtReminder)
	require.NoError(t, err)
	assert.True(t, ok)

	g.Sent(ctx, "u1", inbox.TypeDebtReminder)
	assert.True(t, mr.Exists("prestamos:cooldown:u1:debtReminder"))

	ok, err = g.ShouldSend(ctx, "u1", inbox.TypeDebtReminder)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Hour)
	ok, err = g.ShouldSend(ctx, "u1", inbox.TypeDebtReminder)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisOutageFallsBackToRecords(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })

	in := inbox.New(store.NewMemory())
	_, err := in.Append(ctx, inbox.Record{UserID: "u1", Type: inbox.TypeOverdue, CreatedAt: now})
	require.NoError(t, err)

	g := NewGuard(in, WithClock(clock), WithCooldown(NewRedisCooldown(rdb)))
	mr.Close()

	ok, err := g.ShouldSend(ctx, "u1", inbox.TypeOverdue)
	require.NoError(t, err)
	assert.False(t, ok)
}
