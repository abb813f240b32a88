// internal/dedup/guard.go
//
// Package dedup suppresses repeat notifications of the same type to the
// same user inside a cooldown window.
package dedup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"prestamos/internal/inbox"
)

// Lookup returns a user's most recent notification records, newest first.
type Lookup interface {
	Recent(ctx context.Context, userID string, n int) ([]inbox.Record, error)
}

// Cooldown is an optional cache in front of the record lookback. A hit
// suppresses the send; a miss always falls through to the records.
type Cooldown interface {
	Active(ctx context.Context, userID string, t inbox.Type) (bool, error)
	Mark(ctx context.Context, userID string, t inbox.Type, ttl time.Duration) error
}

type Guard struct {
	lookup   Lookup
	cache    Cooldown
	window   time.Duration
	lookback int
	now      func() time.Time
	logger   *zap.Logger
}

type Option func(*Guard)

func WithCooldown(c Cooldown) Option { return func(g *Guard) { g.cache = c } }
func WithWindow(d time.Duration) Option { return func(g *Guard) { g.window = d } }
func WithLookback(n int) Option { return func(g *Guard) { g.lookback = n } }
func WithClock(now func() time.Time) Option { return func(g *Guard) { g.now = now } }
func WithLogger(logger *zap.Logger) Option { return func(g *Guard) { g.logger = logger.Named("dedup") } }

// NewGuard defaults to a 24h window over the last 5 records.
func NewGuard(lookup Lookup, opts ...Option) *Guard {
	g := &Guard{
		lookup:   lookup,
		window:   24 * time.Hour,
		lookback: 5,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ShouldSend reports whether a notification of type t may go to userID now,
// using the configured window.
func (g *Guard) ShouldSend(ctx context.Context, userID string, t inbox.Type) (bool, error) {
	return g.ShouldSendWithin(ctx, userID, t, g.window)
}

// ShouldSendWithin is ShouldSend with an explicit window.
func (g *Guard) ShouldSendWithin(ctx context.Context, userID string, t inbox.Type, window time.Duration) (bool, error) {
	if g.cache != nil {
		active, err := g.cache.Active(ctx, userID, t)
		if err != nil {
			g.logger.Warn("cooldown cache unavailable", zap.String("user_id", userID), zap.Error(err))
		} else if active {
			return false, nil
		}
	}

	records, err := g.lookup.Recent(ctx, userID, g.lookback)
	if err != nil {
		return false, fmt.Errorf("dedup lookback for %s: %w", userID, err)
	}
	cutoff := g.now().Add(-window)
	for _, rec := range records {
		if rec.Type == t && rec.CreatedAt.After(cutoff) {
			return false, nil
		}
	}
	return true, nil
}

// Sent tells the cache that a notification just went out. Cache failures
// are logged only.
func (g *Guard) Sent(ctx context.Context, userID string, t inbox.Type) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Mark(ctx, userID, t, g.window); err != nil {
		g.logger.Warn("cooldown cache mark failed", zap.String("user_id", userID), zap.Error(err))
	}
}
