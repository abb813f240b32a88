// internal/delivery/log.go
package delivery

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// LogProvider accepts every message and only logs it. It is the last
// resort of the chain so that the in-app record is still written.
type LogProvider struct {
	logger *zap.Logger
}

func NewLogProvider(logger *zap.Logger) *LogProvider {
	return &LogProvider{logger: logger.Named("log-provider")}
}

func (l *LogProvider) Name() string { return "log" }

func (l *LogProvider) Send(_ context.Context, msg Message) (string, error) {
	id := "log-" + uuid.NewString()
	l.logger.Info("notification not emailed, logged only",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("delivery_id", id),
	)
	return id, nil
}

type limited struct {
	Provider
	limiter *rate.Limiter
}

// RateLimited wraps p with a token bucket of perSecond sends and a burst of
// one. Waiting for a token honours the send context.
func RateLimited(p Provider, perSecond float64) Provider {
	if perSecond <= 0 {
		return p
	}
	return &limited{Provider: p, limiter: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

func (l *limited) Send(ctx context.Context, msg Message) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.Provider.Send(ctx, msg)
}
