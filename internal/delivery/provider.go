// internal/delivery/provider.go
//
// Package delivery sends notifications through an ordered chain of mail
// providers and records what was delivered.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var ErrAllProvidersFailed = errors.New("all delivery providers failed")

// Message is what a provider puts on the wire.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Provider is one delivery channel (SMTP, Graph, log-only).
type Provider interface {
	// Name identifies the provider in records, logs and metrics.
	Name() string
	// Send delivers msg and returns the provider's delivery id.
	Send(ctx context.Context, msg Message) (string, error)
}

// AttemptError is the failure of one provider in a chain.
type AttemptError struct {
	Provider string
	Err      error
}

func (e *AttemptError) Error() string { return e.Provider + ": " + e.Err.Error() }
func (e *AttemptError) Unwrap() error { return e.Err }

// Delivered is the outcome of the first provider that accepted a message.
type Delivered struct {
	Provider   string
	DeliveryID string
}

// TryInOrder offers msg to each provider until one accepts it. When all of
// them fail the returned error wraps ErrAllProvidersFailed and every
// AttemptError. Each attempt is bounded by timeout when it is positive.
func TryInOrder(ctx context.Context, providers []Provider, msg Message, timeout time.Duration, logger *zap.Logger) (Delivered, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	errs := []error{ErrAllProvidersFailed}
	for _, p := range providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		id, err := attempt(ctx, p, msg, timeout)
		if err == nil {
			return Delivered{Provider: p.Name(), DeliveryID: id}, nil
		}
		logger.Warn("provider failed, trying next",
			zap.String("provider", p.Name()),
			zap.Error(err),
		)
		errs = append(errs, &AttemptError{Provider: p.Name(), Err: err})
	}
	if len(providers) == 0 {
		errs = append(errs, errors.New("no providers configured"))
	}
	return Delivered{}, errors.Join(errs...)
}

func attempt(ctx context.Context, p Provider, msg Message, timeout time.Duration) (id string, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panicked: %v", r)
		}
		observeAttempt(p.Name(), err, time.Since(start))
	}()
	return p.Send(ctx, msg)
}
