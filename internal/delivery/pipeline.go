// internal/delivery/pipeline.go
package delivery

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"prestamos/internal/inbox"
)

// Payload is one notification ready to deliver.
type Payload struct {
	To            string
	Subject       string
	Content       string
	UserID        string
	RecipientName string
	Type          inbox.Type
}

type Result struct {
	Success      bool   `json:"success"`
	ProviderUsed string `json:"providerUsed,omitempty"`
	DeliveryID   string `json:"deliveryId,omitempty"`
	// Recorded is false when the message went out but its Notification
	// Record could not be written.
	Recorded bool `json:"recorded"`
}

// Recorder persists delivered notifications and mirrors them to the
// client side channel. *inbox.Inbox implements it.
type Recorder interface {
	Append(ctx context.Context, rec inbox.Record) (inbox.Record, error)
	Mirror(ctx context.Context, n inbox.ClientNotification) error
}

type Pipeline struct {
	providers []Provider
	recorder  Recorder
	timeout   time.Duration
	now       func() time.Time
	logger    *zap.Logger
	tracer    trace.Tracer
}

type PipelineOption func(*Pipeline)

// WithCallTimeout bounds each provider attempt and each store write.
func WithCallTimeout(d time.Duration) PipelineOption { return func(p *Pipeline) { p.timeout = d } }

func WithClock(now func() time.Time) PipelineOption { return func(p *Pipeline) { p.now = now } }

func NewPipeline(providers []Provider, recorder Recorder, logger *zap.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		providers: providers,
		recorder:  recorder,
		now:       time.Now,
		logger:    logger.Named("delivery"),
		tracer:    otel.Tracer("prestamos/delivery"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Providers returns the chain in priority order.
func (p *Pipeline) Providers() []Provider { return p.providers }

// Deliver sends payload through the provider chain. On success a
// Notification Record is appended. The client mirror is written whatever
// the email outcome, and its failure is only logged.
func (p *Pipeline) Deliver(ctx context.Context, payload Payload) (Result, error) {
	ctx, span := p.tracer.Start(ctx, "delivery.deliver",
		trace.WithAttributes(
			attribute.String("user_id", payload.UserID),
			attribute.String("notification.type", string(payload.Type)),
		),
	)
	defer span.End()

	msg := Message{To: payload.To, Subject: payload.Subject, HTML: payload.Content}
	delivered, sendErr := TryInOrder(ctx, p.providers, msg, p.timeout, p.logger)

	p.mirror(ctx, payload)

	if sendErr != nil {
		span.RecordError(sendErr)
		span.SetStatus(codes.Error, "all providers failed")
		return Result{}, sendErr
	}
	span.SetAttributes(attribute.String("provider", delivered.Provider))

	res := Result{Success: true, ProviderUsed: delivered.Provider, DeliveryID: delivered.DeliveryID}
	wctx, cancel := p.bound(ctx)
	defer cancel()
	_, err := p.recorder.Append(wctx, inbox.Record{
		UserID:     payload.UserID,
		Type:       payload.Type,
		Subject:    payload.Subject,
		Message:    payload.Content,
		CreatedAt:  p.now(),
		Provider:   delivered.Provider,
		DeliveryID: delivered.DeliveryID,
	})
	if err != nil {
		p.logger.Error("notification delivered but not recorded",
			zap.String("user_id", payload.UserID),
			zap.String("provider", delivered.Provider),
			zap.Error(err),
		)
		return res, nil
	}
	res.Recorded = true
	return res, nil
}

func (p *Pipeline) mirror(ctx context.Context, payload Payload) {
	ctx, cancel := p.bound(ctx)
	defer cancel()
	err := p.recorder.Mirror(ctx, inbox.ClientNotification{
		UserID:    payload.UserID,
		Type:      payload.Type,
		Title:     payload.Subject,
		Message:   payload.Content,
		CreatedAt: p.now(),
	})
	if err != nil {
		p.logger.Warn("client notification mirror failed",
			zap.String("user_id", payload.UserID),
			zap.Error(err),
		)
	}
}

func (p *Pipeline) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.timeout)
}

// IsDeliveryFailure reports whether err means no provider accepted the
// message.
func IsDeliveryFailure(err error) bool { return errors.Is(err, ErrAllProvidersFailed) }
