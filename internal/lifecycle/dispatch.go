// internal/lifecycle/dispatch.go
package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"prestamos/internal/content"
	"prestamos/internal/delivery"
	"prestamos/internal/inbox"
	"prestamos/internal/lending"
)

// Guard is the deduplication check. *dedup.Guard implements it.
type Guard interface {
	ShouldSend(ctx context.Context, userID string, t inbox.Type) (bool, error)
	Sent(ctx context.Context, userID string, t inbox.Type)
}

// Deliverer sends one payload. *delivery.Pipeline implements it.
type Deliverer interface {
	Deliver(ctx context.Context, payload delivery.Payload) (delivery.Result, error)
}

// Dispatcher runs one notification through dedup, generation and
// delivery. Every failure is local to the notification.
type Dispatcher struct {
	guard     Guard
	generator content.Generator
	deliverer Deliverer
	timeout   time.Duration
	logger    *zap.Logger
}

func NewDispatcher(guard Guard, generator content.Generator, deliverer Deliverer, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		guard:     guard,
		generator: generator,
		deliverer: deliverer,
		timeout:   timeout,
		logger:    logger.Named("dispatch"),
	}
}

// Dispatch sends n to user. force skips the deduplication check.
func (d *Dispatcher) Dispatch(ctx context.Context, user lending.User, n Notification, force bool) (Outcome, delivery.Result) {
	log := d.logger.With(
		zap.String("user_id", user.ID),
		zap.String("type", string(n.Type)),
		zap.String("loan_id", n.LoanID),
		zap.String("debt_id", n.DebtID),
	)
	if user.ID == "" || user.Email == "" {
		log.Warn("no recipient for notification", zap.String("matricula", n.StudentID))
		return OutcomeNoRecipient, delivery.Result{}
	}

	if !force {
		gctx, cancel := d.bound(ctx)
		ok, err := d.guard.ShouldSend(gctx, user.ID, n.Type)
		cancel()
		if err != nil {
			log.Warn("dedup check failed, notification skipped", zap.Error(err))
			return OutcomeDedupError, delivery.Result{}
		}
		if !ok {
			log.Debug("notification suppressed by cooldown")
			return OutcomeDeduplicated, delivery.Result{}
		}
	}

	facts := n.Facts
	facts.Type = n.Type
	if user.Name != "" {
		facts.RecipientName = user.Name
	}
	cctx, cancel := d.bound(ctx)
	msg, err := content.Generate(cctx, d.generator, facts)
	cancel()
	if err != nil {
		log.Warn("content generation failed, notification skipped", zap.Error(err))
		return OutcomeGenerationFailed, delivery.Result{}
	}

	res, err := d.deliverer.Deliver(ctx, delivery.Payload{
		To:            user.Email,
		Subject:       msg.Subject,
		Content:       msg.HTMLBody,
		UserID:        user.ID,
		RecipientName: facts.RecipientName,
		Type:          n.Type,
	})
	if err != nil {
		log.Warn("delivery failed", zap.Error(err))
		return OutcomeDeliveryFailed, res
	}
	d.guard.Sent(ctx, user.ID, n.Type)
	log.Info("notification sent", zap.String("provider", res.ProviderUsed))
	return OutcomeSent, res
}

func (d *Dispatcher) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}
