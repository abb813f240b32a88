// internal/outreach/service.go
//
// Package outreach holds the admin-initiated notifications: a reminder for
// one loan and the bulk mailer.
package outreach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"prestamos/internal/content"
	"prestamos/internal/delivery"
	"prestamos/internal/inbox"
	"prestamos/internal/lending"
	"prestamos/internal/lifecycle"
	"prestamos/internal/policy"
)

var ErrNotRemindable = errors.New("loan is not active or overdue")

type Service interface {
	RemindLoan(ctx context.Context, loanID string, force bool) (*Reminder, error)
	Broadcast(ctx context.Context, req BulkRequest) (*BulkResult, error)
}

type Reminder struct {
	LoanID       string            `json:"loanId"`
	Type         inbox.Type        `json:"type"`
	Outcome      lifecycle.Outcome `json:"outcome"`
	ProviderUsed string            `json:"providerUsed,omitempty"`
}

type BulkRequest struct {
	UserIDs []string `json:"userIds" validate:"required,min=1,dive,required"`
	Subject string   `json:"subject" validate:"required"`
	Content string   `json:"content" validate:"required"`
}

type BulkResult struct {
	Requested   int `json:"requested"`
	Sent        int `json:"sent"`
	Failed      int `json:"failed"`
	NoRecipient int `json:"noRecipient"`
}

type service struct {
	repo       *lending.Repository
	dispatcher *lifecycle.Dispatcher
	deliverer  lifecycle.Deliverer
	loc        *time.Location
	now        func() time.Time
	logger     *zap.Logger
}

func NewService(repo *lending.Repository, dispatcher *lifecycle.Dispatcher, deliverer lifecycle.Deliverer, loc *time.Location, logger *zap.Logger) Service {
	if loc == nil {
		loc = time.UTC
	}
	return &service{
		repo:       repo,
		dispatcher: dispatcher,
		deliverer:  deliverer,
		loc:        loc,
		now:        time.Now,
		logger:     logger.Named("outreach"),
	}
}

// RemindLoan sends the due-soon reminder for an active loan that is not yet
// late and the overdue notice otherwise. force skips the cooldown.
func (s *service) RemindLoan(ctx context.Context, loanID string, force bool) (*Reminder, error) {
	loan, err := s.repo.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != lending.LoanActive && loan.Status != lending.LoanOverdue {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotRemindable, loanID, loan.Status)
	}
	user, err := s.repo.FindUserByStudentID(ctx, loan.StudentID)
	if err != nil {
		return nil, err
	}

	today := policy.StartOfDay(s.now(), s.loc)
	daysDiff := policy.DaysBetween(today, loan.DueDate)
	n := lifecycle.Notification{
		Type:      inbox.TypeDueSoon,
		StudentID: loan.StudentID,
		LoanID:    loan.ID,
		Facts: content.Facts{
			RecipientName: loan.StudentName,
			MaterialName:  loan.MaterialName,
			DueDate:       loan.DueDate,
			Days:          daysDiff,
		},
	}
	if loan.Status == lending.LoanOverdue || daysDiff < 0 {
		n.Type = inbox.TypeOverdue
		n.Facts.Days = -daysDiff
	}

	outcome, res := s.dispatcher.Dispatch(ctx, user, n, force)
	return &Reminder{LoanID: loan.ID, Type: n.Type, Outcome: outcome, ProviderUsed: res.ProviderUsed}, nil
}

// Broadcast delivers admin-authored content to every listed user.
func (s *service) Broadcast(ctx context.Context, req BulkRequest) (*BulkResult, error) {
	result := &BulkResult{Requested: len(req.UserIDs)}
	for _, id := range req.UserIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		user, err := s.repo.GetUser(ctx, id)
		if err != nil || user.Email == "" {
			s.logger.Warn("bulk recipient skipped", zap.String("user_id", id), zap.Error(err))
			result.NoRecipient++
			continue
		}
		_, err = s.deliverer.Deliver(ctx, deliveryPayload(user, req))
		if err != nil {
			s.logger.Warn("bulk delivery failed", zap.String("user_id", id), zap.Error(err))
			result.Failed++
			continue
		}
		result.Sent++
	}
	s.logger.Info("bulk notification finished",
		zap.Int("requested", result.Requested),
		zap.Int("sent", result.Sent),
	)
	return result, nil
}

func deliveryPayload(user lending.User, req BulkRequest) delivery.Payload {
	return delivery.Payload{
		To:            user.Email,
		Subject:       req.Subject,
		Content:       req.Content,
		UserID:        user.ID,
		RecipientName: user.Name,
		Type:          inbox.TypeBulk,
	}
}
