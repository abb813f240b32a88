// internal/lifecycle/implementation.go
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"prestamos/internal/content"
	"prestamos/internal/inbox"
	"prestamos/internal/lending"
	"prestamos/internal/policy"
)

// service implements the Service interface.
type service struct {
	repo       *lending.Repository
	policy     policy.Policy
	dispatcher *Dispatcher
	loc        *time.Location
	timeout    time.Duration
	now        func() time.Time
	logger     *zap.Logger
	tracer     trace.Tracer

	mu sync.Mutex
}

type Option func(*service)

func WithLocation(loc *time.Location) Option { return func(s *service) { s.loc = loc } }

// WithCallTimeout bounds the snapshot load and the commit.
func WithCallTimeout(d time.Duration) Option { return func(s *service) { s.timeout = d } }

func WithClock(now func() time.Time) Option { return func(s *service) { s.now = now } }

// NewService creates a new lifecycle supervisor.
func NewService(repo *lending.Repository, pol policy.Policy, dispatcher *Dispatcher, logger *zap.Logger, opts ...Option) Service {
	s := &service{
		repo:       repo,
		policy:     pol,
		dispatcher: dispatcher,
		loc:        time.UTC,
		now:        time.Now,
		logger:     logger.Named("supervisor"),
		tracer:     otel.Tracer("prestamos/lifecycle"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one tick. State changes are committed in one batch before
// any notification is sent; load and commit failures end the run.
func (s *service) Run(ctx context.Context) (*Summary, error) {
	if !s.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "supervisor.run")
	defer span.End()

	start := time.Now()
	now := s.now()
	summary := &Summary{StartedAt: now}
	defer func() { summary.DurationMs = time.Since(start).Milliseconds() }()

	// Step 1: Load the snapshot
	lctx, cancel := s.bound(ctx)
	snap, err := s.repo.LoadSnapshot(lctx)
	cancel()
	if err != nil {
		return s.fail(span, summary, "load_error", fmt.Errorf("%w: %w", ErrLoad, err))
	}
	summary.LoansEvaluated = len(snap.Loans)
	summary.DebtsEvaluated = len(snap.Debts)
	summary.InvalidRecords = snap.Invalid

	// Step 2: Classify and stage state changes
	today := policy.StartOfDay(now, s.loc)
	batch := s.repo.NewBatch()
	queue := s.classify(snap, batch, today, now)
	summary.MarkedOverdue = batch.StatusChanges[lending.LoanOverdue]
	summary.MarkedLost = batch.StatusChanges[lending.LoanLost]
	summary.DebtsCreated = len(batch.NewDebts)
	summary.NotificationsQueued = len(queue)

	// Step 3: Commit the batch atomically
	cctx, cancel := s.bound(ctx)
	err = batch.Commit(cctx)
	cancel()
	if err != nil {
		return s.fail(span, summary, "commit_error", fmt.Errorf("%w: %w", ErrCommit, err))
	}
	transitionsTotal.WithLabelValues("overdue").Add(float64(summary.MarkedOverdue))
	transitionsTotal.WithLabelValues("lost").Add(float64(summary.MarkedLost))
	transitionsTotal.WithLabelValues("debt_created").Add(float64(summary.DebtsCreated))

	// Step 4: Dispatch notifications one at a time
	for _, n := range queue {
		user, _ := snap.UserByStudentID(n.StudentID)
		outcome, _ := s.dispatcher.Dispatch(ctx, user, n, false)
		notificationsTotal.WithLabelValues(string(n.Type), string(outcome)).Inc()
		summary.count(outcome)
	}

	span.SetAttributes(
		attribute.Int("loans.evaluated", summary.LoansEvaluated),
		attribute.Int("state.changes", summary.StateChanges()),
		attribute.Int("notifications.sent", summary.NotificationsSent),
	)
	runsTotal.WithLabelValues("success").Inc()
	s.logger.Info("supervisor run completed",
		zap.Int("loans", summary.LoansEvaluated),
		zap.Int("debts", summary.DebtsEvaluated),
		zap.Int("invalid", summary.InvalidRecords),
		zap.Int("marked_overdue", summary.MarkedOverdue),
		zap.Int("marked_lost", summary.MarkedLost),
		zap.Int("queued", summary.NotificationsQueued),
		zap.Int("sent", summary.NotificationsSent),
		zap.Int("deduplicated", summary.Deduplicated),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (s *service) classify(snap *lending.Snapshot, batch *lending.Batch, today, now time.Time) []Notification {
	var queue []Notification
	for _, loan := range snap.Loans {
		daysDiff := policy.DaysBetween(today, loan.DueDate)
		facts := content.Facts{
			RecipientName: loan.StudentName,
			MaterialName:  loan.MaterialName,
			DueDate:       loan.DueDate,
		}
		switch s.policy.ClassifyLoan(loan, today) {
		case policy.LoanRemindDueSoon:
			facts.Days = daysDiff
			queue = append(queue, loanNotification(inbox.TypeDueSoon, loan, facts))
		case policy.LoanMarkOverdue:
			batch.SetLoanStatus(loan.ID, lending.LoanOverdue, now)
			facts.Days = -daysDiff
			queue = append(queue, loanNotification(inbox.TypeOverdue, loan, facts))
		case policy.LoanConvertToDebt:
			batch.SetLoanStatus(loan.ID, lending.LoanLost, now)
			debt := batch.AddDebt(loan, now)
			facts.Days = -daysDiff
			facts.Amount = debt.Amount
			n := loanNotification(inbox.TypeNewDebt, loan, facts)
			n.DebtID = debt.ID
			queue = append(queue, n)
		}
	}
	for _, debt := range snap.Debts {
		if s.policy.ClassifyDebt(debt, today) != policy.DebtRemind {
			continue
		}
		queue = append(queue, Notification{
			Type:      inbox.TypeDebtReminder,
			StudentID: debt.StudentID,
			LoanID:    debt.LoanID,
			DebtID:    debt.ID,
			Facts: content.Facts{
				RecipientName: debt.StudentName,
				MaterialName:  debt.MaterialName,
				Days:          policy.DaysBetween(debt.CreatedAt, today),
				Amount:        debt.Amount,
			},
		})
	}
	return queue
}

func loanNotification(t inbox.Type, loan lending.Loan, facts content.Facts) Notification {
	return Notification{Type: t, StudentID: loan.StudentID, LoanID: loan.ID, Facts: facts}
}

func (s *service) fail(span trace.Span, summary *Summary, result string, err error) (*Summary, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, result)
	runsTotal.WithLabelValues(result).Inc()
	s.logger.Error("supervisor run failed", zap.String("result", result), zap.Error(err))
	return summary, err
}

func (s *service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
