// internal/lifecycle/domain.go
package lifecycle

import (
	"errors"
	"time"

	"prestamos/internal/content"
	"prestamos/internal/inbox"
)

var (
	// ErrLoad means the snapshot could not be read. Nothing was written.
	ErrLoad = errors.New("load snapshot")
	// ErrCommit means the state batch was rejected. No notification was sent.
	ErrCommit = errors.New("commit state changes")
	// ErrRunInProgress is returned when a tick is already running in this
	// process.
	ErrRunInProgress = errors.New("supervisor run already in progress")
)

// Summary reports one supervisor tick.
type Summary struct {
	StartedAt  time.Time `json:"startedAt"`
	DurationMs int64     `json:"durationMs"`

	LoansEvaluated int `json:"loansEvaluated"`
	DebtsEvaluated int `json:"debtsEvaluated"`
	InvalidRecords int `json:"invalidRecords"`

	MarkedOverdue int `json:"markedOverdue"`
	MarkedLost    int `json:"markedLost"`
	DebtsCreated  int `json:"debtsCreated"`

	NotificationsQueued int `json:"notificationsQueued"`
	NotificationsSent   int `json:"notificationsSent"`
	Deduplicated        int `json:"deduplicated"`
	Failed              int `json:"failed"`
	NoRecipient         int `json:"noRecipient"`
}

// StateChanges is the number of loan status updates in the committed batch.
func (s *Summary) StateChanges() int { return s.MarkedOverdue + s.MarkedLost }

// Notification is one message the tick decided to send.
type Notification struct {
	Type      inbox.Type
	StudentID string
	LoanID    string
	DebtID    string
	Facts     content.Facts
}

// Outcome of dispatching a single notification.
type Outcome string

const (
	OutcomeSent             Outcome = "sent"
	OutcomeDeduplicated     Outcome = "deduplicated"
	OutcomeNoRecipient      Outcome = "no_recipient"
	OutcomeDedupError       Outcome = "dedup_error"
	OutcomeGenerationFailed Outcome = "generation_failed"
	OutcomeDeliveryFailed   Outcome = "delivery_failed"
)

func (s *Summary) count(o Outcome) {
	switch o {
	case OutcomeSent:
		s.NotificationsSent++
	case OutcomeDeduplicated:
		s.Deduplicated++
	case OutcomeNoRecipient:
		s.NoRecipient++
	default:
		s.Failed++
	}
}
