// internal/policy/policy.go
//
// Package policy classifies loans and debts by their age in calendar days.
//
// Everything here is pure: callers pass "today" explicitly, already placed
// in the location whose calendar should be used.
package policy

import (
	"errors"
	"fmt"
	"time"

	"prestamos/internal/lending"
)

// LoanAction is the outcome of classifying one loan.
type LoanAction string

const (
	LoanNone          LoanAction = "none"
	LoanRemindDueSoon LoanAction = "remind_due_soon"
	LoanMarkOverdue   LoanAction = "mark_overdue"
	LoanConvertToDebt LoanAction = "convert_to_debt"
)

// DebtAction is the outcome of classifying one debt.
type DebtAction string

const (
	DebtNone   DebtAction = "none"
	DebtRemind DebtAction = "remind"
)

type Policy struct {
	// ReminderLeadDays is how many days before the due date the due-soon
	// reminder starts.
	ReminderLeadDays int
	// GraceDaysBeforeDebt is how many days past due a vencido loan waits
	// before it is declared lost.
	GraceDaysBeforeDebt int
	// DebtReminderIntervalDays is the cadence of repeat debt reminders.
	DebtReminderIntervalDays int
}

func Defaults() Policy {
	return Policy{
		ReminderLeadDays:         2,
		GraceDaysBeforeDebt:      7,
		DebtReminderIntervalDays: 4,
	}
}

var ErrInvalidPolicy = errors.New("invalid policy")

func (p Policy) Validate() error {
	switch {
	case p.ReminderLeadDays < 0:
		return fmt.Errorf("%w: reminder lead days %d", ErrInvalidPolicy, p.ReminderLeadDays)
	case p.GraceDaysBeforeDebt < 1:
		return fmt.Errorf("%w: grace days %d", ErrInvalidPolicy, p.GraceDaysBeforeDebt)
	case p.DebtReminderIntervalDays < 1:
		return fmt.Errorf("%w: debt reminder interval %d", ErrInvalidPolicy, p.DebtReminderIntervalDays)
	}
	return nil
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = t.Location()
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DaysBetween counts calendar days from from to to, each read in its own
// location. It is positive when to is later.
func DaysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// ClassifyLoan decides what the supervisor should do with a loan today.
// A loan due today is neither due soon nor overdue.
func (p Policy) ClassifyLoan(loan lending.Loan, today time.Time) LoanAction {
	daysDiff := DaysBetween(today, loan.DueDate)
	switch loan.Status {
	case lending.LoanActive:
		if daysDiff > 0 && daysDiff <= p.ReminderLeadDays {
			return LoanRemindDueSoon
		}
		if daysDiff < 0 {
			return LoanMarkOverdue
		}
	case lending.LoanOverdue:
		// Only days past the due date count toward the grace period.
		if daysDiff <= -p.GraceDaysBeforeDebt {
			return LoanConvertToDebt
		}
	}
	return LoanNone
}

// ClassifyDebt fires on every multiple of the reminder interval since the
// debt was created. A day on which the supervisor does not run is missed,
// not caught up.
func (p Policy) ClassifyDebt(debt lending.Debt, today time.Time) DebtAction {
	if debt.Status != lending.DebtPending || p.DebtReminderIntervalDays < 1 {
		return DebtNone
	}
	days := DaysBetween(debt.CreatedAt, today)
	if days > 0 && days%p.DebtReminderIntervalDays == 0 {
		return DebtRemind
	}
	return DebtNone
}
