// internal/policy/policy_test.go
package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"prestamos/internal/lending"
)

var today = time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

func loanDue(status lending.LoanStatus, days int) lending.Loan {
	return lending.Loan{ID: "L", Status: status, DueDate: today.AddDate(0, 0, days)}
}

func TestClassifyLoanTable(t *testing.T) {
	p := Defaults()
	tests := []struct {
		name   string
		status lending.LoanStatus
		days   int
		want   LoanAction
	}{
		{"due in three days", lending.LoanActive, 3, LoanNone},
		{"due in two days", lending.LoanActive, 2, LoanRemindDueSoon},
		{"due tomorrow", lending.LoanActive, 1, LoanRemindDueSoon},
		{"due today", lending.LoanActive, 0, LoanNone},
		{"one day late", lending.LoanActive, -1, LoanMarkOverdue},
		{"overdue within grace", lending.LoanOverdue, -6, LoanNone},
		{"overdue at grace", lending.LoanOverdue, -7, LoanConvertToDebt},
		{"overdue past grace", lending.LoanOverdue, -30, LoanConvertToDebt},
		{"overdue with due date moved forward", lending.LoanOverdue, 10, LoanNone},
		{"returned long ago", lending.LoanReturned, -30, LoanNone},
		{"already lost", lending.LoanLost, -30, LoanNone},
		{"pending approval", lending.LoanPending, 1, LoanNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.ClassifyLoan(loanDue(tt.status, tt.days), today))
		})
	}
}

func TestDueTodayBelongsToNeitherBranch(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := Policy{
			ReminderLeadDays:         rapid.IntRange(0, 30).Draw(t, "lead"),
			GraceDaysBeforeDebt:      rapid.IntRange(1, 30).Draw(t, "grace"),
			DebtReminderIntervalDays: 1,
		}
		hour := rapid.IntRange(0, 23).Draw(t, "hour")
		loan := loanDue(lending.LoanActive, 0)
		loan.DueDate = loan.DueDate.Add(time.Duration(hour) * time.Hour)
		if got := p.ClassifyLoan(loan, today); got != LoanNone {
			t.Fatalf("due today classified as %s", got)
		}
	})
}

func TestClassifyLoanProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := Policy{
			ReminderLeadDays:         rapid.IntRange(0, 10).Draw(t, "lead"),
			GraceDaysBeforeDebt:      rapid.IntRange(1, 20).Draw(t, "grace"),
			DebtReminderIntervalDays: 4,
		}
		days := rapid.IntRange(-60, 60).Draw(t, "days")
		status := rapid.SampledFrom([]lending.LoanStatus{
			lending.LoanPending, lending.LoanActive, lending.LoanReturned, lending.LoanOverdue, lending.LoanLost,
		}).Draw(t, "status")

		got := p.ClassifyLoan(loanDue(status, days), today)
		switch got {
		case LoanRemindDueSoon:
			if status != lending.LoanActive || days <= 0 || days > p.ReminderLeadDays {
				t.Fatalf("reminder for %s due in %d", status, days)
			}
		case LoanMarkOverdue:
			if status != lending.LoanActive || days >= 0 {
				t.Fatalf("overdue for %s due in %d", status, days)
			}
		case LoanConvertToDebt:
			if status != lending.LoanOverdue || -days < p.GraceDaysBeforeDebt {
				t.Fatalf("conversion for %s due in %d", status, days)
			}
		case LoanNone:
			if status == lending.LoanActive && days < 0 {
				t.Fatalf("active loan %d days late left alone", -days)
			}
			if status == lending.LoanOverdue && -days >= p.GraceDaysBeforeDebt {
				t.Fatalf("overdue loan %d days late not converted", -days)
			}
		}
	})
}

func TestClassifyDebtCadence(t *testing.T) {
	p := Defaults()
	created := today.AddDate(0, 0, -8)
	debt := lending.Debt{Status: lending.DebtPending, CreatedAt: created}

	var fired []int
	for d := 0; d <= 12; d++ {
		if p.ClassifyDebt(debt, created.AddDate(0, 0, d)) == DebtRemind {
			fired = append(fired, d)
		}
	}
	assert.Equal(t, []int{4, 8, 12}, fired)

	debt.Status = lending.DebtPaid
	assert.Equal(t, DebtNone, p.ClassifyDebt(debt, created.AddDate(0, 0, 4)))
}

func TestDaysBetweenUsesCalendarDates(t *testing.T) {
	late := time.Date(2024, 5, 10, 23, 59, 0, 0, time.UTC)
	early := time.Date(2024, 5, 11, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysBetween(late, early))
	assert.Equal(t, -1, DaysBetween(early, late))

	// Across a DST change the count stays in whole days.
	ny, err := time.LoadLocation("America/New_York")
	if err == nil {
		a := time.Date(2024, 3, 9, 12, 0, 0, 0, ny)
		b := time.Date(2024, 3, 11, 12, 0, 0, 0, ny)
		assert.Equal(t, 2, DaysBetween(a, b))
	}
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("UTC-6", -6*3600)
	got := StartOfDay(time.Date(2024, 5, 10, 3, 0, 0, 0, time.UTC), loc)
	assert.Equal(t, time.Date(2024, 5, 9, 0, 0, 0, 0, loc), got)
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, Defaults().Validate())
	bad := Defaults()
	bad.DebtReminderIntervalDays = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidPolicy)
}
