// internal/lending/domain.go
package lending

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// The web client reads amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	CollectionLoans = "loans"
	CollectionDebts = "debts"
	CollectionUsers = "users"
)

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanPending  LoanStatus = "pendiente"
	LoanActive   LoanStatus = "activo"
	LoanReturned LoanStatus = "devuelto"
	LoanOverdue  LoanStatus = "vencido"
	LoanLost     LoanStatus = "perdido"
)

func (s LoanStatus) Valid() bool {
	switch s {
	case LoanPending, LoanActive, LoanReturned, LoanOverdue, LoanLost:
		return true
	}
	return false
}

// DebtStatus is the payment state of a debt.
type DebtStatus string

const (
	DebtPending DebtStatus = "pendiente"
	DebtPaid    DebtStatus = "pagado"
)

// Loan represents one physical item checked out by a student.
type Loan struct {
	ID           string          `json:"id"`
	MaterialID   string          `json:"materialId"`
	MaterialName string          `json:"materialName"`
	StudentID    string          `json:"matricula"`
	StudentName  string          `json:"studentName"`
	LoanDate     time.Time       `json:"loanDate"`
	DueDate      time.Time       `json:"dueDate"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Status       LoanStatus      `json:"status"`
}

// Debt is a monetary obligation generated from a lost loan.
type Debt struct {
	ID           string          `json:"id"`
	LoanID       string          `json:"loanId,omitempty"`
	StudentID    string          `json:"matricula"`
	StudentName  string          `json:"studentName"`
	MaterialID   string          `json:"materialId"`
	MaterialName string          `json:"materialName"`
	Amount       decimal.Decimal `json:"amount"`
	Status       DebtStatus      `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	Description  string          `json:"description"`
}

// User is a borrower or administrator. Owned by the authentication
// subsystem; only read here.
type User struct {
	ID        string `json:"id"`
	StudentID string `json:"matricula"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// DebtFromLoan synthesises the debt owed for a lost loan. The amount is the
// loan's unit price and never changes afterwards.
func DebtFromLoan(id string, loan Loan, at time.Time) Debt {
	return Debt{
		ID:           id,
		LoanID:       loan.ID,
		StudentID:    loan.StudentID,
		StudentName:  loan.StudentName,
		MaterialID:   loan.MaterialID,
		MaterialName: loan.MaterialName,
		Amount:       loan.UnitPrice,
		Status:       DebtPending,
		CreatedAt:    at,
		UpdatedAt:    at,
		Description:  "Adeudo por material no devuelto: " + loan.MaterialName,
	}
}
