// internal/lending/repository.go
package lending

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"prestamos/internal/store"
)

// Snapshot is a best-effort point-in-time view of the three collections.
// The reads are independent; no cross-collection consistency is implied.
type Snapshot struct {
	Loans []Loan
	Debts []Debt
	Users []User

	// Invalid counts records rejected by schema validation.
	Invalid int

	byStudent map[string]User
}

// UserByStudentID finds the user registered under a matrícula.
func (s *Snapshot) UserByStudentID(studentID string) (User, bool) {
	if s.byStudent == nil {
		s.byStudent = make(map[string]User, len(s.Users))
		for _, u := range s.Users {
			if u.StudentID != "" {
				s.byStudent[u.StudentID] = u
			}
		}
	}
	u, ok := s.byStudent[studentID]
	return u, ok
}

// Repository reads and writes lending records through a Store.
type Repository struct {
	store   store.Store
	decoder *Decoder
	logger  *zap.Logger
}

func NewRepository(s store.Store, loc *time.Location, logger *zap.Logger) *Repository {
	return &Repository{
		store:   s,
		decoder: NewDecoder(loc),
		logger:  logger.Named("lending"),
	}
}

// LoadSnapshot reads loans, debts and users. Invalid records are skipped
// with a warning; a failed collection read is returned as an error.
func (r *Repository) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	loanDocs, err := r.store.ReadAll(ctx, CollectionLoans)
	if err != nil {
		return nil, fmt.Errorf("read loans: %w", err)
	}
	debtDocs, err := r.store.ReadAll(ctx, CollectionDebts)
	if err != nil {
		return nil, fmt.Errorf("read debts: %w", err)
	}
	userDocs, err := r.store.ReadAll(ctx, CollectionUsers)
	if err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}

	for _, doc := range loanDocs {
		loan, err := r.decoder.Loan(doc.Key, doc.Data)
		if err != nil {
			r.skip(snap, err)
			continue
		}
		snap.Loans = append(snap.Loans, loan)
	}
	for _, doc := range debtDocs {
		debt, err := r.decoder.Debt(doc.Key, doc.Data)
		if err != nil {
			r.skip(snap, err)
			continue
		}
		snap.Debts = append(snap.Debts, debt)
	}
	for _, doc := range userDocs {
		user, err := r.decoder.User(doc.Key, doc.Data)
		if err != nil {
			r.skip(snap, err)
			continue
		}
		snap.Users = append(snap.Users, user)
	}
	return snap, nil
}

func (r *Repository) skip(snap *Snapshot, err error) {
	snap.Invalid++
	r.logger.Warn("skipping invalid record", zap.Error(err))
}

// GetLoan loads and validates a single loan.
func (r *Repository) GetLoan(ctx context.Context, id string) (Loan, error) {
	raw, err := r.store.Get(ctx, store.Path(CollectionLoans, id))
	if err != nil {
		return Loan{}, fmt.Errorf("get loan %s: %w", id, err)
	}
	return r.decoder.Loan(id, raw)
}

// GetUser loads a single user by document key.
func (r *Repository) GetUser(ctx context.Context, id string) (User, error) {
	raw, err := r.store.Get(ctx, store.Path(CollectionUsers, id))
	if err != nil {
		return User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return r.decoder.User(id, raw)
}

// FindUserByStudentID scans users for a matrícula.
func (r *Repository) FindUserByStudentID(ctx context.Context, studentID string) (User, error) {
	docs, err := r.store.ReadAll(ctx, CollectionUsers)
	if err != nil {
		return User{}, fmt.Errorf("read users: %w", err)
	}
	for _, doc := range docs {
		var owner struct {
			StudentID string `json:"matricula"`
		}
		if json.Unmarshal(doc.Data, &owner) != nil || owner.StudentID != studentID {
			continue
		}
		return r.decoder.User(doc.Key, doc.Data)
	}
	return User{}, fmt.Errorf("user with matricula %s: %w", studentID, store.ErrNotFound)
}

// Batch accumulates state changes to commit as one atomic update.
type Batch struct {
	store  store.Store
	values map[string]any

	StatusChanges map[LoanStatus]int
	NewDebts      []Debt
}

func (r *Repository) NewBatch() *Batch {
	return &Batch{
		store:         r.store,
		values:        make(map[string]any),
		StatusChanges: make(map[LoanStatus]int),
	}
}

// SetLoanStatus records a loan status change stamped with at.
func (b *Batch) SetLoanStatus(loanID string, status LoanStatus, at time.Time) {
	b.values[store.Path(CollectionLoans, loanID, "estado")] = string(status)
	b.values[store.Path(CollectionLoans, loanID, "fechaActualizacion")] = at.Format(time.RFC3339)
	b.StatusChanges[status]++
}

// AddDebt stages a debt for loan under a fresh key and returns it.
func (b *Batch) AddDebt(loan Loan, at time.Time) Debt {
	debt := DebtFromLoan(b.store.NewKey(CollectionDebts), loan, at)
	b.values[store.Path(CollectionDebts, debt.ID)] = DebtDocument(debt)
	b.NewDebts = append(b.NewDebts, debt)
	return debt
}

// Len is the number of staged paths.
func (b *Batch) Len() int { return len(b.values) }

// Commit writes every staged path or none. An empty batch is a no-op.
func (b *Batch) Commit(ctx context.Context) error {
	if len(b.values) == 0 {
		return nil
	}
	if err := b.store.Update(ctx, b.values); err != nil {
		return fmt.Errorf("commit %d paths: %w", len(b.values), err)
	}
	return nil
}
