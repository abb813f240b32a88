// internal/chaos/environment.go
package chaos

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"prestamos/internal/content"
	"prestamos/internal/dedup"
	"prestamos/internal/delivery"
	"prestamos/internal/inbox"
	"prestamos/internal/lending"
	"prestamos/internal/lifecycle"
	"prestamos/internal/policy"
	"prestamos/internal/store"
)

// Environment is a self-contained supervisor over an in-memory store with
// two delivery providers and a fault switch on each dependency.
type Environment struct {
	Store     *store.Memory
	Primary   *Sink
	Secondary *Sink

	PrimaryFault   *Switch
	GeneratorFault *Switch
	CommitFault    *Switch

	supervisor lifecycle.Service

	mu      sync.Mutex
	summary *lifecycle.Summary
	runErr  error
}

func NewEnvironment(logger *zap.Logger) *Environment {
	env := &Environment{
		Store:          store.NewMemory(),
		Primary:        NewSink("primary"),
		Secondary:      NewSink("secondary"),
		PrimaryFault:   &Switch{},
		GeneratorFault: &Switch{},
		CommitFault:    &Switch{},
	}

	in := inbox.New(env.Store)
	pipeline := delivery.NewPipeline([]delivery.Provider{
		&FaultyProvider{Provider: env.Primary, Fault: env.PrimaryFault},
		env.Secondary,
	}, in, logger, delivery.WithCallTimeout(time.Second))
	generator := &FaultyGenerator{Generator: content.TemplateGenerator{}, Fault: env.GeneratorFault}
	dispatcher := lifecycle.NewDispatcher(dedup.NewGuard(in, dedup.WithLogger(logger)), generator, pipeline, time.Second, logger)
	repo := lending.NewRepository(&FaultyStore{Store: env.Store, UpdateFault: env.CommitFault}, time.UTC, logger)

	env.supervisor = lifecycle.NewService(repo, policy.Defaults(), dispatcher, logger,
		lifecycle.WithCallTimeout(time.Second),
	)
	return env
}

// Seed writes one due-soon loan, one loan that just became overdue and one
// overdue loan past the grace period, each with its own borrower.
func (env *Environment) Seed(ctx context.Context, today time.Time) error {
	values := map[string]any{}
	loans := []struct {
		id, matricula, status string
		dueIn                 int
	}{
		{"L-soon", "C001", string(lending.LoanActive), 2},
		{"L-late", "C002", string(lending.LoanActive), -1},
		{"L-lost", "C003", string(lending.LoanOverdue), -7},
	}
	for i, l := range loans {
		values[store.Path(lending.CollectionUsers, fmt.Sprintf("u%d", i+1))] = map[string]any{
			"matricula": l.matricula,
			"nombre":    "Estudiante " + l.matricula,
			"correo":    l.matricula + "@alumnos.example.edu",
			"rol":       "estudiante",
		}
		values[store.Path(lending.CollectionLoans, l.id)] = map[string]any{
			"idMaterial":       "M-" + l.id,
			"nombreMaterial":   "Material " + l.id,
			"matricula":        l.matricula,
			"nombreEstudiante": "Estudiante " + l.matricula,
			"fechaPrestamo":    today.AddDate(0, 0, -14).Format(time.DateOnly),
			"fechaDevolucion":  today.AddDate(0, 0, l.dueIn).Format(time.DateOnly),
			"precioUnitario":   json.Number("250"),
			"estado":           l.status,
		}
	}
	return env.Store.Update(ctx, values)
}

// Supervise runs one supervisor tick and remembers its outcome.
func (env *Environment) Supervise(ctx context.Context) error {
	summary, err := env.supervisor.Run(ctx)
	env.mu.Lock()
	env.summary, env.runErr = summary, err
	env.mu.Unlock()
	return err
}

// LastRun returns the summary and error of the latest Supervise call.
func (env *Environment) LastRun() (*lifecycle.Summary, error) {
	env.mu.Lock()
	defer env.mu.Unlock()
	return env.summary, env.runErr
}

func (env *Environment) lastSummary() *lifecycle.Summary {
	if s, _ := env.LastRun(); s != nil {
		return s
	}
	return &lifecycle.Summary{}
}

// CountLoans counts loans currently stored with status.
func (env *Environment) CountLoans(ctx context.Context, status lending.LoanStatus) (int, error) {
	docs, err := env.Store.ReadAll(ctx, lending.CollectionLoans)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range docs {
		var doc struct {
			Estado string `json:"estado"`
		}
		if err := json.Unmarshal(d.Data, &doc); err != nil {
			return 0, err
		}
		if lending.LoanStatus(doc.Estado) == status {
			n++
		}
	}
	return n, nil
}

// CountRecords counts stored notification records.
func (env *Environment) CountRecords(ctx context.Context) (int, error) {
	docs, err := env.Store.ReadAll(ctx, inbox.CollectionNotifications)
	return len(docs), err
}
