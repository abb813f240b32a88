// internal/chaos/experiments.go
package chaos

import (
	"context"
	"errors"
	"time"

	"prestamos/internal/lending"
	"prestamos/internal/lifecycle"
)

func count(f func() int) func(context.Context) (float64, error) {
	return func(context.Context) (float64, error) { return float64(f()), nil }
}

func flag(f func() bool) func(context.Context) (float64, error) {
	return func(context.Context) (float64, error) {
		if f() {
			return 1, nil
		}
		return 0, nil
	}
}

func seeded(env *Environment, today time.Time) Action {
	return Action{
		Type:    "seed",
		Target:  "memory-store",
		Execute: func(ctx context.Context) error { return env.Seed(ctx, today) },
	}
}

func noNotifications(env *Environment) Metric {
	return Metric{
		Name:      "notification_records",
		Query:     func(ctx context.Context) (float64, error) { n, err := env.CountRecords(ctx); return float64(n), err },
		Threshold: Threshold{Operator: "==", Value: 0},
	}
}

// PrimaryProviderOutage takes the first provider down for a whole run.
func PrimaryProviderOutage(env *Environment, today time.Time) Experiment {
	return Experiment{
		Name:        "primary-provider-outage",
		Hypothesis:  "Every notification is delivered by the secondary provider when the primary rejects all sends",
		SteadyState: []Metric{noNotifications(env)},
		Method: []Action{
			seeded(env, today),
			env.PrimaryFault.action("provider-failure", "primary", true),
		},
		Workload: env.Supervise,
		Observe: []Metric{
			{Name: "queued", Query: count(func() int { return env.lastSummary().NotificationsQueued })},
			{Name: "sent", Query: count(func() int { return env.lastSummary().NotificationsSent })},
			{Name: "primary_deliveries", Query: count(env.Primary.Count)},
			{Name: "secondary_deliveries", Query: count(env.Secondary.Count)},
			{Name: "records", Query: func(ctx context.Context) (float64, error) { n, err := env.CountRecords(ctx); return float64(n), err }},
		},
		Rollback: []Action{env.PrimaryFault.action("restore-provider", "primary", false)},
		Validation: []Assertion{
			{Metric: "queued", Condition: func(v float64) bool { return v > 0 }, Message: "the run should queue notifications"},
			{Metric: "primary_deliveries", Condition: func(v float64) bool { return v == 0 }, Message: "the primary provider should deliver nothing"},
			{Metric: "secondary_deliveries", Condition: matchesQueued(env), Message: "the secondary provider should deliver every queued notification"},
			{Metric: "records", Condition: matchesQueued(env), Message: "each delivered notification should be recorded once"},
		},
	}
}

// GeneratorOutage makes content generation fail for a whole run.
func GeneratorOutage(env *Environment, today time.Time) Experiment {
	return Experiment{
		Name:        "content-generator-outage",
		Hypothesis:  "The run still commits state changes and completes, sending nothing, when content generation fails",
		SteadyState: []Metric{noNotifications(env)},
		Method: []Action{
			seeded(env, today),
			env.GeneratorFault.action("generator-failure", "content-generator", true),
		},
		Workload: env.Supervise,
		Observe: []Metric{
			{Name: "run_succeeded", Query: flag(func() bool { _, err := env.LastRun(); return err == nil })},
			{Name: "state_changes", Query: count(func() int { return env.lastSummary().StateChanges() })},
			{Name: "sent", Query: count(func() int { return env.lastSummary().NotificationsSent })},
			{Name: "failed", Query: count(func() int { return env.lastSummary().Failed })},
			{Name: "provider_deliveries", Query: count(func() int { return env.Primary.Count() + env.Secondary.Count() })},
		},
		Rollback: []Action{env.GeneratorFault.action("restore-generator", "content-generator", false)},
		Validation: []Assertion{
			{Metric: "run_succeeded", Condition: func(v float64) bool { return v == 1 }, Message: "the run should complete without error"},
			{Metric: "state_changes", Condition: func(v float64) bool { return v > 0 }, Message: "state changes should be committed"},
			{Metric: "sent", Condition: func(v float64) bool { return v == 0 }, Message: "no notification should be sent"},
			{Metric: "failed", Condition: func(v float64) bool { return v > 0 }, Message: "failed notifications should be counted"},
			{Metric: "provider_deliveries", Condition: func(v float64) bool { return v == 0 }, Message: "no provider should be called"},
		},
	}
}

// CommitFailure rejects the batch commit of a run.
func CommitFailure(env *Environment, today time.Time) Experiment {
	return Experiment{
		Name:        "commit-failure",
		Hypothesis:  "A run whose commit fails persists nothing and sends no notification",
		SteadyState: []Metric{noNotifications(env)},
		Method: []Action{
			seeded(env, today),
			env.CommitFault.action("store-failure", "memory-store", true),
		},
		Workload: env.Supervise,
		Observe: []Metric{
			{Name: "commit_error", Query: flag(func() bool { _, err := env.LastRun(); return errors.Is(err, lifecycle.ErrCommit) })},
			{Name: "provider_deliveries", Query: count(func() int { return env.Primary.Count() + env.Secondary.Count() })},
			{Name: "overdue_loans", Query: func(ctx context.Context) (float64, error) {
				n, err := env.CountLoans(ctx, lending.LoanOverdue)
				return float64(n), err
			}},
			{Name: "lost_loans", Query: func(ctx context.Context) (float64, error) {
				n, err := env.CountLoans(ctx, lending.LoanLost)
				return float64(n), err
			}},
		},
		Rollback: []Action{env.CommitFault.action("restore-store", "memory-store", false)},
		Validation: []Assertion{
			{Metric: "commit_error", Condition: func(v float64) bool { return v == 1 }, Message: "the run should fail with a commit error"},
			{Metric: "provider_deliveries", Condition: func(v float64) bool { return v == 0 }, Message: "no notification should be sent"},
			// The seed holds exactly one loan already marked overdue.
			{Metric: "overdue_loans", Condition: func(v float64) bool { return v == 1 }, Message: "no loan should be marked overdue"},
			{Metric: "lost_loans", Condition: func(v float64) bool { return v == 0 }, Message: "no loan should be marked lost"},
		},
	}
}

// matchesQueued holds when v equals the notifications queued by the last run.
func matchesQueued(env *Environment) func(float64) bool {
	return func(v float64) bool { return v == float64(env.lastSummary().NotificationsQueued) }
}

// StandardExperiments builds the three failure experiments, each on its own
// freshly created environment.
func StandardExperiments(newEnv func() *Environment, today time.Time) []Experiment {
	return []Experiment{
		PrimaryProviderOutage(newEnv(), today),
		GeneratorOutage(newEnv(), today),
		CommitFailure(newEnv(), today),
	}
}
