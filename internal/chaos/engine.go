// internal/chaos/engine.go
package chaos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var ErrSteadyState = errors.New("steady state invalid")

// Experiment defines a chaos engineering test.
type Experiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Metric
	Method      []Action
	// Workload exercises the system while the faults are active.
	Workload   func(context.Context) error
	Observe    []Metric
	Rollback   []Action
	Validation []Assertion
}

// Metric defines a measurable system property.
type Metric struct {
	Name      string
	Query     func(context.Context) (float64, error)
	Threshold Threshold
}

type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

// Action is a fault injection or recovery step.
type Action struct {
	Type    string
	Target  string
	Execute func(context.Context) error
}

// Assertion validates the experiment outcome against the last observation
// of Metric.
type Assertion struct {
	Metric    string
	Condition func(float64) bool
	Message   string
}

type Result struct {
	ExperimentName   string             `json:"experiment_name"`
	StartTime        time.Time          `json:"start_time"`
	Duration         time.Duration      `json:"duration"`
	HypothesisHeld   bool               `json:"hypothesis_held"`
	SteadyStateValid bool               `json:"steady_state_valid"`
	Violations       []MetricViolation  `json:"violations,omitempty"`
	Observations     map[string]float64 `json:"observations"`
	Failed           []string           `json:"failed_assertions,omitempty"`
	ErrorEvents      []ErrorEvent       `json:"error_events,omitempty"`
}

type MetricViolation struct {
	MetricName string  `json:"metric_name"`
	Operator   string  `json:"operator"`
	Expected   float64 `json:"expected"`
	Actual     float64 `json:"actual"`
}

type ErrorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Component string    `json:"component"`
}

// Engine orchestrates chaos experiments.
type Engine struct {
	tracer trace.Tracer
	logger *zap.Logger

	mu          sync.Mutex
	experiments []Experiment
	results     []Result
}

func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{
		tracer: otel.Tracer("prestamos/chaos"),
		logger: logger.Named("chaos"),
	}
}

func (e *Engine) Register(exps ...Experiment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.experiments = append(e.experiments, exps...)
}

func (e *Engine) Experiments() []Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Experiment(nil), e.experiments...)
}

func (e *Engine) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.results...)
}

// Run executes a single experiment. Rollback always runs once the method
// has started, even when the workload fails.
func (e *Engine) Run(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)),
	)
	defer span.End()

	result := &Result{
		ExperimentName: exp.Name,
		StartTime:      time.Now(),
		Observations:   make(map[string]float64),
	}

	// Phase 1: Validate steady state
	span.AddEvent("validating_steady_state")
	if violations := e.check(ctx, exp.SteadyState); len(violations) > 0 {
		result.Violations = violations
		result.Duration = time.Since(result.StartTime)
		return result, fmt.Errorf("%w: %s", ErrSteadyState, exp.Name)
	}
	result.SteadyStateValid = true

	// Phase 2: Inject chaos
	span.AddEvent("injecting_chaos")
	e.execute(ctx, exp.Method, result)

	// Phase 3: Exercise and observe
	span.AddEvent("observing_system")
	if exp.Workload != nil {
		if err := exp.Workload(ctx); err != nil {
			result.ErrorEvents = append(result.ErrorEvents, ErrorEvent{
				Timestamp: time.Now(),
				Error:     err.Error(),
				Component: "workload",
			})
		}
	}
	for _, m := range exp.Observe {
		v, err := m.Query(ctx)
		if err != nil {
			result.ErrorEvents = append(result.ErrorEvents, ErrorEvent{
				Timestamp: time.Now(),
				Error:     err.Error(),
				Component: m.Name,
			})
			continue
		}
		result.Observations[m.Name] = v
	}

	// Phase 4: Rollback
	span.AddEvent("rolling_back")
	e.execute(ctx, exp.Rollback, result)

	// Phase 5: Validate assertions
	span.AddEvent("validating_assertions")
	for _, a := range exp.Validation {
		v, ok := result.Observations[a.Metric]
		if !ok || !a.Condition(v) {
			result.Failed = append(result.Failed, a.Message)
		}
	}
	result.HypothesisHeld = len(result.Failed) == 0
	result.Duration = time.Since(result.StartTime)

	e.mu.Lock()
	e.results = append(e.results, *result)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("failed_assertions", len(result.Failed)),
	)
	e.logger.Info("experiment finished",
		zap.String("experiment", exp.Name),
		zap.Bool("hypothesis_held", result.HypothesisHeld),
		zap.Strings("failed", result.Failed),
	)
	return result, nil
}

func (e *Engine) execute(ctx context.Context, actions []Action, result *Result) {
	span := trace.SpanFromContext(ctx)
	for _, action := range actions {
		if err := action.Execute(ctx); err != nil {
			result.ErrorEvents = append(result.ErrorEvents, ErrorEvent{
				Timestamp: time.Now(),
				Error:     err.Error(),
				Component: action.Target,
			})
			span.RecordError(err)
		}
	}
}

func (e *Engine) check(ctx context.Context, metrics []Metric) []MetricViolation {
	var violations []MetricViolation
	for _, m := range metrics {
		v, err := m.Query(ctx)
		if err != nil {
			v = -1
		}
		if err != nil || !m.Threshold.holds(v) {
			violations = append(violations, MetricViolation{
				MetricName: m.Name,
				Operator:   m.Threshold.Operator,
				Expected:   m.Threshold.Value,
				Actual:     v,
			})
		}
	}
	return violations
}

func (t Threshold) holds(v float64) bool {
	switch t.Operator {
	case ">":
		return v > t.Value
	case "<":
		return v < t.Value
	case ">=":
		return v >= t.Value
	case "<=":
		return v <= t.Value
	case "==":
		return v == t.Value
	default:
		return false
	}
}

// GameDay is a series of experiments run back to back.
type GameDay struct {
	Name      string
	Date      time.Time
	Scenarios []Experiment
	// Pause between scenarios.
	Pause time.Duration
}

// ExecuteGameDay runs every scenario and writes a report to w. It reports
// false when any hypothesis did not hold or any experiment aborted.
func (e *Engine) ExecuteGameDay(ctx context.Context, gd GameDay, w io.Writer) (bool, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.game_day",
		trace.WithAttributes(attribute.String("gameday.name", gd.Name)),
	)
	defer span.End()

	fmt.Fprintf(w, "Game Day: %s (%s)\n", gd.Name, gd.Date.Format(time.DateOnly))

	allHeld := true
	for i, scenario := range gd.Scenarios {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		fmt.Fprintf(w, "\nExperiment %d/%d: %s\n", i+1, len(gd.Scenarios), scenario.Name)
		fmt.Fprintf(w, "Hypothesis: %s\n", scenario.Hypothesis)

		result, err := e.Run(ctx, scenario)
		if err != nil {
			fmt.Fprintf(w, "ABORTED: %v\n", err)
			for _, v := range result.Violations {
				fmt.Fprintf(w, "  - %s: want %s %.2f, got %.2f\n", v.MetricName, v.Operator, v.Expected, v.Actual)
			}
			allHeld = false
			continue
		}
		printResult(w, result)
		allHeld = allHeld && result.HypothesisHeld

		if gd.Pause > 0 && i < len(gd.Scenarios)-1 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(gd.Pause):
			}
		}
	}
	span.SetAttributes(attribute.Bool("gameday.passed", allHeld))
	return allHeld, nil
}

func printResult(w io.Writer, result *Result) {
	if result.HypothesisHeld {
		fmt.Fprintln(w, "HELD: system behaved as expected")
	} else {
		fmt.Fprintln(w, "VIOLATED:")
		for _, msg := range result.Failed {
			fmt.Fprintf(w, "  - %s\n", msg)
		}
	}
	for _, ev := range result.ErrorEvents {
		fmt.Fprintf(w, "  error in %s: %s\n", ev.Component, ev.Error)
	}
	fmt.Fprintf(w, "Duration: %s\n", result.Duration.Round(time.Millisecond))
}
