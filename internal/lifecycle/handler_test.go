// internal/lifecycle/handler_test.go
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeService struct {
	summary *Summary
	err     error
	calls   int
}

func (f *fakeService) Run(context.Context) (*Summary, error) {
	f.calls++
	return f.summary, f.err
}

func trigger(t *testing.T, h *Handler, method, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	r := chi.NewRouter()
	h.Routes(r)
	req := httptest.NewRequest(method, "/cron/supervisor", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestTriggerRequiresSecret(t *testing.T) {
	svc := &fakeService{summary: &Summary{}}
	h := NewHandler(svc, "cron-secret", 0, zap.NewNop())

	w, body := trigger(t, h, http.MethodPost, "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Zero(t, svc.calls)

	w, _ = trigger(t, h, http.MethodGet, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTriggerRunsAndThrottles(t *testing.T) {
	svc := &fakeService{summary: &Summary{MarkedOverdue: 2, NotificationsSent: 3, StartedAt: time.Now()}}
	h := NewHandler(svc, "cron-secret", 0, zap.NewNop())

	w, body := trigger(t, h, http.MethodPost, "cron-secret")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body["message"], "3 notifications sent")
	summary := body["summary"].(map[string]any)
	assert.EqualValues(t, 3, summary["notificationsSent"])

	w, _ = trigger(t, h, http.MethodGet, "cron-secret")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 1, svc.calls)
}

func TestTriggerReportsFailure(t *testing.T) {
	svc := &fakeService{summary: &Summary{}, err: errors.Join(ErrCommit, errors.New("permission denied"))}
	h := NewHandler(svc, "cron-secret", 0, zap.NewNop())

	w, body := trigger(t, h, http.MethodPost, "cron-secret")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "permission denied")
}

func TestTriggerConflictWhileRunning(t *testing.T) {
	h := NewHandler(&fakeService{err: ErrRunInProgress}, "cron-secret", 0, zap.NewNop())
	w, _ := trigger(t, h, http.MethodPost, "cron-secret")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTriggeredRunHasDeadline(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	svc := serviceFunc(func(ctx context.Context) (*Summary, error) {
		deadline, hasDeadline = ctx.Deadline()
		return &Summary{}, nil
	})
	h := NewHandler(svc, "cron-secret", time.Minute, zap.NewNop())

	start := time.Now()
	w, _ := trigger(t, h, http.MethodPost, "cron-secret")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, hasDeadline)
	assert.WithinDuration(t, start.Add(time.Minute), deadline, 5*time.Second)
}

func TestScheduledRunsTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ran := make(chan struct{}, 4)
	svc := serviceFunc(func(context.Context) (*Summary, error) {
		select {
		case ran <- struct{}{}:
		default:
		}
		return &Summary{}, nil
	})
	StartScheduledRuns(ctx, svc, 5*time.Millisecond, time.Second, zap.NewNop())

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled run never happened")
	}
}

type serviceFunc func(context.Context) (*Summary, error)

func (f serviceFunc) Run(ctx context.Context) (*Summary, error) { return f(ctx) }
