// internal/inbox/inbox_test.go
package inbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"prestamos/internal/store"
)

func TestAppendAndRecent(t *testing.T) {
	ctx := context.Background()
	in := New(store.NewMemory())
	at := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	for _, typ := range []Type{TypeDueSoon, TypeOverdue, TypeNewDebt} {
		_, err := in.Append(ctx, Record{UserID: "u1", Type: typ, Subject: string(typ), CreatedAt: at})
		require.NoError(t, err)
	}
	_, err := in.Append(ctx, Record{UserID: "u2", Type: TypeDueSoon, CreatedAt: at})
	require.NoError(t, err)

	recent, err := in.Recent(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, TypeNewDebt, recent[0].Type)
	assert.Equal(t, TypeOverdue, recent[1].Type)
	assert.True(t, at.Equal(recent[0].CreatedAt))

	all, err := in.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	in := New(store.NewMemory())
	rec, err := in.Append(ctx, Record{UserID: "u1", Type: TypeDueSoon, CreatedAt: time.Now()})
	require.NoError(t, err)

	assert.ErrorIs(t, in.MarkRead(ctx, "u2", rec.ID), ErrForbidden)
	assert.ErrorIs(t, in.MarkRead(ctx, "u1", "missing"), store.ErrNotFound)
	require.NoError(t, in.MarkRead(ctx, "u1", rec.ID))

	list, err := in.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Read)
}

func TestMirrorWritesClientCollection(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	in := New(mem)
	require.NoError(t, in.Mirror(ctx, ClientNotification{UserID: "u1", Type: TypeBulk, Title: "Aviso", CreatedAt: time.Now()}))

	docs, err := mem.ReadAll(ctx, CollectionClient)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(docs[0].Data, &doc))
	assert.Equal(t, "Aviso", doc["titulo"])
	assert.Equal(t, false, doc["leida"])
}

func TestHandler(t *testing.T) {
	ctx := context.Background()
	in := New(store.NewMemory())
	rec, err := in.Append(ctx, Record{UserID: "u1", Type: TypeOverdue, Subject: "Préstamo vencido", CreatedAt: time.Now()})
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(in, zap.NewNop()).Routes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/u1/notifications", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var got []Record
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "Préstamo vencido", got[0].Subject)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users/u2/notifications/"+rec.ID+"/read", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users/u1/notifications/"+rec.ID+"/read", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users/u1/notifications/nope/read", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
