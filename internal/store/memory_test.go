// internal/store/memory_test.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestMemoryUpdateWholeAndField(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Update(ctx, map[string]any{
		"loans/L1":        map[string]any{"estado": "activo", "nombreMaterial": "Osciloscopio"},
		"loans/L1/estado": "vencido",
		"loans/L2/estado": "activo",
	}))

	raw, err := m.Get(ctx, "loans/L1")
	require.NoError(t, err)
	doc := decode(t, raw)
	assert.Equal(t, "vencido", doc["estado"])
	assert.Equal(t, "Osciloscopio", doc["nombreMaterial"])

	field, err := m.Get(ctx, "loans/L2/estado")
	require.NoError(t, err)
	assert.JSONEq(t, `"activo"`, string(field))

	docs, err := m.ReadAll(ctx, "loans")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "L1", docs[0].Key)
	assert.Equal(t, "L2", docs[1].Key)
}

func TestMemoryUpdateIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.Update(ctx, map[string]any{
		"loans/L1/estado": "vencido",
		"not-a-path":      "x",
	})
	require.True(t, errors.Is(err, ErrInvalidPath))

	_, err = m.Get(ctx, "loans/L1")
	assert.ErrorIs(t, err, ErrNotFound)

	err = m.Update(ctx, map[string]any{
		"loans/L1": "not an object",
		"debts/D1": map[string]any{"monto": 10},
	})
	require.Error(t, err)
	docs, err := m.ReadAll(ctx, "debts")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryGetMissing(t *testing.T) {
	m := NewMemory()
	_, err := m.Get(context.Background(), "users/u1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Get(context.Background(), "users")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestMemoryPushAndLastN(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var keys []string
	for i := 0; i < 4; i++ {
		key, err := m.Push(ctx, "notifications", map[string]any{"userId": "u1", "n": i})
		require.NoError(t, err)
		keys = append(keys, key)
	}
	_, err := m.Push(ctx, "notifications", map[string]any{"userId": "u2", "n": 99})
	require.NoError(t, err)

	docs, err := m.LastN(ctx, "notifications", "userId", "u1", 3)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, keys[3], docs[0].Key)
	assert.Equal(t, keys[2], docs[1].Key)
	assert.Equal(t, keys[1], docs[2].Key)

	all, err := m.LastN(ctx, "notifications", "userId", "u1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestNewKeyIsTimeOrdered(t *testing.T) {
	m := NewMemory()
	prev := m.NewKey("debts")
	for i := 0; i < 50; i++ {
		next := m.NewKey("debts")
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestParsePath(t *testing.T) {
	tgt, err := parsePath("/loans/L1/estado/")
	require.NoError(t, err)
	assert.Equal(t, target{collection: "loans", key: "L1", field: "estado"}, tgt)

	for _, bad := range []string{"", "loans", "loans//estado", "a/b/c/d"} {
		_, err := parsePath(bad)
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
}
