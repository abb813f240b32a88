// internal/store/postgres_test.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB connects to PostgreSQL using the PG* environment variables.
// It skips the test if the connection cannot be established.
func setupTestDB(t testing.TB) *Postgres {
	t.Helper()

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		envOr("PGHOST", "localhost"),
		envOr("PGPORT", "5432"),
		envOr("PGUSER", "user"),
		envOr("PGPASSWORD", "password"),
		envOr("PGDATABASE", "testdb"),
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("failed to open database connection: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Ping(); err != nil {
		t.Skipf("skipping postgres store tests: could not connect to postgres: %v", err)
	}

	p := NewPostgres(db)
	require.NoError(t, p.Migrate(context.Background()))
	_, err = db.Exec(`DELETE FROM documents WHERE collection LIKE 'test_%'`)
	require.NoError(t, err)
	return p
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestPostgresUpdateAndRead(t *testing.T) {
	p := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, p.Update(ctx, map[string]any{
		"test_loans/L1":        map[string]any{"estado": "activo", "precioUnitario": 120.5},
		"test_loans/L1/estado": "vencido",
	}))

	raw, err := p.Get(ctx, "test_loans/L1/estado")
	require.NoError(t, err)
	assert.JSONEq(t, `"vencido"`, string(raw))

	docs, err := p.ReadAll(ctx, "test_loans")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.JSONEq(t, `{"estado":"vencido","precioUnitario":120.5}`, string(docs[0].Data))

	_, err = p.Get(ctx, "test_loans/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresLastN(t *testing.T) {
	p := setupTestDB(t)
	ctx := context.Background()

	var last string
	for i := 0; i < 3; i++ {
		key, err := p.Push(ctx, "test_notifications", map[string]any{"userId": "u1", "n": i})
		require.NoError(t, err)
		last = key
	}

	docs, err := p.LastN(ctx, "test_notifications", "userId", "u1", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, last, docs[0].Key)
}

func BenchmarkPostgresUpdate(b *testing.B) {
	p := setupTestDB(b)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := p.NewKey("test_bench")
		values := map[string]any{Path("test_bench", key): map[string]any{"n": i}}
		values[Path("test_bench", key, "estado")] = "activo"
		err := p.Update(ctx, values)
		if err != nil {
			b.Fatalf("Update failed: %v", err)
		}
	}
}
