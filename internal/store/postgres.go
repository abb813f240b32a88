// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Schema creates the documents table used by Postgres.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	seq BIGSERIAL,
	collection TEXT NOT NULL,
	key TEXT NOT NULL,
	data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection, key)
);
CREATE INDEX IF NOT EXISTS documents_collection_seq ON documents (collection, seq DESC);
`

// Postgres stores documents as JSONB rows, one per (collection, key).
type Postgres struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{
		db:     db,
		tracer: otel.Tracer("prestamos/store"),
	}
}

// Migrate applies Schema.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate documents: %w", err)
	}
	return nil
}

func (p *Postgres) ReadAll(ctx context.Context, collection string) ([]Document, error) {
	ctx, span := p.tracer.Start(ctx, "store.read_all",
		trace.WithAttributes(attribute.String("collection", collection)),
	)
	defer span.End()

	rows, err := p.db.QueryContext(ctx, `
		SELECT key, data
		FROM documents
		WHERE collection = $1
		ORDER BY key ASC
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("documents.loaded", len(docs)))
	return docs, nil
}

func (p *Postgres) Get(ctx context.Context, path string) (json.RawMessage, error) {
	t, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	ctx, span := p.tracer.Start(ctx, "store.get",
		trace.WithAttributes(attribute.String("path", path)),
	)
	defer span.End()

	var raw []byte
	if t.field == "" {
		err = p.db.QueryRowContext(ctx, `
			SELECT data FROM documents WHERE collection = $1 AND key = $2
		`, t.collection, t.key).Scan(&raw)
	} else {
		err = p.db.QueryRowContext(ctx, `
			SELECT data -> $3 FROM documents WHERE collection = $1 AND key = $2 AND data ? $3
		`, t.collection, t.key, t.field).Scan(&raw)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return json.RawMessage(raw), nil
}

// Update applies every path inside one serializable transaction.
func (p *Postgres) Update(ctx context.Context, values map[string]any) error {
	ctx, span := p.tracer.Start(ctx, "store.update",
		trace.WithAttributes(attribute.Int("paths", len(values))),
	)
	defer span.End()

	type write struct {
		target
		raw []byte
	}
	var docs, fields []write
	for path, v := range values {
		t, err := parsePath(path)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		if t.field == "" {
			docs = append(docs, write{t, raw})
		} else {
			fields = append(fields, write{t, raw})
		}
	}

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, w := range docs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (collection, key, data)
			VALUES ($1, $2, $3::jsonb)
			ON CONFLICT (collection, key) DO UPDATE
			SET data = EXCLUDED.data, updated_at = NOW()
		`, w.collection, w.key, string(w.raw))
		if err != nil {
			return mapPQError(fmt.Sprintf("write %s/%s", w.collection, w.key), err)
		}
	}
	for _, w := range fields {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (collection, key, data)
			VALUES ($1, $2, jsonb_build_object($3::text, $4::jsonb))
			ON CONFLICT (collection, key) DO UPDATE
			SET data = jsonb_set(documents.data, ARRAY[$3::text], $4::jsonb, true), updated_at = NOW()
		`, w.collection, w.key, w.field, string(w.raw))
		if err != nil {
			return mapPQError(fmt.Sprintf("write %s/%s/%s", w.collection, w.key, w.field), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mapPQError("commit transaction", err)
	}
	span.SetAttributes(attribute.Bool("update.success", true))
	return nil
}

func (p *Postgres) NewKey(string) string { return newKey() }

func (p *Postgres) Push(ctx context.Context, collection string, value any) (string, error) {
	return pushWith(ctx, p, collection, value)
}

func (p *Postgres) LastN(ctx context.Context, collection, field, value string, n int) ([]Document, error) {
	ctx, span := p.tracer.Start(ctx, "store.last_n",
		trace.WithAttributes(
			attribute.String("collection", collection),
			attribute.String("field", field),
			attribute.Int("limit", n),
		),
	)
	defer span.End()

	rows, err := p.db.QueryContext(ctx, `
		SELECT key, data
		FROM documents
		WHERE collection = $1 AND data ->> $2 = $3
		ORDER BY seq DESC
		LIMIT $4
	`, collection, field, value, sql.NullInt64{Int64: int64(n), Valid: n > 0})
	if err != nil {
		return nil, fmt.Errorf("query %s by %s: %w", collection, field, err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	var docs []Document
	for rows.Next() {
		var d Document
		var raw []byte
		if err := rows.Scan(&d.Key, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.Data = json.RawMessage(raw)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func mapPQError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "40001" {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
