// internal/store/firebase.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
)

// Firebase is a Store backed by a Firebase Realtime Database. Keys are
// UUIDv7 strings so that key order matches creation order, which is what the
// database sorts equal children by.
type Firebase struct {
	client *db.Client
	tracer trace.Tracer
}

// NewFirebase connects to the database at url. credentialsFile may be empty
// to use application default credentials.
func NewFirebase(ctx context.Context, url, credentialsFile string) (*Firebase, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: url}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase database: %w", err)
	}
	return &Firebase{client: client, tracer: otel.Tracer("prestamos/store")}, nil
}

func (f *Firebase) ReadAll(ctx context.Context, collection string) ([]Document, error) {
	ctx, span := f.tracer.Start(ctx, "store.read_all",
		trace.WithAttributes(attribute.String("collection", collection)),
	)
	defer span.End()

	var raw map[string]json.RawMessage
	if err := f.client.NewRef(collection).Get(ctx, &raw); err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	docs := sortedDocuments(raw)
	span.SetAttributes(attribute.Int("documents.loaded", len(docs)))
	return docs, nil
}

func (f *Firebase) Get(ctx context.Context, path string) (json.RawMessage, error) {
	if _, err := parsePath(path); err != nil {
		return nil, err
	}
	ctx, span := f.tracer.Start(ctx, "store.get",
		trace.WithAttributes(attribute.String("path", path)),
	)
	defer span.End()

	var raw json.RawMessage
	if err := f.client.NewRef(path).Get(ctx, &raw); err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrNotFound
	}
	return raw, nil
}

// Update issues a single multi-location update at the root, which the
// database applies atomically.
func (f *Firebase) Update(ctx context.Context, values map[string]any) error {
	ctx, span := f.tracer.Start(ctx, "store.update",
		trace.WithAttributes(attribute.Int("paths", len(values))),
	)
	defer span.End()

	for p := range values {
		if _, err := parsePath(p); err != nil {
			return err
		}
	}
	if err := f.client.NewRef("/").Update(ctx, values); err != nil {
		return fmt.Errorf("multi-path update: %w", err)
	}
	return nil
}

func (f *Firebase) NewKey(string) string { return newKey() }

func (f *Firebase) Push(ctx context.Context, collection string, value any) (string, error) {
	return pushWith(ctx, f, collection, value)
}

func (f *Firebase) LastN(ctx context.Context, collection, field, value string, n int) ([]Document, error) {
	ctx, span := f.tracer.Start(ctx, "store.last_n",
		trace.WithAttributes(
			attribute.String("collection", collection),
			attribute.String("field", field),
			attribute.Int("limit", n),
		),
	)
	defer span.End()

	q := f.client.NewRef(collection).OrderByChild(field).EqualTo(value)
	if n > 0 {
		q = q.LimitToLast(n)
	}
	var raw map[string]json.RawMessage
	if err := q.Get(ctx, &raw); err != nil {
		return nil, fmt.Errorf("query %s by %s: %w", collection, field, err)
	}
	docs := sortedDocuments(raw)
	for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
		docs[i], docs[j] = docs[j], docs[i]
	}
	return docs, nil
}

func sortedDocuments(raw map[string]json.RawMessage) []Document {
	docs := make([]Document, 0, len(raw))
	for key, data := range raw {
		docs = append(docs, Document{Key: key, Data: data})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })
	return docs
}
