// internal/store/store.go
//
// Package store is the document store the lifecycle core persists to.
//
// Documents live in collections and are addressed by slash-separated paths:
// "loans/{key}" names a whole document and "loans/{key}/estado" names one
// top-level field of it. Backends provide whole-collection reads, atomic
// multi-path updates and time-ordered key generation.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrInvalidPath = errors.New("invalid document path")
	ErrConflict    = errors.New("concurrent update conflict")
)

// Document is one stored record.
type Document struct {
	Key  string
	Data json.RawMessage
}

type Store interface {
	// ReadAll returns every document of collection ordered by key.
	ReadAll(ctx context.Context, collection string) ([]Document, error)
	// Get returns the value stored at a document path.
	Get(ctx context.Context, path string) (json.RawMessage, error)
	// Update writes every path in values or none of them.
	Update(ctx context.Context, values map[string]any) error
	// NewKey generates a unique, time-ordered key. Nothing is written.
	NewKey(collection string) string
	// Push stores value under a fresh key and returns the key.
	Push(ctx context.Context, collection string, value any) (string, error)
	// LastN returns up to n documents whose top-level field equals value,
	// most recently created first.
	LastN(ctx context.Context, collection, field, value string, n int) ([]Document, error)
}

// Path joins segments into a document path.
func Path(segments ...string) string {
	return strings.Join(segments, "/")
}

type target struct {
	collection string
	key        string
	field      string
}

func parsePath(p string) (target, error) {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for _, part := range parts {
		if part == "" {
			return target{}, fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	switch len(parts) {
	case 2:
		return target{collection: parts[0], key: parts[1]}, nil
	case 3:
		return target{collection: parts[0], key: parts[1], field: parts[2]}, nil
	default:
		return target{}, fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
}

// newKey returns a UUIDv7 string; its lexical order follows creation time.
func newKey() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func pushWith(ctx context.Context, s Store, collection string, value any) (string, error) {
	key := s.NewKey(collection)
	if err := s.Update(ctx, map[string]any{Path(collection, key): value}); err != nil {
		return "", err
	}
	return key, nil
}
