// internal/store/memory.go
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

type memDoc struct {
	seq  int64
	data map[string]json.RawMessage
}

// Memory is an in-process Store used for local runs and tests.
type Memory struct {
	mu   sync.RWMutex
	seq  int64
	docs map[string]map[string]*memDoc
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]*memDoc)}
}

func (m *Memory) ReadAll(_ context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]Document, 0, len(m.docs[collection]))
	for key, d := range m.docs[collection] {
		raw, err := json.Marshal(d.data)
		if err != nil {
			return nil, fmt.Errorf("encode %s/%s: %w", collection, key, err)
		}
		docs = append(docs, Document{Key: key, Data: raw})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })
	return docs, nil
}

func (m *Memory) Get(_ context.Context, path string) (json.RawMessage, error) {
	t, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[t.collection][t.key]
	if !ok {
		return nil, ErrNotFound
	}
	if t.field == "" {
		return json.Marshal(d.data)
	}
	v, ok := d.data[t.field]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

type memWrite struct {
	target
	raw json.RawMessage
	doc map[string]json.RawMessage
}

func (m *Memory) Update(_ context.Context, values map[string]any) error {
	// Encode everything before taking the lock so a bad value leaves the
	// store untouched.
	writes := make([]memWrite, 0, len(values))
	for p, v := range values {
		t, err := parsePath(p)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", p, err)
		}
		w := memWrite{target: t, raw: raw}
		if t.field == "" {
			if err := json.Unmarshal(raw, &w.doc); err != nil {
				return fmt.Errorf("%w: %s does not hold an object", ErrInvalidPath, p)
			}
		}
		writes = append(writes, w)
	}
	// Whole-document writes go first so field writes in the same batch land
	// on top of them.
	sort.SliceStable(writes, func(i, j int) bool {
		return writes[i].field == "" && writes[j].field != ""
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range writes {
		col, ok := m.docs[w.collection]
		if !ok {
			col = make(map[string]*memDoc)
			m.docs[w.collection] = col
		}
		d, exists := col[w.key]
		if !exists {
			m.seq++
			d = &memDoc{seq: m.seq, data: make(map[string]json.RawMessage)}
			col[w.key] = d
		}
		if w.field == "" {
			d.data = w.doc
			if d.data == nil {
				d.data = make(map[string]json.RawMessage)
			}
			continue
		}
		d.data[w.field] = w.raw
	}
	return nil
}

func (m *Memory) NewKey(string) string { return newKey() }

func (m *Memory) Push(ctx context.Context, collection string, value any) (string, error) {
	return pushWith(ctx, m, collection, value)
}

func (m *Memory) LastN(_ context.Context, collection, field, value string, n int) ([]Document, error) {
	want, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type hit struct {
		seq int64
		doc Document
	}
	var hits []hit
	for key, d := range m.docs[collection] {
		if !bytes.Equal(d.data[field], want) {
			continue
		}
		raw, err := json.Marshal(d.data)
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit{seq: d.seq, doc: Document{Key: key, Data: raw}})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].seq > hits[j].seq })
	if n > 0 && len(hits) > n {
		hits = hits[:n]
	}
	out := make([]Document, len(hits))
	for i, h := range hits {
		out[i] = h.doc
	}
	return out, nil
}
