// internal/inbox/inbox.go
//
// Package inbox keeps the append-only Notification Records that double as
// each user's in-app inbox and as the lookback source for deduplication.
package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"prestamos/internal/lending"
	"prestamos/internal/store"
)

const (
	CollectionNotifications = "notifications"
	CollectionClient        = "clientNotifications"
)

// Type tags the rule that produced a notification.
type Type string

const (
	TypeDueSoon      Type = "remind_due_soon"
	TypeOverdue      Type = "mark_overdue"
	TypeNewDebt      Type = "newDebt"
	TypeDebtReminder Type = "debtReminder"
	TypeBulk         Type = "bulk"
)

var ErrForbidden = errors.New("notification belongs to another user")

// Record is one dispatched message.
type Record struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Type       Type      `json:"type"`
	Subject    string    `json:"subject"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
	Read       bool      `json:"read"`
	Provider   string    `json:"provider,omitempty"`
	DeliveryID string    `json:"deliveryId,omitempty"`
}

// ClientNotification is the lightweight entry the web client polls.
type ClientNotification struct {
	UserID    string
	Type      Type
	Title     string
	Message   string
	CreatedAt time.Time
}

type recordDoc struct {
	UserID     string            `json:"userId"`
	Type       Type              `json:"tipo"`
	Subject    string            `json:"asunto"`
	Message    string            `json:"mensaje"`
	CreatedAt  lending.Timestamp `json:"fechaCreacion"`
	Read       bool              `json:"leida"`
	Provider   string            `json:"proveedor,omitempty"`
	DeliveryID string            `json:"idEntrega,omitempty"`
}

type clientDoc struct {
	UserID    string            `json:"userId"`
	Type      Type              `json:"tipo"`
	Title     string            `json:"titulo"`
	Message   string            `json:"mensaje"`
	CreatedAt lending.Timestamp `json:"fechaCreacion"`
	Read      bool              `json:"leida"`
}

type Inbox struct {
	store store.Store
}

func New(s store.Store) *Inbox {
	return &Inbox{store: s}
}

// Append stores rec under a fresh key and returns it with ID set.
func (i *Inbox) Append(ctx context.Context, rec Record) (Record, error) {
	doc := recordDoc{
		UserID:     rec.UserID,
		Type:       rec.Type,
		Subject:    rec.Subject,
		Message:    rec.Message,
		CreatedAt:  lending.Timestamp{Time: rec.CreatedAt},
		Read:       rec.Read,
		Provider:   rec.Provider,
		DeliveryID: rec.DeliveryID,
	}
	key, err := i.store.Push(ctx, CollectionNotifications, doc)
	if err != nil {
		return Record{}, fmt.Errorf("append notification: %w", err)
	}
	rec.ID = key
	return rec, nil
}

// Recent returns up to n records for userID, newest first. n <= 0 returns
// all of them.
func (i *Inbox) Recent(ctx context.Context, userID string, n int) ([]Record, error) {
	docs, err := i.store.LastN(ctx, CollectionNotifications, "userId", userID, n)
	if err != nil {
		return nil, fmt.Errorf("recent notifications for %s: %w", userID, err)
	}
	records := make([]Record, 0, len(docs))
	for _, d := range docs {
		rec, err := decodeRecord(d.Key, d.Data)
		if err != nil {
			// Old entries written by hand may not decode; they never block
			// the rest of the inbox.
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// List is the full inbox of userID, newest first.
func (i *Inbox) List(ctx context.Context, userID string) ([]Record, error) {
	return i.Recent(ctx, userID, 0)
}

// MarkRead flips the read flag of one record owned by userID. It is the
// only mutation a record ever sees.
func (i *Inbox) MarkRead(ctx context.Context, userID, id string) error {
	raw, err := i.store.Get(ctx, store.Path(CollectionNotifications, id))
	if err != nil {
		return fmt.Errorf("get notification %s: %w", id, err)
	}
	rec, err := decodeRecord(id, raw)
	if err != nil {
		return err
	}
	if rec.UserID != userID {
		return ErrForbidden
	}
	if rec.Read {
		return nil
	}
	return i.store.Update(ctx, map[string]any{
		store.Path(CollectionNotifications, id, "leida"): true,
	})
}

// Mirror writes n to the client notification collection.
func (i *Inbox) Mirror(ctx context.Context, n ClientNotification) error {
	_, err := i.store.Push(ctx, CollectionClient, clientDoc{
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		CreatedAt: lending.Timestamp{Time: n.CreatedAt},
	})
	if err != nil {
		return fmt.Errorf("mirror client notification: %w", err)
	}
	return nil
}

func decodeRecord(key string, raw json.RawMessage) (Record, error) {
	var doc recordDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Record{}, fmt.Errorf("decode notification %s: %w", key, err)
	}
	return Record{
		ID:         key,
		UserID:     doc.UserID,
		Type:       doc.Type,
		Subject:    doc.Subject,
		Message:    doc.Message,
		CreatedAt:  doc.CreatedAt.Time,
		Read:       doc.Read,
		Provider:   doc.Provider,
		DeliveryID: doc.DeliveryID,
	}, nil
}
