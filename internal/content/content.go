// internal/content/content.go
//
// Package content turns notification facts into a subject and an HTML body.
package content

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"prestamos/internal/inbox"
)

var ErrEmptyContent = errors.New("generator returned empty content")

// Facts is everything a generator may mention. Days is the count that
// triggered the rule: days remaining, days overdue or days since the debt
// was created.
type Facts struct {
	Type          inbox.Type
	RecipientName string
	MaterialName  string
	DueDate       time.Time
	Days          int
	Amount        decimal.Decimal
}

type Content struct {
	Subject  string `json:"subject"`
	HTMLBody string `json:"htmlBody"`
}

func (c Content) Empty() bool {
	return strings.TrimSpace(c.Subject) == "" || strings.TrimSpace(c.HTMLBody) == ""
}

type Generator interface {
	Generate(ctx context.Context, facts Facts) (Content, error)
}

// Generate calls g and maps blank output to ErrEmptyContent.
func Generate(ctx context.Context, g Generator, facts Facts) (Content, error) {
	c, err := g.Generate(ctx, facts)
	if err != nil {
		return Content{}, err
	}
	if c.Empty() {
		return Content{}, ErrEmptyContent
	}
	return c, nil
}
