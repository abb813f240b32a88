// internal/lending/record.go
package lending

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrInvalidRecord reports a stored record that does not match its schema.
var ErrInvalidRecord = errors.New("invalid record")

// Timestamp decodes the date formats the web application has written over
// time: RFC3339 strings, bare YYYY-MM-DD dates and epoch milliseconds.
type Timestamp struct {
	time.Time
	DateOnly bool
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*t = Timestamp{}
		return nil
	}
	if b[0] != '"' {
		var ms float64
		if err := json.Unmarshal(b, &ms); err != nil {
			return fmt.Errorf("timestamp %s: %w", b, err)
		}
		*t = Timestamp{Time: time.UnixMilli(int64(ms)).UTC()}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	if t.DateOnly {
		return json.Marshal(t.Format(time.DateOnly))
	}
	return json.Marshal(t.Format(time.RFC3339))
}

// In resolves the timestamp in loc. Date-only values name a calendar day,
// so they become midnight of that day in loc instead of being shifted.
func (t Timestamp) In(loc *time.Location) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	if t.DateOnly {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	return t.Time.In(loc)
}

// ParseTimestamp parses one of the accepted string forms. The empty string
// yields the zero Timestamp.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		return Timestamp{Time: d, DateOnly: true}, nil
	}
	for _, layout := range dateLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: v}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognised date %q", s)
}

// loanRecord is a loan as the web application stores it.
type loanRecord struct {
	MaterialID   string           `json:"idMaterial" validate:"required"`
	MaterialName string           `json:"nombreMaterial" validate:"required"`
	StudentID    string           `json:"matricula" validate:"required"`
	StudentName  string           `json:"nombreEstudiante"`
	LoanDate     Timestamp        `json:"fechaPrestamo"`
	DueDate      Timestamp        `json:"fechaDevolucion" validate:"required"`
	UnitPrice    *decimal.Decimal `json:"precioUnitario" validate:"required"`
	Status       string           `json:"estado" validate:"required,oneof=pendiente activo devuelto vencido perdido"`
}

type debtRecord struct {
	StudentID    string           `json:"matricula" validate:"required"`
	StudentName  string           `json:"nombreEstudiante"`
	MaterialID   string           `json:"idMaterial"`
	MaterialName string           `json:"nombreMaterial"`
	Amount       *decimal.Decimal `json:"monto" validate:"required"`
	Status       string           `json:"estado" validate:"required,oneof=pendiente pagado"`
	CreatedAt    Timestamp        `json:"fechaCreacion" validate:"required"`
	UpdatedAt    Timestamp        `json:"fechaActualizacion"`
	Description  string           `json:"descripcion"`
	LoanID       string           `json:"idPrestamo,omitempty"`
}

type userRecord struct {
	StudentID string `json:"matricula"`
	Name      string `json:"nombre"`
	Email     string `json:"correo" validate:"omitempty,email"`
	Role      string `json:"rol"`
}

// Decoder validates raw documents and converts them into domain values.
// Dates are resolved in the configured location.
type Decoder struct {
	validate *validator.Validate
	loc      *time.Location
}

func NewDecoder(loc *time.Location) *Decoder {
	if loc == nil {
		loc = time.UTC
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if ts, ok := field.Interface().(Timestamp); ok {
			return ts.Time
		}
		return nil
	}, Timestamp{})
	return &Decoder{validate: v, loc: loc}
}

func (d *Decoder) check(kind, key string, raw json.RawMessage, rec any) error {
	if err := json.Unmarshal(raw, rec); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrInvalidRecord, kind, key, err)
	}
	if err := d.validate.Struct(rec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+":"+fe.Tag())
			}
			return fmt.Errorf("%w: %s %s: %s", ErrInvalidRecord, kind, key, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %s %s: %v", ErrInvalidRecord, kind, key, err)
	}
	return nil
}

func (d *Decoder) Loan(key string, raw json.RawMessage) (Loan, error) {
	var rec loanRecord
	if err := d.check("loan", key, raw, &rec); err != nil {
		return Loan{}, err
	}
	return Loan{
		ID:           key,
		MaterialID:   rec.MaterialID,
		MaterialName: rec.MaterialName,
		StudentID:    rec.StudentID,
		StudentName:  rec.StudentName,
		LoanDate:     rec.LoanDate.In(d.loc),
		DueDate:      rec.DueDate.In(d.loc),
		UnitPrice:    *rec.UnitPrice,
		Status:       LoanStatus(rec.Status),
	}, nil
}

func (d *Decoder) Debt(key string, raw json.RawMessage) (Debt, error) {
	var rec debtRecord
	if err := d.check("debt", key, raw, &rec); err != nil {
		return Debt{}, err
	}
	debt := Debt{
		ID:           key,
		LoanID:       rec.LoanID,
		StudentID:    rec.StudentID,
		StudentName:  rec.StudentName,
		MaterialID:   rec.MaterialID,
		MaterialName: rec.MaterialName,
		Amount:       *rec.Amount,
		Status:       DebtStatus(rec.Status),
		CreatedAt:    rec.CreatedAt.In(d.loc),
		UpdatedAt:    rec.UpdatedAt.In(d.loc),
		Description:  rec.Description,
	}
	if debt.UpdatedAt.IsZero() {
		debt.UpdatedAt = debt.CreatedAt
	}
	return debt, nil
}

func (d *Decoder) User(key string, raw json.RawMessage) (User, error) {
	var rec userRecord
	if err := d.check("user", key, raw, &rec); err != nil {
		return User{}, err
	}
	return User{
		ID:        key,
		StudentID: rec.StudentID,
		Name:      rec.Name,
		Email:     rec.Email,
		Role:      rec.Role,
	}, nil
}

// DebtDocument renders a debt in its stored form.
func DebtDocument(d Debt) any {
	amount := d.Amount
	return debtRecord{
		StudentID:    d.StudentID,
		StudentName:  d.StudentName,
		MaterialID:   d.MaterialID,
		MaterialName: d.MaterialName,
		Amount:       &amount,
		Status:       string(d.Status),
		CreatedAt:    Timestamp{Time: d.CreatedAt},
		UpdatedAt:    Timestamp{Time: d.UpdatedAt},
		Description:  d.Description,
		LoanID:       d.LoanID,
	}
}
