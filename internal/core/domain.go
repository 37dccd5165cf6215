package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Canonical expense categories. The set is open-ended: aggregation
// groups by whatever label a record carries.
const (
	CategoryFood   = "food"
	CategoryPrint  = "print"
	CategoryTravel = "travel"
)

const dateLayout = "2006-01-02"

type (
	TransactionType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is a single recorded income or expense event. Amount is
	// always a non-negative magnitude; direction comes from Type.
	Transaction struct {
		ID       string
		Name     string
		Amount   Money
		Type     TransactionType
		Date     Date
		Category string // expense-only, may be empty
	}
)

var (
	ErrEmptyName     = errors.New("name must not be empty")
	ErrNameTooLong   = errors.New("name too long (max 200 characters)")
	ErrInvalidAmount = errors.New("amount must be a positive number")
	ErrInvalidType   = errors.New("type must be income or expense")
	ErrInvalidDate   = errors.New("invalid date")
)

// ValidationError reports which field of a transaction failed validation.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %v", e.Field, e.Err) }
func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a calendar date in YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Normalized returns a copy with trimmed fields, the date defaulted to
// the calendar date of now when unset, and the category cleared on
// income transactions.
func (t Transaction) Normalized(now time.Time) Transaction {
	t.Name = strings.TrimSpace(t.Name)
	t.Category = strings.ToLower(strings.TrimSpace(t.Category))
	if t.Date.IsZero() {
		t.Date = DateOf(now)
	}
	if t.Type == Income {
		t.Category = ""
	}
	return t
}

// Validate checks the required fields and returns a *ValidationError
// naming the first field that fails.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return invalid("name", ErrEmptyName)
	}
	if utf8.RuneCountInString(t.Name) > 200 {
		return invalid("name", ErrNameTooLong)
	}
	if err := t.Amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	if !t.Type.IsValid() {
		return invalid("type", ErrInvalidType)
	}
	if t.Date.IsZero() {
		return invalid("date", ErrInvalidDate)
	}
	return nil
}
