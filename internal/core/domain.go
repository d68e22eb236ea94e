package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used on every boundary.
const DateLayout = "2006-01-02"

const (
	maxCategoryLen = 100
	maxNoteLen     = 200
)

type (
	Date struct {
		time.Time
	}

	// ExpenseRecord is one logged spend event.
	ExpenseRecord struct {
		ID             string `json:"id,omitempty"`
		Category       string `json:"category"`
		Amount         Amount `json:"amount"`
		Date           string `json:"date"`
		MonthlyPlanned Amount `json:"monthlyPlanned"`
		Note           string `json:"note,omitempty"`
	}

	// Profile holds the per-user values the insights are measured against.
	Profile struct {
		Income      Amount `json:"income"`
		SavingsGoal Amount `json:"savingsGoal"`
	}

	// Snapshot is a report computed out-of-band and stored for later reads.
	Snapshot struct {
		UserID        string          `json:"userId"`
		ReferenceDate string          `json:"referenceDate"`
		Report        json.RawMessage `json:"report"`
		CreatedAt     time.Time       `json:"createdAt"`
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyUserID     = errors.New("empty user id")
	ErrCategoryTooLong = errors.New("category too long (max 100 characters)")
	ErrNoteTooLong     = errors.New("note too long (max 200 characters)")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// Today returns the current calendar date in the local time zone.
func Today() Date {
	now := time.Now()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

// NormalizeDate reduces a date or timestamp string to its YYYY-MM-DD part.
// Unparseable input is returned trimmed and otherwise untouched.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) && (s[len(DateLayout)] == 'T' || s[len(DateLayout)] == ' ') {
		return s[:len(DateLayout)]
	}
	return s
}

// AvailableBudget is income minus the savings goal. It may be negative.
func (p Profile) AvailableBudget() Amount {
	return Amount{Decimal: p.Income.Sub(p.SavingsGoal.Decimal)}
}

// UnmarshalJSON decodes a profile leniently, accepting both camelCase and
// snake_case keys. Non-object input yields a zero profile.
func (p *Profile) UnmarshalJSON(b []byte) error {
	*p = Profile{}
	fields, ok := objectFields(b)
	if !ok {
		return nil
	}
	if v, ok := fields["income"]; ok {
		_ = p.Income.UnmarshalJSON(v)
	}
	if v, ok := pick(fields, "savingsGoal", "savings_goal"); ok {
		_ = p.SavingsGoal.UnmarshalJSON(v)
	}
	return nil
}

// UnmarshalJSON decodes a record leniently. Wrong-typed fields fall back to
// their zero value and non-object input yields an empty record.
func (e *ExpenseRecord) UnmarshalJSON(b []byte) error {
	*e = ExpenseRecord{}
	fields, ok := objectFields(b)
	if !ok {
		return nil
	}
	e.ID = stringField(fields, "id")
	e.Category = stringField(fields, "category")
	e.Date = stringField(fields, "date")
	e.Note = stringField(fields, "note")
	if v, ok := fields["amount"]; ok {
		_ = e.Amount.UnmarshalJSON(v)
	}
	if v, ok := pick(fields, "monthlyPlanned", "monthly_planned"); ok {
		_ = e.MonthlyPlanned.UnmarshalJSON(v)
	}
	return nil
}

// Validate checks a record that is about to be logged.
func (e ExpenseRecord) Validate() error {
	if e.Amount.IsNegative() || e.MonthlyPlanned.IsNegative() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(e.Date) != "" {
		if _, err := ParseDate(NormalizeDate(e.Date)); err != nil {
			return err
		}
	}
	if len(strings.TrimSpace(e.Category)) > maxCategoryLen {
		return ErrCategoryTooLong
	}
	if len(e.Note) > maxNoteLen {
		return ErrNoteTooLong
	}
	return nil
}

// Cleaned returns the record as it should be stored: category trimmed (or
// "Uncategorized"), date defaulted to today and reduced to YYYY-MM-DD, and
// negative amounts zeroed.
func (e ExpenseRecord) Cleaned(today Date) ExpenseRecord {
	out := e
	out.Category = strings.TrimSpace(e.Category)
	if out.Category == "" {
		out.Category = "Uncategorized"
	}
	out.Date = NormalizeDate(e.Date)
	if out.Date == "" {
		out.Date = today.String()
	}
	out.Amount = Amount{Decimal: e.Amount.NonNegative()}
	out.MonthlyPlanned = Amount{Decimal: e.MonthlyPlanned.NonNegative()}
	out.Note = strings.TrimSpace(e.Note)
	return out
}

func objectFields(b []byte) (map[string]json.RawMessage, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func pick(fields map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func stringField(fields map[string]json.RawMessage, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}
