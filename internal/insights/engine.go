// Package insights turns a profile and a list of logged expenses into a
// budget report: per-category breakdown, savings forecast, suggested goal
// and tips.
//
// Every function here is pure. The only clock read happens when a caller
// passes a zero reference date, in which case today is used.
package insights

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"zpend/internal/core"
)

const (
	uncategorized   = "uncategorized"
	defaultCurrency = "₹"
)

var (
	suggestedGoalFactor = decimal.RequireFromString("0.9")
	smartStartRatio     = decimal.RequireFromString("0.4")
)

// Options tune the optional parts of a report.
type Options struct {
	// FallbackTip emits a neutral "On Track" tip when no other rule fires.
	FallbackTip bool
	// ClassifyEssentials adds the essentials/lifestyle/one-time split and
	// the month-pace projection.
	ClassifyEssentials bool
	// Currency is the symbol used in human-readable messages.
	Currency string
}

// DefaultOptions returns the options used by Compute.
func DefaultOptions() Options {
	return Options{
		FallbackTip: true,
		Currency:    defaultCurrency,
	}
}

// Engine computes reports with a fixed set of options. It holds no state
// between calls and is safe for concurrent use.
type Engine struct {
	opts Options
}

// New returns an engine using opts.
func New(opts Options) *Engine {
	if opts.Currency == "" {
		opts.Currency = defaultCurrency
	}
	return &Engine{opts: opts}
}

// Options returns the engine's options.
func (e *Engine) Options() Options {
	return e.opts
}

// Compute runs the default engine.
func Compute(profile core.Profile, expenses []core.ExpenseRecord, ref core.Date) Report {
	return New(DefaultOptions()).Compute(profile, expenses, ref)
}

// ApplySuggestedGoal returns the savings goal the report recommends.
// Persisting it is up to the caller.
func ApplySuggestedGoal(r Report) decimal.Decimal {
	return r.SuggestedGoal
}

// NormalizeCategory lower-cases and trims a category label, mapping blank
// labels to "uncategorized".
func NormalizeCategory(s string) string {
	c := strings.ToLower(strings.TrimSpace(s))
	if c == "" {
		return uncategorized
	}
	return c
}

type aggregate struct {
	category   string
	spentTotal decimal.Decimal
	spentToday decimal.Decimal
	planned    decimal.Decimal
}

type totals struct {
	planned decimal.Decimal
	spent   decimal.Decimal
	today   decimal.Decimal
}

// Compute builds the report for profile and expenses as of ref.
func (e *Engine) Compute(profile core.Profile, expenses []core.ExpenseRecord, ref core.Date) Report {
	if ref.IsZero() {
		ref = core.Today()
	}
	day := ref.String()

	aggs := fold(expenses, day)
	sum := sumAggregates(aggs)

	income := profile.Income.Decimal
	goal := profile.SavingsGoal.Decimal
	available := profile.AvailableBudget().Decimal
	projected := income.Sub(sum.spent)

	r := Report{
		Kind:          KindInsights,
		ReferenceDate: day,
		Currency:      e.opts.Currency,
		Summary: Summary{
			Income:           income,
			SavingsGoal:      goal,
			AvailableBudget:  available,
			TotalPlanned:     sum.planned,
			TotalSpent:       sum.spent,
			SpentToday:       sum.today,
			ProjectedSavings: projected,
		},
		Forecast:          e.forecast(projected, goal),
		SuggestedGoal:     suggestedGoal(projected),
		CategoryBreakdown: breakdown(aggs),
		Tips:              e.tips(sum, available),
	}
	if e.opts.ClassifyEssentials {
		c := e.classify(aggs, income, ref)
		r.Classification = &c
	}
	return r
}

// ComputeRaw is Compute for expenses that have not been decoded yet. A
// payload that is not a JSON array yields the invalid-input report; a
// missing payload counts as no expenses.
func (e *Engine) ComputeRaw(profile core.Profile, raw json.RawMessage, ref core.Date) Report {
	expenses, ok := decodeExpenses(raw)
	if !ok {
		if ref.IsZero() {
			ref = core.Today()
		}
		return invalidInputReport(ref.String(), e.opts.Currency)
	}
	return e.Compute(profile, expenses, ref)
}

func decodeExpenses(raw json.RawMessage) ([]core.ExpenseRecord, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, true
	}
	if raw[0] != '[' {
		return nil, false
	}
	var out []core.ExpenseRecord
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

// fold groups records by normalized category, preserving first-seen order.
func fold(expenses []core.ExpenseRecord, day string) []*aggregate {
	index := make(map[string]*aggregate, len(expenses))
	order := make([]*aggregate, 0, len(expenses))
	for _, rec := range expenses {
		cat := NormalizeCategory(rec.Category)
		agg, ok := index[cat]
		if !ok {
			agg = &aggregate{category: cat}
			index[cat] = agg
			order = append(order, agg)
		}
		amt := rec.Amount.NonNegative()
		agg.spentTotal = agg.spentTotal.Add(amt)
		if core.NormalizeDate(rec.Date) == day {
			agg.spentToday = agg.spentToday.Add(amt)
		}
		// last write wins
		agg.planned = rec.MonthlyPlanned.NonNegative()
	}
	return order
}

func sumAggregates(aggs []*aggregate) totals {
	var t totals
	for _, a := range aggs {
		t.planned = t.planned.Add(a.planned)
		t.spent = t.spent.Add(a.spentTotal)
		t.today = t.today.Add(a.spentToday)
	}
	return t
}

func suggestedGoal(projected decimal.Decimal) decimal.Decimal {
	g := projected.Mul(suggestedGoalFactor).Floor()
	if g.IsNegative() {
		return decimal.Zero
	}
	return g
}

func breakdown(aggs []*aggregate) []CategoryLine {
	lines := make([]CategoryLine, 0, len(aggs))
	for _, a := range aggs {
		lines = append(lines, CategoryLine{
			Category:   a.category,
			Spent:      a.spentTotal,
			SpentToday: a.spentToday,
			Planned:    a.planned,
		})
	}
	return lines
}
