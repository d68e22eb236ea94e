package insights

import "github.com/shopspring/decimal"

// Kind tells a well-formed report apart from the invalid-input fallback.
type Kind string

const (
	KindInsights     Kind = "insights"
	KindInvalidInput Kind = "invalid-input"
)

// Tone classifies the savings forecast.
type Tone string

const (
	ToneOnTrack      Tone = "on-track"
	ToneShort        Tone = "short"
	ToneOverspending Tone = "overspending-risk"
)

const invalidInputMessage = "Could not process insights: invalid data."

// TipKind identifies which rule produced a tip.
type TipKind string

const (
	TipBudgetOverplanned TipKind = "budget-overplanned"
	TipOverspending      TipKind = "overspending-alert"
	TipSmartStart        TipKind = "smart-start"
	TipNoSpending        TipKind = "no-spending-yet"
	TipOnTrack           TipKind = "on-track"
)

// Report is the output of one engine run.
type Report struct {
	Kind              Kind            `json:"kind"`
	Message           string          `json:"message,omitempty"`
	ReferenceDate     string          `json:"referenceDate,omitempty"`
	Currency          string          `json:"currency,omitempty"`
	Summary           Summary         `json:"summary"`
	Forecast          Forecast        `json:"forecast"`
	SuggestedGoal     decimal.Decimal `json:"suggestedGoal"`
	CategoryBreakdown []CategoryLine  `json:"categoryBreakdown"`
	Tips              []Tip           `json:"tips"`
	Classification    *Classification `json:"classification,omitempty"`
}

// Summary is the numeric rollup behind every other section of the report.
type Summary struct {
	Income           decimal.Decimal `json:"income"`
	SavingsGoal      decimal.Decimal `json:"savingsGoal"`
	AvailableBudget  decimal.Decimal `json:"availableBudget"`
	TotalPlanned     decimal.Decimal `json:"totalPlanned"`
	TotalSpent       decimal.Decimal `json:"totalSpent"`
	SpentToday       decimal.Decimal `json:"spentToday"`
	ProjectedSavings decimal.Decimal `json:"projectedSavings"`
}

// Forecast describes where projected savings land relative to the goal.
// Shortfall is set only for ToneShort and Excess only for ToneOverspending.
type Forecast struct {
	Tone             Tone            `json:"tone"`
	ProjectedSavings decimal.Decimal `json:"projectedSavings"`
	Shortfall        decimal.Decimal `json:"shortfall"`
	Excess           decimal.Decimal `json:"excess"`
	Message          string          `json:"message"`
}

// CategoryLine is one row of the category breakdown.
type CategoryLine struct {
	Category   string          `json:"category"`
	Spent      decimal.Decimal `json:"spent"`
	SpentToday decimal.Decimal `json:"spentToday"`
	Planned    decimal.Decimal `json:"planned"`
}

// Tip is a triggered insight rule.
type Tip struct {
	Kind    TipKind                    `json:"kind"`
	Title   string                     `json:"title"`
	Message string                     `json:"message"`
	Values  map[string]decimal.Decimal `json:"values,omitempty"`
}

// HasTip reports whether a tip of the given kind was emitted.
func (r Report) HasTip(kind TipKind) bool {
	for _, t := range r.Tips {
		if t.Kind == kind {
			return true
		}
	}
	return false
}

// Valid reports whether the report was computed from well-formed input.
func (r Report) Valid() bool {
	return r.Kind == KindInsights
}

func invalidInputReport(ref string, currency string) Report {
	return Report{
		Kind:              KindInvalidInput,
		Message:           invalidInputMessage,
		ReferenceDate:     ref,
		Currency:          currency,
		CategoryBreakdown: []CategoryLine{},
		Tips:              []Tip{},
	}
}
