package insights

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"zpend/internal/core"
)

// essentialCategories are the normalized labels treated as non-discretionary.
var essentialCategories = map[string]struct{}{
	"groceries":   {},
	"food":        {},
	"rent":        {},
	"bills":       {},
	"electricity": {},
	"water":       {},
	"medicines":   {},
	"medicine":    {},
	"doctor":      {},
	"pharmacy":    {},
}

var (
	oneTimeIncomeShare = decimal.RequireFromString("0.4")
	paceDays           = decimal.NewFromInt(30)
)

const summarizeLimit = 3

// IsEssential reports whether a category label names an essential expense.
func IsEssential(category string) bool {
	_, ok := essentialCategories[NormalizeCategory(category)]
	return ok
}

// Classification splits categories into essentials, lifestyle and one-time
// spending and projects the month's spend from the pace so far.
type Classification struct {
	Essentials     []CategoryAmount  `json:"essentials"`
	Lifestyle      []CategoryAmount  `json:"lifestyle"`
	OneTime        []CategoryAmount  `json:"oneTime"`
	Flagged        []FlaggedQuestion `json:"flagged"`
	PredictedSpend decimal.Decimal   `json:"predictedSpend"`
	PacedSavings   decimal.Decimal   `json:"pacedSavings"`
	ActionSteps    []string          `json:"actionSteps"`
}

// CategoryAmount is a category with its total spend.
type CategoryAmount struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// FlaggedQuestion asks the user to confirm an unusually large category.
type FlaggedQuestion struct {
	ID       string `json:"id"`
	Question string `json:"question"`
}

// classify buckets every category. A non-essential category whose total
// exceeds 40% of income is one-time and gets flagged. Essentials and
// lifestyle spend feed the pace projection; one-time spend does not.
func (e *Engine) classify(aggs []*aggregate, income decimal.Decimal, ref core.Date) Classification {
	c := Classification{
		Essentials:  []CategoryAmount{},
		Lifestyle:   []CategoryAmount{},
		OneTime:     []CategoryAmount{},
		Flagged:     []FlaggedQuestion{},
		ActionSteps: []string{},
	}

	threshold := income.Mul(oneTimeIncomeShare)
	paceBase := decimal.Zero
	for _, a := range aggs {
		entry := CategoryAmount{Category: a.category, Amount: a.spentTotal}
		switch {
		case IsEssential(a.category):
			c.Essentials = append(c.Essentials, entry)
			paceBase = paceBase.Add(a.spentTotal)
		case a.spentTotal.GreaterThan(threshold):
			c.OneTime = append(c.OneTime, entry)
			c.Flagged = append(c.Flagged, FlaggedQuestion{
				ID: a.category,
				Question: fmt.Sprintf("You spent %s on '%s'. Is this recurring or one-time?",
					e.money(a.spentTotal), a.category),
			})
		default:
			c.Lifestyle = append(c.Lifestyle, entry)
			paceBase = paceBase.Add(a.spentTotal)
		}
	}

	elapsed := decimal.NewFromInt(int64(ref.Day()))
	c.PredictedSpend = paceBase.Div(elapsed).Mul(paceDays).Round(0)
	c.PacedSavings = income.Sub(c.PredictedSpend)

	if len(c.Lifestyle) > 0 {
		c.ActionSteps = append(c.ActionSteps, "Reduce lifestyle expenses like: "+e.summarize(c.Lifestyle))
	}
	if len(c.OneTime) > 0 {
		c.ActionSteps = append(c.ActionSteps, "One-time high spending found: "+e.summarize(c.OneTime))
	}
	return c
}

func (e *Engine) summarize(entries []CategoryAmount) string {
	if len(entries) == 0 {
		return "None"
	}
	parts := make([]string, 0, summarizeLimit)
	for i, en := range entries {
		if i == summarizeLimit {
			break
		}
		parts = append(parts, en.Category+" - "+e.money(en.Amount))
	}
	return strings.Join(parts, ", ")
}
