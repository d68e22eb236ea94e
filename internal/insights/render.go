package insights

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RenderSummary formats a report as plain text for terminals and chat
// replies.
func RenderSummary(r Report) string {
	if !r.Valid() {
		return r.Message + "\n"
	}
	cur := r.Currency
	if cur == "" {
		cur = defaultCurrency
	}
	money := func(d decimal.Decimal) string { return cur + d.String() }

	var b strings.Builder
	fmt.Fprintf(&b, "Insights for %s\n", r.ReferenceDate)
	fmt.Fprintf(&b, "Income: %s | Savings goal: %s | Available: %s\n",
		money(r.Summary.Income), money(r.Summary.SavingsGoal), money(r.Summary.AvailableBudget))
	fmt.Fprintf(&b, "Planned: %s | Spent: %s | Today: %s\n",
		money(r.Summary.TotalPlanned), money(r.Summary.TotalSpent), money(r.Summary.SpentToday))
	fmt.Fprintf(&b, "Forecast: %s\n", r.Forecast.Message)
	fmt.Fprintf(&b, "Suggested goal: %s\n", money(r.SuggestedGoal))

	if len(r.CategoryBreakdown) > 0 {
		b.WriteString("\nCategories:\n")
		for _, l := range r.CategoryBreakdown {
			fmt.Fprintf(&b, "  - %s: spent %s (today %s), planned %s\n",
				l.Category, money(l.Spent), money(l.SpentToday), money(l.Planned))
		}
	}

	if len(r.Tips) > 0 {
		b.WriteString("\nTips:\n")
		for _, t := range r.Tips {
			fmt.Fprintf(&b, "  * %s: %s\n", t.Title, t.Message)
		}
	}

	if c := r.Classification; c != nil {
		fmt.Fprintf(&b, "\nPredicted monthly spend: %s | Paced savings: %s\n",
			money(c.PredictedSpend), money(c.PacedSavings))
		for _, q := range c.Flagged {
			fmt.Fprintf(&b, "  ? %s\n", q.Question)
		}
		for _, s := range c.ActionSteps {
			fmt.Fprintf(&b, "  > %s\n", s)
		}
	}
	return b.String()
}
