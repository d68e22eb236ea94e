package insights

import (
	"fmt"

	"github.com/shopspring/decimal"
)

func (e *Engine) money(d decimal.Decimal) string {
	return e.opts.Currency + d.String()
}

func (e *Engine) forecast(projected, goal decimal.Decimal) Forecast {
	f := Forecast{
		ProjectedSavings: projected,
		Shortfall:        decimal.Zero,
		Excess:           decimal.Zero,
	}
	switch {
	case projected.GreaterThanOrEqual(goal):
		f.Tone = ToneOnTrack
		f.Message = fmt.Sprintf("You're on track to save %s. Well done!", e.money(projected))
	case projected.IsPositive():
		f.Tone = ToneShort
		f.Shortfall = goal.Sub(projected)
		f.Message = fmt.Sprintf("You'll save %s, but %s short of your goal.",
			e.money(projected), e.money(f.Shortfall))
	default:
		f.Tone = ToneOverspending
		f.Excess = projected.Abs()
		f.Message = fmt.Sprintf("Overspending risk: you might exceed your income by %s.", e.money(f.Excess))
	}
	return f
}

// tips evaluates the rules in priority order; every matching rule emits.
func (e *Engine) tips(t totals, available decimal.Decimal) []Tip {
	out := make([]Tip, 0, 4)

	if t.planned.GreaterThan(available) {
		msg := fmt.Sprintf("You've planned %s for essentials, but only %s is available after savings. Adjust your expectations or goals.",
			e.money(t.planned), e.money(available))
		out = append(out, Tip{
			Kind:    TipBudgetOverplanned,
			Title:   "Budget Overplanned",
			Message: msg,
			Values:  map[string]decimal.Decimal{"totalPlanned": t.planned, "availableBudget": available},
		})
	}

	if t.spent.GreaterThan(t.planned) {
		msg := fmt.Sprintf("You've spent %s so far, overshooting the planned %s. Control upcoming expenses.",
			e.money(t.spent), e.money(t.planned))
		out = append(out, Tip{
			Kind:    TipOverspending,
			Title:   "Overspending Alert",
			Message: msg,
			Values:  map[string]decimal.Decimal{"totalSpent": t.spent, "totalPlanned": t.planned},
		})
	}

	if t.spent.IsPositive() && t.spent.LessThan(t.planned.Mul(smartStartRatio)) {
		out = append(out, Tip{
			Kind:    TipSmartStart,
			Title:   "Smart Start",
			Message: fmt.Sprintf("You've spent only %s, staying within safe limits. Keep it up!", e.money(t.spent)),
			Values:  map[string]decimal.Decimal{"totalSpent": t.spent},
		})
	}

	if t.spent.IsZero() {
		out = append(out, Tip{
			Kind:    TipNoSpending,
			Title:   "No Spending Yet",
			Message: "Start logging expenses to get personalized insights.",
		})
	}

	if len(out) == 0 && e.opts.FallbackTip {
		out = append(out, Tip{
			Kind:    TipOnTrack,
			Title:   "On Track",
			Message: "You're managing spending as planned. Keep it steady!",
		})
	}
	return out
}
