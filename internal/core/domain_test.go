package core

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2025-01-01", true},
		{" 2025-12-31 ", true},
		{"2025-13-01", false},
		{"01/02/2025", false},
		{"", false},
	}
	for i, tc := range cases {
		_, err := ParseDate(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	cases := map[string]string{
		"2025-03-04":           "2025-03-04",
		"2025-03-04T10:11:12Z": "2025-03-04",
		"2025-03-04 10:11:12":  "2025-03-04",
		"  2025-03-04  ":       "2025-03-04",
		"yesterday":            "yesterday",
		"":                     "",
	}
	for in, want := range cases {
		if got := NormalizeDate(in); got != want {
			t.Fatalf("NormalizeDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExpenseRecordUnmarshalJSON(t *testing.T) {
	var recs []ExpenseRecord
	body := `[
		{"category":"Food","amount":"120","date":"2025-01-02","monthly_planned":500},
		{"category":42,"amount":true,"monthlyPlanned":"abc"},
		7,
		null
	]`
	if err := json.Unmarshal([]byte(body), &recs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("expected 4 records, got %d", len(recs))
	}
	if recs[0].Category != "Food" || !recs[0].Amount.Equal(decimal.NewFromInt(120)) ||
		!recs[0].MonthlyPlanned.Equal(decimal.NewFromInt(500)) || recs[0].Date != "2025-01-02" {
		t.Fatalf("unexpected first record %+v", recs[0])
	}
	for i := 1; i < 4; i++ {
		if recs[i].Category != "" || !recs[i].Amount.IsZero() || !recs[i].MonthlyPlanned.IsZero() {
			t.Fatalf("record %d should degrade to zero values, got %+v", i, recs[i])
		}
	}
}

func TestProfileUnmarshalJSON(t *testing.T) {
	var p Profile
	if err := json.Unmarshal([]byte(`{"income":"50000","savings_goal":10000}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !p.Income.Equal(decimal.NewFromInt(50000)) || !p.SavingsGoal.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("unexpected profile %+v", p)
	}
	if !p.AvailableBudget().Equal(decimal.NewFromInt(40000)) {
		t.Fatalf("expected available budget 40000, got %s", p.AvailableBudget().String())
	}

	neg := Profile{Income: NewAmount(100), SavingsGoal: NewAmount(300)}
	if !neg.AvailableBudget().Equal(decimal.NewFromInt(-200)) {
		t.Fatalf("available budget must not be clamped, got %s", neg.AvailableBudget().String())
	}
}

func TestExpenseRecordValidate(t *testing.T) {
	good := ExpenseRecord{Category: "rent", Amount: NewAmount(10), Date: "2025-01-01"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []ExpenseRecord{
		{Category: "rent", Amount: NewAmount(-1)},
		{Category: "rent", MonthlyPlanned: NewAmount(-1)},
		{Category: "rent", Date: "not-a-date"},
		{Category: strings.Repeat("x", 101)},
		{Category: "rent", Note: strings.Repeat("n", 201)},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestExpenseRecordCleaned(t *testing.T) {
	today := NewDate(2025, 6, 15)
	got := ExpenseRecord{Category: "  ", Amount: NewAmount(-3), Date: ""}.Cleaned(today)
	if got.Category != "Uncategorized" {
		t.Fatalf("expected Uncategorized, got %q", got.Category)
	}
	if got.Date != "2025-06-15" {
		t.Fatalf("expected default date, got %q", got.Date)
	}
	if !got.Amount.IsZero() {
		t.Fatalf("expected negative amount to be zeroed, got %s", got.Amount.String())
	}
}
