package google

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"zpend/internal/core"
)

// Column layouts, zero-based:
//
//	Expenses:  user_id | date | category | amount | monthly_planned | note
//	Profiles:  user_id | income | savings_goal
//	Snapshots: user_id | reference_date | created_at | report

func expenseRow(userID string, r core.ExpenseRecord) []interface{} {
	return []interface{}{userID, r.Date, r.Category, r.Amount.String(), r.MonthlyPlanned.String(), r.Note}
}

// parseExpenses returns the user's rows in sheet order. Row references use
// 1-based sheet row numbers.
func parseExpenses(values [][]interface{}, userID, sheet string) []core.ExpenseRecord {
	out := make([]core.ExpenseRecord, 0)
	for i, raw := range values {
		row := toStrings(raw)
		if safeGet(row, 0) != userID {
			continue
		}
		out = append(out, core.ExpenseRecord{
			ID:             fmt.Sprintf("%s!A%d", sheet, i+1),
			Date:           core.NormalizeDate(safeGet(row, 1)),
			Category:       safeGet(row, 2),
			Amount:         cellAmount(safeGet(row, 3)),
			MonthlyPlanned: cellAmount(safeGet(row, 4)),
			Note:           safeGet(row, 5),
		})
	}
	return out
}

// findProfile returns the last row for userID and its zero-based index.
func findProfile(values [][]interface{}, userID string) (core.Profile, int, bool) {
	idx := -1
	var p core.Profile
	for i, raw := range values {
		row := toStrings(raw)
		if safeGet(row, 0) != userID {
			continue
		}
		idx = i
		p = core.Profile{
			Income:      cellAmount(safeGet(row, 1)),
			SavingsGoal: cellAmount(safeGet(row, 2)),
		}
	}
	return p, idx, idx >= 0
}

func lastSnapshot(values [][]interface{}, userID string) (core.Snapshot, bool) {
	for i := len(values) - 1; i >= 0; i-- {
		row := toStrings(values[i])
		if safeGet(row, 0) != userID {
			continue
		}
		report := safeGet(row, 3)
		if !json.Valid([]byte(report)) {
			continue
		}
		created, _ := time.Parse(time.RFC3339, safeGet(row, 2))
		return core.Snapshot{
			UserID:        userID,
			ReferenceDate: safeGet(row, 1),
			CreatedAt:     created,
			Report:        json.RawMessage(report),
		}, true
	}
	return core.Snapshot{}, false
}

// cellAmount reads a money cell, which may come back formatted by the sheet
// ("₹1,200.50") or as a plain number. Anything unreadable is zero.
func cellAmount(s string) core.Amount {
	if a, err := core.ParseAmount(s); err == nil {
		return a
	}
	return core.CoerceAmount(s)
}

var updatedRangeRe = regexp.MustCompile(`^(.*)!A(\d+)(?::[A-Z]+(\d+))?$`)

// rowRefs expands an updated range like "Expenses!A4:F6" into one
// reference per row. An unparseable range is repeated as is.
func rowRefs(updated string, n int) []string {
	refs := make([]string, 0, n)
	m := updatedRangeRe.FindStringSubmatch(updated)
	if m == nil {
		for i := 0; i < n; i++ {
			refs = append(refs, updated)
		}
		return refs
	}
	start, _ := strconv.Atoi(m[2])
	for i := 0; i < n; i++ {
		refs = append(refs, fmt.Sprintf("%s!A%d", m[1], start+i))
	}
	return refs
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
