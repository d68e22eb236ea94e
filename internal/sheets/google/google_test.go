package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"zpend/internal/core"
	"zpend/internal/ports"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets serves the subset of the values API the client uses.
type fakeSheets struct {
	mu      sync.Mutex
	values  map[string][][]interface{}
	appends []string
	updates []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	idx := strings.Index(path, "/values/")
	if idx < 0 {
		http.NotFound(w, r)
		return
	}
	rng := path[idx+len("/values/"):]
	tab := rng
	if i := strings.Index(tab, "!"); i >= 0 {
		tab = tab[:i]
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet:
		json.NewEncoder(w).Encode(map[string]interface{}{"range": rng, "values": f.values[tab]})
	case r.Method == http.MethodPost && strings.HasSuffix(rng, ":append"):
		var vr gsheet.ValueRange
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &vr)
		start := len(f.values[tab]) + 1
		f.values[tab] = append(f.values[tab], vr.Values...)
		f.appends = append(f.appends, tab)
		updated := tab + "!A" + strconv.Itoa(start) + ":F" + strconv.Itoa(start+len(vr.Values)-1)
		json.NewEncoder(w).Encode(map[string]interface{}{"updates": map[string]interface{}{"updatedRange": updated}})
	case r.Method == http.MethodPut:
		f.updates = append(f.updates, rng)
		json.NewEncoder(w).Encode(map[string]interface{}{"updatedRange": rng})
	default:
		http.Error(w, "unsupported", http.StatusBadRequest)
	}
}

func newFakeClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return newClient(svc, "sheet-id", Tabs{})
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
}

func TestNewTabsDefaults(t *testing.T) {
	c := newClient(nil, "id", Tabs{Profiles: "People"})
	if c.tabs.Expenses != "Expenses" || c.tabs.Profiles != "People" || c.tabs.Snapshots != "Snapshots" {
		t.Fatalf("unexpected tabs %+v", c.tabs)
	}
}

func TestNilServiceFails(t *testing.T) {
	c := newClient(nil, "id", Tabs{})
	if _, err := c.ListExpenses(context.Background(), "u1"); err == nil {
		t.Fatal("expected error with nil service")
	}
}

func TestClientExpensesRoundTrip(t *testing.T) {
	f := &fakeSheets{values: map[string][][]interface{}{
		"Expenses": {{"user_id", "date", "category", "amount", "monthly_planned", "note"}},
	}}
	c := newFakeClient(t, f)
	ctx := context.Background()

	refs, err := c.AppendExpenses(ctx, "u1", []core.ExpenseRecord{
		{Category: "Rent", Amount: core.NewAmount(15000), MonthlyPlanned: core.NewAmount(15000), Date: "2025-03-01"},
		{Category: "Food", Amount: core.NewAmount(250), Date: "2025-03-02"},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(refs) != 2 || refs[0] != "Expenses!A2" || refs[1] != "Expenses!A3" {
		t.Fatalf("unexpected refs %v", refs)
	}

	got, err := c.ListExpenses(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Category != "Rent" || got[1].Amount.String() != "250" {
		t.Fatalf("unexpected list %+v", got)
	}

	if _, err := c.AppendExpenses(ctx, "u1", []core.ExpenseRecord{{Category: "x", Date: "bad"}}); !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClientProfileUpsert(t *testing.T) {
	f := &fakeSheets{values: map[string][][]interface{}{}}
	c := newFakeClient(t, f)
	ctx := context.Background()

	if _, err := c.GetProfile(ctx, "u1"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	p := core.Profile{Income: core.NewAmount(50000), SavingsGoal: core.NewAmount(10000)}
	if err := c.SaveProfile(ctx, "u1", p); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(f.appends) != 1 {
		t.Fatalf("expected an append for a new profile, got %v", f.appends)
	}
	got, err := c.GetProfile(ctx, "u1")
	if err != nil || got.Income.String() != "50000" {
		t.Fatalf("unexpected profile %+v err=%v", got, err)
	}
	if err := c.SaveProfile(ctx, "u1", p); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(f.updates) != 1 || f.updates[0] != "Profiles!A1:C1" {
		t.Fatalf("expected in-place update, got %v", f.updates)
	}
}

func TestClientSnapshots(t *testing.T) {
	f := &fakeSheets{values: map[string][][]interface{}{}}
	c := newFakeClient(t, f)
	ctx := context.Background()

	if _, err := c.LatestSnapshot(ctx, "u1"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := c.SaveSnapshot(ctx, core.Snapshot{UserID: "u1", ReferenceDate: "2025-03-15", Report: []byte(`{"kind":"insights"}`)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	s, err := c.LatestSnapshot(ctx, "u1")
	if err != nil || s.ReferenceDate != "2025-03-15" || s.CreatedAt.IsZero() {
		t.Fatalf("unexpected snapshot %+v err=%v", s, err)
	}
}
