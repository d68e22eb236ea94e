package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"zpend/internal/cache"
	"zpend/internal/core"
	"zpend/internal/insights"
	applog "zpend/internal/log"
	"zpend/internal/memory"
)

var refDate = core.NewDate(2025, 3, 15)

type countingStore struct {
	*memory.Store
	lists atomic.Int32
}

func (c *countingStore) ListExpenses(ctx context.Context, userID string) ([]core.ExpenseRecord, error) {
	c.lists.Add(1)
	return c.Store.ListExpenses(ctx, userID)
}

type failingStore struct {
	*memory.Store
	err error
}

func (f *failingStore) ListExpenses(context.Context, string) ([]core.ExpenseRecord, error) {
	return nil, f.err
}

func (f *failingStore) AppendExpenses(context.Context, string, []core.ExpenseRecord) ([]string, error) {
	return nil, f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	logged []int
	goals  []decimal.Decimal
	err    error
}

func (p *recordingPublisher) PublishExpensesLogged(_ context.Context, _ string, count int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logged = append(p.logged, count)
	return p.err
}

func (p *recordingPublisher) PublishGoalApplied(_ context.Context, _ string, goal decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.goals = append(p.goals, goal)
	return p.err
}

func testLogger() *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Output = io.Discard
	return applog.New(cfg)
}

func newTestService(t *testing.T, store *countingStore, pub EventPublisher) *InsightService {
	t.Helper()
	svc := NewInsightService(store, pub, Options{
		Engine: insights.DefaultOptions(),
		Cache:  cache.NewLRUCache[insights.Report](16, time.Minute),
		Logger: testLogger(),
	})
	svc.today = func() core.Date { return refDate }
	svc.now = func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

func amount(s string) core.Amount {
	return core.Amount{Decimal: decimal.RequireFromString(s)}
}

func seedUser(t *testing.T, store *countingStore) {
	t.Helper()
	ctx := context.Background()
	if err := store.SaveProfile(ctx, "u1", core.Profile{Income: amount("50000"), SavingsGoal: amount("10000")}); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	_, err := store.AppendExpenses(ctx, "u1", []core.ExpenseRecord{
		{Category: "Food", Amount: amount("3000"), Date: "2025-03-15", MonthlyPlanned: amount("8000")},
		{Category: "Rent", Amount: amount("15000"), Date: "2025-03-01", MonthlyPlanned: amount("15000")},
	})
	if err != nil {
		t.Fatalf("AppendExpenses: %v", err)
	}
}

func TestReportLoadsFromStore(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	seedUser(t, store)
	svc := newTestService(t, store, nil)

	r, err := svc.Report(context.Background(), ReportRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if r.ReferenceDate != "2025-03-15" {
		t.Errorf("ReferenceDate = %q, want today", r.ReferenceDate)
	}
	if !r.Summary.TotalSpent.Equal(decimal.NewFromInt(18000)) {
		t.Errorf("TotalSpent = %s, want 18000", r.Summary.TotalSpent)
	}
	if !r.Summary.SpentToday.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("SpentToday = %s, want 3000", r.Summary.SpentToday)
	}
	if !r.SuggestedGoal.Equal(decimal.NewFromInt(28800)) {
		t.Errorf("SuggestedGoal = %s, want 28800", r.SuggestedGoal)
	}
	if r.Classification != nil {
		t.Error("classification should be off by default")
	}
}

func TestReportMissingProfileIsZero(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	svc := newTestService(t, store, nil)

	r, err := svc.Report(context.Background(), ReportRequest{UserID: "nobody"})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if !r.Summary.Income.IsZero() || !r.SuggestedGoal.IsZero() {
		t.Errorf("unexpected summary %+v", r.Summary)
	}
	if !r.HasTip(insights.TipNoSpending) {
		t.Error("want no-spending tip for an empty user")
	}
}

func TestReportRejectsEmptyUser(t *testing.T) {
	svc := newTestService(t, &countingStore{Store: memory.New()}, nil)
	if _, err := svc.Report(context.Background(), ReportRequest{UserID: "  "}); !errors.Is(err, core.ErrEmptyUserID) {
		t.Fatalf("err = %v, want ErrEmptyUserID", err)
	}
}

func TestReportIsCachedUntilInvalidated(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	seedUser(t, store)
	svc := newTestService(t, store, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Report(ctx, ReportRequest{UserID: "u1"}); err != nil {
			t.Fatalf("Report: %v", err)
		}
	}
	if got := store.lists.Load(); got != 1 {
		t.Fatalf("ListExpenses calls = %d, want 1", got)
	}

	if _, err := svc.Report(ctx, ReportRequest{UserID: "u1", ClassifyEssentials: true}); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if got := store.lists.Load(); got != 2 {
		t.Fatalf("different options should miss the cache, calls = %d", got)
	}

	if _, err := svc.LogExpenses(ctx, "u1", []core.ExpenseRecord{{Category: "Fun", Amount: amount("100")}}); err != nil {
		t.Fatalf("LogExpenses: %v", err)
	}
	r, err := svc.Report(ctx, ReportRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if got := store.lists.Load(); got != 3 {
		t.Fatalf("logging should invalidate the cache, calls = %d", got)
	}
	if !r.Summary.TotalSpent.Equal(decimal.NewFromInt(18100)) {
		t.Errorf("TotalSpent = %s, want 18100", r.Summary.TotalSpent)
	}
}

// pausingStore holds its first ListExpenses call after reading, until
// release is closed.
type pausingStore struct {
	*memory.Store
	once    sync.Once
	paused  chan struct{}
	release chan struct{}
}

func (p *pausingStore) ListExpenses(ctx context.Context, userID string) ([]core.ExpenseRecord, error) {
	list, err := p.Store.ListExpenses(ctx, userID)
	p.once.Do(func() {
		close(p.paused)
		<-p.release
	})
	return list, err
}

func TestWriteDuringBuildIsNotCached(t *testing.T) {
	store := &pausingStore{Store: memory.New(), paused: make(chan struct{}), release: make(chan struct{})}
	svc := NewInsightService(store, nil, Options{
		Engine: insights.DefaultOptions(),
		Cache:  cache.NewLRUCache[insights.Report](16, time.Minute),
		Logger: testLogger(),
	})
	svc.today = func() core.Date { return refDate }
	ctx := context.Background()

	done := make(chan insights.Report, 1)
	go func() {
		r, err := svc.Report(ctx, ReportRequest{UserID: "u"})
		if err != nil {
			t.Errorf("Report: %v", err)
		}
		done <- r
	}()

	<-store.paused
	if _, err := svc.LogExpenses(ctx, "u", []core.ExpenseRecord{{Category: "food", Amount: amount("500")}}); err != nil {
		t.Fatalf("LogExpenses: %v", err)
	}
	close(store.release)
	if r := <-done; !r.Summary.TotalSpent.IsZero() {
		t.Fatalf("in-flight report should reflect the earlier read, got %s", r.Summary.TotalSpent)
	}

	r, err := svc.Report(ctx, ReportRequest{UserID: "u"})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if !r.Summary.TotalSpent.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("TotalSpent = %s, want 500", r.Summary.TotalSpent)
	}
}

func TestReportWithClassification(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	seedUser(t, store)
	svc := newTestService(t, store, nil)

	r, err := svc.Report(context.Background(), ReportRequest{UserID: "u1", ClassifyEssentials: true})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if r.Classification == nil {
		t.Fatal("classification missing")
	}
	if len(r.Classification.Essentials) != 2 {
		t.Errorf("essentials = %v, want food and rent", r.Classification.Essentials)
	}
}

func TestReportPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("boom")
	store := &failingStore{Store: memory.New(), err: boom}
	svc := NewInsightService(store, nil, Options{Logger: testLogger()})

	if _, err := svc.Report(context.Background(), ReportRequest{UserID: "u1", Date: refDate}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
}

func TestComputeIsStateless(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	svc := newTestService(t, store, nil)
	profile := core.Profile{Income: amount("1000")}

	r := svc.Compute(profile, json.RawMessage(`[{"category":"a","amount":250}]`), core.Date{}, false)
	if !r.Valid() || r.ReferenceDate != "2025-03-15" {
		t.Fatalf("unexpected report %+v", r)
	}
	if !r.Summary.ProjectedSavings.Equal(decimal.NewFromInt(750)) {
		t.Errorf("ProjectedSavings = %s, want 750", r.Summary.ProjectedSavings)
	}

	bad := svc.Compute(profile, json.RawMessage(`{"category":"a"}`), refDate, false)
	if bad.Valid() || bad.Kind != insights.KindInvalidInput {
		t.Errorf("want invalid-input report, got %q", bad.Kind)
	}
	if store.lists.Load() != 0 {
		t.Error("Compute must not read storage")
	}
}

func TestApplySuggestedGoal(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	seedUser(t, store)
	pub := &recordingPublisher{}
	svc := newTestService(t, store, pub)
	ctx := context.Background()

	if _, err := svc.Report(ctx, ReportRequest{UserID: "u1"}); err != nil {
		t.Fatalf("Report: %v", err)
	}
	profile, r, err := svc.ApplySuggestedGoal(ctx, ReportRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("ApplySuggestedGoal: %v", err)
	}
	want := decimal.NewFromInt(28800)
	if !profile.SavingsGoal.Equal(want) || !r.SuggestedGoal.Equal(want) {
		t.Fatalf("goal = %s, report goal = %s, want %s", profile.SavingsGoal, r.SuggestedGoal, want)
	}

	stored, err := svc.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if !stored.SavingsGoal.Equal(want) || !stored.Income.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("stored profile = %+v", stored)
	}
	if len(pub.goals) != 1 || !pub.goals[0].Equal(want) {
		t.Errorf("published goals = %v", pub.goals)
	}

	after, err := svc.Report(ctx, ReportRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if !after.Summary.SavingsGoal.Equal(want) {
		t.Errorf("report after apply uses goal %s, want %s", after.Summary.SavingsGoal, want)
	}
}

func TestApplySuggestedGoalPublishFailureIsNotFatal(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	seedUser(t, store)
	svc := newTestService(t, store, &recordingPublisher{err: errors.New("bus down")})

	if _, _, err := svc.ApplySuggestedGoal(context.Background(), ReportRequest{UserID: "u1"}); err != nil {
		t.Fatalf("ApplySuggestedGoal: %v", err)
	}
}

func TestLogExpenses(t *testing.T) {
	tests := []struct {
		name      string
		user      string
		records   []core.ExpenseRecord
		wantErr   error
		wantCount int
	}{
		{
			name:      "defaults applied",
			user:      "u1",
			records:   []core.ExpenseRecord{{Category: "  ", Amount: amount("12.50")}},
			wantCount: 1,
		},
		{
			name:    "empty user",
			user:    "",
			records: []core.ExpenseRecord{{Category: "a"}},
			wantErr: core.ErrEmptyUserID,
		},
		{
			name:    "no records",
			user:    "u1",
			wantErr: ErrNoExpenses,
		},
		{
			name: "invalid record rejects batch",
			user: "u1",
			records: []core.ExpenseRecord{
				{Category: "ok", Amount: amount("1")},
				{Category: "bad", Amount: amount("1"), Date: "15/03/2025"},
			},
			wantErr: core.ErrInvalidDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &countingStore{Store: memory.New()}
			pub := &recordingPublisher{}
			svc := newTestService(t, store, pub)

			refs, err := svc.LogExpenses(context.Background(), tt.user, tt.records)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				list, _ := store.Store.ListExpenses(context.Background(), "u1")
				if len(list) != 0 {
					t.Errorf("nothing should be stored, got %d", len(list))
				}
				if len(pub.logged) != 0 {
					t.Error("nothing should be published")
				}
				return
			}
			if err != nil {
				t.Fatalf("LogExpenses: %v", err)
			}
			if len(refs) != tt.wantCount {
				t.Fatalf("refs = %v, want %d", refs, tt.wantCount)
			}
			list, err := svc.ListExpenses(context.Background(), tt.user)
			if err != nil {
				t.Fatalf("ListExpenses: %v", err)
			}
			if list[0].Category != "Uncategorized" || list[0].Date != "2025-03-15" {
				t.Errorf("stored record = %+v", list[0])
			}
			if len(pub.logged) != 1 || pub.logged[0] != tt.wantCount {
				t.Errorf("published counts = %v", pub.logged)
			}
		})
	}
}

func TestLogExpensesStoreFailure(t *testing.T) {
	boom := errors.New("disk full")
	pub := &recordingPublisher{}
	svc := NewInsightService(&failingStore{Store: memory.New(), err: boom}, pub, Options{Logger: testLogger()})

	if _, err := svc.LogExpenses(context.Background(), "u1", []core.ExpenseRecord{{Category: "a"}}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped disk full", err)
	}
	if len(pub.logged) != 0 {
		t.Error("failed saves must not publish")
	}
}

func TestProfileRoundTrip(t *testing.T) {
	svc := newTestService(t, &countingStore{Store: memory.New()}, nil)
	ctx := context.Background()

	p, err := svc.GetProfile(ctx, "fresh")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if !p.Income.IsZero() || !p.SavingsGoal.IsZero() {
		t.Errorf("missing profile should be zero, got %+v", p)
	}

	if err := svc.SaveProfile(ctx, "fresh", core.Profile{Income: amount("-1")}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("negative income err = %v, want ErrInvalidAmount", err)
	}
	if err := svc.SaveProfile(ctx, "fresh", core.Profile{Income: amount("4000"), SavingsGoal: amount("500")}); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	p, err = svc.GetProfile(ctx, "fresh")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if !p.Income.Equal(decimal.NewFromInt(4000)) {
		t.Errorf("Income = %s, want 4000", p.Income)
	}
}

func TestRefreshSnapshot(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	seedUser(t, store)
	svc := newTestService(t, store, nil)
	ctx := context.Background()

	if _, err := svc.LatestSnapshot(ctx, "u1"); err == nil {
		t.Fatal("want an error before any snapshot exists")
	}

	snap, err := svc.RefreshSnapshot(ctx, ReportRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("RefreshSnapshot: %v", err)
	}
	if snap.ReferenceDate != "2025-03-15" || snap.CreatedAt.IsZero() {
		t.Errorf("snapshot = %+v", snap)
	}

	got, err := svc.LatestSnapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	var r insights.Report
	if err := json.Unmarshal(got.Report, &r); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if r.Kind != insights.KindInsights || !r.Summary.TotalSpent.Equal(decimal.NewFromInt(18000)) {
		t.Errorf("snapshot report = %+v", r.Summary)
	}

	// the refreshed report is now cached
	before := store.lists.Load()
	if _, err := svc.Report(ctx, ReportRequest{UserID: "u1"}); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if store.lists.Load() != before {
		t.Error("report after refresh should come from cache")
	}
}
