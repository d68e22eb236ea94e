package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"zpend/internal/cache"
	"zpend/internal/core"
	"zpend/internal/insights"
	applog "zpend/internal/log"
	"zpend/internal/ports"
)

// EventPublisher announces state changes on the message bus. A nil
// publisher disables events.
type EventPublisher interface {
	PublishExpensesLogged(ctx context.Context, userID string, count int) error
	PublishGoalApplied(ctx context.Context, userID string, goal decimal.Decimal) error
}

// Options configure an InsightService.
type Options struct {
	Engine insights.Options
	// Cache holds computed reports. Nil disables caching.
	Cache  cache.Cache[insights.Report]
	Logger *applog.Logger
}

// ReportRequest selects the report to build.
type ReportRequest struct {
	UserID string
	// Date is the reference day; zero means today.
	Date               core.Date
	ClassifyEssentials bool
}

// InsightService orchestrates report computation across storage, cache and
// the message bus.
type InsightService struct {
	store     ports.Store
	publisher EventPublisher
	opts      insights.Options
	cache     cache.Cache[insights.Report]
	group     singleflight.Group
	logger    *applog.Logger

	// gens counts invalidations per user. A report built under an older
	// generation is never cached.
	gensMu sync.Mutex
	gens   map[string]uint64

	today func() core.Date
	now   func() time.Time
}

func NewInsightService(store ports.Store, publisher EventPublisher, opts Options) *InsightService {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &InsightService{
		store:     store,
		publisher: publisher,
		opts:      opts.Engine,
		cache:     opts.Cache,
		gens:      make(map[string]uint64),
		logger:    logger.WithComponent(applog.ComponentInsights),
		today:     core.Today,
		now:       time.Now,
	}
}

// EngineOptions returns the base engine options of the service.
func (s *InsightService) EngineOptions() insights.Options {
	return s.opts
}

func (s *InsightService) engine(classify bool) *insights.Engine {
	opts := s.opts
	opts.ClassifyEssentials = opts.ClassifyEssentials || classify
	return insights.New(opts)
}

func (s *InsightService) resolve(req ReportRequest) (ReportRequest, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return req, core.ErrEmptyUserID
	}
	if req.Date.IsZero() {
		req.Date = s.today()
	}
	return req, nil
}

func cacheKey(req ReportRequest) string {
	return req.UserID + "|" + req.Date.String() + "|" + strconv.FormatBool(req.ClassifyEssentials)
}

// Report returns the user's report for the requested day, computing it from
// storage on a cache miss. Concurrent identical requests share one computation.
func (s *InsightService) Report(ctx context.Context, req ReportRequest) (insights.Report, error) {
	req, err := s.resolve(req)
	if err != nil {
		return insights.Report{}, err
	}
	key := cacheKey(req)
	if s.cache != nil {
		if r, ok := s.cache.Get(key); ok {
			s.logger.DebugContext(ctx, "Report served from cache",
				applog.FieldUserID, req.UserID, applog.FieldCacheHit, true)
			return r, nil
		}
	}

	gen := s.generation(req.UserID)
	flight := key + "#" + strconv.FormatUint(gen, 10)
	v, err, _ := s.group.Do(flight, func() (any, error) {
		r, err := s.build(ctx, req)
		if err != nil {
			return insights.Report{}, err
		}
		s.cacheReport(key, req.UserID, gen, r)
		return r, nil
	})
	if err != nil {
		return insights.Report{}, err
	}
	return v.(insights.Report), nil
}

func (s *InsightService) build(ctx context.Context, req ReportRequest) (insights.Report, error) {
	profile, expenses, err := s.load(ctx, req.UserID)
	if err != nil {
		return insights.Report{}, err
	}
	r := s.engine(req.ClassifyEssentials).Compute(profile, expenses, req.Date)

	fields := applog.NewFields().
		WithOperation(applog.OpCompute).
		WithUser(req.UserID).
		WithReport(r.ReferenceDate, r.Summary.TotalSpent, r.Summary.ProjectedSavings,
			r.SuggestedGoal, string(r.Forecast.Tone), len(r.Tips))
	fields[applog.FieldExpenseCount] = len(expenses)
	s.logger.InfoContext(ctx, "Report computed", fields.ToSlice()...)
	return r, nil
}

// load fetches profile and expenses concurrently. A missing profile is a
// zero profile.
func (s *InsightService) load(ctx context.Context, userID string) (core.Profile, []core.ExpenseRecord, error) {
	var (
		profile  core.Profile
		expenses []core.ExpenseRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.store.GetProfile(gctx, userID)
		switch {
		case errors.Is(err, ports.ErrNotFound):
			return nil
		case err != nil:
			return fmt.Errorf("get profile: %w", err)
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		list, err := s.store.ListExpenses(gctx, userID)
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		expenses = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.Profile{}, nil, err
	}
	return profile, expenses, nil
}

// Compute runs the engine over caller-supplied data without touching
// storage. raw must be a JSON array of expenses; anything else produces the
// invalid-input report.
func (s *InsightService) Compute(profile core.Profile, raw json.RawMessage, ref core.Date, classify bool) insights.Report {
	if ref.IsZero() {
		ref = s.today()
	}
	return s.engine(classify).ComputeRaw(profile, raw, ref)
}

// ApplySuggestedGoal stores the report's suggested goal as the user's new
// savings goal and returns the updated profile.
func (s *InsightService) ApplySuggestedGoal(ctx context.Context, req ReportRequest) (core.Profile, insights.Report, error) {
	req, err := s.resolve(req)
	if err != nil {
		return core.Profile{}, insights.Report{}, err
	}
	profile, expenses, err := s.load(ctx, req.UserID)
	if err != nil {
		return core.Profile{}, insights.Report{}, err
	}
	r := s.engine(req.ClassifyEssentials).Compute(profile, expenses, req.Date)
	goal := insights.ApplySuggestedGoal(r)

	profile.SavingsGoal = core.Amount{Decimal: goal}
	if err := s.store.SaveProfile(ctx, req.UserID, profile); err != nil {
		return core.Profile{}, insights.Report{}, fmt.Errorf("save profile: %w", err)
	}
	s.Invalidate(req.UserID)

	s.logger.InfoContext(ctx, "Suggested goal applied",
		applog.FieldOperation, applog.OpApply,
		applog.FieldUserID, req.UserID,
		applog.FieldSuggestedGoal, goal.String())

	if s.publisher != nil {
		if err := s.publisher.PublishGoalApplied(ctx, req.UserID, goal); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish goal applied message",
				applog.FieldUserID, req.UserID, applog.FieldError, err)
		}
	}
	return profile, r, nil
}

func (s *InsightService) generation(userID string) uint64 {
	s.gensMu.Lock()
	defer s.gensMu.Unlock()
	return s.gens[userID]
}

// cacheReport caches r unless the user was invalidated after gen was read.
func (s *InsightService) cacheReport(key, userID string, gen uint64, r insights.Report) {
	if s.cache == nil {
		return
	}
	s.gensMu.Lock()
	defer s.gensMu.Unlock()
	if s.gens[userID] != gen {
		return
	}
	s.cache.Set(key, r)
}

// Invalidate drops every cached report for the user and stops in-flight
// computations from caching their results.
func (s *InsightService) Invalidate(userID string) {
	s.gensMu.Lock()
	s.gens[userID]++
	s.gensMu.Unlock()
	if s.cache == nil {
		return
	}
	if n := s.cache.DeletePrefix(userID + "|"); n > 0 {
		s.logger.Debug("Cached reports invalidated", applog.FieldUserID, userID, "entries", n)
	}
}

// LatestSnapshot returns the most recent worker-computed report.
func (s *InsightService) LatestSnapshot(ctx context.Context, userID string) (core.Snapshot, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.Snapshot{}, core.ErrEmptyUserID
	}
	snap, err := s.store.LatestSnapshot(ctx, userID)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	return snap, nil
}

// RefreshSnapshot recomputes the report from storage, bypassing the cache,
// and stores it as the user's latest snapshot.
func (s *InsightService) RefreshSnapshot(ctx context.Context, req ReportRequest) (core.Snapshot, error) {
	req, err := s.resolve(req)
	if err != nil {
		return core.Snapshot{}, err
	}
	s.Invalidate(req.UserID)
	gen := s.generation(req.UserID)
	r, err := s.build(ctx, req)
	if err != nil {
		return core.Snapshot{}, err
	}
	body, err := json.Marshal(r)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("encode report: %w", err)
	}
	snap := core.Snapshot{
		UserID:        req.UserID,
		ReferenceDate: r.ReferenceDate,
		Report:        body,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return core.Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}
	s.cacheReport(cacheKey(req), req.UserID, gen, r)
	s.logger.InfoContext(ctx, "Snapshot stored",
		applog.FieldOperation, applog.OpSnapshot,
		applog.FieldUserID, req.UserID,
		applog.FieldReferenceDate, snap.ReferenceDate)
	return snap, nil
}
