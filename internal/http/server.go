package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"zpend/internal/cache"
	"zpend/internal/core"
	"zpend/internal/insights"
	applog "zpend/internal/log"
	"zpend/internal/middleware/ratelimit"
	"zpend/internal/middleware/security"
	"zpend/internal/middleware/trace"
	"zpend/internal/services"
)

const requestTimeout = 15 * time.Second

// InsightAPI is the service surface the handlers use.
type InsightAPI interface {
	Report(ctx context.Context, req services.ReportRequest) (insights.Report, error)
	Compute(profile core.Profile, raw json.RawMessage, ref core.Date, classify bool) insights.Report
	ApplySuggestedGoal(ctx context.Context, req services.ReportRequest) (core.Profile, insights.Report, error)
	LatestSnapshot(ctx context.Context, userID string) (core.Snapshot, error)
	GetProfile(ctx context.Context, userID string) (core.Profile, error)
	SaveProfile(ctx context.Context, userID string, p core.Profile) error
	ListExpenses(ctx context.Context, userID string) ([]core.ExpenseRecord, error)
	LogExpenses(ctx context.Context, userID string, records []core.ExpenseRecord) ([]string, error)
}

// Pinger is implemented by backends that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configure a Server.
type Options struct {
	Addr               string
	Logger             *applog.Logger
	RateLimitPerMinute int
	BlockSuspicious    bool
	// Ready is checked by /readyz when set.
	Ready Pinger
	// CacheStats feeds /metrics when set.
	CacheStats func() cache.Stats
}

type Server struct {
	http.Server
	api        InsightAPI
	ready      Pinger
	logger     *applog.Logger
	limiter    *ratelimit.Limiter
	detector   *security.Detector
	tracer     *trace.Middleware
	cacheStats func() cache.Stats
	started    time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(api InsightAPI, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	detector := security.NewDetector()
	s := &Server{
		api:    api,
		ready:  opts.Ready,
		logger: logger,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		detector:   detector,
		tracer:     trace.NewMiddleware(logger, detector.ExtractClientIP),
		cacheStats: opts.CacheStats,
		started:    time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.HandleFunc("/api/insights", s.handleInsights)
	mux.HandleFunc("/api/insights/summary", s.handleSummary)
	mux.HandleFunc("/api/insights/compute", s.handleCompute)
	mux.HandleFunc("/api/insights/apply-goal", s.handleApplyGoal)
	mux.HandleFunc("/api/insights/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/profile", s.handleProfile)
	mux.HandleFunc("/api/expenses", s.handleExpenses)

	var h http.Handler = mux
	h = http.TimeoutHandler(h, requestTimeout, `{"error":"request timed out"}`)
	h = s.limiter.Middleware(detector.ExtractClientIP, ratelimit.WriteMethods, s.onRateLimited)(h)
	h = detector.Middleware(logger, opts.BlockSuspicious)(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	NewResponse().
		Status(http.StatusTooManyRequests).
		JSON(ErrorBody{Error: "rate limit exceeded, try again later", RequestID: requestID(r)}).
		Write(w)
}

// Shutdown stops the rate limiter and drains the HTTP server. Only the first
// call has any effect.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
