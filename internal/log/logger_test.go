package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("%q: expected %v, got %v", in, want, got)
		}
	}
}

func TestJSONLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentInsights, Output: &buf})
	l.Info("computed", FieldUserID, "u1")
	l.Debug("hidden")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected a single JSON record, got %q: %v", buf.String(), err)
	}
	if rec["component"] != "insights" || rec["user_id"] != "u1" || rec["msg"] != "computed" {
		t.Fatalf("unexpected record %v", rec)
	}

	buf.Reset()
	l.WithComponent(ComponentWorker).Warn("w")
	if !strings.Contains(buf.String(), `"component":"worker"`) {
		t.Fatalf("expected worker component, got %s", buf.String())
	}
}

func TestFieldsToSliceIsSorted(t *testing.T) {
	f := NewFields().
		WithUser("u1").
		WithError(errors.New("boom")).
		WithReport("2025-03-15", decimal.NewFromInt(10), decimal.NewFromInt(90), decimal.NewFromInt(81), "on-track", 1)
	s := f.ToSlice()
	if len(s) != 2*len(f) {
		t.Fatalf("expected %d items, got %d", 2*len(f), len(s))
	}
	prev := ""
	for i := 0; i < len(s); i += 2 {
		k := s[i].(string)
		if k < prev {
			t.Fatalf("keys not sorted: %v", s)
		}
		prev = k
	}
	if f[FieldSuggestedGoal] != "81" || f[FieldError] != "boom" {
		t.Fatalf("unexpected fields %v", f)
	}
	if _, ok := NewFields().WithError(nil)[FieldError]; ok {
		t.Fatalf("nil error must not add a field")
	}
}

func TestMiddlewareStoresLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "text", Component: ComponentHTTP, Output: &buf})

	var got *Logger
	h := Middleware(l)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = FromContext(r.Context())
			got.Info("inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got == nil || got.Component() != ComponentHTTP {
		t.Fatalf("expected request logger, got %+v", got)
	}
	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Fatalf("expected request id in %q", buf.String())
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatalf("expected fallback logger")
	}
}
