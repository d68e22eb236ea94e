package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"zpend/internal/core"
)

func TestParseUserID(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header string
		want   string
	}{
		{"query wins", "/?user=alice", "bob", "alice"},
		{"header fallback", "/", "bob", "bob"},
		{"trimmed", "/?user=%20carol%20", "", "carol"},
		{"control chars stripped", "/?user=da%00ve", "", "dave"},
		{"missing", "/", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				r.Header.Set(HeaderUserID, tt.header)
			}
			if got := ParseUserID(r); got != tt.want {
				t.Errorf("ParseUserID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseReportParams(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantDate   string
		essentials bool
		wantErr    bool
	}{
		{"defaults", "/?user=u", "", false, false},
		{"explicit date", "/?user=u&date=2025-03-15", "2025-03-15", false, false},
		{"essentials on", "/?user=u&essentials=true", "", true, false},
		{"bad essentials ignored", "/?user=u&essentials=maybe", "", false, false},
		{"bad date", "/?user=u&date=15-03-2025", "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseReportParams(httptest.NewRequest(http.MethodGet, tt.target, nil))
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidDate) {
					t.Fatalf("err = %v, want ErrInvalidDate", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantDate == "" && !req.Date.IsZero() {
				t.Errorf("Date = %s, want zero", req.Date)
			}
			if tt.wantDate != "" && req.Date.String() != tt.wantDate {
				t.Errorf("Date = %s, want %s", req.Date, tt.wantDate)
			}
			if req.ClassifyEssentials != tt.essentials {
				t.Errorf("ClassifyEssentials = %v, want %v", req.ClassifyEssentials, tt.essentials)
			}
		})
	}
}

func newBodyRequest(body, contentType string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	return r
}

func TestRequestBodyParser_Expenses(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantCount  int
		wantAmount string
		wantErr    error
	}{
		{"json array", `[{"category":"food","amount":10},{"category":"rent","amount":"20"}]`, 2, "10", nil},
		{"json object", `{"category":"food","amount":12.5,"monthlyPlanned":100}`, 1, "12.5", nil},
		{"wrapped array", `{"expenses":[{"category":"a","amount":1}]}`, 1, "1", nil},
		{"lenient json amount", `[{"category":"a","amount":"abc"}]`, 1, "0", nil},
		{"form", "category=food&amount=%E2%82%B9+1%2C200.50&date=2025-03-15", 1, "1200.5", nil},
		{"form bad amount", "category=food&amount=abc", 0, "", core.ErrInvalidAmount},
		{"malformed json", `[{"category":`, 0, "", ErrMalformed},
		{"wrapped not array", `{"expenses":"nope"}`, 0, "", ErrMalformed},
		{"empty body", "", 0, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewRequestBodyParser(newBodyRequest(tt.body, "")).Expenses()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.wantCount {
				t.Fatalf("got %d records, want %d", len(got), tt.wantCount)
			}
			if tt.wantCount > 0 && !got[0].Amount.Equal(decimal.RequireFromString(tt.wantAmount)) {
				t.Errorf("amount = %s, want %s", got[0].Amount, tt.wantAmount)
			}
		})
	}
}

func TestRequestBodyParser_TooLarge(t *testing.T) {
	body := "[" + strings.Repeat(" ", maxBodyBytes) + "]"
	_, err := NewRequestBodyParser(newBodyRequest(body, "application/json")).Expenses()
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("err = %v, want ErrBodyTooLarge", err)
	}
}

func TestRequestBodyParser_ApplyProfile(t *testing.T) {
	base := core.Profile{Income: core.NewAmount(5000), SavingsGoal: core.NewAmount(1000)}
	tests := []struct {
		name       string
		body       string
		wantIncome int64
		wantGoal   int64
		wantErr    bool
	}{
		{"both fields", `{"income":6000,"savingsGoal":"1500"}`, 6000, 1500, false},
		{"partial update", `{"savings_goal":200}`, 5000, 200, false},
		{"form", "income=7000", 7000, 1000, false},
		{"negative rejected", `{"income":-1}`, 0, 0, true},
		{"garbage rejected", `{"savingsGoal":"lots"}`, 0, 0, true},
		{"array rejected", `[1,2]`, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			err := NewRequestBodyParser(newBodyRequest(tt.body, "")).ApplyProfile(&p)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !p.Income.Equal(decimal.NewFromInt(tt.wantIncome)) || !p.SavingsGoal.Equal(decimal.NewFromInt(tt.wantGoal)) {
				t.Errorf("profile = %s/%s, want %d/%d", p.Income, p.SavingsGoal, tt.wantIncome, tt.wantGoal)
			}
		})
	}
}

func TestParseComputeRequest(t *testing.T) {
	req, ref, err := ParseComputeRequest(NewRequestBodyParser(newBodyRequest(
		`{"profile":{"income":1000},"expenses":[{"amount":1}],"date":"2025-03-15T10:00:00Z","essentials":true}`, "")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.String() != "2025-03-15" || !req.Essentials || !req.Profile.Income.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("parsed = %+v, ref = %s", req, ref)
	}
	if string(req.Expenses) != `[{"amount":1}]` {
		t.Errorf("expenses raw = %s", req.Expenses)
	}

	if _, _, err := ParseComputeRequest(NewRequestBodyParser(newBodyRequest(`[1]`, ""))); !errors.Is(err, ErrMalformed) {
		t.Errorf("array body err = %v, want ErrMalformed", err)
	}
	if _, _, err := ParseComputeRequest(NewRequestBodyParser(newBodyRequest(`{"date":"yesterday"}`, ""))); !errors.Is(err, core.ErrInvalidDate) {
		t.Errorf("bad date err = %v, want ErrInvalidDate", err)
	}
}

func TestParseComputeRequestLenientFields(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		essentials bool
	}{
		{"string essentials", `{"essentials":"true"}`, true},
		{"garbage essentials", `{"essentials":"maybe"}`, false},
		{"numeric essentials", `{"essentials":1}`, false},
		{"numeric date", `{"date":20250315,"essentials":true}`, true},
		{"object date", `{"date":{"y":2025}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, ref, err := ParseComputeRequest(NewRequestBodyParser(newBodyRequest(tt.body, "")))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.Essentials != tt.essentials {
				t.Errorf("Essentials = %v, want %v", req.Essentials, tt.essentials)
			}
			if !ref.IsZero() {
				t.Errorf("ref = %s, want zero", ref)
			}
		})
	}
}

func TestRequireMethod(t *testing.T) {
	r := httptest.NewRequest(http.MethodDelete, "/", nil)
	resp := RequireMethod(r, http.MethodGet, http.MethodPut)
	if resp == nil {
		t.Fatal("expected a 405 response")
	}
	w := httptest.NewRecorder()
	resp.Write(w)
	if w.Code != http.StatusMethodNotAllowed || w.Header().Get("Allow") != "GET, PUT" {
		t.Errorf("status = %d, Allow = %q", w.Code, w.Header().Get("Allow"))
	}
	if RequirePOST(httptest.NewRequest(http.MethodPost, "/", nil)) != nil {
		t.Error("POST should be accepted")
	}
}
