// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// query parameters shared by the report endpoints and request bodies that may
// arrive as JSON or form-encoded data.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"zpend/internal/core"
	"zpend/internal/services"
)

const (
	maxBodyBytes = 1 << 20

	// HeaderUserID is an alternative to the user query parameter.
	HeaderUserID = "X-User-ID"
)

var (
	ErrBodyTooLarge = errors.New("request body too large")
	ErrMalformed    = errors.New("malformed request body")
)

// ParseUserID returns the user from the "user" query parameter or the
// X-User-ID header, in that order.
func ParseUserID(r *http.Request) string {
	if u := sanitizeInput(r.URL.Query().Get("user")); u != "" {
		return u
	}
	return sanitizeInput(r.Header.Get(HeaderUserID))
}

// ParseReportParams reads user, date and essentials from the query string.
// A missing date means today; an unparseable one is an error. Unparseable
// essentials flags are ignored.
func ParseReportParams(r *http.Request) (services.ReportRequest, error) {
	q := r.URL.Query()
	req := services.ReportRequest{UserID: ParseUserID(r)}

	if v := strings.TrimSpace(q.Get("date")); v != "" {
		d, err := core.ParseDate(core.NormalizeDate(v))
		if err != nil {
			return req, fmt.Errorf("date %q: %w", v, err)
		}
		req.Date = d
	}
	if v := strings.TrimSpace(q.Get("essentials")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			req.ClassifyEssentials = b
		}
	}
	return req, nil
}

// RequestBodyParser handles different content types for request body parsing.
// The body is read once; JSON is detected by its first byte and anything else
// is parsed as form data.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	isArray  bool
	parsed   bool
	err      error
}

// NewRequestBodyParser reads at most maxBodyBytes of the request body.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	if r.Body == nil {
		return p
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	switch {
	case err != nil:
		p.err = err
	case len(body) > maxBodyBytes:
		p.err = ErrBodyTooLarge
	default:
		p.body = bytes.TrimSpace(body)
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}
	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	switch p.body[0] {
	case '[':
		if !json.Valid(p.body) {
			p.err = ErrMalformed
		}
		p.isArray = true
		return p.err
	case '{':
		dec := json.NewDecoder(bytes.NewReader(p.body))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return p.err
	}

	form, err := url.ParseQuery(string(p.body))
	if err != nil {
		p.err = fmt.Errorf("%w: %v", ErrMalformed, err)
		return p.err
	}
	p.formData = form
	return nil
}

// Has reports whether key was present in the body.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		return ok
	}
	return false
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Expenses returns the records in the body: a JSON array, a JSON object with
// an "expenses" array, a single JSON object, or a single form-encoded record.
// JSON fields are coerced leniently; form amounts must parse.
func (p *RequestBodyParser) Expenses() ([]core.ExpenseRecord, error) {
	if err := p.Parse(); err != nil {
		return nil, err
	}
	switch {
	case p.isArray:
		var out []core.ExpenseRecord
		if err := json.Unmarshal(p.body, &out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return out, nil
	case p.jsonData != nil:
		if _, ok := p.jsonData["expenses"]; ok {
			var wrapped struct {
				Expenses []core.ExpenseRecord `json:"expenses"`
			}
			if err := json.Unmarshal(p.body, &wrapped); err != nil {
				return nil, fmt.Errorf("%w: expenses must be an array", ErrMalformed)
			}
			return wrapped.Expenses, nil
		}
		var rec core.ExpenseRecord
		if err := json.Unmarshal(p.body, &rec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return []core.ExpenseRecord{rec}, nil
	}
	return p.formExpense()
}

func (p *RequestBodyParser) formExpense() ([]core.ExpenseRecord, error) {
	if len(p.formData) == 0 {
		return nil, nil
	}
	rec := core.ExpenseRecord{
		Category: p.Get("category"),
		Date:     p.Get("date"),
		Note:     p.Get("note"),
	}
	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	rec.Amount = amount
	if v := p.first("monthlyPlanned", "monthly_planned"); v != "" {
		planned, err := core.ParseAmount(v)
		if err != nil {
			return nil, fmt.Errorf("monthly planned: %w", err)
		}
		rec.MonthlyPlanned = planned
	}
	return []core.ExpenseRecord{rec}, nil
}

// ApplyProfile overwrites the fields of p that are present in the body.
// Values must be valid non-negative amounts.
func (p *RequestBodyParser) ApplyProfile(profile *core.Profile) error {
	if err := p.Parse(); err != nil {
		return err
	}
	if p.isArray {
		return fmt.Errorf("%w: profile must be an object", ErrMalformed)
	}
	if p.Has("income") {
		a, err := core.ParseAmount(p.Get("income"))
		if err != nil {
			return fmt.Errorf("income: %w", err)
		}
		profile.Income = a
	}
	for _, key := range []string{"savingsGoal", "savings_goal"} {
		if !p.Has(key) {
			continue
		}
		a, err := core.ParseAmount(p.Get(key))
		if err != nil {
			return fmt.Errorf("savings goal: %w", err)
		}
		profile.SavingsGoal = a
		break
	}
	return nil
}

func (p *RequestBodyParser) first(keys ...string) string {
	for _, k := range keys {
		if v := p.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// ComputeRequest is the body of a stateless compute call. Expenses is kept
// raw so a non-array payload can produce the invalid-input report.
type ComputeRequest struct {
	Profile    core.Profile    `json:"profile"`
	Expenses   json.RawMessage `json:"expenses"`
	Date       string          `json:"-"`
	Essentials bool            `json:"-"`
}

// ParseComputeRequest decodes a compute body. The body itself must be a
// JSON object. date and essentials follow the query-string rules: a date
// string must parse, anything else is ignored; essentials accepts a bool or
// a boolean string.
func ParseComputeRequest(p *RequestBodyParser) (ComputeRequest, core.Date, error) {
	var req ComputeRequest
	if err := p.Parse(); err != nil {
		return req, core.Date{}, err
	}
	if p.jsonData == nil {
		return req, core.Date{}, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}
	if err := json.Unmarshal(p.body, &req); err != nil {
		return req, core.Date{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if v, ok := p.jsonData["date"].(string); ok {
		req.Date = v
	}
	switch v := p.jsonData["essentials"].(type) {
	case bool:
		req.Essentials = v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			req.Essentials = b
		}
	}
	var ref core.Date
	if d := strings.TrimSpace(req.Date); d != "" {
		parsed, err := core.ParseDate(core.NormalizeDate(d))
		if err != nil {
			return req, core.Date{}, fmt.Errorf("date %q: %w", d, err)
		}
		ref = parsed
	}
	return req, ref, nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *ResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *ResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}
