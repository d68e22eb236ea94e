package http

import (
	"net/http"

	"zpend/internal/core"
	"zpend/internal/insights"
	applog "zpend/internal/log"
)

// handleInsights returns the JSON report for a user and day.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	req, err := ParseReportParams(r)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	report, err := s.api.Report(r.Context(), req)
	if err != nil {
		writeError(w, r, applog.OpCompute, err)
		return
	}
	NewResponse().JSON(report).Write(w)
}

// handleSummary returns the report rendered as plain text.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	req, err := ParseReportParams(r)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	report, err := s.api.Report(r.Context(), req)
	if err != nil {
		writeError(w, r, applog.OpCompute, err)
		return
	}
	NewResponse().Text(insights.RenderSummary(report)).Write(w)
}

// handleCompute runs the engine over a posted profile and expense list
// without reading or writing storage. A non-array expenses field yields the
// invalid-input report with status 200.
func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	req, ref, err := ParseComputeRequest(NewRequestBodyParser(r))
	if err != nil {
		writeError(w, r, applog.OpCompute, err)
		return
	}
	report := s.api.Compute(req.Profile, req.Expenses, ref, req.Essentials)
	NewResponse().JSON(report).Write(w)
}

type applyGoalResponse struct {
	Profile       core.Profile    `json:"profile"`
	AppliedGoal   core.Amount     `json:"appliedGoal"`
	Report        insights.Report `json:"report"`
	PreviousGoal  core.Amount     `json:"previousGoal"`
	ReferenceDate string          `json:"referenceDate"`
}

// handleApplyGoal persists the suggested goal as the user's savings goal.
func (s *Server) handleApplyGoal(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	req, err := ParseReportParams(r)
	if err != nil {
		writeError(w, r, applog.OpApply, err)
		return
	}
	profile, report, err := s.api.ApplySuggestedGoal(r.Context(), req)
	if err != nil {
		writeError(w, r, applog.OpApply, err)
		return
	}
	NewResponse().JSON(applyGoalResponse{
		Profile:       profile,
		AppliedGoal:   profile.SavingsGoal,
		Report:        report,
		PreviousGoal:  core.Amount{Decimal: report.Summary.SavingsGoal},
		ReferenceDate: report.ReferenceDate,
	}).Write(w)
}

// handleSnapshot returns the latest report stored by the worker.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	snap, err := s.api.LatestSnapshot(r.Context(), ParseUserID(r))
	if err != nil {
		writeError(w, r, applog.OpSnapshot, err)
		return
	}
	NewResponse().JSON(snap).Write(w)
}
