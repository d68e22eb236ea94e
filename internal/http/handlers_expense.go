package http

import (
	"net/http"

	applog "zpend/internal/log"
)

type logExpensesResponse struct {
	Refs  []string `json:"refs"`
	Count int      `json:"count"`
}

// handleExpenses lists (GET) or logs (POST) a user's expenses. POST accepts a
// single record, an array, an {"expenses": [...]} object or a form.
func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet, http.MethodPost); resp != nil {
		resp.Write(w)
		return
	}
	userID := ParseUserID(r)

	if r.Method == http.MethodGet {
		list, err := s.api.ListExpenses(r.Context(), userID)
		if err != nil {
			writeError(w, r, applog.OpRead, err)
			return
		}
		NewResponse().JSON(list).Write(w)
		return
	}

	records, err := NewRequestBodyParser(r).Expenses()
	if err != nil {
		writeError(w, r, applog.OpLog, err)
		return
	}
	refs, err := s.api.LogExpenses(r.Context(), userID, records)
	if err != nil {
		writeError(w, r, applog.OpLog, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		JSON(logExpensesResponse{Refs: refs, Count: len(refs)}).
		Write(w)
}
