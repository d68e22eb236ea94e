package http

import (
	"net/http"

	applog "zpend/internal/log"
)

// handleProfile reads (GET) or updates (PUT) a user's profile. PUT only
// overwrites the fields present in the body.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet, http.MethodPut); resp != nil {
		resp.Write(w)
		return
	}
	userID := ParseUserID(r)
	profile, err := s.api.GetProfile(r.Context(), userID)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	if r.Method == http.MethodGet {
		NewResponse().JSON(profile).Write(w)
		return
	}

	if err := NewRequestBodyParser(r).ApplyProfile(&profile); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	if err := s.api.SaveProfile(r.Context(), userID, profile); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewResponse().JSON(profile).Write(w)
}
