package http

import (
	"context"
	"errors"
	"net/http"

	"zpend/internal/core"
	applog "zpend/internal/log"
	"zpend/internal/middleware/trace"
	"zpend/internal/ports"
	"zpend/internal/services"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrEmptyUserID),
		errors.Is(err, ErrMalformed),
		errors.Is(err, services.ErrNoExpenses):
		return http.StatusBadRequest
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrCategoryTooLong),
		errors.Is(err, core.ErrNoteTooLong):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes the matching JSON error. Server errors get
// a generic message so storage details do not leak.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = http.StatusText(status)
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op, nil)
	}
	NewResponse().Status(status).JSON(ErrorBody{Error: msg, RequestID: requestID(r)}).Write(w)
}

func requestID(r *http.Request) string {
	return trace.GetRequestID(r.Context())
}
