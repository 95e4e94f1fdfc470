package web

// errors.go provides unified error responses for the web layer.
//
// Every error is:
//   - logged with its technical details and the request ID
//   - mapped by roster.MapError to a user-facing message, action and code
//   - returned as JSON for API calls and as plain text for the HTML pages

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/RosterImport/internal/logging"
	"github.com/JonMunkholm/RosterImport/internal/roster"
	"github.com/JonMunkholm/RosterImport/internal/store"
)

var (
	errNoFile       = errors.New("no file provided")
	errRateLimited  = errors.New("rate limit exceeded")
	errBadRowNumber = errors.New("row not found: invalid row number")
)

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the mapped user message. A zero status
// is derived from the error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	userMsg := roster.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if status >= 500 {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if wantsJSON(r) {
		respondErrorJSON(w, userMsg, status)
		return
	}
	http.Error(w, userMsg.Message+" ("+userMsg.Code+")", status)
}

func respondErrorJSON(w http.ResponseWriter, msg roster.UserMessage, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes), errors.Is(err, roster.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, roster.ErrSessionNotFound),
		errors.Is(err, roster.ErrRowNotFound),
		errors.Is(err, roster.ErrNoOutcome),
		errors.Is(err, store.ErrHistoryDisabled):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidBatchID):
		return http.StatusBadRequest
	case errors.Is(err, roster.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, roster.ErrMalformedFile),
		errors.Is(err, roster.ErrEmptyFile),
		errors.Is(err, roster.ErrUnknownField),
		errors.Is(err, roster.ErrNoRows),
		errors.Is(err, errNoFile):
		return http.StatusUnprocessableEntity
	case errors.Is(err, roster.ErrSubmissionInFlight),
		errors.Is(err, roster.ErrNotIdle),
		errors.Is(err, roster.ErrNoActiveEdit):
		return http.StatusConflict
	case errors.Is(err, roster.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case errors.Is(err, roster.ErrReferenceData):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// wantsJSON reports whether the client should get a JSON error body.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
