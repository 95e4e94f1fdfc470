package web

import (
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/RosterImport/internal/logging"
	"github.com/JonMunkholm/RosterImport/internal/roster"
)

// withSessionLogging tags handler logs under /sessions/{id} with the
// session ID.
func withSessionLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chi.URLParam(r, "id"); id != "" {
			r = r.WithContext(logging.WithSession(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// sessionFromRequest resolves the {id} URL parameter to an open session.
func (s *Server) sessionFromRequest(r *http.Request) (*roster.Session, error) {
	return s.service.Session(chi.URLParam(r, "id"))
}

// seqParam parses the {seq} URL parameter.
func seqParam(r *http.Request) (int, error) {
	seq, err := strconv.Atoi(chi.URLParam(r, "seq"))
	if err != nil || seq <= 0 {
		return 0, fmt.Errorf("%w: %q", errBadRowNumber, chi.URLParam(r, "seq"))
	}
	return seq, nil
}

// parseIntParam reads a positive integer query parameter, falling back to def.
func parseIntParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// clientIP is the address used for rate limiting; RemoteAddr has already
// been rewritten by TrustedRealIP for trusted proxies.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
