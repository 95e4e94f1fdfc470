package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/RosterImport/internal/logging"
	"github.com/JonMunkholm/RosterImport/internal/roster"
)

const (
	multipartMemory = 32 << 20
	defaultPageSize = 50
	maxPageSize     = 500
)

// sessionSummary is a session view without its rows.
func sessionSummary(sess *roster.Session) roster.SessionView {
	v := sess.View()
	v.Rows = nil
	return v
}

// handleCreateSession accepts a multipart upload in the "file" field and
// opens an import session for it.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			s.respondError(w, r, fmt.Errorf("%w: %v", roster.ErrFileTooLarge, err), 0)
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %v", errNoFile, err), 0)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errNoFile, err), 0)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read upload: %w", err), http.StatusBadRequest)
		return
	}

	sess, err := s.service.StartSession(r.Context(), filepath.Base(header.Filename), data)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	writeJSON(w, http.StatusCreated, sessionSummary(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFromRequest(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, sessionSummary(sess))
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CloseSession(chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// rowsPage is one page of the displayed rows.
type rowsPage struct {
	Page           int              `json:"page"`
	PageSize       int              `json:"pageSize"`
	TotalRows      int              `json:"totalRows"`
	TotalPages     int              `json:"totalPages"`
	DuplicatesOnly bool             `json:"duplicatesOnly"`
	Rows           []roster.RowView `json:"rows"`
}

// handleListRows returns the displayed rows, paginated. Duplicate flags
// always reflect the full row collection.
func (s *Server) handleListRows(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFromRequest(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	pageSize := parseIntParam(r, "pageSize", s.cfg.Session.PageSize)
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	pageSize = min(pageSize, maxPageSize)

	v := sess.View()
	total := len(v.Rows)
	totalPages := (total + pageSize - 1) / pageSize

	// Clamp before multiplying so a huge page number cannot overflow.
	page := min(parseIntParam(r, "page", 1), totalPages+1)

	resp := rowsPage{
		Page:           page,
		PageSize:       pageSize,
		TotalRows:      total,
		TotalPages:     totalPages,
		DuplicatesOnly: v.DuplicatesOnly,
		Rows:           []roster.RowView{},
	}
	if page <= totalPages {
		start := (page - 1) * pageSize
		resp.Rows = v.Rows[start:min(start+pageSize, total)]
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDuplicatesOnly sets the duplicates-only filter from {"enabled": bool},
// or toggles it when the body is empty.
func (s *Server) handleDuplicatesOnly(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFromRequest(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}

	enabled := !sess.View().DuplicatesOnly
	if body.Enabled != nil {
		enabled = *body.Enabled
	}
	sess.SetDuplicatesOnly(enabled)
	writeJSON(w, http.StatusOK, sessionSummary(sess))
}

type editResponse struct {
	Edit      roster.ActiveEdit `json:"edit"`
	Discarded bool              `json:"discarded"`
}

func (s *Server) handleBeginEdit(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFromRequest(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	seq, err := seqParam(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	edit, discarded, err := sess.BeginEdit(seq)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, editResponse{Edit: edit, Discarded: discarded})
}

// handleUpdateEdit applies {"field": "value", ...} to the draft.
func (s *Server) handleUpdateEdit(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFromRequest(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	var changes map[string]string
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		s.respondError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}

	edit, err := sess.UpdateEdit(changes)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, editResponse{Edit: edit})
}

func (s *Server) handleSaveEdit(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFromRequest(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	row, err := sess.SaveEdit()
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFromRequest(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	sess.CancelEdit()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFromRequest(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	seq, err := seqParam(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	if err := sess.DeleteRow(seq); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSubmit runs the batch submission. The submission is detached from
// the client connection so a dropped request does not abort it; only the
// backend client timeout bounds it.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())

	out, err := s.service.Submit(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFromRequest(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	sess.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// handleFailuresCSV downloads the failure report of the last submission.
func (s *Server) handleFailuresCSV(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFromRequest(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	out, ok := sess.Outcome()
	if !ok {
		s.respondError(w, r, roster.ErrNoOutcome, 0)
		return
	}

	base := strings.TrimSuffix(sess.FileName, filepath.Ext(sess.FileName))
	filename := fmt.Sprintf("%s_failures_%s.csv", base, time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))

	if err := roster.WriteFailureReport(w, out.Failures); err != nil {
		// Headers are already sent.
		logging.FromContext(r.Context()).Error("write failure report", "error", err)
	}
}
