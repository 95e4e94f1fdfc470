package web

import (
	"encoding/csv"
	"net/http"

	"github.com/JonMunkholm/RosterImport/internal/logging"
	"github.com/JonMunkholm/RosterImport/internal/roster"
)

// handleDownloadTemplate returns a blank roster CSV with the preferred
// column headers.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="student_roster_template.csv"`)

	cw := csv.NewWriter(w)
	cw.Write(roster.TemplateHeaders)
	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.FromContext(r.Context()).Error("write roster template", "error", err)
	}
}
