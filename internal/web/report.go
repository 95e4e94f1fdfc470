package web

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/RosterImport/internal/roster"
)

const reportStyle = `body{font-family:sans-serif;margin:2rem;color:#222}
table{border-collapse:collapse;width:100%}
th,td{border:1px solid #ccc;padding:.4rem .6rem;text-align:left}
th{background:#f3f3f3}
.summary span{margin-right:1.5rem}
.error{color:#b00020}`

// handleReport renders the failure report of a session's last submission
// as an HTML page.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
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

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := failureReport(sess.FileName, out).Render(r.Context(), w); err != nil {
		s.respondError(w, r, fmt.Errorf("render report: %w", err), http.StatusInternalServerError)
	}
}

// failureReport is the HTML page listing rows that were not created.
func failureReport(fileName string, out roster.SubmitOutcome) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &htmlWriter{w: w}
		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`)
		p.text("Import report: " + fileName)
		p.raw(`</title><style>` + reportStyle + `</style></head><body><h1>`)
		p.text(fileName)
		p.raw(`</h1><p class="summary">`)
		p.rawf(`<span>Status: <strong>%s</strong></span>`, templ.EscapeString(string(out.Status)))
		p.rawf(`<span>Attempted: %d</span><span>Created: %d</span><span>Skipped: %d</span><span>Failed: %d</span>`,
			out.Attempted, out.Created, out.Skipped, out.Failed)
		p.raw(`</p>`)

		if out.Error != "" {
			p.raw(`<p class="error">`)
			p.text(out.Error)
			p.raw(`</p>`)
		}

		if len(out.Failures) == 0 {
			p.raw(`<p>Every row was created.</p></body></html>`)
			return p.err
		}

		p.raw(`<table><thead><tr><th>Row</th><th>Name</th><th>REG. NO</th><th>Email</th><th>Source</th><th>Reason</th></tr></thead><tbody>`)
		for _, f := range out.Failures {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.rawf(`<tr><td>%d</td>`, f.Seq)
			for _, cell := range []string{f.FullName, f.RegistrationNumber, f.Email, string(f.Source), f.Reason} {
				p.raw(`<td>`)
				p.text(cell)
				p.raw(`</td>`)
			}
			p.raw(`</tr>`)
		}
		p.raw(`</tbody></table></body></html>`)
		return p.err
	})
}

// htmlWriter keeps the first write error so rendering code stays linear.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (p *htmlWriter) raw(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

func (p *htmlWriter) rawf(format string, args ...any) {
	p.raw(fmt.Sprintf(format, args...))
}

func (p *htmlWriter) text(s string) {
	p.raw(templ.EscapeString(s))
}
