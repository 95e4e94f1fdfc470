package roster

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Session is one spreadsheet import: its normalized rows, the single
// active edit, the duplicates-only display toggle and the submitter.
//
// All methods are safe for concurrent use. The submitter's uploading
// state, not the mutex, is what keeps submissions from overlapping: the
// network call runs with the mutex released.
type Session struct {
	ID        string
	FileName  string
	CreatedAt time.Time

	mu             sync.Mutex
	rows           []Row
	normalizer     *Normalizer
	editor         Editor
	submitter      *Submitter
	duplicatesOnly bool
	refVersion     string
	lastTouched    time.Time
	now            Clock
}

// NewSession wraps already-normalized rows.
func NewSession(id, fileName string, rows []Row, n *Normalizer, refVersion string, now Clock) *Session {
	if now == nil {
		now = time.Now
	}
	t := now()
	return &Session{
		ID:          id,
		FileName:    fileName,
		CreatedAt:   t,
		rows:        rows,
		normalizer:  n,
		submitter:   NewSubmitter(),
		refVersion:  refVersion,
		lastTouched: t,
		now:         now,
	}
}

// SessionView is a point-in-time copy of a session for display.
type SessionView struct {
	ID               string         `json:"id"`
	FileName         string         `json:"fileName"`
	CreatedAt        time.Time      `json:"createdAt"`
	ReferenceVersion string         `json:"referenceVersion"`
	TotalRows        int            `json:"totalRows"`
	EligibleRows     int            `json:"eligibleRows"`
	DuplicateRows    int            `json:"duplicateRows"`
	DuplicatesOnly   bool           `json:"duplicatesOnly"`
	Status           SubmitStatus   `json:"status"`
	Rows             []RowView      `json:"rows,omitempty"`
	ActiveEdit       *ActiveEdit    `json:"activeEdit,omitempty"`
	Outcome          *SubmitOutcome `json:"outcome,omitempty"`
}

// RowView is a row plus its derived flags.
type RowView struct {
	Row
	Duplicate bool   `json:"duplicate"`
	Problem   string `json:"problem,omitempty"`
}

// View snapshots the session. Duplicate flags are recomputed from the
// full row collection on every call.
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouched = s.now()

	dups := FindDuplicates(s.rows)
	displayed := s.displayedLocked(dups)

	v := SessionView{
		ID:               s.ID,
		FileName:         s.FileName,
		CreatedAt:        s.CreatedAt,
		ReferenceVersion: s.refVersion,
		TotalRows:        len(s.rows),
		DuplicateRows:    dups.Len(),
		DuplicatesOnly:   s.duplicatesOnly,
		Status:           s.submitter.Status(),
		Rows:             make([]RowView, 0, len(displayed)),
	}

	for _, r := range s.rows {
		if Eligible(r, dups) {
			v.EligibleRows++
		}
	}
	for _, r := range displayed {
		rv := RowView{Row: r, Duplicate: dups.IsDuplicate(r.Seq)}
		if verr := ValidateRow(r); verr != nil {
			rv.Problem = verr.Reason
		}
		v.Rows = append(v.Rows, rv)
	}
	if edit, ok := s.editor.Active(); ok {
		v.ActiveEdit = &edit
	}
	if out, ok := s.submitter.Outcome(); ok {
		v.Outcome = &out
	}
	return v
}

// Rows returns a copy of every held row.
func (s *Session) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Row(nil), s.rows...)
}

// Displayed returns the rows currently shown: all rows, or only the
// duplicates when the toggle is on.
func (s *Session) Displayed() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayedLocked(FindDuplicates(s.rows))
}

func (s *Session) displayedLocked(dups DuplicateSet) []Row {
	if s.duplicatesOnly {
		return dups.Filter(s.rows)
	}
	return append([]Row(nil), s.rows...)
}

// SetDuplicatesOnly toggles the duplicates-only display filter. Rows are
// never removed by it.
func (s *Session) SetDuplicatesOnly(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duplicatesOnly = on
}

// BeginEdit starts editing the row with sequence number seq, discarding
// any other draft.
func (s *Session) BeginEdit(seq int) (ActiveEdit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rows {
		if r.Seq == seq {
			discarded := s.editor.Begin(r)
			edit, _ := s.editor.Active()
			return edit, discarded, nil
		}
	}
	return ActiveEdit{}, false, fmt.Errorf("%w: %d", ErrRowNotFound, seq)
}

// UpdateEdit changes draft fields of the active edit.
func (s *Session) UpdateEdit(changes map[string]string) (ActiveEdit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editor.Apply(changes); err != nil {
		return ActiveEdit{}, err
	}
	edit, _ := s.editor.Active()
	return edit, nil
}

// SaveEdit commits the active edit and re-resolves the row's campus and
// course. A settled submitter returns to idle.
func (s *Session) SaveEdit() (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.editor.Save(s.rows, s.normalizer)
	if err != nil {
		return Row{}, err
	}
	s.submitter.Reset()
	return row, nil
}

// CancelEdit discards the active edit.
func (s *Session) CancelEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editor.Cancel()
}

// DeleteRow removes a row. A settled submitter returns to idle.
func (s *Session) DeleteRow(seq int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rows {
		if r.Seq == seq {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			s.editor.Forget(seq)
			s.submitter.Reset()
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrRowNotFound, seq)
}

// Reset returns a settled submitter to idle so the rows can be resubmitted.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitter.Reset()
}

// Status returns the submitter state.
func (s *Session) Status() SubmitStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitter.Status()
}

// Submit prepares the displayed rows, sends the eligible ones in one batch
// and settles the submitter with the outcome.
func (s *Session) Submit(ctx context.Context, client BatchClient, redirectDelay time.Duration) (SubmitOutcome, error) {
	s.mu.Lock()
	if len(s.rows) == 0 {
		s.mu.Unlock()
		return SubmitOutcome{}, ErrNoRows
	}
	if err := s.submitter.Begin(s.now()); err != nil {
		s.mu.Unlock()
		return SubmitOutcome{}, err
	}
	dups := FindDuplicates(s.rows)
	batch := PrepareBatch(s.displayedLocked(dups), dups)
	s.mu.Unlock()

	out := SendBatch(ctx, client, batch, redirectDelay)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouched = s.now()
	return s.submitter.Settle(out, s.now()), nil
}

// idleSince reports when the session was last used.
func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTouched
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastTouched = s.now()
	s.mu.Unlock()
}

// Outcome returns the last settled submission outcome, if any.
func (s *Session) Outcome() (SubmitOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitter.Outcome()
}
