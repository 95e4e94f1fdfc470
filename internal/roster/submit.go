package roster

// submit.go implements the batch submitter.
//
// The submitter is a small state machine:
//
//	idle -> uploading -> settled(success | error)
//
// Begin is accepted only from idle, which is what keeps two submissions
// of the same session from overlapping. A settled submitter goes back to
// idle through Reset (the session calls it whenever its rows change).
//
// Preparing a submission never fails a row with an error: rows that are
// duplicates or fail validation land in the skipped list with a reason
// and are left out of the network call.

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// BatchClient sends one batch of student payloads to the backend.
type BatchClient interface {
	CreateStudents(ctx context.Context, payloads []StudentPayload) (*BatchResponse, error)
}

// Batch is a prepared submission: the payloads to send, the rows they
// came from (same order) and the rows skipped locally.
type Batch struct {
	Payloads []StudentPayload
	Rows     []Row
	Skipped  []FailedRow
}

// PrepareBatch splits the displayed rows into payloads and local skips.
//
// dups must be computed over the session's full row collection. A
// duplicate row is skipped when an earlier displayed row shares its
// registration number or email, so the first occurrence of each collision
// group can still be submitted.
func PrepareBatch(displayed []Row, dups DuplicateSet) Batch {
	var b Batch
	seenReg := make(map[string]bool)
	seenEmail := make(map[string]bool)

	for _, r := range displayed {
		reg, email := regKey(r), emailKey(r)
		repeat := (reg != "" && seenReg[reg]) || (email != "" && seenEmail[email])
		if reg != "" {
			seenReg[reg] = true
		}
		if email != "" {
			seenEmail[email] = true
		}

		if dups.IsDuplicate(r.Seq) && repeat {
			b.Skipped = append(b.Skipped, failedFromRow(r, ReasonDuplicate, SourceLocal))
			continue
		}
		if verr := ValidateRow(r); verr != nil {
			b.Skipped = append(b.Skipped, failedFromRow(r, verr.Reason, SourceLocal))
			continue
		}

		b.Payloads = append(b.Payloads, BuildPayload(r))
		b.Rows = append(b.Rows, r)
	}
	return b
}

func failedFromRow(r Row, reason string, src FailureSource) FailedRow {
	return FailedRow{
		Seq:                r.Seq,
		FullName:           r.FullName,
		RegistrationNumber: r.RegistrationNumber,
		Email:              r.Email,
		Reason:             reason,
		Source:             src,
	}
}

// Submitter tracks the submission state of one session.
type Submitter struct {
	status  SubmitStatus
	outcome *SubmitOutcome
	started time.Time
}

// NewSubmitter returns an idle submitter.
func NewSubmitter() *Submitter {
	return &Submitter{status: StatusIdle}
}

// Status returns the current state.
func (s *Submitter) Status() SubmitStatus {
	return s.status
}

// Outcome returns the last settled outcome, if any.
func (s *Submitter) Outcome() (SubmitOutcome, bool) {
	if s.outcome == nil {
		return SubmitOutcome{}, false
	}
	return *s.outcome, true
}

// Begin moves idle to uploading.
func (s *Submitter) Begin(now time.Time) error {
	switch s.status {
	case StatusIdle:
		s.status = StatusUploading
		s.outcome = nil
		s.started = now
		return nil
	case StatusUploading:
		return ErrSubmissionInFlight
	default:
		return ErrNotIdle
	}
}

// Settle records the outcome and leaves the uploading state.
func (s *Submitter) Settle(out SubmitOutcome, now time.Time) SubmitOutcome {
	out.Duration = now.Sub(s.started)
	s.status = out.Status
	s.outcome = &out
	return out
}

// Reset returns a settled submitter to idle. It has no effect while a
// submission is in flight.
func (s *Submitter) Reset() {
	if s.status == StatusUploading {
		return
	}
	s.status = StatusIdle
}

// SendBatch issues the network call for a prepared batch and folds the
// response into an outcome. It holds no locks; the caller is expected to
// have moved its Submitter to uploading first.
func SendBatch(ctx context.Context, client BatchClient, b Batch, redirectDelay time.Duration) SubmitOutcome {
	out := SubmitOutcome{
		Attempted: len(b.Payloads),
		Failures:  append([]FailedRow(nil), b.Skipped...),
	}

	if len(b.Payloads) == 0 {
		out.Status = StatusSuccess
		out.Skipped = len(b.Skipped)
		return out
	}

	resp, err := client.CreateStudents(ctx, b.Payloads)
	if err != nil {
		out.Status = StatusError
		out.Error = fmt.Sprintf("batch submission failed: %v", err)
		for _, r := range b.Rows {
			out.Failures = append(out.Failures, failedFromRow(r, "Network error: "+err.Error(), SourceNetwork))
		}
		out.Failed = len(b.Rows)
		out.Skipped = len(b.Skipped)
		return out
	}

	out.Status = StatusSuccess
	out.Created = resp.Created
	out.Failures = append(out.Failures, mergeServerDetails(b.Rows, resp)...)
	out.Skipped = len(b.Skipped) + max(resp.Skipped, len(resp.SkippedDetails))
	out.Failed = max(resp.Failed, len(resp.FailedDetails))

	if out.Skipped == 0 && out.Failed == 0 {
		out.Redirect = true
		out.Delay = redirectDelay
	}
	return out
}

// mergeServerDetails matches the backend's skipped/failed details back to
// the submitted rows by registration number. Details naming a number that
// was not submitted are still reported, without row data.
func mergeServerDetails(rows []Row, resp *BatchResponse) []FailedRow {
	byReg := make(map[string]Row, len(rows))
	for _, r := range rows {
		byReg[strings.TrimSpace(r.RegistrationNumber)] = r
	}

	var out []FailedRow
	add := func(details []RowDetail, src FailureSource) {
		for _, d := range details {
			reason := d.Reason
			if reason == "" {
				reason = string(src)
			}
			if r, ok := byReg[strings.TrimSpace(d.RegistrationNumber)]; ok {
				out = append(out, failedFromRow(r, reason, src))
				continue
			}
			out = append(out, FailedRow{
				RegistrationNumber: d.RegistrationNumber,
				Reason:             reason,
				Source:             src,
			})
		}
	}
	add(resp.SkippedDetails, SourceSkipped)
	add(resp.FailedDetails, SourceFailed)
	return out
}
