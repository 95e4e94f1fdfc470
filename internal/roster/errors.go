package roster

import "errors"

// Sentinel errors. Messages carry the phrases matched by MapError.
var (
	ErrUnsupportedFormat  = errors.New("unsupported file format")
	ErrMalformedFile      = errors.New("malformed spreadsheet")
	ErrEmptyFile          = errors.New("empty file")
	ErrFileTooLarge       = errors.New("file too large")
	ErrSessionNotFound    = errors.New("import session not found")
	ErrRowNotFound        = errors.New("row not found")
	ErrNoActiveEdit       = errors.New("no edit in progress")
	ErrUnknownField       = errors.New("unknown or read-only field")
	ErrSubmissionInFlight = errors.New("submission already in progress")
	ErrNotIdle            = errors.New("submission already settled")
	ErrNoRows             = errors.New("no rows to submit")
	ErrReferenceData      = errors.New("reference data unavailable")
	ErrNoOutcome          = errors.New("no submission outcome yet")
)
