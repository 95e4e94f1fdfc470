package roster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/RosterImport/internal/logging"
	"github.com/google/uuid"
)

// ReferenceSource fetches campuses and courses from the backend.
type ReferenceSource interface {
	FetchReference(ctx context.Context) (ReferenceSet, error)
}

// Backend is everything the service needs from the REST backend.
type Backend interface {
	ReferenceSource
	BatchClient
}

// SubmissionRecord is what gets written to the import history after a
// submission settles.
type SubmissionRecord struct {
	BatchID   string
	SessionID string
	FileName  string
	Outcome   SubmitOutcome
	SettledAt time.Time
}

// HistoryRecorder persists settled submissions. Failures to record are
// logged and never affect the submission result.
type HistoryRecorder interface {
	RecordSubmission(ctx context.Context, rec SubmissionRecord) error
}

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	MaxFileSize      int64
	MaxConcurrent    int
	MaxWaitTime      time.Duration
	HeaderSearchRows int
	SessionTTL       time.Duration
	ReferenceTTL     time.Duration
	RedirectDelay    time.Duration
	CityCodes        *CityCodes
	History          HistoryRecorder
	Clock            Clock
}

func (o *Options) applyDefaults() {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = 20 * 1024 * 1024
	}
	if o.HeaderSearchRows <= 0 {
		o.HeaderSearchRows = DefaultHeaderSearchRows
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = 2 * time.Hour
	}
	if o.ReferenceTTL <= 0 {
		o.ReferenceTTL = 5 * time.Minute
	}
	if o.RedirectDelay <= 0 {
		o.RedirectDelay = 1500 * time.Millisecond
	}
	if o.CityCodes == nil {
		o.CityCodes = DefaultCityCodes()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

// Service owns the import sessions and the shared reference data.
type Service struct {
	backend Backend
	opts    Options
	limiter *UploadLimiter
	indices IndexCache

	refMu      sync.Mutex
	ref        *ReferenceSet
	refFetched time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService creates a service backed by the given REST backend.
func NewService(backend Backend, opts Options) *Service {
	opts.applyDefaults()
	return &Service{
		backend:  backend,
		opts:     opts,
		limiter:  NewUploadLimiter(opts.MaxConcurrent, opts.MaxWaitTime),
		sessions: make(map[string]*Session),
	}
}

// Reference returns the cached reference data, fetching it when missing
// or older than the reference TTL.
func (s *Service) Reference(ctx context.Context) (ReferenceSet, error) {
	s.refMu.Lock()
	defer s.refMu.Unlock()

	if s.ref != nil && s.opts.Clock().Sub(s.refFetched) < s.opts.ReferenceTTL {
		return *s.ref, nil
	}
	return s.fetchReferenceLocked(ctx)
}

// RefreshReference refetches reference data regardless of age.
func (s *Service) RefreshReference(ctx context.Context) (ReferenceSet, error) {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	return s.fetchReferenceLocked(ctx)
}

func (s *Service) fetchReferenceLocked(ctx context.Context) (ReferenceSet, error) {
	rs, err := s.backend.FetchReference(ctx)
	if err != nil {
		if s.ref != nil {
			logging.FromContext(ctx).Warn("reference refresh failed, using cached data",
				"error", err,
				"version", s.ref.Version,
			)
			return *s.ref, nil
		}
		return ReferenceSet{}, fmt.Errorf("%w: %v", ErrReferenceData, err)
	}
	if rs.Version == "" {
		rs = NewReferenceSet(rs.Campuses, rs.Courses)
	}

	s.ref = &rs
	s.refFetched = s.opts.Clock()
	logging.FromContext(ctx).Info("reference data loaded",
		"campuses", len(rs.Campuses),
		"courses", len(rs.Courses),
		"version", rs.Version,
	)
	return rs, nil
}

// Parser returns the spreadsheet parser configured for this service.
func (s *Service) Parser() Parser {
	return Parser{HeaderSearchRows: s.opts.HeaderSearchRows}
}

// NewNormalizerFor returns a normalizer over the memoized indices for rs.
func (s *Service) NewNormalizerFor(rs ReferenceSet) *Normalizer {
	return NewNormalizer(NewResolver(s.indices.Get(rs), s.opts.CityCodes), s.opts.Clock)
}

// StartSession parses an uploaded spreadsheet, normalizes every row and
// opens a new session for it.
func (s *Service) StartSession(ctx context.Context, fileName string, data []byte) (*Session, error) {
	if int64(len(data)) > s.opts.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(data), s.opts.MaxFileSize)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	start := s.opts.Clock()
	sheet, err := s.Parser().Parse(fileName, data)
	if err != nil {
		return nil, err
	}

	rs, err := s.Reference(ctx)
	if err != nil {
		return nil, err
	}

	n := s.NewNormalizerFor(rs)
	rows := n.NormalizeAll(sheet.Rows)

	sess := NewSession(uuid.New().String(), fileName, rows, n, rs.Version, s.opts.Clock)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	ctx = logging.WithSession(ctx, sess.ID)
	logging.WithFields(ctx, "file", fileName).Info("import session started",
		"rows", len(rows),
		"headers", len(sheet.Headers),
		"duration_ms", s.opts.Clock().Sub(start).Milliseconds(),
	)
	return sess, nil
}

// Session returns an open session.
func (s *Service) Session(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.touch()
	return sess, nil
}

// CloseSession ends a session and drops its rows.
func (s *Service) CloseSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	return nil
}

// SessionCount returns the number of open sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Submit runs a session's batch submission and records it in the history.
func (s *Service) Submit(ctx context.Context, id string) (SubmitOutcome, error) {
	sess, err := s.Session(id)
	if err != nil {
		return SubmitOutcome{}, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return SubmitOutcome{}, err
	}
	defer s.limiter.Release()

	ctx = logging.WithSession(ctx, id)
	logger := logging.FromContext(ctx)
	out, err := sess.Submit(ctx, s.backend, s.opts.RedirectDelay)
	if err != nil {
		return SubmitOutcome{}, err
	}

	logger.Info("batch submission settled",
		"status", out.Status,
		"attempted", out.Attempted,
		"created", out.Created,
		"skipped", out.Skipped,
		"failed", out.Failed,
		"duration_ms", out.Duration.Milliseconds(),
	)

	if s.opts.History != nil {
		rec := SubmissionRecord{
			BatchID:   uuid.New().String(),
			SessionID: id,
			FileName:  sess.FileName,
			Outcome:   out,
			SettledAt: s.opts.Clock(),
		}
		if err := s.opts.History.RecordSubmission(ctx, rec); err != nil {
			logger.Error("failed to record submission history", "error", err)
		}
	}
	return out, nil
}

// ExpireSessions closes sessions idle for longer than the session TTL and
// returns how many were closed.
func (s *Service) ExpireSessions() int {
	cutoff := s.opts.Clock().Add(-s.opts.SessionTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for id, sess := range s.sessions {
		if sess.Status() == StatusUploading {
			continue
		}
		if sess.idleSince().Before(cutoff) {
			delete(s.sessions, id)
			expired++
		}
	}
	return expired
}

// LimiterStatus reports parse/submit slot usage.
func (s *Service) LimiterStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// WaitForIdle blocks until no parse or submission is running.
func (s *Service) WaitForIdle(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
