package roster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock is a settable clock for TTL tests.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: fixedClock()}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T, backend *fakeBackend, opts Options) *Service {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = fixedClock
	}
	return NewService(backend, opts)
}

func TestService_EndToEndScenario(t *testing.T) {
	backend := newFakeBackend()
	history := &memHistory{}
	svc := newTestService(t, backend, Options{History: history})
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "intake.csv", []byte(scenarioCSV))
	require.NoError(t, err)

	v := sess.View()
	require.Equal(t, 3, v.TotalRows)
	assert.Equal(t, 2, v.DuplicateRows, "rows 1 and 3 share an email")
	assert.Equal(t, "c-kla", v.Rows[0].CampusID, "campus derived from KLA in the registration number")
	assert.Equal(t, "2021", v.Rows[0].YearOfEnrollment)

	out, err := svc.Submit(ctx, sess.ID)
	require.NoError(t, err)

	require.Equal(t, 1, backend.batchCount())
	payloads := backend.batches[0]
	require.Len(t, payloads, 1)
	assert.Equal(t, "21/BSC/KLA/AUG/001", payloads[0].RegistrationNumber)
	assert.Equal(t, "Jane", payloads[0].FirstName)
	assert.Equal(t, "Nakato", payloads[0].LastName)
	assert.Equal(t, "c-kla", payloads[0].CampusID)
	assert.Equal(t, "k-bsc", payloads[0].CourseID)
	assert.Equal(t, 2021, payloads[0].YearOfEnrollment)

	assert.Equal(t, 1, out.Attempted)
	assert.Equal(t, 1, out.Created)
	assert.Equal(t, 2, out.Skipped)
	assert.False(t, out.Redirect)
	require.Len(t, out.Failures, 2)
	assert.Equal(t, ReasonMissingRegNo, out.Failures[0].Reason)
	assert.Equal(t, 2, out.Failures[0].Seq)
	assert.Equal(t, ReasonDuplicate, out.Failures[1].Reason)
	assert.Equal(t, 3, out.Failures[1].Seq)

	require.Len(t, history.records, 1)
	rec := history.records[0]
	assert.Equal(t, sess.ID, rec.SessionID)
	assert.Equal(t, "intake.csv", rec.FileName)
	assert.NotEmpty(t, rec.BatchID)
	assert.Equal(t, out.Created, rec.Outcome.Created)
}

func TestService_HeaderSearchRowsPerService(t *testing.T) {
	data := []byte("Intake roster 2024\n" + scenarioCSV)
	ctx := context.Background()

	narrow := newTestService(t, newFakeBackend(), Options{HeaderSearchRows: 1})
	wide := newTestService(t, newFakeBackend(), Options{})

	assert.Equal(t, 1, narrow.Parser().HeaderSearchRows)
	assert.Equal(t, DefaultHeaderSearchRows, wide.Parser().HeaderSearchRows)

	sess, err := narrow.StartSession(ctx, "intake.csv", data)
	require.NoError(t, err)
	assert.Empty(t, sess.View().Rows[0].FullName, "title row taken as the header")

	sess, err = wide.StartSession(ctx, "intake.csv", data)
	require.NoError(t, err)
	assert.Equal(t, "Jane Nakato", sess.View().Rows[0].FullName)
}

func TestService_StartSessionErrors(t *testing.T) {
	svc := newTestService(t, newFakeBackend(), Options{MaxFileSize: 64})
	ctx := context.Background()

	_, err := svc.StartSession(ctx, "big.csv", make([]byte, 65))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = svc.StartSession(ctx, "roster.docx", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = svc.StartSession(ctx, "roster.csv", []byte("Name\n"))
	assert.ErrorIs(t, err, ErrEmptyFile)

	assert.Equal(t, 0, svc.SessionCount())
	assert.Equal(t, 0, svc.LimiterStatus().Active, "slots are released on failure")
}

func TestService_ReferenceUnavailable(t *testing.T) {
	backend := newFakeBackend()
	backend.refErr = errNetwork
	svc := newTestService(t, backend, Options{})

	_, err := svc.StartSession(context.Background(), "r.csv", []byte(scenarioCSV))
	assert.ErrorIs(t, err, ErrReferenceData)
	assert.Equal(t, "REF001", MapError(err).Code)
}

func TestService_ReferenceCache(t *testing.T) {
	backend := newFakeBackend()
	clock := newManualClock()
	svc := newTestService(t, backend, Options{ReferenceTTL: time.Minute, Clock: clock.Now})
	ctx := context.Background()

	first, err := svc.Reference(ctx)
	require.NoError(t, err)
	_, err = svc.Reference(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.fetchCount(), "fresh data is reused")

	clock.Advance(2 * time.Minute)
	_, err = svc.Reference(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.fetchCount(), "stale data is refetched")

	// A failed refresh keeps serving the cached set.
	backend.mu.Lock()
	backend.refErr = errNetwork
	backend.mu.Unlock()

	got, err := svc.RefreshReference(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Version, got.Version)
}

func TestService_ReferenceVersionStamped(t *testing.T) {
	backend := newFakeBackend()
	rs := testReference()
	rs.Version = ""
	backend.ref = rs
	svc := newTestService(t, backend, Options{})

	got, err := svc.Reference(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testReference().Version, got.Version)
}

func TestService_SessionsShareIndices(t *testing.T) {
	svc := newTestService(t, newFakeBackend(), Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.StartSession(ctx, "r.csv", []byte(scenarioCSV))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, svc.SessionCount())
	assert.Equal(t, 1, svc.indices.Builds(), "unchanged reference data builds indices once")
}

func TestService_SessionLookupAndClose(t *testing.T) {
	svc := newTestService(t, newFakeBackend(), Options{})

	_, err := svc.Session("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, svc.CloseSession("missing"), ErrSessionNotFound)

	_, err = svc.Submit(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	sess, err := svc.StartSession(context.Background(), "r.csv", []byte(scenarioCSV))
	require.NoError(t, err)

	got, err := svc.Session(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)

	require.NoError(t, svc.CloseSession(sess.ID))
	assert.Equal(t, 0, svc.SessionCount())
}

func TestService_ExpireSessions(t *testing.T) {
	clock := newManualClock()
	backend := newFakeBackend()
	svc := newTestService(t, backend, Options{SessionTTL: time.Hour, Clock: clock.Now})
	ctx := context.Background()

	stale, err := svc.StartSession(ctx, "old.csv", []byte(scenarioCSV))
	require.NoError(t, err)

	clock.Advance(40 * time.Minute)
	fresh, err := svc.StartSession(ctx, "new.csv", []byte(scenarioCSV))
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	assert.Equal(t, 1, svc.ExpireSessions())

	_, err = svc.Session(stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Session(fresh.ID)
	assert.NoError(t, err)
}

func TestService_ExpireSkipsUploading(t *testing.T) {
	clock := newManualClock()
	backend := newFakeBackend()
	backend.blocking = make(chan struct{})
	svc := newTestService(t, backend, Options{SessionTTL: time.Minute, Clock: clock.Now})

	sess, err := svc.StartSession(context.Background(), "r.csv", []byte(scenarioCSV))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.Submit(context.Background(), sess.ID)
	}()
	require.Eventually(t, func() bool { return sess.Status() == StatusUploading }, time.Second, 5*time.Millisecond)

	clock.Advance(time.Hour)
	assert.Equal(t, 0, svc.ExpireSessions())

	close(backend.blocking)
	<-done
	assert.Equal(t, 1, svc.SessionCount())
}

func TestService_HistoryFailureDoesNotFailSubmit(t *testing.T) {
	history := &memHistory{err: errors.New("insert failed")}
	svc := newTestService(t, newFakeBackend(), Options{History: history})

	sess, err := svc.StartSession(context.Background(), "r.csv", []byte(scenarioCSV))
	require.NoError(t, err)

	out, err := svc.Submit(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, out.Status)
}

func TestService_WaitForIdle(t *testing.T) {
	svc := newTestService(t, newFakeBackend(), Options{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, svc.WaitForIdle(ctx))
}

func TestService_StartSchedulerStopsOnCancel(t *testing.T) {
	clock := newManualClock()
	backend := newFakeBackend()
	svc := newTestService(t, backend, Options{SessionTTL: time.Minute, Clock: clock.Now})

	_, err := svc.StartSession(context.Background(), "r.csv", []byte(scenarioCSV))
	require.NoError(t, err)
	clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.StartScheduler(ctx, SchedulerConfig{
			SweepInterval:   10 * time.Millisecond,
			RefreshInterval: 10 * time.Millisecond,
		})
		close(done)
	}()

	require.Eventually(t, func() bool { return svc.SessionCount() == 0 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return backend.fetchCount() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestService_StartSchedulerDisabledJobs(t *testing.T) {
	svc := newTestService(t, newFakeBackend(), Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	// Both jobs disabled: the loop just waits for cancellation.
	svc.StartScheduler(ctx, SchedulerConfig{})
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}
