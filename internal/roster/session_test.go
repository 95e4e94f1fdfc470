package roster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(rows ...Row) *Session {
	return NewSession("s1", "roster.csv", rows, testNormalizer(), testReference().Version, fixedClock)
}

func TestSession_ViewFlagsAndCounts(t *testing.T) {
	bad := validRow(3, "R3", "c@x.com")
	bad.CourseID = ""
	sess := newTestSession(
		validRow(1, "R1", "a@x.com"),
		validRow(2, "R1", "b@x.com"),
		bad,
	)

	v := sess.View()
	assert.Equal(t, 3, v.TotalRows)
	assert.Equal(t, 2, v.DuplicateRows)
	assert.Equal(t, 0, v.EligibleRows)
	assert.Equal(t, StatusIdle, v.Status)
	require.Len(t, v.Rows, 3)
	assert.True(t, v.Rows[0].Duplicate)
	assert.Equal(t, ReasonUnknownCourse, v.Rows[2].Problem)
	assert.Nil(t, v.Outcome)
}

func TestSession_DuplicatesOnlyNeverRemovesRows(t *testing.T) {
	sess := newTestSession(
		validRow(1, "R1", "a@x.com"),
		validRow(2, "R2", "b@x.com"),
		validRow(3, "R1", "c@x.com"),
	)

	sess.SetDuplicatesOnly(true)
	assert.Equal(t, []int{1, 3}, seqs(sess.Displayed()))
	assert.Len(t, sess.Rows(), 3)

	v := sess.View()
	assert.True(t, v.DuplicatesOnly)
	assert.Equal(t, 3, v.TotalRows)
	assert.Len(t, v.Rows, 2)

	sess.SetDuplicatesOnly(false)
	assert.Len(t, sess.Displayed(), 3)
}

func TestSession_EditKLAToMbarara(t *testing.T) {
	n := testNormalizer()
	row := n.Normalize(RawRow{"Name": "Jane Nakato", "REG. NO": "21/CS/KLA/AUG/001", "Campus": "KLA"}, 1)
	require.Equal(t, "c-kla", row.CampusID)
	require.Equal(t, "k-cs", row.CourseID)

	sess := NewSession("s1", "roster.csv", []Row{row}, n, "", fixedClock)

	_, discarded, err := sess.BeginEdit(1)
	require.NoError(t, err)
	assert.False(t, discarded)

	_, err = sess.UpdateEdit(map[string]string{"campus": "Mbarara"})
	require.NoError(t, err)

	saved, err := sess.SaveEdit()
	require.NoError(t, err)
	assert.Equal(t, "c-mbr", saved.CampusID)
	assert.Equal(t, "Mbarara", saved.Campus)
	assert.Empty(t, saved.CourseID, "CS has no Mbarara course")

	// The edit is over and the row collection holds the saved row.
	assert.Nil(t, sess.View().ActiveEdit)
	assert.Equal(t, "c-mbr", sess.Rows()[0].CampusID)

	// With a course that exists at Mbarara the course resolves again.
	_, _, err = sess.BeginEdit(1)
	require.NoError(t, err)
	_, err = sess.UpdateEdit(map[string]string{"course": "BSC"})
	require.NoError(t, err)
	saved, err = sess.SaveEdit()
	require.NoError(t, err)
	assert.Equal(t, "m-bsc", saved.CourseID)
}

func TestSession_SingleActiveEdit(t *testing.T) {
	sess := newTestSession(validRow(1, "R1", ""), validRow(2, "R2", ""))

	_, _, err := sess.BeginEdit(1)
	require.NoError(t, err)
	_, err = sess.UpdateEdit(map[string]string{"fullname": "Draft Name"})
	require.NoError(t, err)

	edit, discarded, err := sess.BeginEdit(2)
	require.NoError(t, err)
	assert.True(t, discarded, "switching rows discards the draft")
	assert.Equal(t, 2, edit.Seq)
	assert.Equal(t, "Jane Nakato", sess.Rows()[0].FullName, "unsaved draft never reaches the row")

	// Re-beginning the same row is not a discard of another row.
	_, discarded, err = sess.BeginEdit(2)
	require.NoError(t, err)
	assert.False(t, discarded)
}

func TestSession_EditErrors(t *testing.T) {
	sess := newTestSession(validRow(1, "R1", ""))

	_, err := sess.UpdateEdit(map[string]string{"fullname": "x"})
	assert.ErrorIs(t, err, ErrNoActiveEdit)

	_, err = sess.SaveEdit()
	assert.ErrorIs(t, err, ErrNoActiveEdit)

	_, _, err = sess.BeginEdit(99)
	assert.ErrorIs(t, err, ErrRowNotFound)

	_, _, err = sess.BeginEdit(1)
	require.NoError(t, err)
	_, err = sess.UpdateEdit(map[string]string{"fullname": "ok", "campusId": "c-mbr"})
	assert.ErrorIs(t, err, ErrUnknownField)

	// A rejected update changes nothing.
	edit := sess.View().ActiveEdit
	require.NotNil(t, edit)
	assert.Equal(t, "Jane Nakato", edit.Draft.FullName)

	sess.CancelEdit()
	assert.Nil(t, sess.View().ActiveEdit)
}

func TestSession_DeleteRow(t *testing.T) {
	sess := newTestSession(validRow(1, "R1", ""), validRow(2, "R1", ""))
	require.Equal(t, 2, sess.View().DuplicateRows)

	_, _, err := sess.BeginEdit(2)
	require.NoError(t, err)

	require.NoError(t, sess.DeleteRow(2))
	v := sess.View()
	assert.Equal(t, 1, v.TotalRows)
	assert.Equal(t, 0, v.DuplicateRows, "flags are recomputed after a delete")
	assert.Nil(t, v.ActiveEdit, "deleting the edited row ends the edit")

	assert.ErrorIs(t, sess.DeleteRow(2), ErrRowNotFound)
}

func TestSession_Submit(t *testing.T) {
	backend := newFakeBackend()
	sess := newTestSession(validRow(1, "R1", ""), validRow(2, "", ""))

	out, err := sess.Submit(context.Background(), backend, time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, 1, out.Created)
	assert.Equal(t, 1, out.Skipped)
	assert.False(t, out.Redirect)
	assert.Equal(t, StatusSuccess, sess.Status())

	// Settled sessions reject a second submission until something changes.
	_, err = sess.Submit(context.Background(), backend, time.Second)
	assert.ErrorIs(t, err, ErrNotIdle)
	assert.Equal(t, 1, backend.batchCount())

	require.NoError(t, sess.DeleteRow(2))
	assert.Equal(t, StatusIdle, sess.Status())

	out, err = sess.Submit(context.Background(), backend, time.Second)
	require.NoError(t, err)
	assert.True(t, out.Redirect)

	stored, ok := sess.Outcome()
	require.True(t, ok)
	assert.Equal(t, out.Created, stored.Created)
}

func TestSession_SubmitInFlight(t *testing.T) {
	backend := newFakeBackend()
	backend.blocking = make(chan struct{})
	sess := newTestSession(validRow(1, "R1", ""))

	done := make(chan error, 1)
	go func() {
		_, err := sess.Submit(context.Background(), backend, time.Second)
		done <- err
	}()

	require.Eventually(t, func() bool { return sess.Status() == StatusUploading }, time.Second, 5*time.Millisecond)

	_, err := sess.Submit(context.Background(), backend, time.Second)
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	// The session stays usable while the network call runs.
	assert.Equal(t, 1, sess.View().TotalRows)

	close(backend.blocking)
	require.NoError(t, <-done)
	assert.Equal(t, StatusSuccess, sess.Status())
}

func TestSession_SubmitNoRows(t *testing.T) {
	sess := newTestSession()
	_, err := sess.Submit(context.Background(), newFakeBackend(), time.Second)
	assert.True(t, errors.Is(err, ErrNoRows))
	assert.Equal(t, StatusIdle, sess.Status())
}

func TestSession_ResetAfterNetworkError(t *testing.T) {
	backend := newFakeBackend()
	backend.respond = func([]StudentPayload) (*BatchResponse, error) { return nil, errNetwork }
	sess := newTestSession(validRow(1, "R1", ""))

	out, err := sess.Submit(context.Background(), backend, time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusError, out.Status)
	assert.Equal(t, StatusError, sess.Status())

	sess.Reset()
	assert.Equal(t, StatusIdle, sess.Status())

	backend.respond = nil
	out, err = sess.Submit(context.Background(), backend, time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, out.Status)
}
