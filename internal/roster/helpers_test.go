package roster

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fixedClock pins year expansion: 2026 gives a pivot of 27.
func fixedClock() time.Time {
	return time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
}

func testReference() ReferenceSet {
	return NewReferenceSet(
		[]Campus{
			{ID: "c-kla", Name: "Kampala", Code: "MAIN", Location: "Kampala Road"},
			{ID: "c-mbr", Name: "Mbarara", Code: "MBR", Location: "Mbarara Town"},
		},
		[]Course{
			{ID: "k-bsc", Name: "Bachelor of Science", Code: "BSC", CampusID: "c-kla"},
			{ID: "k-cs", Name: "Computer Science", Code: "CS", CampusID: "c-kla"},
			{ID: "m-bsc", Name: "Bachelor of Science", Code: "BSC", CampusID: "c-mbr"},
		},
	)
}

func testNormalizer() *Normalizer {
	var cache IndexCache
	return NewNormalizer(NewResolver(cache.Get(testReference()), DefaultCityCodes()), fixedClock)
}

// validRow is an already-resolved row that passes validation.
func validRow(seq int, regNo, email string) Row {
	return Row{
		Seq:                seq,
		FullName:           "Jane Nakato",
		Email:              email,
		RegistrationNumber: regNo,
		Course:             "BSC",
		CourseID:           "k-bsc",
		CourseShortCode:    "BSC",
		Campus:             "Kampala",
		CampusID:           "c-kla",
		YearOfEnrollment:   "2021",
	}
}

// fakeBackend serves a fixed reference set and records batch calls.
type fakeBackend struct {
	mu       sync.Mutex
	ref      ReferenceSet
	refErr   error
	fetches  int
	batches  [][]StudentPayload
	respond  func([]StudentPayload) (*BatchResponse, error)
	blocking chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{ref: testReference()}
}

func (f *fakeBackend) FetchReference(ctx context.Context) (ReferenceSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.refErr != nil {
		return ReferenceSet{}, f.refErr
	}
	return f.ref, nil
}

func (f *fakeBackend) CreateStudents(ctx context.Context, payloads []StudentPayload) (*BatchResponse, error) {
	if f.blocking != nil {
		select {
		case <-f.blocking:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	f.batches = append(f.batches, payloads)
	respond := f.respond
	f.mu.Unlock()

	if respond != nil {
		return respond(payloads)
	}
	return &BatchResponse{Created: len(payloads)}, nil
}

func (f *fakeBackend) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func (f *fakeBackend) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

var errNetwork = errors.New("dial tcp 10.0.0.1:443: connection refused")

// memHistory records submissions in memory.
type memHistory struct {
	mu      sync.Mutex
	records []SubmissionRecord
	err     error
}

func (h *memHistory) RecordSubmission(ctx context.Context, rec SubmissionRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.records = append(h.records, rec)
	return nil
}

const scenarioCSV = "Full Name,REG. NO,Email,Course,Campus,Year of Enrollment\n" +
	"Jane Nakato,21/BSC/KLA/AUG/001,jane@uni.ac.ug,,,\n" +
	"John Okello,,john@uni.ac.ug,BSC,Kampala,2021\n" +
	"Jane N. Copy,21/BSC/KLA/AUG/002,JANE@uni.ac.ug,BSC,Kampala,2021\n"
