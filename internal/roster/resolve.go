package roster

// resolve.go builds the campus and course lookup indices and resolves
// free-text campus/course tokens against them.
//
// Indices are pure functions of a ReferenceSet. IndexCache memoizes them
// by the set's content version, so a refetch that returns the same data
// reuses the existing indices and a changed fetch rebuilds them.

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"
)

// ReferenceSet is one snapshot of backend reference data.
type ReferenceSet struct {
	Campuses []Campus `json:"campuses"`
	Courses  []Course `json:"courses"`
	Version  string   `json:"version"`
}

// NewReferenceSet copies the collections and stamps the snapshot with a
// version derived from its content (including order, which matters for
// index collision policy).
func NewReferenceSet(campuses []Campus, courses []Course) ReferenceSet {
	rs := ReferenceSet{
		Campuses: append([]Campus(nil), campuses...),
		Courses:  append([]Course(nil), courses...),
	}
	rs.Version = referenceVersion(rs.Campuses, rs.Courses)
	return rs
}

func referenceVersion(campuses []Campus, courses []Course) string {
	h := sha256.New()
	for _, c := range campuses {
		writeFields(h, "campus", c.ID, c.Name, c.Code, c.Location)
	}
	for _, c := range courses {
		writeFields(h, "course", c.ID, c.Name, c.Code, c.CampusID)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func writeFields(w io.Writer, fields ...string) {
	for _, f := range fields {
		io.WriteString(w, f)
		w.Write([]byte{0})
	}
}

// Indices are the O(1) lookup structures for one ReferenceSet.
type Indices struct {
	Version string
	campus  map[string]Campus
	course  map[string]Course
}

// courseKey is the course index key: normalized code, "__", campus ID.
func courseKey(token, campusID string) string {
	return NormalizeKey(token) + "__" + campusID
}

// BuildIndices builds the campus and course indices.
//
// Each campus is keyed separately by its normalized name, code and
// location; a later campus overwrites an earlier one on the same key.
// Courses are keyed by normalized code plus campus ID; the first course
// for a key is kept.
func BuildIndices(rs ReferenceSet) *Indices {
	idx := &Indices{
		Version: rs.Version,
		campus:  make(map[string]Campus, len(rs.Campuses)*3),
		course:  make(map[string]Course, len(rs.Courses)),
	}

	for _, c := range rs.Campuses {
		for _, field := range []string{c.Name, c.Code, c.Location} {
			if key := NormalizeKey(field); key != "" {
				idx.campus[key] = c
			}
		}
	}

	for _, c := range rs.Courses {
		if NormalizeKey(c.Code) == "" || c.CampusID == "" {
			continue
		}
		key := courseKey(c.Code, c.CampusID)
		if _, exists := idx.course[key]; !exists {
			idx.course[key] = c
		}
	}

	return idx
}

// LookupCampus finds a campus by any of its normalized keys.
func (idx *Indices) LookupCampus(text string) (Campus, bool) {
	if idx == nil {
		return Campus{}, false
	}
	key := NormalizeKey(text)
	if key == "" {
		return Campus{}, false
	}
	c, ok := idx.campus[key]
	return c, ok
}

// LookupCourse finds a course by code within a campus.
func (idx *Indices) LookupCourse(token, campusID string) (Course, bool) {
	if idx == nil || campusID == "" || NormalizeKey(token) == "" {
		return Course{}, false
	}
	c, ok := idx.course[courseKey(token, campusID)]
	return c, ok
}

// CampusKeys returns the number of distinct campus keys.
func (idx *Indices) CampusKeys() int { return len(idx.campus) }

// CourseKeys returns the number of distinct course keys.
func (idx *Indices) CourseKeys() int { return len(idx.course) }

// IndexCache memoizes Indices by reference-data version. Only the most
// recent version is kept.
type IndexCache struct {
	mu      sync.Mutex
	current *Indices
	builds  int
}

// Get returns indices for rs, building them only when the version changed.
func (c *IndexCache) Get(rs ReferenceSet) *Indices {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && rs.Version != "" && c.current.Version == rs.Version {
		return c.current
	}
	c.current = BuildIndices(rs)
	c.builds++
	return c.current
}

// Builds returns how many times indices were rebuilt.
func (c *IndexCache) Builds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.builds
}

// CampusMatch is the outcome of resolving a campus token.
type CampusMatch struct {
	ID      string
	Display string
}

// Resolver resolves campus and course tokens against one set of indices.
type Resolver struct {
	idx   *Indices
	codes *CityCodes
}

// NewResolver creates a resolver. A nil codes table disables city-code
// expansion.
func NewResolver(idx *Indices, codes *CityCodes) *Resolver {
	return &Resolver{idx: idx, codes: codes}
}

// Indices returns the indices the resolver reads from.
func (r *Resolver) Indices() *Indices { return r.idx }

// ResolveCampus looks the token up directly, then again after expanding
// a city code. On a miss the display text is the expanded token (or the
// raw token when it is not a code) and the ID is empty.
func (r *Resolver) ResolveCampus(text string) CampusMatch {
	text = CleanCell(text)
	if text == "" {
		return CampusMatch{}
	}

	if c, ok := r.idx.LookupCampus(text); ok {
		return CampusMatch{ID: c.ID, Display: c.Name}
	}

	expanded := r.codes.Expand(text)
	if expanded != text {
		if c, ok := r.idx.LookupCampus(expanded); ok {
			return CampusMatch{ID: c.ID, Display: c.Name}
		}
	}

	return CampusMatch{Display: expanded}
}

// ResolveCourse finds the course for a token within a resolved campus.
// It always misses when campusID is empty.
func (r *Resolver) ResolveCourse(token, campusID string) (Course, bool) {
	return r.idx.LookupCourse(CleanCell(token), campusID)
}
