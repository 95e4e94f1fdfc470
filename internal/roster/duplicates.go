package roster

import "strings"

// DuplicateSet records which rows collide with another row on
// registration number (verbatim) or email (case-insensitive).
type DuplicateSet struct {
	regCounts   map[string]int
	emailCounts map[string]int
	seqs        map[int]bool
}

// FindDuplicates counts registration numbers and lower-cased emails over
// the full row collection. Blank values are never counted.
func FindDuplicates(rows []Row) DuplicateSet {
	ds := DuplicateSet{
		regCounts:   make(map[string]int, len(rows)),
		emailCounts: make(map[string]int, len(rows)),
		seqs:        make(map[int]bool),
	}

	for _, r := range rows {
		if k := regKey(r); k != "" {
			ds.regCounts[k]++
		}
		if k := emailKey(r); k != "" {
			ds.emailCounts[k]++
		}
	}

	for _, r := range rows {
		if ds.collides(r) {
			ds.seqs[r.Seq] = true
		}
	}
	return ds
}

func regKey(r Row) string {
	return r.RegistrationNumber
}

func emailKey(r Row) string {
	return strings.ToLower(strings.TrimSpace(r.Email))
}

func (ds DuplicateSet) collides(r Row) bool {
	if k := regKey(r); k != "" && ds.regCounts[k] > 1 {
		return true
	}
	if k := emailKey(r); k != "" && ds.emailCounts[k] > 1 {
		return true
	}
	return false
}

// IsDuplicate reports whether the row with the given sequence number
// collides with another row.
func (ds DuplicateSet) IsDuplicate(seq int) bool {
	return ds.seqs[seq]
}

// Len returns the number of duplicate rows.
func (ds DuplicateSet) Len() int {
	return len(ds.seqs)
}

// Filter returns only the duplicate rows, preserving order.
func (ds DuplicateSet) Filter(rows []Row) []Row {
	out := make([]Row, 0, len(ds.seqs))
	for _, r := range rows {
		if ds.seqs[r.Seq] {
			out = append(out, r)
		}
	}
	return out
}
