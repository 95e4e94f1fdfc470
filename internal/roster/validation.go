package roster

// validation.go decides whether a normalized row may be sent to the
// backend.
//
// Validation never raises: a failing row gets a human-readable reason and
// is routed to the skipped list. Checks run in a fixed order so each row
// reports the first problem only.

import (
	"fmt"
	"strconv"
	"strings"
)

// Skip reasons shown in the failure report.
const (
	ReasonDuplicate     = "Duplicate (REG. NO or Email)"
	ReasonMissingName   = "Missing full name"
	ReasonMissingRegNo  = "Missing REG. NO"
	ReasonUnknownCampus = "Unknown campus"
	ReasonUnknownCourse = "Unknown course"
	ReasonInvalidYear   = "Invalid year of enrollment"
)

// ValidationError describes why a row cannot be uploaded.
type ValidationError struct {
	Seq    int
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d: %s: %s", e.Seq, e.Field, e.Reason)
	}
	return fmt.Sprintf("row %d: %s", e.Seq, e.Reason)
}

// ValidateRow checks the eligibility rule that does not depend on other
// rows: full name and registration number present, campus and course
// resolved, year of enrollment a four-digit year.
func ValidateRow(r Row) *ValidationError {
	switch {
	case strings.TrimSpace(r.FullName) == "":
		return &ValidationError{Seq: r.Seq, Field: "fullname", Reason: ReasonMissingName}
	case strings.TrimSpace(r.RegistrationNumber) == "":
		return &ValidationError{Seq: r.Seq, Field: "registrationNumber", Reason: ReasonMissingRegNo}
	case r.CampusID == "":
		return &ValidationError{Seq: r.Seq, Field: "campus", Reason: ReasonUnknownCampus}
	case r.CourseID == "":
		return &ValidationError{Seq: r.Seq, Field: "course", Reason: ReasonUnknownCourse}
	case !IsValidYear(r.YearOfEnrollment):
		return &ValidationError{Seq: r.Seq, Field: "yearOfEnrollment", Reason: ReasonInvalidYear}
	}
	return nil
}

// Eligible reports whether a row passes ValidateRow and does not collide
// with any other row.
func Eligible(r Row, dups DuplicateSet) bool {
	return !dups.IsDuplicate(r.Seq) && ValidateRow(r) == nil
}

// BuildPayload maps a validated row to its API payload.
func BuildPayload(r Row) StudentPayload {
	first, last := SplitFullName(r.FullName)
	year, _ := strconv.Atoi(strings.TrimSpace(r.YearOfEnrollment))

	p := StudentPayload{
		FirstName:          first,
		LastName:           last,
		Email:              strings.TrimSpace(r.Email),
		PhoneNumber:        strings.TrimSpace(r.PhoneNumber),
		Gender:             strings.TrimSpace(r.Gender),
		RegistrationNumber: strings.TrimSpace(r.RegistrationNumber),
		YearOfEnrollment:   year,
		IntakePeriod:       strings.TrimSpace(r.IntakePeriod),
		CampusID:           r.CampusID,
		CourseID:           r.CourseID,
		SchoolName:         strings.TrimSpace(r.School),
		DepartmentName:     strings.TrimSpace(r.Department),
	}
	if age, err := strconv.Atoi(strings.TrimSpace(r.Age)); err == nil && age > 0 {
		p.Age = &age
	}
	return p
}
