package roster

import "time"

// RawRow maps spreadsheet header text to cell text for a single row.
// It only lives until the row has been normalized.
type RawRow map[string]string

// Row is a normalized student record held by an import session.
// Every field is a trimmed string; CampusID and CourseID are empty when
// the free-text campus or course could not be resolved.
type Row struct {
	Seq                int    `json:"seq"`
	FullName           string `json:"fullname"`
	Email              string `json:"email"`
	RegistrationNumber string `json:"registrationNumber"`
	Gender             string `json:"gender"`
	Course             string `json:"course"`
	YearOfEnrollment   string `json:"yearOfEnrollment"`
	Campus             string `json:"campus"`
	CampusID           string `json:"campusId"`
	School             string `json:"school"`
	Department         string `json:"department"`
	Age                string `json:"age"`
	PhoneNumber        string `json:"phoneNumber"`
	IntakePeriod       string `json:"intakePeriod"`
	CourseID           string `json:"courseId"`
	CourseShortCode    string `json:"courseShortCode"`
}

// Campus is a canonical campus record supplied by the backend.
type Campus struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	Location string `json:"location"`
}

// Course is a canonical course record supplied by the backend.
// Courses belong to exactly one campus.
type Course struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	CampusID string `json:"campusId"`
}

// StudentPayload is one entry of the batch student-creation request.
type StudentPayload struct {
	FirstName          string `json:"firstName"`
	LastName           string `json:"lastName"`
	Email              string `json:"email,omitempty"`
	PhoneNumber        string `json:"phoneNumber,omitempty"`
	Age                *int   `json:"age,omitempty"`
	Gender             string `json:"gender,omitempty"`
	RegistrationNumber string `json:"registrationNumber"`
	YearOfEnrollment   int    `json:"yearOfEnrollment"`
	IntakePeriod       string `json:"intakePeriod,omitempty"`
	CampusID           string `json:"campusId"`
	CourseID           string `json:"courseId"`
	SchoolName         string `json:"schoolName,omitempty"`
	DepartmentName     string `json:"departmentName,omitempty"`
}

// RowDetail is a per-row outcome reported by the batch endpoint.
type RowDetail struct {
	RegistrationNumber string `json:"registrationNumber"`
	Reason             string `json:"reason"`
}

// BatchResponse is the batch endpoint's summary of a submission.
type BatchResponse struct {
	Created        int         `json:"created"`
	Skipped        int         `json:"skipped"`
	Failed         int         `json:"failed"`
	SkippedDetails []RowDetail `json:"skippedDetails"`
	FailedDetails  []RowDetail `json:"failedDetails"`
}

// FailureSource identifies who rejected a row.
type FailureSource string

const (
	SourceLocal   FailureSource = "local"   // rejected before the network call
	SourceSkipped FailureSource = "skipped" // skipped by the backend
	SourceFailed  FailureSource = "failed"  // failed on the backend
	SourceNetwork FailureSource = "network" // the request itself failed
)

// FailedRow is one entry of the failure report shown after a submission.
type FailedRow struct {
	Seq                int           `json:"seq"`
	FullName           string        `json:"fullname"`
	RegistrationNumber string        `json:"registrationNumber"`
	Email              string        `json:"email"`
	Reason             string        `json:"reason"`
	Source             FailureSource `json:"source"`
}

// SubmitStatus is the state of a session's batch submitter.
type SubmitStatus string

const (
	StatusIdle      SubmitStatus = "idle"
	StatusUploading SubmitStatus = "uploading"
	StatusSuccess   SubmitStatus = "success"
	StatusError     SubmitStatus = "error"
)

// Settled reports whether the status is a terminal submission state.
func (s SubmitStatus) Settled() bool {
	return s == StatusSuccess || s == StatusError
}

// SubmitOutcome summarizes a settled submission.
type SubmitOutcome struct {
	Status    SubmitStatus  `json:"status"`
	Attempted int           `json:"attempted"`
	Created   int           `json:"created"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Failures  []FailedRow   `json:"failures"`
	Error     string        `json:"error,omitempty"`
	Redirect  bool          `json:"redirect"`
	Delay     time.Duration `json:"redirectDelay,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// FailureCount returns the number of rows that were not created.
func (o SubmitOutcome) FailureCount() int {
	return len(o.Failures)
}
