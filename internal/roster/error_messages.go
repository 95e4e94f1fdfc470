package roster

// # Error Codes Reference
//
// Technical errors are mapped to user-facing messages with a code that
// users can quote to support staff.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	          Patterns: "file too large"
//	FILE002 - Unsupported format: only .csv, .xls and .xlsx are accepted
//	          Patterns: "unsupported file format"
//	FILE003 - Malformed spreadsheet: the file could not be decoded
//	          Patterns: "malformed spreadsheet"
//	FILE004 - No file selected
//	          Patterns: "no file provided"
//	FILE005 - Empty file: no header or no data rows
//	          Patterns: "empty file"
//
// # Row Errors (ROW001-ROW099)
//
//	ROW001 - Row not found
//	         Patterns: "row not found"
//	ROW002 - No edit in progress
//	         Patterns: "no edit in progress"
//	ROW003 - Field cannot be edited
//	         Patterns: "unknown or read-only field"
//
// # Submission Errors (SUB001-SUB099)
//
//	SUB001 - Submission already running
//	         Patterns: "submission already in progress"
//	SUB002 - Submission already finished; edit rows or reset to resubmit
//	         Patterns: "submission already settled"
//	SUB003 - Nothing to submit
//	         Patterns: "no rows to submit"
//	SUB004 - Backend rejected or did not answer the batch
//	         Patterns: "backend returned", "connection refused"
//	SUB005 - No submission has settled yet
//	         Patterns: "no submission outcome"
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Import session not found or expired
//	         Patterns: "import session not found"
//	SES002 - Request cancelled
//	         Patterns: "context canceled"
//	SES003 - Request timed out
//	         Patterns: "context deadline exceeded", "timeout"
//
// # Reference Data Errors (REF001-REF099)
//
//	REF001 - Campus and course lists unavailable
//	         Patterns: "reference data unavailable"
//
// # History Errors (HIS001-HIS099)
//
//	HIS001 - Submission history is not configured
//	         Patterns: "submission history is not configured"
//	HIS002 - Batch ID is not valid
//	         Patterns: "invalid batch id"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Too many requests
//	          Patterns: "rate limit"
//	RATE002 - Too many uploads being processed
//	          Patterns: "too many uploads"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error; check the logs for the technical error
//
// Patterns are matched case-insensitively with strings.Contains. The first
// match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage is a user-facing description of an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the roster into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "Unsupported file type",
			Action:  "Upload a .csv, .xls or .xlsx file",
			Code:    "FILE002",
		},
	},
	{
		pattern: "malformed spreadsheet",
		msg: UserMessage{
			Message: "The file could not be read as a spreadsheet",
			Action:  "Open the file in Excel, save it again and retry",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a roster file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file has no student rows",
			Action:  "Check that the first sheet has a header row and data",
			Code:    "FILE005",
		},
	},

	// Rows and edits
	{
		pattern: "row not found",
		msg: UserMessage{
			Message: "Row not found",
			Action:  "Reload the preview; the row may have been deleted",
			Code:    "ROW001",
		},
	},
	{
		pattern: "no edit in progress",
		msg: UserMessage{
			Message: "No row is being edited",
			Action:  "Click edit on a row first",
			Code:    "ROW002",
		},
	},
	{
		pattern: "unknown or read-only field",
		msg: UserMessage{
			Message: "That field cannot be edited",
			Action:  "Edit the campus or course text instead of derived IDs",
			Code:    "ROW003",
		},
	},

	// Submission
	{
		pattern: "submission already in progress",
		msg: UserMessage{
			Message: "A submission is already running for this import",
			Action:  "Wait for it to finish",
			Code:    "SUB001",
		},
	},
	{
		pattern: "submission already settled",
		msg: UserMessage{
			Message: "This import was already submitted",
			Action:  "Edit or delete rows, or reset, before submitting again",
			Code:    "SUB002",
		},
	},
	{
		pattern: "no rows to submit",
		msg: UserMessage{
			Message: "There are no rows to submit",
			Action:  "Upload a roster with student rows",
			Code:    "SUB003",
		},
	},
	{
		pattern: "no submission outcome",
		msg: UserMessage{
			Message: "This import has not been submitted yet",
			Action:  "Submit the import before downloading its failure report",
			Code:    "SUB005",
		},
	},
	// Reference data comes before backend errors so a failed campus
	// fetch is reported as such.
	{
		pattern: "reference data unavailable",
		msg: UserMessage{
			Message: "Campus and course lists could not be loaded",
			Action:  "Please try again in a few moments",
			Code:    "REF001",
		},
	},
	{
		pattern: "backend returned",
		msg: UserMessage{
			Message: "The student service rejected the request",
			Action:  "Please try again or contact support",
			Code:    "SUB004",
		},
	},

	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "The student service is unreachable",
			Action:  "Please try again in a few moments",
			Code:    "SUB004",
		},
	},

	// Session
	{
		pattern: "import session not found",
		msg: UserMessage{
			Message: "Import session not found",
			Action:  "The import may have expired. Please upload the file again",
			Code:    "SES001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "SES002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "SES003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "SES003",
		},
	},

	// History
	{
		pattern: "submission history is not configured",
		msg: UserMessage{
			Message: "Submission history is not enabled on this server",
			Action:  "Ask an administrator to configure the history database",
			Code:    "HIS001",
		},
	},
	{
		pattern: "invalid batch id",
		msg: UserMessage{
			Message: "That batch ID is not valid",
			Action:  "Use the batch ID shown in the submission history",
			Code:    "HIS002",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
	{
		pattern: "too many uploads",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "RATE002",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-facing message. Unmatched
// errors get ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
