package roster

import "strings"

// RegNumber holds the values encoded in a slash-delimited registration
// number. Fields are empty when the number does not have a known shape.
type RegNumber struct {
	Year     string
	Course   string
	Location string
	Intake   string
}

// ParseRegNumber decodes a registration number.
//
// Two shapes are understood:
//
//	5 segments:  year/typeCourse/location/intakePeriod/sequence
//	6+ segments: year/programDegree/course/location/month/sequence
//
// Any other shape decodes to the zero RegNumber.
func ParseRegNumber(s string) RegNumber {
	s = strings.TrimSpace(s)
	if s == "" {
		return RegNumber{}
	}

	parts := strings.Split(s, "/")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch {
	case len(parts) == 5:
		return RegNumber{
			Year:     parts[0],
			Course:   parts[1],
			Location: parts[2],
			Intake:   parts[3],
		}
	case len(parts) >= 6:
		return RegNumber{
			Year:     parts[0],
			Course:   parts[2],
			Location: parts[3],
			Intake:   parts[4],
		}
	default:
		return RegNumber{}
	}
}
