package roster

import (
	"strings"
	"time"
)

// Column-header aliases, highest priority first. Headers are compared
// case-insensitively with inner whitespace collapsed.
var (
	aliasRegNumber      = []string{"REG. NO", "REG. NO.", "Reg No", "RegNo", "Registration Number", "Registration No", "Reg Number", "Reg. Number"}
	aliasFullName       = []string{"Full Name", "Fullname", "Name", "Student Name", "Names"}
	aliasFirstName      = []string{"First Name", "Firstname", "Given Name"}
	aliasLastName       = []string{"Last Name", "Lastname", "Surname"}
	aliasEmail          = []string{"Email", "E-mail", "Email Address", "E-mail Address"}
	aliasGender         = []string{"Gender", "Sex"}
	aliasSpecialisation = []string{"Specialisation", "Specialization"}
	aliasCourse         = []string{"Course", "Program", "Programme", "Course Name", "Course Code", "Program Name"}
	aliasYear           = []string{"Year of Enrollment", "Year of Enrolment", "YearOfEnrollment", "Enrollment Year", "Enrolment Year", "Intake Year", "Year"}
	aliasCampus         = []string{"Campus", "Campus Name", "Study Centre", "Study Center", "Centre", "Center"}
	aliasSchool         = []string{"School", "School Name", "Faculty"}
	aliasDepartment     = []string{"Department", "Department Name", "Dept"}
	aliasAge            = []string{"Age"}
	aliasPhone          = []string{"Phone Number", "Phone", "Telephone", "Tel", "Mobile", "Contact"}
	aliasIntake         = []string{"Intake Period", "Intake", "Intake Month"}
)

// TemplateHeaders is the header row of a blank roster: the preferred name
// of every recognized column.
var TemplateHeaders = []string{
	aliasFullName[0],
	aliasRegNumber[0],
	aliasEmail[0],
	aliasGender[0],
	aliasCourse[0],
	aliasYear[0],
	aliasCampus[0],
	aliasSchool[0],
	aliasDepartment[0],
	aliasAge[0],
	aliasPhone[0],
	aliasIntake[0],
}

// headerKey is the comparison form of a column header.
func headerKey(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(CleanCell(h)), " "))
}

// fieldSet is a RawRow re-keyed by headerKey.
type fieldSet map[string]string

func newFieldSet(raw RawRow) fieldSet {
	fs := make(fieldSet, len(raw))
	for h, v := range raw {
		key := headerKey(h)
		if key == "" {
			continue
		}
		// Keep the first non-empty value when two headers collapse together.
		if existing, ok := fs[key]; ok && existing != "" {
			continue
		}
		fs[key] = CleanCell(v)
	}
	return fs
}

// pick returns the first non-empty value among the aliases.
func (fs fieldSet) pick(aliases []string) string {
	for _, a := range aliases {
		if v := fs[headerKey(a)]; v != "" {
			return v
		}
	}
	return ""
}

// Normalizer turns raw spreadsheet rows into normalized rows, resolving
// campus and course against the session's reference indices.
type Normalizer struct {
	resolver *Resolver
	now      Clock
}

// NewNormalizer creates a normalizer. A nil clock uses time.Now.
func NewNormalizer(resolver *Resolver, now Clock) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{resolver: resolver, now: now}
}

// Normalize converts one raw row into a normalized row with sequence
// number seq.
func (n *Normalizer) Normalize(raw RawRow, seq int) Row {
	fs := newFieldSet(raw)

	regNo := fs.pick(aliasRegNumber)
	reg := ParseRegNumber(regNo)

	fullName := fs.pick(aliasFullName)
	if fullName == "" {
		fullName = strings.TrimSpace(fs.pick(aliasFirstName) + " " + fs.pick(aliasLastName))
	}
	fullName = strings.Join(strings.Fields(fullName), " ")

	course := fs.pick(aliasSpecialisation)
	if course == "" {
		course = fs.pick(aliasCourse)
	}
	if course == "" {
		course = reg.Course
	}

	campus := fs.pick(aliasCampus)
	if campus == "" {
		campus = reg.Location
	}

	intake := fs.pick(aliasIntake)
	if intake == "" {
		intake = reg.Intake
	}

	row := Row{
		Seq:                seq,
		FullName:           fullName,
		Email:              fs.pick(aliasEmail),
		RegistrationNumber: regNo,
		Gender:             fs.pick(aliasGender),
		Course:             course,
		YearOfEnrollment:   n.resolveYear(fs.pick(aliasYear), reg.Year),
		Campus:             campus,
		School:             fs.pick(aliasSchool),
		Department:         fs.pick(aliasDepartment),
		Age:                fs.pick(aliasAge),
		PhoneNumber:        fs.pick(aliasPhone),
		IntakePeriod:       intake,
	}

	return n.Resolve(row)
}

// NormalizeAll normalizes rows in order, numbering them from 1.
func (n *Normalizer) NormalizeAll(raws []RawRow) []Row {
	rows := make([]Row, 0, len(raws))
	for i, raw := range raws {
		rows = append(rows, n.Normalize(raw, i+1))
	}
	return rows
}

// Resolve re-runs campus and course resolution from the row's free-text
// Campus and Course fields, replacing CampusID, the campus display text,
// CourseID and CourseShortCode.
func (n *Normalizer) Resolve(row Row) Row {
	match := n.resolver.ResolveCampus(row.Campus)
	row.CampusID = match.ID
	if match.Display != "" {
		row.Campus = match.Display
	}

	row.CourseID = ""
	row.CourseShortCode = ""
	if c, ok := n.resolver.ResolveCourse(row.Course, row.CampusID); ok {
		row.CourseID = c.ID
		row.CourseShortCode = c.Code
	}
	return row
}

// resolveYear prefers the user's year when it is (or expands to) a
// four-digit year, then the registration-number year, else "".
func (n *Normalizer) resolveYear(userYear, regYear string) string {
	now := n.now()
	if y := ExpandYear(userYear, now); y != "" {
		return y
	}
	return ExpandYear(regYear, now)
}
