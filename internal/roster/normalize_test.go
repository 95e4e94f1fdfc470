package roster

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalize_DerivesFromRegistrationNumber(t *testing.T) {
	n := testNormalizer()

	raw := RawRow{
		"Full Name": "  Jane   Nakato ",
		"REG. NO":   `="21/BSC/KLA/AUG/001"`,
		"Email":     "jane@uni.ac.ug",
	}
	got := n.Normalize(raw, 1)

	want := Row{
		Seq:                1,
		FullName:           "Jane Nakato",
		Email:              "jane@uni.ac.ug",
		RegistrationNumber: "21/BSC/KLA/AUG/001",
		Course:             "BSC",
		YearOfEnrollment:   "2021",
		Campus:             "Kampala",
		CampusID:           "c-kla",
		IntakePeriod:       "AUG",
		CourseID:           "k-bsc",
		CourseShortCode:    "BSC",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_ExplicitColumnsWin(t *testing.T) {
	n := testNormalizer()

	raw := RawRow{
		"Student Name":        "Peter Mugisha",
		"Registration Number": "2021/BSC/CS/KLA/MAY/001",
		"Campus":              "Mbarara",
		"Programme":           "BSC",
		"Intake":              "JAN",
		"Year":                "19",
		"sex":                 "M",
		"Phone":               "0772000000",
	}
	got := n.Normalize(raw, 7)

	if got.Campus != "Mbarara" || got.CampusID != "c-mbr" {
		t.Errorf("campus = (%q, %q), want (Mbarara, c-mbr)", got.Campus, got.CampusID)
	}
	if got.Course != "BSC" || got.CourseID != "m-bsc" {
		t.Errorf("course = (%q, %q), want (BSC, m-bsc)", got.Course, got.CourseID)
	}
	if got.IntakePeriod != "JAN" {
		t.Errorf("IntakePeriod = %q, want JAN", got.IntakePeriod)
	}
	if got.YearOfEnrollment != "2019" {
		t.Errorf("YearOfEnrollment = %q, want 2019", got.YearOfEnrollment)
	}
	if got.Gender != "M" || got.PhoneNumber != "0772000000" {
		t.Errorf("gender/phone = (%q, %q)", got.Gender, got.PhoneNumber)
	}
}

func TestNormalize_SpecialisationBeatsCourse(t *testing.T) {
	n := testNormalizer()

	got := n.Normalize(RawRow{
		"Name":           "A B",
		"Reg No":         "X1",
		"Campus":         "Kampala",
		"Course":         "BSC",
		"Specialization": "CS",
	}, 1)

	if got.Course != "CS" || got.CourseID != "k-cs" {
		t.Errorf("course = (%q, %q), want (CS, k-cs)", got.Course, got.CourseID)
	}
}

func TestNormalize_FirstAndLastNameColumns(t *testing.T) {
	n := testNormalizer()

	got := n.Normalize(RawRow{"First Name": "Mary", "Surname": "Achieng"}, 1)
	if got.FullName != "Mary Achieng" {
		t.Errorf("FullName = %q, want %q", got.FullName, "Mary Achieng")
	}
}

func TestNormalize_YearFallbacks(t *testing.T) {
	n := testNormalizer()

	tests := []struct {
		name     string
		year     string
		regNo    string
		expected string
	}{
		{"four-digit user year", "2018", "21/BSC/KLA/AUG/001", "2018"},
		{"two-digit user year", "20", "21/BSC/KLA/AUG/001", "2020"},
		{"invalid user year falls back to reg", "twenty", "21/BSC/KLA/AUG/001", "2021"},
		{"no usable year", "", "S-0001", ""},
		{"old two-digit year", "", "99/BSC/KLA/AUG/001", "1999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(RawRow{"Name": "A B", "REG. NO": tt.regNo, "Year": tt.year}, 1)
			if got.YearOfEnrollment != tt.expected {
				t.Errorf("YearOfEnrollment = %q, want %q", got.YearOfEnrollment, tt.expected)
			}
		})
	}
}

func TestNormalize_UnknownCourseLeavesIDEmpty(t *testing.T) {
	n := testNormalizer()

	got := n.Normalize(RawRow{"Name": "A B", "REG. NO": "21/LAW/KLA/AUG/001"}, 1)
	if got.CampusID != "c-kla" {
		t.Errorf("CampusID = %q, want c-kla", got.CampusID)
	}
	if got.CourseID != "" || got.CourseShortCode != "" {
		t.Errorf("course = (%q, %q), want unresolved", got.CourseID, got.CourseShortCode)
	}
	if verr := ValidateRow(got); verr == nil || verr.Reason != ReasonUnknownCourse {
		t.Errorf("ValidateRow() = %v, want %q", verr, ReasonUnknownCourse)
	}
}

func TestNormalizeAll_NumbersFromOne(t *testing.T) {
	n := testNormalizer()

	rows := n.NormalizeAll([]RawRow{{"Name": "A"}, {"Name": "B"}, {"Name": "C"}})
	for i, r := range rows {
		if r.Seq != i+1 {
			t.Errorf("rows[%d].Seq = %d, want %d", i, r.Seq, i+1)
		}
	}
}

func TestResolve_EditedCampusReresolvesCourse(t *testing.T) {
	n := testNormalizer()

	row := n.Normalize(RawRow{"Name": "A B", "REG. NO": "21/CS/KLA/AUG/001"}, 1)
	if row.CourseID != "k-cs" {
		t.Fatalf("setup: CourseID = %q, want k-cs", row.CourseID)
	}

	// CS exists only at Kampala, so moving to Mbarara clears it.
	row.Campus = "Mbarara"
	moved := n.Resolve(row)
	if moved.CampusID != "c-mbr" {
		t.Errorf("CampusID = %q, want c-mbr", moved.CampusID)
	}
	if moved.CourseID != "" || moved.CourseShortCode != "" {
		t.Errorf("course = (%q, %q), want cleared", moved.CourseID, moved.CourseShortCode)
	}

	// BSC exists at both campuses.
	moved.Course = "BSC"
	moved = n.Resolve(moved)
	if moved.CourseID != "m-bsc" {
		t.Errorf("CourseID = %q, want m-bsc", moved.CourseID)
	}
}

func TestTemplateHeaders_RoundTrip(t *testing.T) {
	csv := strings.Join(TemplateHeaders, ",") + "\n" +
		"Jane Nakato,21/BSC/KLA/AUG/001,jane@uni.ac.ug,F,BSC,2021,Kampala,Computing,IT,20,0772000000,AUG\n"

	sheet, err := ParseFile("template.csv", []byte(csv))
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if diff := cmp.Diff(TemplateHeaders, sheet.Headers); diff != "" {
		t.Errorf("headers mismatch (-want +got):\n%s", diff)
	}

	row := testNormalizer().Normalize(sheet.Rows[0], 1)
	if row.RegistrationNumber != "21/BSC/KLA/AUG/001" || row.CampusID != "c-kla" || row.CourseID != "k-bsc" {
		t.Errorf("Normalize() = %+v", row)
	}
	if row.PhoneNumber != "0772000000" || row.Department != "IT" || row.School != "Computing" {
		t.Errorf("optional columns not carried: %+v", row)
	}
}
