package roster

import (
	"testing"
	"time"
)

func TestCleanCell(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  plain  ", "plain"},
		{`="2021/BSC/KLA/AUG/001"`, "2021/BSC/KLA/AUG/001"},
		{"=42", "42"},
		{`"quoted"`, "quoted"},
		{"'single'", "single"},
		{"", ""},
		{`  =" padded "  `, "padded"},
	}

	for _, tt := range tests {
		if got := CleanCell(tt.input); got != tt.expected {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Kampala", "kampala"},
		{"kampala", "kampala"},
		{"KAMPALA!", "kampala"},
		{"  Fort Portal ", "fortportal"},
		{"Fort-Portal", "fortportal"},
		{"Gulu (Main)", "gulumain"},
		{"Café", "cafe"},
		{"B.Sc.", "bsc"},
		{"", ""},
		{"   ", ""},
		{"!!!", ""},
	}

	for _, tt := range tests {
		if got := NormalizeKey(tt.input); got != tt.expected {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestExpandYear(t *testing.T) {
	now := fixedClock() // pivot 27

	tests := []struct {
		input    string
		expected string
	}{
		{"20", "2020"},
		{"99", "1999"},
		{"00", "2000"},
		{"27", "2027"},
		{"28", "1928"},
		{"2019", "2019"},
		{" 21 ", "2021"},
		{"1", ""},
		{"202", ""},
		{"20a", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ExpandYear(tt.input, now); got != tt.expected {
			t.Errorf("ExpandYear(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestExpandYear_PivotMovesWithClock(t *testing.T) {
	// (2025+1) % 100 = 26
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	if got := ExpandYear("26", now); got != "2026" {
		t.Errorf("ExpandYear(26) = %q, want 2026", got)
	}
	if got := ExpandYear("27", now); got != "1927" {
		t.Errorf("ExpandYear(27) = %q, want 1927", got)
	}
}

func TestIsValidYear(t *testing.T) {
	for _, s := range []string{"2021", " 1999 "} {
		if !IsValidYear(s) {
			t.Errorf("IsValidYear(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"21", "20211", "year", ""} {
		if IsValidYear(s) {
			t.Errorf("IsValidYear(%q) = true, want false", s)
		}
	}
}

func TestSplitFullName(t *testing.T) {
	tests := []struct {
		input     string
		wantFirst string
		wantLast  string
	}{
		{"Jane Nakato", "Jane", "Nakato"},
		{"Mary Jane  Nakato", "Mary Jane", "Nakato"},
		{"Madonna", "Madonna", ""},
		{"  ", "", ""},
	}

	for _, tt := range tests {
		first, last := SplitFullName(tt.input)
		if first != tt.wantFirst || last != tt.wantLast {
			t.Errorf("SplitFullName(%q) = (%q, %q), want (%q, %q)",
				tt.input, first, last, tt.wantFirst, tt.wantLast)
		}
	}
}
