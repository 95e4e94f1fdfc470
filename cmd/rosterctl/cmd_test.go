package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/RosterImport/internal/roster"
)

func TestPrintOutcome(t *testing.T) {
	var buf bytes.Buffer
	printOutcome(&buf, roster.SubmitOutcome{
		Status:    roster.StatusSuccess,
		Attempted: 1,
		Created:   1,
		Skipped:   1,
		Failures: []roster.FailedRow{
			{Seq: 2, FullName: "John Okello", Reason: roster.ReasonMissingRegNo, Source: roster.SourceLocal},
			{RegistrationNumber: "GHOST", Reason: "exists", Source: roster.SourceSkipped},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "status: success")
	assert.Contains(t, out, "created: 1")
	assert.Contains(t, out, roster.ReasonMissingRegNo)
	assert.Contains(t, out, "GHOST")
}

func TestPrintReference(t *testing.T) {
	var buf bytes.Buffer
	printReference(&buf, roster.ReferenceSet{
		Campuses: []roster.Campus{{ID: "c1", Name: "Kampala", Code: "MAIN", Location: "Kampala Road"}},
		Courses:  []roster.Course{{ID: "k1", Name: "Computer Science", Code: "BSC", CampusID: "c1"}},
	})

	lines := strings.Split(buf.String(), "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Contains(t, lines[1], "Kampala")
	assert.Contains(t, buf.String(), "Computer Science")
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failures.csv")
	require.NoError(t, writeReport(path, []roster.FailedRow{
		{Seq: 3, FullName: "Okot Peter", Reason: roster.ReasonDuplicate, Source: roster.SourceLocal},
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "_row,_source,_reason"))
	assert.Contains(t, string(data), "Okot Peter")
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"check", "submit", "reference"}, names)
}
