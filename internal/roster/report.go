package roster

import (
	"encoding/csv"
	"io"
	"strconv"
)

// FailureReportHeader is the header row of the failure report CSV.
var FailureReportHeader = []string{"_row", "_source", "_reason", "fullname", "registrationNumber", "email"}

// WriteFailureReport writes the failures of a settled submission as CSV so
// they can be fixed in the spreadsheet and re-imported.
func WriteFailureReport(w io.Writer, failures []FailedRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(FailureReportHeader); err != nil {
		return err
	}
	for _, f := range failures {
		seq := ""
		if f.Seq > 0 {
			seq = strconv.Itoa(f.Seq)
		}
		record := []string{seq, string(f.Source), f.Reason, f.FullName, f.RegistrationNumber, f.Email}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
