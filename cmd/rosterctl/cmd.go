package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/RosterImport/internal/app"
	"github.com/JonMunkholm/RosterImport/internal/config"
	"github.com/JonMunkholm/RosterImport/internal/logging"
	"github.com/JonMunkholm/RosterImport/internal/roster"
)

type rootOptions struct {
	envFile  string
	logLevel string
	app      *app.App
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "rosterctl",
		Short:         "Check and submit student roster spreadsheets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd.Context())
		},
	}
	cobra.OnFinalize(opts.close)

	cmd.PersistentFlags().StringVar(&opts.envFile, "env", ".env", "Env file to load if present")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override LOG_LEVEL")

	cmd.AddCommand(newCheckCmd(opts), newSubmitCmd(opts), newReferenceCmd(opts))
	return cmd
}

func (o *rootOptions) setup(ctx context.Context) error {
	if err := godotenv.Load(o.envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load %s: %w", o.envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	// stdout carries command output
	slog.SetDefault(logging.New(os.Stderr, level, cfg.Logging.Format))

	o.app, err = app.New(ctx, cfg)
	return err
}

func (o *rootOptions) close() {
	if o.app != nil {
		o.app.Close()
		o.app = nil
	}
}

func (o *rootOptions) open(ctx context.Context, path string) (*roster.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return o.app.Service.StartSession(ctx, filepath.Base(path), data)
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var duplicatesOnly bool

	cmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Parse a roster and show each row with its duplicate flag and skip reason",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer opts.app.Service.CloseSession(sess.ID)

			sess.SetDuplicatesOnly(duplicatesOnly)
			printCheck(cmd.OutOrStdout(), sess)
			return nil
		},
	}

	cmd.Flags().BoolVar(&duplicatesOnly, "duplicates-only", false, "Show only rows sharing a registration number or email")
	return cmd
}

func newSubmitCmd(opts *rootOptions) *cobra.Command {
	var (
		duplicatesOnly bool
		reportPath     string
	)

	cmd := &cobra.Command{
		Use:   "submit FILE",
		Short: "Submit the eligible rows of a roster to the student service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := opts.open(ctx, args[0])
			if err != nil {
				return err
			}
			defer opts.app.Service.CloseSession(sess.ID)

			sess.SetDuplicatesOnly(duplicatesOnly)
			out, err := opts.app.Service.Submit(ctx, sess.ID)
			if err != nil {
				return err
			}
			printOutcome(cmd.OutOrStdout(), out)

			if reportPath != "" && len(out.Failures) > 0 {
				if err := writeReport(reportPath, out.Failures); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "failure report written to %s\n", reportPath)
			}
			if out.Status == roster.StatusError {
				return fmt.Errorf("submission failed: %s", out.Error)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&duplicatesOnly, "duplicates-only", false, "Submit only the duplicate rows")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write failed and skipped rows to this CSV file")
	return cmd
}

func newReferenceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reference",
		Short: "List the campuses and courses rows are resolved against",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := opts.app.Service.RefreshReference(cmd.Context())
			if err != nil {
				return err
			}
			printReference(cmd.OutOrStdout(), rs)
			return nil
		},
	}
}

func printCheck(w io.Writer, sess *roster.Session) {
	rows := sess.Displayed()
	dups := roster.FindDuplicates(sess.Rows())
	batch := roster.PrepareBatch(rows, dups)

	reasons := make(map[int]string, len(batch.Skipped))
	for _, s := range batch.Skipped {
		reasons[s.Seq] = s.Reason
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tREG. NO\tNAME\tEMAIL\tCAMPUS\tCOURSE\tDUP\tRESULT")
	for _, r := range rows {
		result := "submit"
		if reason, ok := reasons[r.Seq]; ok {
			result = "skip: " + reason
		}
		dup := ""
		if dups.IsDuplicate(r.Seq) {
			dup = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Seq, r.RegistrationNumber, r.FullName, r.Email, r.Campus, r.CourseShortCode, dup, result)
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%d rows, %d to submit, %d skipped, %d duplicates\n",
		len(rows), len(batch.Payloads), len(batch.Skipped), dups.Len())
}

func printOutcome(w io.Writer, out roster.SubmitOutcome) {
	fmt.Fprintf(w, "status: %s\nattempted: %d\ncreated: %d\nskipped: %d\nfailed: %d\n",
		out.Status, out.Attempted, out.Created, out.Skipped, out.Failed)
	if len(out.Failures) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nROW\tSOURCE\tREG. NO\tNAME\tREASON")
	for _, f := range out.Failures {
		row := ""
		if f.Seq > 0 {
			row = fmt.Sprint(f.Seq)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", row, f.Source, f.RegistrationNumber, f.FullName, f.Reason)
	}
	tw.Flush()
}

func printReference(w io.Writer, rs roster.ReferenceSet) {
	campusNames := make(map[string]string, len(rs.Campuses))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CAMPUS\tCODE\tLOCATION\tID")
	for _, c := range rs.Campuses {
		campusNames[c.ID] = c.Name
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, c.Code, c.Location, c.ID)
	}
	fmt.Fprintln(tw, "\nCOURSE\tCODE\tCAMPUS\tID")
	for _, c := range rs.Courses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, c.Code, campusNames[c.CampusID], c.ID)
	}
	tw.Flush()
}

func writeReport(path string, failures []roster.FailedRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := roster.WriteFailureReport(f, failures); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
