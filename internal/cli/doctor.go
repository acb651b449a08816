package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jvs-project/managedfiles/internal/audit"
	"github.com/jvs-project/managedfiles/internal/doctor"
	"github.com/jvs-project/managedfiles/pkg/color"
)

var errUnhealthy = errors.New("home is unhealthy")

func newDoctorCmd(opts *globalOptions) *cobra.Command {
	var (
		strict  bool
		repairs []string
	)
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check home health",
		Long: `Check home health.

Runs diagnostic checks over the ledger, the tracked files and the home
directory. Use --strict to also verify the audit hash chain.
Use --repair clean_tmp to remove temp files left by interrupted writes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, h, _, err := opts.openManager()
			if err != nil {
				return err
			}
			defer m.Close()

			doc := doctor.NewDoctor(m.Ledger(), doctor.Options{
				Home:  h,
				Audit: audit.NewFileAppender(h.AuditPath()),
			})
			out := cmd.OutOrStdout()

			if len(repairs) > 0 {
				results, err := doc.Repair(repairs)
				if err != nil {
					return err
				}
				if !opts.json {
					for _, r := range results {
						fmt.Fprintf(out, "Repair %s: cleaned %d\n", r.Action, r.Cleaned)
					}
				}
			}

			result, err := doc.Check(strict)
			if err != nil {
				return fmt.Errorf("doctor: %w", err)
			}
			if opts.json {
				if err := writeJSON(out, result); err != nil {
					return err
				}
			} else if len(result.Findings) == 0 {
				fmt.Fprintln(out, color.Success("Home is healthy."))
			} else {
				fmt.Fprintf(out, "Findings (%d):\n", len(result.Findings))
				for _, f := range result.Findings {
					fmt.Fprintf(out, "  [%s] %s: %s\n", color.Severity(f.Severity), f.Category, f.Description)
				}
			}
			if !result.Healthy {
				return errUnhealthy
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "also verify the audit hash chain")
	cmd.Flags().StringSliceVar(&repairs, "repair", nil, "repair actions to run before checking (clean_tmp)")
	return cmd
}
