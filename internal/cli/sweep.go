package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jvs-project/managedfiles/pkg/model"
)

func newSweepCmd(opts *globalOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete unreferenced files whose grace period has ended",
		Long: `Delete unreferenced files whose grace period has ended.

A file is kept while any acquisition references it or while its expiration
time lies in the future. Use --dry-run to list what would be deleted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, _, err := opts.openManager()
			if err != nil {
				return err
			}
			defer m.Close()

			var report *model.SweepReport
			if dryRun {
				report, err = m.PlanRemoval()
			} else {
				report, err = m.RemoveOldFiles()
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, report)
			}

			verb := "Deleted"
			if dryRun {
				verb = "Would delete"
			}
			fmt.Fprintf(out, "Sweep %s: examined %d, %s %d, kept %d\n",
				report.SweepID, report.Examined, strings.ToLower(verb), len(report.Deleted), len(report.Kept))
			for _, r := range report.Deleted {
				fmt.Fprintf(out, "  %s %s\n", verb, r.Path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report candidates without deleting")
	return cmd
}
