package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/jvs-project/managedfiles/pkg/model"
)

func newListCmd(opts *globalOptions) *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked files and their holders",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, _, err := opts.openManager()
			if err != nil {
				return err
			}
			defer m.Close()

			out := cmd.OutOrStdout()
			if debug {
				dump, err := m.DebugDump()
				if err != nil {
					return err
				}
				_, err = io.WriteString(out, dump)
				return err
			}

			statuses, err := m.List()
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(out, statuses)
			}
			if len(statuses) == 0 {
				fmt.Fprintln(out, "No managed files.")
				return nil
			}
			printStatusTable(out, statuses)
			return nil
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "print the raw ledger dump including acquire ids")
	return cmd
}

func printStatusTable(w io.Writer, statuses []model.FileStatus) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"File ID", "Path", "Size", "Expires", "Volatile", "Restart"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, s := range statuses {
		size := "-"
		if info, err := os.Stat(s.Entry.Path); err == nil {
			size = humanize.IBytes(uint64(info.Size()))
		}
		table.Append([]string{
			s.Entry.FileID.String(),
			s.Entry.Path,
			size,
			formatExpiration(s.Entry.ExpirationTimeInMillis),
			strconv.Itoa(len(s.Volatile)),
			strconv.Itoa(len(s.Restart)),
		})
	}
	table.Render()
}
