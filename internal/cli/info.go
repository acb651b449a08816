package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInfoCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show home information",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, h, cfg, err := opts.openManager()
			if err != nil {
				return err
			}
			defer m.Close()

			statuses, err := m.List()
			if err != nil {
				return err
			}
			var restart int
			for _, s := range statuses {
				restart += len(s.Restart)
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, map[string]any{
					"root":                 h.Root,
					"store_id":             h.StoreID,
					"format_version":       h.FormatVersion,
					"backend":              cfg.Backend,
					"default_ttl":          m.DefaultTTL().String(),
					"files_dir":            m.FilesDir(),
					"tracked_files":        len(statuses),
					"restart_acquisitions": restart,
				})
			}
			fmt.Fprintf(out, "Home: %s\n", h.Root)
			fmt.Fprintf(out, "  Store ID: %s\n", h.StoreID)
			fmt.Fprintf(out, "  Format version: %d\n", h.FormatVersion)
			fmt.Fprintf(out, "  Backend: %s\n", cfg.Backend)
			fmt.Fprintf(out, "  Default TTL: %s\n", m.DefaultTTL())
			fmt.Fprintf(out, "  Files dir: %s\n", m.FilesDir())
			fmt.Fprintf(out, "  Tracked files: %d\n", len(statuses))
			fmt.Fprintf(out, "  Restart acquisitions: %d\n", restart)
			return nil
		},
	}
}
