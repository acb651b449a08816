package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jvs-project/managedfiles/internal/home"
	"github.com/jvs-project/managedfiles/pkg/color"
)

func newInitCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Initialize a managedfiles home",
		Long: `Initialize a managedfiles home in dir (default: the working directory).

This creates:
  - .mfiles/ with format_version, store_id and config.yaml
  - .mfiles/db/ for the ledger store
  - .mfiles/audit/ for the audit log
  - .mfiles/files/ for temporary files`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := opts.workDir()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				dir = args[0]
				if !filepath.IsAbs(dir) && opts.dir != "" {
					dir = filepath.Join(opts.dir, dir)
				}
			}
			dir, err = filepath.Abs(dir)
			if err != nil {
				return err
			}

			h, err := home.Init(dir)
			if err != nil {
				return fmt.Errorf("failed to initialize home: %w", err)
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, map[string]any{
					"root":           h.Root,
					"format_version": h.FormatVersion,
					"store_id":       h.StoreID,
				})
			}
			fmt.Fprintf(out, "Initialized managedfiles home in %s\n", color.Success(h.Root))
			return nil
		},
	}
}
