package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jvs-project/managedfiles/pkg/color"
)

type globalOptions struct {
	json    bool
	dir     string
	noColor bool
}

// NewRootCmd builds the mfiles command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "mfiles",
		Short: "mfiles - managed file lifetimes",
		Long: `mfiles tracks files by path, holds acquisitions against them, and
deletes them once nothing references them and their grace period has ended.
Restart acquisitions survive process restarts and must be released explicitly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			color.Init(opts.noColor)
		},
	}
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "output in JSON format")
	root.PersistentFlags().StringVarP(&opts.dir, "dir", "C", "", "run as if started in this directory")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newInitCmd(opts),
		newInfoCmd(opts),
		newManageCmd(opts),
		newTmpCmd(opts),
		newAcquireCmd(opts),
		newReleaseCmd(opts),
		newListCmd(opts),
		newSweepCmd(opts),
		newDoctorCmd(opts),
		newConfigCmd(opts),
		newMetricsCmd(opts),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmtErr(os.Stderr, "%v", err)
		os.Exit(1)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtErr(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, color.Error("mfiles:")+" "+format+"\n", args...)
}
