package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jvs-project/managedfiles/pkg/color"
	"github.com/jvs-project/managedfiles/pkg/errclass"
	"github.com/jvs-project/managedfiles/pkg/managedfiles"
	"github.com/jvs-project/managedfiles/pkg/model"
)

// A CLI process exits right after each command, so every hold it hands out is
// a restart acquisition. The volatile handle used to create it is released.

type acquireOutput struct {
	FileID                 string `json:"file_id"`
	AcquireID              string `json:"acquire_id"`
	Path                   string `json:"path"`
	ExpirationTimeInMillis int64  `json:"expiration_time_in_millis"`
}

func promoteToRestart(h *managedfiles.Handle, name string) (*acquireOutput, error) {
	restart, err := h.NewRestartManagedFile(name)
	releaseErr := h.Release()
	if err != nil {
		return nil, err
	}
	if releaseErr != nil {
		return nil, releaseErr
	}

	var out acquireOutput
	fid, err := restart.FileID()
	if err != nil {
		return nil, err
	}
	aid, err := restart.AcquireID()
	if err != nil {
		return nil, err
	}
	out.FileID = fid.String()
	out.AcquireID = aid.String()
	if out.Path, err = restart.Path(); err != nil {
		return nil, err
	}
	if out.ExpirationTimeInMillis, err = restart.ExpirationTimeInMillis(); err != nil {
		return nil, err
	}
	return &out, nil
}

func printAcquire(w io.Writer, verb string, a *acquireOutput) {
	fmt.Fprintf(w, "%s %s\n", verb, a.Path)
	fmt.Fprintf(w, "  File ID: %s\n", color.ID(a.FileID))
	fmt.Fprintf(w, "  Acquire ID: %s\n", color.ID(a.AcquireID))
	fmt.Fprintf(w, "  Expires: %s\n", formatExpiration(a.ExpirationTimeInMillis))
}

func formatExpiration(ms int64) string {
	if ms == 0 {
		return "no grace period"
	}
	return humanize.Time(time.UnixMilli(ms))
}

func newManageCmd(opts *globalOptions) *cobra.Command {
	var (
		name      string
		ttl       time.Duration
		expiresAt string
		noGrace   bool
	)
	cmd := &cobra.Command{
		Use:   "manage <path>",
		Short: "Start tracking a file and hold a restart acquisition on it",
		Long: `Start tracking a file and hold a restart acquisition on it.

The file is kept until the printed acquire id is released and its grace
period has passed. The grace period defaults to the configured default_ttl.

Examples:
  mfiles manage /data/capture.bin
  mfiles manage /data/report.pdf --ttl 24h --name reports
  mfiles manage /tmp/scratch --no-grace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl < 0 {
				return errors.New("--ttl must not be negative")
			}
			var expiration *int64
			switch {
			case noGrace:
				zero := int64(0)
				expiration = &zero
			case expiresAt != "":
				t, err := time.Parse(time.RFC3339, expiresAt)
				if err != nil {
					return fmt.Errorf("--expires-at: %w", err)
				}
				ms := t.UnixMilli()
				expiration = &ms
			}

			m, _, _, err := opts.openManager()
			if err != nil {
				return err
			}
			defer m.Close()

			if ttl > 0 {
				ms := m.Now() + ttl.Milliseconds()
				expiration = &ms
			}
			var h *managedfiles.Handle
			if expiration != nil {
				h, err = m.ManageFileWithExpiration(args[0], name, *expiration)
			} else {
				h, err = m.ManageFile(args[0], name)
			}
			if err != nil {
				return err
			}

			res, err := promoteToRestart(h, name)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printAcquire(cmd.OutOrStdout(), "Managing", res)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "mfiles", "acquire name recorded with the hold")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "grace period measured from now (default: config default_ttl)")
	cmd.Flags().StringVar(&expiresAt, "expires-at", "", "absolute grace period end (RFC3339)")
	cmd.Flags().BoolVar(&noGrace, "no-grace", false, "file may be deleted as soon as it is released")
	cmd.MarkFlagsMutuallyExclusive("ttl", "expires-at", "no-grace")
	return cmd
}

func newTmpCmd(opts *globalOptions) *cobra.Command {
	var name, ext string
	cmd := &cobra.Command{
		Use:   "tmp",
		Short: "Create an empty tracked file in the files directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, _, err := opts.openManager()
			if err != nil {
				return err
			}
			defer m.Close()

			h, err := m.CreateTemporaryFile(ext, name)
			if err != nil {
				return err
			}
			res, err := promoteToRestart(h, name)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printAcquire(cmd.OutOrStdout(), "Created", res)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "mfiles", "acquire name recorded with the hold")
	cmd.Flags().StringVar(&ext, "ext", "", "file extension, e.g. .jpg")
	return cmd
}

func newAcquireCmd(opts *globalOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "acquire <file-id>",
		Short: "Hold a restart acquisition on a tracked file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fid, err := model.ParseFileID(args[0])
			if err != nil {
				return err
			}
			m, _, _, err := opts.openManager()
			if err != nil {
				return err
			}
			defer m.Close()

			h, err := m.FindAndAcquireIfExists(fid, name)
			if err != nil {
				return err
			}
			if h == nil {
				return errclass.ErrNotFound.WithMessagef("no tracked file %s", fid)
			}
			res, err := promoteToRestart(h, name)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printAcquire(cmd.OutOrStdout(), "Acquired", res)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "mfiles", "acquire name recorded with the hold")
	return cmd
}

func newReleaseCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "release <acquire-id>",
		Short: "Release a restart acquisition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			aid, err := model.ParseAcquireID(args[0])
			if err != nil {
				return err
			}
			m, _, _, err := opts.openManager()
			if err != nil {
				return err
			}
			defer m.Close()

			h, err := m.ReceiveRestartHandle(aid)
			if err != nil {
				return err
			}
			path, err := h.Path()
			if err != nil {
				return err
			}
			if err := h.Release(); err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"acquire_id": aid.String(),
					"path":       path,
					"released":   true,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Released %s (%s)\n", color.ID(aid.String()), path)
			return nil
		},
	}
}
