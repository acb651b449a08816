package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jvs-project/managedfiles/pkg/config"
)

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change home configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := opts.requireHome()
			if err != nil {
				return err
			}
			if opts.json {
				values := make(map[string]string)
				for _, k := range config.Keys() {
					if values[k], err = cfg.Get(k); err != nil {
						return err
					}
				}
				return writeJSON(cmd.OutOrStdout(), values)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	get := &cobra.Command{
		Use:       "get <key>",
		Short:     "Print one configuration value",
		Args:      cobra.ExactArgs(1),
		ValidArgs: config.Keys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := opts.requireHome()
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), map[string]string{args[0]: v})
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one configuration value",
		Long: fmt.Sprintf(`Change one configuration value.

Known keys: %v
Changing backend does not migrate existing ledger data.`, config.Keys()),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, cfg, err := opts.requireHome()
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := config.Save(h.Root, cfg); err != nil {
				return err
			}
			if !opts.json {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), map[string]string{args[0]: args[1]})
		},
	}

	cmd.AddCommand(show, get, set)
	return cmd
}
