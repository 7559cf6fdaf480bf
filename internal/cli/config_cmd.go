package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/claude_code_reader/internal/config"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change ccr settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the config file path and every setting",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, err := config.NewStore(root.configPath)
				if err != nil {
					return err
				}
				cfg, err := store.Load()
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(w, "# %s\n", store.Path())
				rows := make([][]string, 0, len(config.Keys()))
				for _, key := range config.Keys() {
					v, err := cfg.Get(key)
					if err != nil {
						return err
					}
					rows = append(rows, []string{key, v})
				}
				writeTable(w, outputWidth(w), []string{"KEY", "VALUE"}, rows)
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := config.NewStore(root.configPath)
				if err != nil {
					return err
				}
				cfg, err := store.Load()
				if err != nil {
					return err
				}
				v, err := cfg.Get(args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change one setting",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := config.NewStore(root.configPath)
				if err != nil {
					return err
				}
				if err := store.Update(func(cfg *config.Config) error {
					return cfg.Set(args[0], args[1])
				}); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}
