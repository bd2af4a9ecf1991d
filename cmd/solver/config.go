package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"solver/internal/config"
)

func (c *cli) newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, meta, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			source := "defaults and environment"
			if meta.ConfigFile != "" {
				source = meta.ConfigFile
			}
			fmt.Fprintf(c.stdout, "# source: %s\n", source)
			if meta.ProviderFallback {
				fmt.Fprintln(c.stdout, "# no API key found; provider switched to mock")
			}
			out, err := config.RenderYAML(cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(c.stdout, out)
			return nil
		},
	})
	return cmd
}
