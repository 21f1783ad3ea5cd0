package main

import (
	"github.com/spf13/cobra"

	"github.com/a3tai/mcp-legal-extractor/internal/schema"
)

func newSchemasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "List the available extraction schema templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			registry := schema.NewRegistry()
			if _, err := registry.LoadDir(cfg.SchemaDir); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), registry.All())
		},
	}
}
