package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/a3tai/mcp-legal-extractor/internal/app"
	"github.com/a3tai/mcp-legal-extractor/internal/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "legal_extract",
		Short: "Extract structured fields from legal PDFs",
		Long: `legal_extract reads a legal PDF from the document directory, falls back to
OCR for scanned pages and asks the configured LLM providers for the fields of
an extraction schema.

Every server flag is accepted, and LEGAL_EXTRACT_* environment variables
apply as they do for the MCP server.`,
		Version:      version,
		SilenceUsage: true,
	}

	config.RegisterFlags(root.PersistentFlags(), config.DefaultConfig())

	root.AddCommand(newAnalyzeCmd(), newSchemasCmd())
	return root
}

// loadConfig builds the configuration from the command's flags and the
// environment
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(viper.New(), cmd.Flags())
}

// loadApp wires the full pipeline for cmd
func loadApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return app.New(cmd.Context(), cfg, app.NewLogger(cfg.LogLevel))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
