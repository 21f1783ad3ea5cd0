package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/a3tai/mcp-legal-extractor/internal/export"
	"github.com/a3tai/mcp-legal-extractor/internal/models"
)

type analyzeOptions struct {
	schema     string
	fields     string
	schemaName string
	threshold  float64
	full       bool
	force      bool
	xlsx       string
}

func newAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <document>",
		Short: "Extract the fields of a schema from one document",
		Example: `  legal_extract analyze complaint.pdf --schema complaint
  legal_extract analyze retainer.pdf --fields '{"hourly_rate": {"type": "number"}}' --xlsx review.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.schema, "schema", "", "schema template name (see the schemas command)")
	cmd.Flags().StringVar(&opts.fields, "fields", "", "inline field definitions as a JSON object")
	cmd.Flags().StringVar(&opts.schemaName, "schema-name", "", "name recorded for inline fields")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", -1, "confidence threshold override between 0 and 1")
	cmd.Flags().BoolVar(&opts.full, "full", false, "read every page instead of the page limit")
	cmd.Flags().BoolVar(&opts.force, "force", false, "ignore cached results")
	cmd.Flags().StringVar(&opts.xlsx, "xlsx", "", "also write a review workbook to this path")

	return cmd
}

func runAnalyze(cmd *cobra.Command, documentID string, opts *analyzeOptions) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	name := opts.schema
	if opts.fields != "" {
		name = opts.schemaName
	}
	var threshold *float64
	if cmd.Flags().Changed("threshold") {
		threshold = &opts.threshold
	}

	extractionSchema, err := a.Schemas.Resolve(name, opts.fields, threshold)
	if err != nil {
		return err
	}

	resp, err := a.Agent.Analyze(cmd.Context(), models.AnalysisRequest{
		DocumentID:          documentID,
		Schema:              extractionSchema,
		ProcessFullDocument: opts.full,
		ForceReprocess:      opts.force,
	})
	if err != nil {
		return err
	}

	if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
		return err
	}

	if resp.Status == models.StatusFailed {
		return fmt.Errorf("analysis of %s failed", documentID)
	}

	if opts.xlsx != "" {
		if err := writeWorkbook(opts.xlsx, resp); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "review workbook written to %s\n", opts.xlsx)
	}
	return nil
}

func writeWorkbook(path string, resp *models.AnalysisResponse) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create workbook: %w", err)
	}
	if err := export.WriteReviewWorkbook(f, resp); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
