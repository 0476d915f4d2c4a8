package cmd

import (
	"fmt"
	"os"

	"github.com/brensch/failurelogs/internal/pipeline"
	"github.com/brensch/failurelogs/internal/source"

	"github.com/spf13/cobra"
)

var (
	ingestManifest    string
	ingestStep        string
	ingestAttachments string
	ingestFailOnError bool
)

// ingestCmd runs the extraction pipeline over a saved query result.
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest failure report attachments listed in a saved query result",
	Long: `Reads a saved CRM query result (JSON) listing work records and their
attachments, loads each attachment from the attachments directory, and stores
one record per matching log file. Attachments that already have stored records
are skipped before they are read.

Attachments are looked up as <attachments>/<attachment id>/<name> and then
<attachments>/<name>, with the name sanitized.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()

		if err := source.ValidateStepName(ingestStep); err != nil {
			return err
		}
		data, err := os.ReadFile(ingestManifest)
		if err != nil {
			return fmt.Errorf("read manifest: %w", err)
		}
		refs, parseErr := source.ParseQueryResult(data, ingestStep)
		if refs == nil && parseErr != nil {
			return fmt.Errorf("parse manifest %s: %w", ingestManifest, parseErr)
		}
		if parseErr != nil {
			logger.Warn("Some manifest entries were skipped.", "error", parseErr)
		}
		if len(refs) == 0 {
			logger.Info("No attachments found to process.")
			return nil
		}

		p, err := pipeline.New(cfg, getDB(), logger)
		if err != nil {
			return err
		}
		summary := p.Run(cmd.Context(), refs, source.DirFetcher{Dir: ingestAttachments})
		summary.Print(cmd.OutOrStdout())

		if err := cmd.Context().Err(); err != nil {
			return fmt.Errorf("ingest interrupted: %w", err)
		}
		if summary.Err != nil {
			logger.Warn("Ingest completed with errors.", "failed", summary.Failed, "error", summary.Err)
			if ingestFailOnError {
				return fmt.Errorf("%d attachments failed: %w", summary.Failed, summary.Err)
			}
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestManifest, "manifest", "m", "", "Saved query result JSON listing records and attachments")
	ingestCmd.Flags().StringVarP(&ingestStep, "step", "s", "", "Step name whose logs are selected")
	ingestCmd.Flags().StringVarP(&ingestAttachments, "attachments", "a", "./attachments", "Directory holding the attachment files")
	ingestCmd.Flags().BoolVar(&ingestFailOnError, "fail-on-error", false, "Exit non-zero when any attachment fails")
	ingestCmd.MarkFlagRequired("manifest")
	ingestCmd.MarkFlagRequired("step")
}
