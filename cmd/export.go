package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/brensch/failurelogs/internal/export"

	"github.com/spf13/cobra"
)

var (
	exportOut       string
	exportEventsOut string
	blobTarget      export.BlobTarget
)

// exportCmd writes stored records to Parquet and optionally uploads the file.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored log records to a Parquet file",
	Long: `Reads every stored log record, decodes its content and writes a SNAPPY
compressed Parquet file. When the --azure-* flags are given the file is then
uploaded to Azure Blob Storage using shared key authentication.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()
		ctx := cmd.Context()

		if blobTarget.Enabled() {
			if err := blobTarget.Validate(); err != nil {
				return fmt.Errorf("incomplete azure flags: %w", err)
			}
		}
		if dir := filepath.Dir(exportOut); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory %s: %w", dir, err)
			}
		}

		n, err := export.WriteParquet(ctx, logger, getDB(), cfg, exportOut)
		if err != nil {
			logger.Error("Export failed", "error", err)
			return fmt.Errorf("export failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", n, exportOut)

		if exportEventsOut != "" {
			if err := export.CopyTableToParquet(ctx, logger, getDB(), cfg.EventTableName, exportEventsOut); err != nil {
				return fmt.Errorf("event export failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported event log to %s\n", exportEventsOut)
		}

		if !blobTarget.Enabled() {
			return nil
		}
		blobName, err := export.UploadFile(ctx, logger, blobTarget, exportOut)
		if err != nil {
			logger.Error("Upload failed", "error", err)
			return err
		}
		logger.Info("Export uploaded.", slog.String("blob_name", blobName))
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded to %s/%s\n", blobTarget.Container, blobName)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "./failed_step_logs.parquet", "Output Parquet file")
	exportCmd.Flags().StringVar(&exportEventsOut, "events-out", "", "Also write the event log to this Parquet file")
	exportCmd.Flags().StringVar(&blobTarget.Account, "azure-account", "", "Azure storage account name")
	exportCmd.Flags().StringVar(&blobTarget.AccessKey, "azure-key", "", "Azure storage account access key")
	exportCmd.Flags().StringVar(&blobTarget.Container, "azure-container", "", "Azure blob container")
	exportCmd.Flags().StringVar(&blobTarget.Prefix, "azure-prefix", "", "Optional blob name prefix")
}
