package cmd

import (
	"errors"
	"fmt"

	"github.com/brensch/failurelogs/internal/export"

	"github.com/spf13/cobra"
)

// inspectCmd summarizes exported Parquet files.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file.parquet>...",
	Short: "Show the schema and row count of exported Parquet files",
	Long: `Reads each given Parquet file through DuckDB and prints its column schema
and row count. Useful for checking an export before it is shared.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		var errs error
		for _, path := range args {
			summary, err := export.InspectParquet(cmd.Context(), logger, getDB(), path)
			if err != nil {
				logger.Error("Inspection failed.", "path", path, "error", err)
				errs = errors.Join(errs, err)
				continue
			}
			summary.Print(cmd.OutOrStdout())
		}
		if errs != nil {
			return fmt.Errorf("inspect: %w", errs)
		}
		return nil
	},
}
