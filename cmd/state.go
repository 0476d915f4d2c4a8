package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/brensch/failurelogs/internal/db"

	"github.com/spf13/cobra"
)

var (
	stateLimit       int
	stateEvent       string
	stateAttachment  string
	stateShowSummary bool
)

// stateCmd shows the attachment event log and stored record counts.
var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "View the attachment event log history",
	Long: `Queries the DuckDB event log and displays the history of processed
attachments. Use flags to filter by attachment or event type and to limit the
output. --summary adds stored record counts per step family.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		dbConn := getDB()
		cfg := getConfig()
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		logger.Debug("Querying database event log", "attachment_filter", stateAttachment, "event_filter", stateEvent, "limit", stateLimit)

		if stateAttachment != "" {
			event, ts, msg, found, err := db.GetLatestEvent(ctx, dbConn, cfg, stateAttachment)
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintf(out, "No events recorded for attachment %s.\n", stateAttachment)
			} else {
				processed, err := db.AttachmentProcessed(ctx, dbConn, cfg, stateAttachment)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Attachment %s: latest event %s at %s (%s), records stored: %t\n",
					stateAttachment, event, ts.Format(time.RFC3339), msg, processed)
			}
		}

		if err := db.DisplayHistory(ctx, dbConn, cfg, out, stateAttachment, stateEvent, stateLimit); err != nil {
			logger.Error("Failed to display state history", "error", err)
			return err
		}

		if !stateShowSummary {
			return nil
		}
		total, err := db.CountRecords(ctx, dbConn, cfg)
		if err != nil {
			return err
		}
		counts, err := db.CountByStep(ctx, dbConn, cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n--- Stored Records (%d total) ---\n", total)
		fmt.Fprintf(out, "%-40s | %-8s | %-11s | %s\n", "Step Family", "Records", "Attachments", "Latest Report")
		fmt.Fprintln(out, strings.Repeat("-", 85))
		for _, c := range counts {
			fmt.Fprintf(out, "%-40s | %-8d | %-11d | %s\n", c.StepFamily, c.Records, c.Attachments, c.LatestDate.Format(time.DateOnly))
		}
		return nil
	},
}

func init() {
	stateCmd.Flags().IntVarP(&stateLimit, "limit", "n", 50, "Limit the number of log records displayed")
	stateCmd.Flags().StringVarP(&stateEvent, "event", "e", "", "Filter records by event type (e.g., process_end, error, skip_process)")
	stateCmd.Flags().StringVar(&stateAttachment, "attachment", "", "Show only events for this attachment id")
	stateCmd.Flags().BoolVar(&stateShowSummary, "summary", false, "Also print stored record counts per step family")
}
