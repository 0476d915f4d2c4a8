package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/brensch/failurelogs/internal/config"
)

// Constants for event types
const (
	EventDiscovered   = "discovered"
	EventSkipProcess  = "skip_process"
	EventFetchStart   = "fetch_start"
	EventFetchEnd     = "fetch_end"
	EventExtractStart = "extract_start"
	EventExtractEnd   = "extract_end"
	EventProcessEnd   = "process_end"
	EventError        = "error"
)

// LogEvent inserts a new attachment lifecycle event.
func LogEvent(ctx context.Context, db *sql.DB, cfg config.Config, attachmentID, attachmentName, event, runID, message string, duration *time.Duration) error {
	query := fmt.Sprintf(`
        INSERT INTO %s (attachment_id, attachment_name, event, event_timestamp, run_id, message, duration_ms)
        VALUES (?, ?, ?, ?, ?, ?, ?);
    `, cfg.EventTableName)
	var durationMs sql.NullInt64
	if duration != nil {
		durationMs = sql.NullInt64{Int64: duration.Milliseconds(), Valid: true}
	}

	_, err := db.ExecContext(ctx, query,
		attachmentID,
		nullString(attachmentName),
		event,
		time.Now().UTC(),
		nullString(runID),
		nullString(message),
		durationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to log event '%s' for '%s': %w", event, attachmentID, err)
	}
	return nil
}

// GetLatestEvent retrieves the most recent event recorded for an attachment.
func GetLatestEvent(ctx context.Context, db *sql.DB, cfg config.Config, attachmentID string) (event string, timestamp time.Time, message string, found bool, err error) {
	query := fmt.Sprintf(`
        SELECT event, event_timestamp, message
        FROM %s
        WHERE attachment_id = ?
        ORDER BY event_timestamp DESC, log_id DESC
        LIMIT 1;
    `, cfg.EventTableName)
	var msg sql.NullString
	err = db.QueryRowContext(ctx, query, attachmentID).Scan(&event, &timestamp, &msg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, "", false, nil
		}
		return "", time.Time{}, "", false, fmt.Errorf("failed query latest event for '%s': %w", attachmentID, err)
	}
	return event, timestamp, msg.String, true, nil
}

// DisplayHistory writes the most recent events, newest first, to w.
func DisplayHistory(ctx context.Context, db *sql.DB, cfg config.Config, w io.Writer, attachmentFilter, eventFilter string, limit int) error {
	query := fmt.Sprintf(`
        SELECT attachment_id, attachment_name, event, event_timestamp, run_id, message, duration_ms
        FROM %s
    `, cfg.EventTableName)
	conditions := []string{}
	args := []any{}
	argCounter := 1

	if attachmentFilter != "" {
		conditions = append(conditions, fmt.Sprintf("attachment_id = $%d", argCounter))
		args = append(args, attachmentFilter)
		argCounter++
	}
	if eventFilter != "" {
		conditions = append(conditions, fmt.Sprintf("event = $%d", argCounter))
		args = append(args, eventFilter)
		argCounter++
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY event_timestamp DESC, log_id DESC LIMIT $%d", argCounter)
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query event log: %w", err)
	}
	defer rows.Close()

	fmt.Fprintf(w, "--- Event Log History (Limit %d) ---\n", limit)
	fmt.Fprintf(w, "%-20s | %-40s | %-13s | %-25s | %-10s | %s\n", "Attachment", "Name", "Event", "Timestamp (UTC)", "DurationMS", "Message/Details")
	fmt.Fprintln(w, strings.Repeat("-", 140))

	count := 0
	for rows.Next() {
		var attachmentID, event string
		var timestamp time.Time
		var name, runID, message sql.NullString
		var durationMs sql.NullInt64
		if err := rows.Scan(&attachmentID, &name, &event, &timestamp, &runID, &message, &durationMs); err != nil {
			return fmt.Errorf("failed to scan event log row: %w", err)
		}

		durationStr := ""
		if durationMs.Valid {
			durationStr = fmt.Sprintf("%d", durationMs.Int64)
		}
		details := message.String
		if runID.Valid {
			details += fmt.Sprintf(" (Run: %s)", runID.String)
		}

		fmt.Fprintf(w, "%-20s | %-40s | %-13s | %-25s | %-10s | %s\n",
			attachmentID, name.String, event, timestamp.Format(time.RFC3339), durationStr, details)
		count++
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating event log rows: %w", err)
	}
	fmt.Fprintf(w, "Displayed %d records.\n", count)
	return nil
}
