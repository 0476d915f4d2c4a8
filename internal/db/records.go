package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/brensch/failurelogs/internal/config"
	"github.com/brensch/failurelogs/internal/header"
	"github.com/brensch/failurelogs/internal/record"
)

// ErrStorage wraps every insert, query and connectivity failure of the record store.
var ErrStorage = errors.New("storage failure")

// StoredRecord is a LogRecord as read back from the record table.
type StoredRecord struct {
	ID              int64
	Record          record.LogRecord
	ContentEncoding string
	RunID           string
	IngestedAt      time.Time
}

// AttachmentProcessed is the idempotency gate: it reports whether any record
// for attachmentID is already stored.
func AttachmentProcessed(ctx context.Context, db *sql.DB, cfg config.Config, attachmentID string) (bool, error) {
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE attachment_id = ? LIMIT 1;`, cfg.TableName)
	var exists int
	err := db.QueryRowContext(ctx, query, attachmentID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("%w: check attachment %s: %w", ErrStorage, attachmentID, err)
	}
	return true, nil
}

// InsertRecords stores one attachment's records in a single transaction.
// Any failure rolls back the whole batch and nothing is stored.
func InsertRecords(ctx context.Context, db *sql.DB, cfg config.Config, runID string, records []record.LogRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin transaction: %w", ErrStorage, err)
	}
	defer tx.Rollback() // Rollback is safe even after commit

	query := fmt.Sprintf(`
        INSERT INTO %s (
            file_path, step_name, step_family, report_date, report_id,
            worker_process_group_id, hostname, executor_kerberos_id, requesting_kerberos_id, header_match,
            content, content_encoded, content_mode, content_encoding,
            attachment_id, parent_record_id, work_item, work_id, case_number, datacenter,
            run_id, ingested_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
    `, cfg.TableName)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("%w: prepare insert: %w", ErrStorage, err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	encoding := encodingName(cfg.ContentEncoding)
	for _, r := range records {
		// Identity content stays readable as text; encoded content goes to the BLOB column.
		var text sql.NullString
		var encoded any
		if encoding == config.EncodingIdentity {
			text = sql.NullString{String: r.Content, Valid: true}
		} else {
			b, err := EncodeContent(encoding, r.Content)
			if err != nil {
				return 0, fmt.Errorf("%w: encode %s: %w", ErrStorage, r.FilePath, err)
			}
			encoded = b
		}
		subject := r.External.Subject
		_, err := stmt.ExecContext(ctx,
			r.FilePath,
			r.StepName,
			nullString(r.StepFamily),
			r.ReportDate,
			nullString(r.ReportID),
			nullString(r.Header.WorkerProcessGroupID),
			nullString(r.Header.Hostname),
			nullString(r.Header.ExecutorID),
			nullString(r.Header.RequestingID),
			r.Header.Level.String(),
			text,
			encoded,
			r.ContentMode,
			encoding,
			r.External.AttachmentID,
			nullString(r.External.ParentRecordID),
			nullString(subject.WorkItem),
			nullInt64(subject.WorkID),
			nullInt64(subject.CaseNumber),
			nullString(subject.Datacenter),
			nullString(runID),
			now,
		)
		if err != nil {
			return 0, fmt.Errorf("%w: insert %s for attachment %s: %w", ErrStorage, r.FilePath, r.External.AttachmentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %w", ErrStorage, err)
	}
	return len(records), nil
}

// LoadRecords reads stored records in insertion order, decoding content.
// An empty attachmentID loads every record.
func LoadRecords(ctx context.Context, db *sql.DB, cfg config.Config, attachmentID string) ([]StoredRecord, error) {
	query := fmt.Sprintf(`
        SELECT id, file_path, step_name, step_family, report_date, report_id,
               worker_process_group_id, hostname, executor_kerberos_id, requesting_kerberos_id, header_match,
               content, content_encoded, content_mode, content_encoding,
               attachment_id, parent_record_id, work_item, work_id, case_number, datacenter,
               run_id, ingested_at
        FROM %s
    `, cfg.TableName)
	var args []any
	if attachmentID != "" {
		query += " WHERE attachment_id = ?"
		args = append(args, attachmentID)
	}
	query += " ORDER BY id;"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query records: %w", ErrStorage, err)
	}
	defer rows.Close()

	var out []StoredRecord
	for rows.Next() {
		var s StoredRecord
		var stepFamily, reportID, worker, host, exec, req sql.NullString
		var parentID, workItem, datacenter, runID sql.NullString
		var workID, caseNumber sql.NullInt64
		var headerMatch string
		var text sql.NullString
		var encoded []byte
		r := &s.Record
		if err := rows.Scan(
			&s.ID, &r.FilePath, &r.StepName, &stepFamily, &r.ReportDate, &reportID,
			&worker, &host, &exec, &req, &headerMatch,
			&text, &encoded, &r.ContentMode, &s.ContentEncoding,
			&r.External.AttachmentID, &parentID, &workItem, &workID, &caseNumber, &datacenter,
			&runID, &s.IngestedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scan record: %w", ErrStorage, err)
		}

		r.StepFamily = stepFamily.String
		r.ReportID = reportID.String
		r.Header = header.Fields{
			WorkerProcessGroupID: worker.String,
			Hostname:             host.String,
			ExecutorID:           exec.String,
			RequestingID:         req.String,
			Level:                parseLevel(headerMatch),
		}
		r.External.ParentRecordID = parentID.String
		r.External.Subject = record.Subject{
			WorkItem:   workItem.String,
			WorkID:     int64Ptr(workID),
			CaseNumber: int64Ptr(caseNumber),
			Datacenter: datacenter.String,
		}
		s.RunID = runID.String

		if s.ContentEncoding == config.EncodingIdentity {
			r.Content = text.String
		} else {
			content, err := DecodeContent(s.ContentEncoding, encoded)
			if err != nil {
				return nil, fmt.Errorf("%w: record %d: %w", ErrStorage, s.ID, err)
			}
			r.Content = content
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate records: %w", ErrStorage, err)
	}
	return out, nil
}

// CountRecords returns the number of stored records.
func CountRecords(ctx context.Context, db *sql.DB, cfg config.Config) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s;`, cfg.TableName)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count records: %w", ErrStorage, err)
	}
	return n, nil
}

// StepCount is one row of the per step family summary.
type StepCount struct {
	StepFamily  string
	Records     int64
	Attachments int64
	LatestDate  time.Time
}

// CountByStep summarises stored records per step family, largest first.
func CountByStep(ctx context.Context, db *sql.DB, cfg config.Config) ([]StepCount, error) {
	query := fmt.Sprintf(`
        SELECT COALESCE(step_family, step_name) AS family,
               COUNT(*), COUNT(DISTINCT attachment_id), MAX(report_date)
        FROM %s
        GROUP BY family
        ORDER BY COUNT(*) DESC, family;
    `, cfg.TableName)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: count by step: %w", ErrStorage, err)
	}
	defer rows.Close()

	var out []StepCount
	for rows.Next() {
		var c StepCount
		if err := rows.Scan(&c.StepFamily, &c.Records, &c.Attachments, &c.LatestDate); err != nil {
			return nil, fmt.Errorf("%w: scan step count: %w", ErrStorage, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate step counts: %w", ErrStorage, err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func encodingName(e string) string {
	if e == "" {
		return config.EncodingIdentity
	}
	return e
}

func parseLevel(s string) header.Level {
	switch s {
	case header.LevelStrict.String():
		return header.LevelStrict
	case header.LevelLenient.String():
		return header.LevelLenient
	default:
		return header.LevelNone
	}
}
