package export

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/brensch/failurelogs/internal/config"
	"github.com/brensch/failurelogs/internal/db"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// Row is the Parquet layout of one stored log record. Content is written
// decoded, whatever encoding the store used.
type Row struct {
	ID                   int64   `parquet:"name=id, type=INT64"`
	FilePath             string  `parquet:"name=file_path, type=BYTE_ARRAY, convertedtype=UTF8"`
	StepName             string  `parquet:"name=step_name, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	StepFamily           string  `parquet:"name=step_family, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ReportDate           int32   `parquet:"name=report_date, type=INT32, convertedtype=DATE"`
	ReportID             string  `parquet:"name=report_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	WorkerProcessGroupID *string `parquet:"name=worker_process_group_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Hostname             *string `parquet:"name=hostname, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	ExecutorID           *string `parquet:"name=executor_kerberos_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	RequestingID         *string `parquet:"name=requesting_kerberos_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	HeaderMatch          string  `parquet:"name=header_match, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Content              string  `parquet:"name=content, type=BYTE_ARRAY, convertedtype=UTF8"`
	ContentMode          string  `parquet:"name=content_mode, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	AttachmentID         string  `parquet:"name=attachment_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	ParentRecordID       *string `parquet:"name=parent_record_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	WorkItem             *string `parquet:"name=work_item, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	WorkID               *int64  `parquet:"name=work_id, type=INT64, repetitiontype=OPTIONAL"`
	CaseNumber           *int64  `parquet:"name=case_number, type=INT64, repetitiontype=OPTIONAL"`
	Datacenter           *string `parquet:"name=datacenter, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	RunID                *string `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	IngestedAt           int64   `parquet:"name=ingested_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

// ToRow converts a stored record into its Parquet row.
func ToRow(s db.StoredRecord) Row {
	r := s.Record
	return Row{
		ID:                   s.ID,
		FilePath:             r.FilePath,
		StepName:             r.StepName,
		StepFamily:           r.StepFamily,
		ReportDate:           daysSinceEpoch(r.ReportDate),
		ReportID:             r.ReportID,
		WorkerProcessGroupID: optString(r.Header.WorkerProcessGroupID),
		Hostname:             optString(r.Header.Hostname),
		ExecutorID:           optString(r.Header.ExecutorID),
		RequestingID:         optString(r.Header.RequestingID),
		HeaderMatch:          r.Header.Level.String(),
		Content:              r.Content,
		ContentMode:          r.ContentMode,
		AttachmentID:         r.External.AttachmentID,
		ParentRecordID:       optString(r.External.ParentRecordID),
		WorkItem:             optString(r.External.Subject.WorkItem),
		WorkID:               r.External.Subject.WorkID,
		CaseNumber:           r.External.Subject.CaseNumber,
		Datacenter:           optString(r.External.Subject.Datacenter),
		RunID:                optString(s.RunID),
		IngestedAt:           s.IngestedAt.UnixMilli(),
	}
}

// WriteParquet writes every stored record to a SNAPPY compressed Parquet
// file at path and returns the number of rows written.
func WriteParquet(ctx context.Context, logger *slog.Logger, conn *sql.DB, cfg config.Config, path string) (int, error) {
	l := logger.With(slog.String("output", path))
	start := time.Now()

	records, err := db.LoadRecords(ctx, conn, cfg, "")
	if err != nil {
		return 0, fmt.Errorf("load records: %w", err)
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return 0, fmt.Errorf("create parquet file %s: %w", path, err)
	}
	pw, err := writer.NewParquetWriter(fw, new(Row), 4)
	if err != nil {
		fw.Close()
		return 0, fmt.Errorf("create parquet writer %s: %w", path, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, s := range records {
		if err := ctx.Err(); err != nil {
			pw.WriteStop()
			fw.Close()
			return i, err
		}
		if err := pw.Write(ToRow(s)); err != nil {
			pw.WriteStop()
			fw.Close()
			return i, fmt.Errorf("write row %d: %w", s.ID, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return len(records), fmt.Errorf("finalize parquet %s: %w", path, err)
	}
	if err := fw.Close(); err != nil {
		return len(records), fmt.Errorf("close parquet %s: %w", path, err)
	}

	l.Info("Exported records to parquet.", slog.Int("rows", len(records)), slog.Duration("duration", time.Since(start).Round(time.Millisecond)))
	return len(records), nil
}

func daysSinceEpoch(t time.Time) int32 {
	if t.IsZero() {
		return 0
	}
	y, m, d := t.Date()
	return int32(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
