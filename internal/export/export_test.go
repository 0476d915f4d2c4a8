package export

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/brensch/failurelogs/internal/config"
	"github.com/brensch/failurelogs/internal/db"
	"github.com/brensch/failurelogs/internal/header"
	"github.com/brensch/failurelogs/internal/record"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteParquet(t *testing.T) {
	cfg := config.Default()
	cfg.ContentEncoding = config.EncodingGzip
	conn, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	ctx := context.Background()
	if err := db.InitializeSchema(ctx, conn, cfg); err != nil {
		t.Fatal(err)
	}

	caseNumber := int64(12)
	recs := []record.LogRecord{
		{
			FilePath:    "r_2024-06-01-153000_X/STEP_A_1.log",
			StepName:    "STEP_A_1",
			StepFamily:  "STEP_A_1",
			ReportDate:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			ReportID:    "X",
			Header:      header.Fields{WorkerProcessGroupID: "7", Hostname: "h1", ExecutorID: "u1", RequestingID: "u2", Level: header.LevelStrict},
			Content:     "ERROR: disk full\n",
			ContentMode: config.ContentModeErrorContext,
			External: record.ExternalContext{
				AttachmentID: "att-1",
				Subject:      record.Subject{CaseNumber: &caseNumber},
			},
		},
		{
			FilePath:    "r_2024-06-01-153000_X/STEP_A_2.log",
			StepName:    "STEP_A_2",
			ReportDate:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			Content:     "No error patterns detected in log file. Total lines: 3",
			ContentMode: config.ContentModeErrorContext,
			External:    record.ExternalContext{AttachmentID: "att-1"},
		},
	}
	if _, err := db.InsertRecords(ctx, conn, cfg, "run-1", recs); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "export.parquet")
	n, err := WriteParquet(ctx, discardLogger(), conn, cfg, out)
	if err != nil {
		t.Fatalf("WriteParquet: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows written, got %d", n)
	}

	fr, err := local.NewLocalFileReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(Row), 1)
	if err != nil {
		t.Fatalf("open parquet reader: %v", err)
	}
	defer pr.ReadStop()

	if pr.GetNumRows() != 2 {
		t.Fatalf("expected 2 rows in file, got %d", pr.GetNumRows())
	}
	rows := make([]Row, 2)
	if err := pr.Read(&rows); err != nil {
		t.Fatalf("read rows: %v", err)
	}

	first := rows[0]
	if first.Content != "ERROR: disk full\n" || first.AttachmentID != "att-1" || first.HeaderMatch != "strict" {
		t.Errorf("unexpected first row %+v", first)
	}
	if first.Hostname == nil || *first.Hostname != "h1" || first.CaseNumber == nil || *first.CaseNumber != 12 {
		t.Errorf("optional fields not written: %+v", first)
	}
	if first.ReportDate != daysSinceEpoch(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected report date %d", first.ReportDate)
	}
	if rows[1].Hostname != nil || rows[1].WorkID != nil || rows[1].HeaderMatch != "none" {
		t.Errorf("expected empty optional fields, got %+v", rows[1])
	}
}

func TestDaysSinceEpoch(t *testing.T) {
	if got := daysSinceEpoch(time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC)); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := daysSinceEpoch(time.Time{}); got != 0 {
		t.Fatalf("expected 0 for zero time, got %d", got)
	}
}

func TestBlobTarget(t *testing.T) {
	var empty BlobTarget
	if empty.Enabled() {
		t.Fatal("empty target should be disabled")
	}
	partial := BlobTarget{Account: "acct"}
	if !partial.Enabled() || partial.Validate() == nil {
		t.Fatal("partial target should be enabled and invalid")
	}

	full := BlobTarget{Account: "acct", AccessKey: "a2V5", Container: "exports", Prefix: "daily/"}
	if err := full.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if got := full.BlobName("/tmp/out/export.parquet"); got != "daily/export.parquet" {
		t.Fatalf("unexpected blob name %q", got)
	}
	if got := (BlobTarget{}).BlobName("export.parquet"); got != "export.parquet" {
		t.Fatalf("unexpected blob name %q", got)
	}
}

func TestUploadFile_RejectsBadTarget(t *testing.T) {
	ctx := context.Background()
	if _, err := UploadFile(ctx, discardLogger(), BlobTarget{Account: "acct"}, "x.parquet"); err == nil {
		t.Fatal("expected validation error")
	}
	bad := BlobTarget{Account: "acct", AccessKey: "not base64!!", Container: "c"}
	if _, err := UploadFile(ctx, discardLogger(), bad, "x.parquet"); err == nil {
		t.Fatal("expected credential error for non base64 key")
	}
}

func TestCopyEventsAndInspect(t *testing.T) {
	cfg := config.Default()
	conn, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	ctx := context.Background()
	if err := db.InitializeSchema(ctx, conn, cfg); err != nil {
		t.Fatal(err)
	}
	for _, ev := range []string{db.EventDiscovered, db.EventExtractStart, db.EventProcessEnd} {
		if err := db.LogEvent(ctx, conn, cfg, "att-1", "report.zip", ev, "run-1", "", nil); err != nil {
			t.Fatal(err)
		}
	}

	out := filepath.Join(t.TempDir(), "it's events.parquet")
	if err := CopyTableToParquet(ctx, discardLogger(), conn, cfg.EventTableName, out); err != nil {
		t.Fatalf("CopyTableToParquet: %v", err)
	}
	summary, err := InspectParquet(ctx, discardLogger(), conn, out)
	if err != nil {
		t.Fatalf("InspectParquet: %v", err)
	}
	if summary.Rows != 3 {
		t.Fatalf("expected 3 rows, got %d", summary.Rows)
	}
	found := false
	for _, c := range summary.Columns {
		if c.Name == "attachment_id" {
			found = true
		}
	}
	if !found {
		t.Fatalf("attachment_id column missing from %+v", summary.Columns)
	}

	if err := CopyTableToParquet(ctx, discardLogger(), conn, "no_such_table", filepath.Join(t.TempDir(), "x.parquet")); err == nil {
		t.Fatal("expected error for missing table")
	}
	if _, err := InspectParquet(ctx, discardLogger(), conn, filepath.Join(t.TempDir(), "missing.parquet")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestQuoting(t *testing.T) {
	if got := quoteIdent(`a"b`); got != `"a""b"` {
		t.Errorf("quoteIdent: %s", got)
	}
	if got := quotePath(`C:\o'k\f.parquet`); got != `'C:/o''k/f.parquet'` {
		t.Errorf("quotePath: %s", got)
	}
}
