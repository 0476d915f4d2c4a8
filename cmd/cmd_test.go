package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeAttachment(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(w, body); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out.String()
}

func TestIngestStateExport(t *testing.T) {
	dir := t.TempDir()
	dbFile := filepath.Join(dir, "state", "logs.duckdb")
	attachments := filepath.Join(dir, "attachments")

	writeAttachment(t, filepath.Join(attachments, "00P001", "report.zip"), map[string]string{
		"report_2024-06-01-153000_AB12/STEP_A_HOST1.log": "Worker Process Group ID: 7, Hostname: h1, Executor Kerberos ID: u1, Requesting Kerberos ID: u2\nok\nERROR: disk full\nbye\n",
	})
	manifest := filepath.Join(dir, "query.json")
	err := os.WriteFile(manifest, []byte(`{"totalSize":1,"records":[{"Id":"a0X001","Subject__c":"W-5 Case: 9",
		"Attachments":{"records":[{"Id":"00P001","Name":"report.zip","BodyLength":100}]}}]}`), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	common := []string{"--db-path", dbFile, "--work-dir", filepath.Join(dir, "work"), "--log-level", "error"}

	out := execute(t, append([]string{"ingest", "--manifest", manifest, "--step", "STEP_A", "--attachments", attachments}, common...)...)
	if !strings.Contains(out, "Successful logs: 1") {
		t.Fatalf("unexpected ingest output:\n%s", out)
	}

	out = execute(t, append([]string{"ingest", "--manifest", manifest, "--step", "STEP_A", "--attachments", attachments}, common...)...)
	if !strings.Contains(out, "Skipped: 1") || !strings.Contains(out, "Successful logs: 0") {
		t.Fatalf("second ingest should skip:\n%s", out)
	}

	out = execute(t, append([]string{"state", "--summary", "--attachment", "00P001"}, common...)...)
	if !strings.Contains(out, "skip_process") || !strings.Contains(out, "STEP_A_HOST1") || !strings.Contains(out, "records stored: true") {
		t.Fatalf("unexpected state output:\n%s", out)
	}

	parquetPath := filepath.Join(dir, "out", "export.parquet")
	eventsPath := filepath.Join(dir, "out", "events.parquet")
	out = execute(t, append([]string{"export", "--out", parquetPath, "--events-out", eventsPath}, common...)...)
	if !strings.Contains(out, "Exported 1 records") || !strings.Contains(out, "Exported event log") {
		t.Fatalf("unexpected export output:\n%s", out)
	}
	if _, err := os.Stat(parquetPath); err != nil {
		t.Fatalf("export file missing: %v", err)
	}

	out = execute(t, append([]string{"inspect", parquetPath, eventsPath}, common...)...)
	if !strings.Contains(out, "Rows: 1") || !strings.Contains(out, "step_family") || !strings.Contains(out, "event_timestamp") {
		t.Fatalf("unexpected inspect output:\n%s", out)
	}
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		if _, err := newLogger(level, "json", "stdout"); err != nil {
			t.Errorf("newLogger(%q): %v", level, err)
		}
	}
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := newLogger("info", "text", path)
	if err != nil {
		t.Fatal(err)
	}
	l.Info("hello")
	logFile.Close()
	logFile = nil
	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), "hello") {
		t.Fatalf("expected log line in file, got %q %v", data, err)
	}
	if _, err := newLogger("info", "text", filepath.Join(t.TempDir(), "missing", "x.log")); err == nil {
		t.Fatal("expected error for unwritable log path")
	}
}
