package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"report.tar.gz", "report.tar.gz"},
		{"my report (1).zip", "my_report__1_.zip"},
		{"../../etc/passwd", "passwd"},
		{`C:\logs\bundle.tgz`, "bundle.tgz"},
		{".hidden.zip", "hidden.zip"},
		{"--opt.tar", "opt.tar"},
		{"", "unknown_file"},
		{"...", "unknown_file"},
		{"/", "unknown_file"},
	}

	for _, tt := range tests {
		got := SanitizeFilename(tt.input)
		if got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTrimSuffixFold(t *testing.T) {
	got, ok := TrimSuffixFold("Bundle.TAR.GZ", ".tar.gz")
	if !ok || got != "Bundle" {
		t.Fatalf("expected (Bundle, true), got (%q, %v)", got, ok)
	}
	got, ok = TrimSuffixFold("a.zip", ".tar.gz")
	if ok || got != "a.zip" {
		t.Fatalf("expected unchanged, got (%q, %v)", got, ok)
	}
}

func TestScanLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"trailing newline", "a\nb\n", []string{"a", "b"}},
		{"no trailing newline", "a\nb", []string{"a", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"bom", "\ufeffheader\nbody", []string{"header", "body"}},
		{"blank lines kept", "a\n\nb", []string{"a", "", "b"}},
		{"trailing blank line", "a\n\n", []string{"a", ""}},
		{"lone cr kept mid line", "a\rb\n", []string{"a\rb"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ScanLines(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d lines, got %d: %q", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("line %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestScanLines_LongLine(t *testing.T) {
	long := strings.Repeat("x", 3*1024*1024)
	got, err := ScanLines(strings.NewReader("before\n" + long + "\r\nafter"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[0] != "before" || got[1] != long || got[2] != "after" {
		t.Fatalf("unexpected lines: count=%d", len(got))
	}
}

func TestScanLines_InvalidUTF8Replaced(t *testing.T) {
	got, err := ScanLines(strings.NewReader("ok\xff\xfeok\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 line, got %d", len(got))
	}
	if !strings.Contains(got[0], "\uFFFD") {
		t.Fatalf("expected replacement character, got %q", got[0])
	}
}

func TestReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "step.log")
	if err := os.WriteFile(path, []byte("one\ntwo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	lines, err := ReadLines(path)
	if err != nil {
		t.Fatalf("ReadLines: %v", err)
	}
	if len(lines) != 2 || lines[1] != "two" {
		t.Fatalf("unexpected lines %q", lines)
	}

	if _, err := ReadLines(filepath.Join(t.TempDir(), "missing.log")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
