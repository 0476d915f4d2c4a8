package selector

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"STEP_A_HOST1.log", true},
		{"step_a_host1.LOG", true},
		{"Step_A.log", true},
		{"STEP_A_HOST1.log.1", false},
		{"OTHER_STEP_A.log", false},
		{"STEP_A_HOST1.txt", false},
	}
	for _, tt := range tests {
		if got := Match(tt.name, "step_a", ".log"); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSelect_VisitsEveryFileOnce(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "report_2024-06-01-153000_AB12", "STEP_A_HOST1.log"), "a")
	writeFile(t, filepath.Join(root, "report_2024-06-01-153000_AB12", "STEP_A_HOST2.log"), "b")
	writeFile(t, filepath.Join(root, "report_2024-06-01-153000_AB12", "STEP_B_HOST1.log"), "c")
	writeFile(t, filepath.Join(root, "nested", "deeper", "step_a_host3.LOG"), "d")
	writeFile(t, filepath.Join(root, "STEP_A.txt"), "e")

	var got []string
	for f, err := range Select(root, "STEP_A", ".log") {
		if err != nil {
			t.Fatalf("unexpected walk error: %v", err)
		}
		got = append(got, f.RelPath)
	}
	sort.Strings(got)

	want := []string{
		"nested/deeper/step_a_host3.LOG",
		"report_2024-06-01-153000_AB12/STEP_A_HOST1.log",
		"report_2024-06-01-153000_AB12/STEP_A_HOST2.log",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("file %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSelect_PopulatesLogFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "report_2024-06-01-153000_AB12", "STEP_A_HOST1.log")
	writeFile(t, path, "first\nsecond\n")

	var files []LogFile
	for f, err := range Select(root, "step_a", ".log") {
		if err != nil {
			t.Fatal(err)
		}
		files = append(files, f)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	f := files[0]
	if f.Path != path || f.Name != "STEP_A_HOST1.log" || f.ParentDir != "report_2024-06-01-153000_AB12" || f.Root != root {
		t.Fatalf("unexpected LogFile %+v", f)
	}
	lines, err := f.Lines()
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 || lines[0] != "first" {
		t.Fatalf("unexpected lines %q", lines)
	}
}

func TestSelect_EarlyBreak(t *testing.T) {
	root := t.TempDir()
	for _, n := range []string{"s_1.log", "s_2.log", "s_3.log"} {
		writeFile(t, filepath.Join(root, n), "x")
	}
	count := 0
	for range Select(root, "s_", ".log") {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("expected one iteration, got %d", count)
	}
}

func TestSelect_MissingRoot(t *testing.T) {
	var errs int
	for _, err := range Select(filepath.Join(t.TempDir(), "absent"), "s", ".log") {
		if err != nil {
			errs++
		}
	}
	if errs == 0 {
		t.Fatal("expected a walk error for a missing root")
	}
}
