package errcontext

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Separator is written between two disjoint windows.
const Separator = "\n--- ERROR CONTEXT SEPARATOR ---\n"

// DefaultRadius is the number of lines kept on each side of a match.
const DefaultRadius = 3

var errorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bERROR\b`),
	regexp.MustCompile(`(?i)\[ERROR\]`),
	regexp.MustCompile(`(?i)\bFATAL\b`),
	regexp.MustCompile(`(?i)\bFAILED\b`),
	regexp.MustCompile(`(?i)Refusing to execute`),
	regexp.MustCompile(`(?i)Unable to get`),
	regexp.MustCompile(`(?i)Unable to retrieve`),
	regexp.MustCompile(`(?i)Unable to start`),
	regexp.MustCompile(`(?i)connection error`),
	regexp.MustCompile(`(?i)maximum retries reached`),
	regexp.MustCompile(`(?i)Oracle not available`),
}

// Window is a half-open line range [Start, End).
type Window struct {
	Start int
	End   int
}

// IsErrorLine reports whether line carries any known error signature.
func IsErrorLine(line string) bool {
	for _, re := range errorPatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// Matches returns the indices of error lines in ascending order.
func Matches(lines []string) []int {
	var idx []int
	for i, line := range lines {
		if IsErrorLine(line) {
			idx = append(idx, i)
		}
	}
	return idx
}

// Windows builds one window per match index, clamped to [0, lineCount),
// and merges them.
func Windows(matches []int, lineCount, radius int) []Window {
	if radius < 0 {
		radius = 0
	}
	ws := make([]Window, 0, len(matches))
	for _, i := range matches {
		if i < 0 || i >= lineCount {
			continue
		}
		ws = append(ws, Window{
			Start: max(0, i-radius),
			End:   min(lineCount, i+radius+1),
		})
	}
	return Merge(ws)
}

// Merge sorts windows by start and collapses any window whose start is at
// or before the running window's end. The input slice is not modified.
func Merge(ws []Window) []Window {
	if len(ws) == 0 {
		return nil
	}
	sorted := slices.Clone(ws)
	slices.SortFunc(sorted, func(a, b Window) int {
		if a.Start != b.Start {
			return a.Start - b.Start
		}
		return a.End - b.End
	})

	merged := []Window{sorted[0]}
	for _, w := range sorted[1:] {
		last := &merged[len(merged)-1]
		if w.Start <= last.End {
			last.End = max(last.End, w.End)
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

// Render writes every line of each window followed by a newline, with
// Separator before every window after the first.
func Render(lines []string, ws []Window) string {
	var b strings.Builder
	for i, w := range ws {
		if i > 0 {
			b.WriteString(Separator)
		}
		for _, line := range lines[w.Start:w.End] {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Placeholder is the content stored for a log without any error line.
func Placeholder(lineCount int) string {
	return fmt.Sprintf("No error patterns detected in log file. Total lines: %d", lineCount)
}

// Extract returns the merged error context of lines, or Placeholder when no
// line matches.
func Extract(lines []string, radius int) string {
	ws := Windows(Matches(lines), len(lines), radius)
	if len(ws) == 0 {
		return Placeholder(len(lines))
	}
	return Render(lines, ws)
}

// Full renders every line; it is the content used in full mode.
func Full(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return Render(lines, []Window{{Start: 0, End: len(lines)}})
}
