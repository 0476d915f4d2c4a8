package util

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// NewLogReader wraps r so that a leading UTF-8 BOM is dropped and invalid
// UTF-8 sequences are replaced with U+FFFD.
func NewLogReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// ScanLines reads every line from r. Line terminators (\n or \r\n) are
// stripped and a trailing newline does not produce an empty final line.
// Lines have no length limit.
func ScanLines(r io.Reader) ([]string, error) {
	br := bufio.NewReaderSize(NewLogReader(r), 64*1024)

	var lines []string
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			lines = append(lines, line)
		}
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return lines, fmt.Errorf("scan lines: %w", err)
		}
	}
}

// ReadLines opens path and returns its lines.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	lines, err := ScanLines(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}
