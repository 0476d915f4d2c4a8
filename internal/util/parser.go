package util

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)
	leadingDotsDashes   = regexp.MustCompile(`^[.-]+`)
)

// SanitizeFilename reduces name to a safe base name: directories are
// dropped, characters outside [A-Za-z0-9_.-] become '_', and leading dots
// or dashes are removed. An empty result becomes "unknown_file".
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)
	if name == "." || name == "/" {
		name = ""
	}
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = leadingDotsDashes.ReplaceAllString(name, "")
	if name == "" {
		return "unknown_file"
	}
	return name
}

// TrimSuffixFold removes suffix from s when s ends with it, ignoring case.
func TrimSuffixFold(s, suffix string) (string, bool) {
	if len(s) < len(suffix) || !strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		return s, false
	}
	return s[:len(s)-len(suffix)], true
}
