package selector

import (
	"fmt"
	"io/fs"
	"iter"
	"path/filepath"
	"strings"

	"github.com/brensch/failurelogs/internal/util"
)

// LogFile is one selected log inside an expanded archive tree.
type LogFile struct {
	Root      string // tree root the file was found under
	Path      string // full path on disk
	RelPath   string // slash-separated path relative to Root
	Name      string // base name
	ParentDir string // base name of the immediate parent directory
}

// Lines reads the file's line sequence.
func (f LogFile) Lines() ([]string, error) {
	return util.ReadLines(f.Path)
}

// Match reports whether a base name starts with step and ends with suffix,
// both compared case-insensitively.
func Match(name, step, suffix string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(lower, strings.ToLower(step)) &&
		strings.HasSuffix(lower, strings.ToLower(suffix))
}

// Select walks root once and yields every regular file accepted by Match.
// Walk errors are yielded with a zero LogFile; the walk then continues with
// the next entry. The sequence is single pass.
func Select(root, step, suffix string) iter.Seq2[LogFile, error] {
	return func(yield func(LogFile, error) bool) {
		stopped := false
		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if !yield(LogFile{}, fmt.Errorf("walk %s: %w", path, err)) {
					stopped = true
					return filepath.SkipAll
				}
				return nil
			}
			if !d.Type().IsRegular() || !Match(d.Name(), step, suffix) {
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = d.Name()
			}
			f := LogFile{
				Root:      root,
				Path:      path,
				RelPath:   filepath.ToSlash(rel),
				Name:      d.Name(),
				ParentDir: filepath.Base(filepath.Dir(path)),
			}
			if !yield(f, nil) {
				stopped = true
				return filepath.SkipAll
			}
			return nil
		})
		if walkErr != nil && !stopped {
			yield(LogFile{}, fmt.Errorf("walk %s: %w", root, walkErr))
		}
	}
}
