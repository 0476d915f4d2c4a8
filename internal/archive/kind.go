package archive

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/brensch/failurelogs/internal/util"
)

// Kind identifies an archive container format.
type Kind string

const (
	KindTar    Kind = "tar"
	KindTarGz  Kind = "tar.gz"
	KindZip    Kind = "zip"
	KindTarZst Kind = "tar.zst"
	KindTarLz4 Kind = "tar.lz4"
)

var (
	// ErrUnsupportedKind is returned when an attachment name carries no recognized archive suffix.
	ErrUnsupportedKind = errors.New("unsupported archive kind")
	// ErrExtraction wraps corrupt archives and I/O failures during expansion.
	ErrExtraction = errors.New("archive extraction failed")
)

// suffixes is checked in order; longer suffixes come first so ".tar.gz"
// wins over a bare ".gz" style match.
var suffixes = []struct {
	suffix string
	kind   Kind
}{
	{".tar.gz", KindTarGz},
	{".tgz", KindTarGz},
	{".tar.zst", KindTarZst},
	{".tzst", KindTarZst},
	{".tar.lz4", KindTarLz4},
	{".zip", KindZip},
	{".tar", KindTar},
}

// DetectKind infers the archive kind from the attachment's file name.
func DetectKind(name string) (Kind, error) {
	k, _, ok := matchSuffix(filepath.Base(name))
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, name)
	}
	return k, nil
}

func matchSuffix(base string) (Kind, string, bool) {
	for _, s := range suffixes {
		if _, ok := util.TrimSuffixFold(base, s.suffix); ok {
			return s.kind, s.suffix, true
		}
	}
	return "", "", false
}

// DirName derives the extraction subdirectory for an attachment: the
// sanitized base name with its archive suffix removed, plus one more
// ".tar" strip for compressed tarballs named like "x.tar.gz".
func DirName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if _, suffix, ok := matchSuffix(base); ok {
		base, _ = util.TrimSuffixFold(base, suffix)
	} else {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	base, _ = util.TrimSuffixFold(base, ".tar")
	return util.SanitizeFilename(base)
}
