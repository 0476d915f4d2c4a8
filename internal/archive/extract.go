package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Skipped records a member that was deliberately left out of the tree.
type Skipped struct {
	Name   string
	Reason string
}

// Tree is the result of expanding one archive. Files holds slash-separated
// paths relative to Root.
type Tree struct {
	Root    string
	Kind    Kind
	Files   []string
	Skipped []Skipped
}

const (
	reasonUnsafePath = "unsafe path"
	reasonTooLarge   = "exceeds max member size"
	reasonNotRegular = "not a regular file"

	reasonSizeMismatch = "larger than declared size"
)

// Expand writes the members of the archive in data under
// destDir/DirName(name). Members with absolute or traversing paths, members
// larger than maxMemberSize, and non-regular members are skipped without
// failing the archive. The caller owns destDir and is responsible for
// removing it.
func Expand(ctx context.Context, logger *slog.Logger, data []byte, name, destDir string, maxMemberSize int64) (*Tree, error) {
	kind, err := DetectKind(name)
	if err != nil {
		return nil, err
	}
	if maxMemberSize <= 0 {
		return nil, fmt.Errorf("%w: max member size must be positive", ErrExtraction)
	}

	root := filepath.Join(destDir, DirName(name))
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrExtraction, root, err)
	}

	l := logger.With(slog.String("archive", name), slog.String("kind", string(kind)))
	l.Debug("Expanding archive.", slog.Int("bytes", len(data)), slog.String("root", root))
	start := time.Now()

	x := &expander{
		tree:    &Tree{Root: root, Kind: kind},
		maxSize: maxMemberSize,
		logger:  l,
	}

	switch kind {
	case KindZip:
		err = x.expandZip(ctx, data)
	case KindTar:
		err = x.expandTar(ctx, bytes.NewReader(data))
	case KindTarGz:
		var gz *gzip.Reader
		gz, err = gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: open gzip stream: %v", ErrExtraction, err)
		}
		defer gz.Close()
		err = x.expandTar(ctx, gz)
	case KindTarZst:
		var zr *zstd.Decoder
		zr, err = zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: open zstd stream: %v", ErrExtraction, err)
		}
		defer zr.Close()
		err = x.expandTar(ctx, zr)
	case KindTarLz4:
		err = x.expandTar(ctx, lz4.NewReader(bytes.NewReader(data)))
	}
	if err != nil {
		l.Warn("Archive expansion failed.", "error", err)
		return x.tree, err
	}

	l.Info("Archive expanded.",
		slog.Int("files", len(x.tree.Files)),
		slog.Int("skipped", len(x.tree.Skipped)),
		slog.Duration("duration", time.Since(start).Round(time.Millisecond)))
	return x.tree, nil
}

type expander struct {
	tree    *Tree
	maxSize int64
	logger  *slog.Logger
}

func (x *expander) expandZip(ctx context.Context, data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && zr != nil) {
		return fmt.Errorf("%w: read zip: %v", ErrExtraction, err)
	}

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			continue
		}
		if !f.Mode().IsRegular() {
			x.skip(f.Name, reasonNotRegular)
			continue
		}
		if err := x.writeMember(f.Name, int64(f.UncompressedSize64), func() (io.ReadCloser, error) {
			return f.Open()
		}); err != nil {
			return err
		}
	}
	return nil
}

func (x *expander) expandTar(ctx context.Context, r io.Reader) error {
	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: read tar header: %v", ErrExtraction, err)
		}
		if hdr.Typeflag == tar.TypeDir {
			continue
		}
		if !hdr.FileInfo().Mode().IsRegular() {
			x.skip(hdr.Name, reasonNotRegular)
			continue
		}
		if err := x.writeMember(hdr.Name, hdr.Size, func() (io.ReadCloser, error) {
			return io.NopCloser(tr), nil
		}); err != nil {
			return err
		}
	}
}

// writeMember applies the path and size rules and copies one member to disk.
// Only I/O failures are returned; rule violations are recorded as skips.
func (x *expander) writeMember(name string, declaredSize int64, open func() (io.ReadCloser, error)) error {
	if UnsafeMemberPath(name) {
		x.skip(name, reasonUnsafePath)
		return nil
	}
	if declaredSize > x.maxSize {
		x.skip(name, reasonTooLarge)
		return nil
	}

	rel := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	target := filepath.Join(x.tree.Root, filepath.FromSlash(rel))
	if !Contained(x.tree.Root, target) {
		x.skip(name, reasonUnsafePath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: create dir for %s: %v", ErrExtraction, name, err)
	}
	rc, err := open()
	if err != nil {
		return fmt.Errorf("%w: open member %s: %v", ErrExtraction, name, err)
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		rc.Close()
		return fmt.Errorf("%w: create %s: %v", ErrExtraction, target, err)
	}

	n, copyErr := io.Copy(out, io.LimitReader(rc, x.maxSize+1))
	closeErr := errors.Join(out.Close(), rc.Close())
	// zip reports a stream longer than its header's size as ErrFormat.
	if errors.Is(copyErr, zip.ErrFormat) && closeErr == nil {
		os.Remove(target)
		x.skip(name, reasonSizeMismatch)
		return nil
	}
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(target)
		return fmt.Errorf("%w: write %s: %v", ErrExtraction, name, err)
	}
	if n > x.maxSize {
		os.Remove(target)
		x.skip(name, reasonTooLarge)
		return nil
	}

	x.tree.Files = append(x.tree.Files, rel)
	return nil
}

func (x *expander) skip(name, reason string) {
	x.logger.Debug("Skipping archive member.", slog.String("member", name), slog.String("reason", reason))
	x.tree.Skipped = append(x.tree.Skipped, Skipped{Name: name, Reason: reason})
}

// UnsafeMemberPath reports whether a declared member path is absolute
// (including Windows drive and UNC forms) or contains a ".." segment.
func UnsafeMemberPath(name string) bool {
	if strings.TrimSpace(name) == "" {
		return true
	}
	slashed := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(name) {
		return true
	}
	if len(slashed) >= 2 && slashed[1] == ':' && isASCIILetter(slashed[0]) {
		return true
	}
	for _, seg := range strings.Split(slashed, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// Contained reports whether target resolves to a path strictly inside root.
func Contained(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
