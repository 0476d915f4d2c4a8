package db

import (
	"bytes"
	"fmt"
	"io"

	"github.com/brensch/failurelogs/internal/config"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// EncodeContent converts log content into the stored BLOB form.
func EncodeContent(encoding, content string) ([]byte, error) {
	switch encoding {
	case config.EncodingIdentity, "":
		return []byte(content), nil
	case config.EncodingGzip:
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := io.WriteString(gz, content); err != nil {
			return nil, fmt.Errorf("gzip content: %w", err)
		}
		if err := gz.Close(); err != nil {
			return nil, fmt.Errorf("gzip content: %w", err)
		}
		return buf.Bytes(), nil
	case config.EncodingZstd:
		return zstdEncoder.EncodeAll([]byte(content), nil), nil
	default:
		return nil, fmt.Errorf("unknown content encoding %q", encoding)
	}
}

// DecodeContent reverses EncodeContent.
func DecodeContent(encoding string, data []byte) (string, error) {
	switch encoding {
	case config.EncodingIdentity, "":
		return string(data), nil
	case config.EncodingGzip:
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("gunzip content: %w", err)
		}
		defer gz.Close()
		out, err := io.ReadAll(gz)
		if err != nil {
			return "", fmt.Errorf("gunzip content: %w", err)
		}
		return string(out), nil
	case config.EncodingZstd:
		out, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return "", fmt.Errorf("zstd decode content: %w", err)
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("unknown content encoding %q", encoding)
	}
}
