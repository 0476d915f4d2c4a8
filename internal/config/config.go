package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// Content selection strategies for the stored content column.
const (
	ContentModeErrorContext = "error-context"
	ContentModeFull         = "full"
)

// Encodings applied to the stored content column.
const (
	EncodingIdentity = "identity"
	EncodingGzip     = "gzip"
	EncodingZstd     = "zstd"
)

const (
	// DefaultMaxAttachmentSize bounds both whole attachments and single archive members.
	DefaultMaxAttachmentSize int64 = 50 * 1024 * 1024
	DefaultContextRadius           = 3
	DefaultTableName               = "failed_step_logs"
	DefaultEventTableName          = "failed_step_events"
	DefaultLogSuffix               = ".log"
	DefaultDbPath                  = "./failurelogs.duckdb"
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Config holds the settings shared by the extraction pipeline and the store.
// It is built once by the caller and passed by value into each component.
type Config struct {
	DbPath            string
	TableName         string
	EventTableName    string
	WorkDir           string // parent for per-attachment scratch directories; empty means os.TempDir()
	MaxAttachmentSize int64
	ContextRadius     int
	ContentMode       string
	ContentEncoding   string
	LogSuffix         string
}

// Default returns a Config populated with the standard limits and names.
func Default() Config {
	return Config{
		DbPath:            DefaultDbPath,
		TableName:         DefaultTableName,
		EventTableName:    DefaultEventTableName,
		MaxAttachmentSize: DefaultMaxAttachmentSize,
		ContextRadius:     DefaultContextRadius,
		ContentMode:       ContentModeErrorContext,
		ContentEncoding:   EncodingIdentity,
		LogSuffix:         DefaultLogSuffix,
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.DbPath == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	if !identifierRegex.MatchString(c.TableName) {
		errs = append(errs, fmt.Errorf("invalid table name %q", c.TableName))
	}
	if !identifierRegex.MatchString(c.EventTableName) {
		errs = append(errs, fmt.Errorf("invalid event table name %q", c.EventTableName))
	}
	if c.TableName != "" && c.TableName == c.EventTableName {
		errs = append(errs, errors.New("table name and event table name must differ"))
	}
	if c.MaxAttachmentSize <= 0 {
		errs = append(errs, fmt.Errorf("max attachment size must be positive, got %d", c.MaxAttachmentSize))
	}
	if c.ContextRadius < 0 {
		errs = append(errs, fmt.Errorf("context radius must not be negative, got %d", c.ContextRadius))
	}
	switch c.ContentMode {
	case ContentModeErrorContext, ContentModeFull:
	default:
		errs = append(errs, fmt.Errorf("unknown content mode %q (use %q or %q)", c.ContentMode, ContentModeErrorContext, ContentModeFull))
	}
	switch c.ContentEncoding {
	case EncodingIdentity, EncodingGzip, EncodingZstd:
	default:
		errs = append(errs, fmt.Errorf("unknown content encoding %q", c.ContentEncoding))
	}
	if c.LogSuffix == "" {
		errs = append(errs, errors.New("log suffix is required"))
	}
	return errors.Join(errs...)
}

// ScratchRoot returns the directory under which per-attachment working
// directories are created.
func (c Config) ScratchRoot() string {
	if c.WorkDir == "" {
		return os.TempDir()
	}
	return filepath.Clean(c.WorkDir)
}
