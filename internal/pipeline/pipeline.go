package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brensch/failurelogs/internal/archive"
	"github.com/brensch/failurelogs/internal/config"
	"github.com/brensch/failurelogs/internal/db"
	"github.com/brensch/failurelogs/internal/errcontext"
	"github.com/brensch/failurelogs/internal/header"
	"github.com/brensch/failurelogs/internal/record"
	"github.com/brensch/failurelogs/internal/selector"
	"github.com/brensch/failurelogs/internal/source"
	"github.com/brensch/failurelogs/internal/util"
	"github.com/google/uuid"
)

var (
	// ErrNoMatchingLogFiles means an archive held no log for the requested step.
	ErrNoMatchingLogFiles = errors.New("no matching log files")
	// ErrAttachmentTooLarge means an attachment exceeded the configured size before extraction.
	ErrAttachmentTooLarge = errors.New("attachment exceeds max size")
)

// Status is the outcome of one attachment.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
)

// AttachmentResult describes what happened to one attachment.
type AttachmentResult struct {
	AttachmentID  string
	Status        Status
	Message       string
	LogsProcessed int
	LogsFailed    int
	Err           error // nil for SUCCESS and for gate skips
}

// Pipeline runs attachments through extraction, parsing and storage.
// It is not safe for concurrent use; attachments are handled one at a time.
type Pipeline struct {
	cfg    config.Config
	db     *sql.DB
	logger *slog.Logger
	runID  string
}

// New validates cfg and returns a Pipeline with a fresh run id.
func New(cfg config.Config, dbConn *sql.DB, logger *slog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if dbConn == nil {
		return nil, errors.New("database connection is required")
	}
	runID := uuid.NewString()
	return &Pipeline{
		cfg:    cfg,
		db:     dbConn,
		logger: logger.With(slog.String("run_id", runID)),
		runID:  runID,
	}, nil
}

// RunID identifies this pipeline's events and records.
func (p *Pipeline) RunID() string { return p.runID }

// ProcessAttachment ingests one attachment whose bytes are already in hand.
// The idempotency gate is consulted first; an attachment with stored records
// is skipped without any extraction.
func (p *Pipeline) ProcessAttachment(ctx context.Context, ref source.AttachmentRef, data []byte) AttachmentResult {
	l := p.attachmentLogger(ref)
	if res, done := p.gate(ctx, l, ref); done {
		return res
	}
	return p.process(ctx, l, ref, data)
}

func (p *Pipeline) attachmentLogger(ref source.AttachmentRef) *slog.Logger {
	return p.logger.With(
		slog.String("attachment_id", ref.AttachmentID),
		slog.String("attachment_name", ref.AttachmentName),
		slog.String("step", ref.StepName),
	)
}

// gate returns a finished result when the attachment must not be processed.
func (p *Pipeline) gate(ctx context.Context, l *slog.Logger, ref source.AttachmentRef) (AttachmentResult, bool) {
	processed, err := db.AttachmentProcessed(ctx, p.db, p.cfg, ref.AttachmentID)
	if err != nil {
		l.Error("Failed idempotency check.", "error", err)
		p.event(ctx, l, ref, db.EventError, fmt.Sprintf("idempotency check failed: %v", err), nil)
		return p.failed(ref, err), true
	}
	if processed {
		l.Info("Skipping attachment, already processed.")
		p.event(ctx, l, ref, db.EventSkipProcess, "Already processed", nil)
		return AttachmentResult{AttachmentID: ref.AttachmentID, Status: StatusSkipped, Message: "already processed"}, true
	}
	return AttachmentResult{}, false
}

func (p *Pipeline) process(ctx context.Context, l *slog.Logger, ref source.AttachmentRef, data []byte) AttachmentResult {
	start := time.Now()
	if int64(len(data)) > p.cfg.MaxAttachmentSize {
		err := fmt.Errorf("%w: %d bytes > %d", ErrAttachmentTooLarge, len(data), p.cfg.MaxAttachmentSize)
		l.Warn("Attachment too large.", "error", err)
		p.event(ctx, l, ref, db.EventError, err.Error(), nil)
		return p.failed(ref, err)
	}

	workDir, err := os.MkdirTemp(p.cfg.ScratchRoot(), "failurelogs_"+util.SanitizeFilename(ref.AttachmentID)+"_")
	if err != nil {
		err = fmt.Errorf("%w: create work dir: %v", archive.ErrExtraction, err)
		l.Error("Failed to create work dir.", "error", err)
		p.event(ctx, l, ref, db.EventError, err.Error(), nil)
		return p.failed(ref, err)
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			l.Debug("Failed to remove work dir.", "dir", workDir, "error", rmErr)
		}
	}()

	p.event(ctx, l, ref, db.EventExtractStart, "", nil)
	tree, err := archive.Expand(ctx, l, data, ref.AttachmentName, workDir, p.cfg.MaxAttachmentSize)
	extractDuration := time.Since(start)
	if err != nil {
		l.Error("Failed to extract attachment.", "error", err)
		p.event(ctx, l, ref, db.EventError, fmt.Sprintf("extract failed: %v", err), &extractDuration)
		return p.failed(ref, err)
	}
	p.event(ctx, l, ref, db.EventExtractEnd, fmt.Sprintf("%d files, %d skipped", len(tree.Files), len(tree.Skipped)), &extractDuration)

	return p.storeTree(ctx, l, ref, tree, start)
}

// storeTree builds and commits the records of an expanded archive.
func (p *Pipeline) storeTree(ctx context.Context, l *slog.Logger, ref source.AttachmentRef, tree *archive.Tree, start time.Time) AttachmentResult {
	records, logsFailed, fileErrs := p.buildRecords(ctx, l, ref, tree)
	duration := time.Since(start)

	if len(records) == 0 && logsFailed == 0 && fileErrs != nil {
		l.Error("Failed to select log files.", "error", fileErrs)
		p.event(ctx, l, ref, db.EventError, fmt.Sprintf("select failed: %v", fileErrs), &duration)
		return p.failed(ref, fileErrs)
	}
	if len(records) == 0 && logsFailed == 0 {
		err := fmt.Errorf("%w: step %q in %s", ErrNoMatchingLogFiles, ref.StepName, ref.AttachmentName)
		l.Warn("No log files found for step.", "error", err)
		p.event(ctx, l, ref, db.EventProcessEnd, "No matching log files", &duration)
		return AttachmentResult{AttachmentID: ref.AttachmentID, Status: StatusSkipped, Message: err.Error(), Err: err}
	}

	inserted, err := db.InsertRecords(ctx, p.db, p.cfg, p.runID, records)
	duration = time.Since(start)
	if err != nil {
		l.Error("Failed to store records, batch rolled back.", "error", err, slog.Int("records", len(records)))
		p.event(ctx, l, ref, db.EventError, fmt.Sprintf("store failed: %v", err), &duration)
		return AttachmentResult{
			AttachmentID: ref.AttachmentID,
			Status:       StatusFailed,
			Message:      err.Error(),
			LogsFailed:   logsFailed + len(records),
			Err:          errors.Join(fileErrs, err),
		}
	}

	res := AttachmentResult{
		AttachmentID:  ref.AttachmentID,
		Status:        StatusSuccess,
		Message:       fmt.Sprintf("%d logs stored, %d failed", inserted, logsFailed),
		LogsProcessed: inserted,
		LogsFailed:    logsFailed,
		Err:           fileErrs,
	}
	if inserted == 0 {
		res.Status = StatusFailed
		res.Message = fmt.Sprintf("no records assembled, %d logs failed", logsFailed)
	}
	l.Info("Attachment processed.",
		slog.String("status", string(res.Status)),
		slog.Int("logs_processed", res.LogsProcessed),
		slog.Int("logs_failed", res.LogsFailed),
		slog.Duration("duration", duration.Round(time.Millisecond)))
	p.event(ctx, l, ref, db.EventProcessEnd, res.Message, &duration)
	return res
}

// buildRecords assembles one record per selected log. Per file failures are
// counted and joined; they never abort the attachment.
func (p *Pipeline) buildRecords(ctx context.Context, l *slog.Logger, ref source.AttachmentRef, tree *archive.Tree) ([]record.LogRecord, int, error) {
	ext := record.ExternalContext{
		AttachmentID:   ref.AttachmentID,
		ParentRecordID: ref.ParentRecordID,
		Subject:        record.ParseSubject(ref.Subject),
	}

	var records []record.LogRecord
	var failed int
	var errs error
	for f, err := range selector.Select(tree.Root, ref.StepName, p.cfg.LogSuffix) {
		if ctx.Err() != nil {
			errs = errors.Join(errs, ctx.Err())
			break
		}
		if err != nil {
			l.Warn("Error walking extracted tree.", "error", err)
			errs = errors.Join(errs, err)
			continue
		}
		fl := l.With(slog.String("log_file", f.RelPath))

		rec, err := p.buildRecord(f, ext)
		if err != nil {
			fl.Warn("Failed to process log file.", "error", err)
			errs = errors.Join(errs, err)
			failed++
			continue
		}
		fl.Debug("Assembled log record.", slog.String("header_match", rec.Header.Level.String()), slog.Int("content_bytes", len(rec.Content)))
		records = append(records, rec)
	}
	return records, failed, errs
}

func (p *Pipeline) buildRecord(f selector.LogFile, ext record.ExternalContext) (record.LogRecord, error) {
	lines, err := f.Lines()
	if err != nil {
		return record.LogRecord{}, err
	}
	var content string
	switch p.cfg.ContentMode {
	case config.ContentModeFull:
		content = errcontext.Full(lines)
	default:
		content = errcontext.Extract(lines, p.cfg.ContextRadius)
	}
	return record.Assemble(record.Input{
		File:        f,
		LogSuffix:   p.cfg.LogSuffix,
		Header:      header.ParseLines(lines),
		Content:     content,
		ContentMode: p.cfg.ContentMode,
		External:    ext,
	})
}

func (p *Pipeline) failed(ref source.AttachmentRef, err error) AttachmentResult {
	return AttachmentResult{
		AttachmentID: ref.AttachmentID,
		Status:       StatusFailed,
		Message:      err.Error(),
		LogsFailed:   1,
		Err:          err,
	}
}

func (p *Pipeline) event(ctx context.Context, l *slog.Logger, ref source.AttachmentRef, event, message string, duration *time.Duration) {
	if err := db.LogEvent(ctx, p.db, p.cfg, ref.AttachmentID, ref.AttachmentName, event, p.runID, message, duration); err != nil {
		l.Warn("Failed to record event.", "event", event, "error", err)
	}
}
