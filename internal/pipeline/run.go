package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/brensch/failurelogs/internal/db"
	"github.com/brensch/failurelogs/internal/source"
)

// Summary counts the outcomes of a run.
type Summary struct {
	RunID          string
	Total          int // attachments offered
	Processed      int // attachments that passed the gate and were attempted
	Skipped        int // attachments skipped by the gate or holding no matching logs
	Succeeded      int
	Failed         int
	SuccessfulLogs int
	FailedLogs     int
	Duration       time.Duration
	Err            error // joined per attachment errors
}

func (s *Summary) add(res AttachmentResult) {
	switch res.Status {
	case StatusSuccess:
		s.Succeeded++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
	s.SuccessfulLogs += res.LogsProcessed
	s.FailedLogs += res.LogsFailed
	if res.Err != nil && !errors.Is(res.Err, ErrNoMatchingLogFiles) {
		s.Err = errors.Join(s.Err, fmt.Errorf("attachment %s: %w", res.AttachmentID, res.Err))
	}
}

// Print writes the final statistics block.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintln(w, "Processing complete!")
	fmt.Fprintf(w, "Run ID: %s\n", s.RunID)
	fmt.Fprintf(w, "Total attachments: %d\n", s.Total)
	fmt.Fprintf(w, "Processed: %d\n", s.Processed)
	fmt.Fprintf(w, "Skipped: %d\n", s.Skipped)
	fmt.Fprintf(w, "Succeeded: %d\n", s.Succeeded)
	fmt.Fprintf(w, "Failed: %d\n", s.Failed)
	fmt.Fprintf(w, "Successful logs: %d\n", s.SuccessfulLogs)
	fmt.Fprintf(w, "Failed logs: %d\n", s.FailedLogs)
	fmt.Fprintf(w, "Duration: %s\n", s.Duration.Round(time.Millisecond))
}

// Run processes refs sequentially, fetching bytes only for attachments that
// pass the idempotency gate. No single attachment failure stops the run;
// only context cancellation does.
func (p *Pipeline) Run(ctx context.Context, refs []source.AttachmentRef, fetcher source.Fetcher) Summary {
	start := time.Now()
	sum := Summary{RunID: p.runID, Total: len(refs)}
	p.logger.Info("Starting ingest run.", slog.Int("attachments", len(refs)))

	for i, ref := range refs {
		select {
		case <-ctx.Done():
			p.logger.Warn("Run cancelled.", "error", ctx.Err())
			sum.Err = errors.Join(sum.Err, ctx.Err())
			sum.Duration = time.Since(start)
			return sum
		default:
		}

		l := p.attachmentLogger(ref).With(slog.Int("attachment_num", i+1), slog.Int("total_attachments", len(refs)))
		p.event(ctx, l, ref, db.EventDiscovered, "", nil)

		if res, done := p.gate(ctx, l, ref); done {
			sum.add(res)
			continue
		}
		sum.Processed++

		if ref.DeclaredSize > p.cfg.MaxAttachmentSize {
			err := fmt.Errorf("%w: declared %d bytes > %d", ErrAttachmentTooLarge, ref.DeclaredSize, p.cfg.MaxAttachmentSize)
			l.Warn("Attachment too large, not fetching.", "error", err)
			p.event(ctx, l, ref, db.EventError, err.Error(), nil)
			sum.add(p.failed(ref, err))
			continue
		}

		fetchStart := time.Now()
		p.event(ctx, l, ref, db.EventFetchStart, "", nil)
		data, err := fetcher.Fetch(ctx, ref)
		fetchDuration := time.Since(fetchStart)
		if err != nil {
			l.Error("Failed to fetch attachment.", "error", err)
			p.event(ctx, l, ref, db.EventError, fmt.Sprintf("fetch failed: %v", err), &fetchDuration)
			sum.add(p.failed(ref, err))
			continue
		}
		p.event(ctx, l, ref, db.EventFetchEnd, fmt.Sprintf("%d bytes", len(data)), &fetchDuration)

		sum.add(p.process(ctx, l, ref, data))
	}

	sum.Duration = time.Since(start)
	p.logger.Info("Ingest run complete.",
		slog.Int("total", sum.Total),
		slog.Int("processed", sum.Processed),
		slog.Int("skipped", sum.Skipped),
		slog.Int("failed", sum.Failed),
		slog.Int("successful_logs", sum.SuccessfulLogs),
		slog.Int("failed_logs", sum.FailedLogs),
		slog.Duration("duration", sum.Duration.Round(time.Millisecond)))
	return sum
}
