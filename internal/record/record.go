package record

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/brensch/failurelogs/internal/header"
	"github.com/brensch/failurelogs/internal/selector"
	"github.com/brensch/failurelogs/internal/util"
)

// ErrUnderivableDate is returned when a log's parent directory does not
// carry a report timestamp.
var ErrUnderivableDate = errors.New("report date cannot be derived")

// Report directories end in "<YYYY-MM-DD-HHMMSS>_<report id>".
var reportDirRegex = regexp.MustCompile(`(\d{4}-\d{2}-\d{2}-\d{6})_([A-Za-z0-9]+)$`)

// ExternalContext identifies where a log came from in the CRM.
type ExternalContext struct {
	AttachmentID   string
	ParentRecordID string
	Subject        Subject
}

// LogRecord is one stored row. It is not modified after Assemble.
type LogRecord struct {
	FilePath    string // slash-separated, relative to the expanded tree root
	StepName    string
	StepFamily  string
	ReportDate  time.Time
	ReportID    string
	Header      header.Fields
	Content     string
	ContentMode string
	External    ExternalContext
}

// Input bundles everything Assemble combines into a record.
type Input struct {
	File        selector.LogFile
	LogSuffix   string
	Header      header.Fields
	Content     string
	ContentMode string
	External    ExternalContext
}

// ReportDate derives the report date and report id from a directory name.
func ReportDate(dirName string) (time.Time, string, error) {
	m := reportDirRegex.FindStringSubmatch(dirName)
	if m == nil {
		return time.Time{}, "", fmt.Errorf("%w: directory %q", ErrUnderivableDate, dirName)
	}
	date, err := time.Parse(time.DateOnly, m[1][:10])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: directory %q: %v", ErrUnderivableDate, dirName, err)
	}
	return date, m[2], nil
}

// StepName is the log's base name with the log suffix removed.
func StepName(fileName, suffix string) string {
	name, _ := util.TrimSuffixFold(fileName, suffix)
	return name
}

// Assemble builds the record for one selected log file.
func Assemble(in Input) (LogRecord, error) {
	date, reportID, err := ReportDate(in.File.ParentDir)
	if err != nil {
		return LogRecord{}, fmt.Errorf("assemble %s: %w", in.File.RelPath, err)
	}
	step := StepName(in.File.Name, in.LogSuffix)
	return LogRecord{
		FilePath:    in.File.RelPath,
		StepName:    step,
		StepFamily:  CleanStepName(step),
		ReportDate:  date,
		ReportID:    reportID,
		Header:      in.Header,
		Content:     in.Content,
		ContentMode: in.ContentMode,
		External:    in.External,
	}, nil
}
