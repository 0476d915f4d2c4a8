package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/brensch/failurelogs/internal/util"
	"github.com/valyala/fastjson"
)

// ErrInvalidStepName is returned for step names outside [A-Za-z0-9_-].
var ErrInvalidStepName = errors.New("invalid step name")

var stepNameRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// AttachmentRef identifies one attachment to ingest.
type AttachmentRef struct {
	ParentRecordID string
	AttachmentID   string
	AttachmentName string
	StepName       string
	Subject        string
	ContentType    string
	DeclaredSize   int64 // 0 when unknown
}

// ValidateStepName rejects names that could not have come from a step identifier.
func ValidateStepName(step string) error {
	if !stepNameRegex.MatchString(step) {
		return fmt.Errorf("%w: %q", ErrInvalidStepName, step)
	}
	return nil
}

// subjectKeys are checked in order for the work item subject line.
var subjectKeys = []string{"Subject__c", "WorkId_and_Subject__c", "Subject"}

// ParseQueryResult reads a saved CRM query result:
//
//	{"totalSize": 1, "records": [{"Id": "...", "Subject__c": "...",
//	  "Attachments": {"records": [{"Id": "...", "Name": "...", "BodyLength": 123}]}}]}
//
// Records without attachments are ignored. Malformed entries are skipped and
// reported in the joined error alongside the refs that did parse.
func ParseQueryResult(data []byte, step string) ([]AttachmentRef, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse query result: %w", err)
	}
	if v.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("parse query result: expected object, got %s", v.Type())
	}

	records := v.GetArray("records")
	var refs []AttachmentRef
	var errs []error
	for i, rec := range records {
		parentID := string(rec.GetStringBytes("Id"))
		if parentID == "" {
			errs = append(errs, fmt.Errorf("record %d: missing Id", i))
			continue
		}
		subject := ""
		for _, k := range subjectKeys {
			if s := rec.GetStringBytes(k); len(s) > 0 {
				subject = string(s)
				break
			}
		}

		for j, att := range rec.GetArray("Attachments", "records") {
			ref := AttachmentRef{
				ParentRecordID: parentID,
				AttachmentID:   string(att.GetStringBytes("Id")),
				AttachmentName: string(att.GetStringBytes("Name")),
				StepName:       step,
				Subject:        subject,
				ContentType:    string(att.GetStringBytes("ContentType")),
				DeclaredSize:   att.GetInt64("BodyLength"),
			}
			if ref.AttachmentID == "" || ref.AttachmentName == "" {
				errs = append(errs, fmt.Errorf("record %s attachment %d: missing Id or Name", parentID, j))
				continue
			}
			refs = append(refs, ref)
		}
	}
	return refs, errors.Join(errs...)
}

// Fetcher retrieves the raw bytes of an attachment.
type Fetcher interface {
	Fetch(ctx context.Context, ref AttachmentRef) ([]byte, error)
}

// DirFetcher serves attachments previously saved under Dir, either as
// Dir/<attachment id>/<name> or Dir/<name>, with the name sanitized.
type DirFetcher struct {
	Dir string
}

// Fetch implements Fetcher.
func (f DirFetcher) Fetch(ctx context.Context, ref AttachmentRef) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := util.SanitizeFilename(ref.AttachmentName)
	candidates := []string{
		filepath.Join(f.Dir, util.SanitizeFilename(ref.AttachmentID), name),
		filepath.Join(f.Dir, name),
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read attachment %s: %w", ref.AttachmentID, err)
		}
	}
	return nil, fmt.Errorf("attachment %s (%s) not found under %s: %w", ref.AttachmentID, name, f.Dir, os.ErrNotExist)
}
