package record

import (
	"regexp"
	"strconv"
)

var (
	workItemRegex   = regexp.MustCompile(`W-(\d+)`)
	caseNumberRegex = regexp.MustCompile(`(?i)Case[:\s]*(\d+)`)
	subjectStep     = regexp.MustCompile(`Step[:\s]+([^,\s]+)`)
	subjectHost     = regexp.MustCompile(`Host[:\s]+([^\s-]+-[^\s-]+-[^\s-]+-([^\s-]+))`)
	stepEnvSuffix   = regexp.MustCompile(`_(CS|NA|DR)\d*(_\w*)?$`)
)

// Subject holds the identifiers found in a work item's subject line.
// Numeric fields are nil when absent or out of range.
type Subject struct {
	WorkItem   string // e.g. "W-12345"
	WorkID     *int64
	CaseNumber *int64
	Step       string
	Host       string
	Datacenter string // last hyphen segment of Host
}

// ParseSubject extracts the optional identifiers from a subject line.
func ParseSubject(subject string) Subject {
	var s Subject
	if m := workItemRegex.FindStringSubmatch(subject); m != nil {
		s.WorkItem = m[0]
		s.WorkID = parseID(m[1])
	}
	if m := caseNumberRegex.FindStringSubmatch(subject); m != nil {
		s.CaseNumber = parseID(m[1])
	}
	if m := subjectStep.FindStringSubmatch(subject); m != nil {
		s.Step = m[1]
	}
	if m := subjectHost.FindStringSubmatch(subject); m != nil {
		s.Host = m[1]
		s.Datacenter = m[2]
	}
	return s
}

func parseID(digits string) *int64 {
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// CleanStepName drops a trailing environment qualifier such as "_NA2" or
// "_CS1_retry" from a step name.
func CleanStepName(name string) string {
	return stepEnvSuffix.ReplaceAllString(name, "")
}
