package header

import (
	"regexp"
	"strings"
)

// Level records which header pattern produced a Fields value.
type Level int

const (
	LevelNone Level = iota
	LevelLenient
	LevelStrict
)

func (l Level) String() string {
	switch l {
	case LevelStrict:
		return "strict"
	case LevelLenient:
		return "lenient"
	default:
		return "none"
	}
}

// Fields holds the labeled values from a worker header line. Empty strings
// mean the field was absent.
type Fields struct {
	WorkerProcessGroupID string
	Hostname             string
	ExecutorID           string
	RequestingID         string
	Level                Level
}

// Found reports whether any header pattern matched.
func (f Fields) Found() bool { return f.Level != LevelNone }

type setter func(*Fields, string)

func setWorker(f *Fields, v string)     { f.WorkerProcessGroupID = v }
func setHostname(f *Fields, v string)   { f.Hostname = v }
func setExecutor(f *Fields, v string)   { f.ExecutorID = v }
func setRequesting(f *Fields, v string) { f.RequestingID = v }

// A header is a single line; values stop at the next comma or line end.
const (
	workerPart     = `Worker Process Group ID:[ \t]*(\d+)`
	hostnamePart   = `,[ \t]*Hostname:[ \t]*([^,\r\n]+)`
	executorPart   = `,[ \t]*Executor Kerberos ID:[ \t]*([^,\r\n]+)`
	requestingPart = `,[ \t]*Requesting Kerberos ID:[ \t]*([^,\r\n]+)`
)

// patterns is tried in order; the first match wins.
var patterns = []struct {
	level  Level
	re     *regexp.Regexp
	fields []setter
}{
	{
		level:  LevelStrict,
		re:     regexp.MustCompile(workerPart + hostnamePart + executorPart + requestingPart),
		fields: []setter{setWorker, setHostname, setExecutor, setRequesting},
	},
	{
		level:  LevelLenient,
		re:     regexp.MustCompile(workerPart + hostnamePart + executorPart),
		fields: []setter{setWorker, setHostname, setExecutor},
	},
}

// Parse extracts header fields from the full text of a log. It never fails;
// text without a recognizable header yields a zero Fields.
func Parse(text string) Fields {
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil || len(m)-1 < len(p.fields) {
			continue
		}
		f := Fields{Level: p.level}
		for i, set := range p.fields {
			set(&f, strings.TrimSpace(m[i+1]))
		}
		return f
	}
	return Fields{}
}

// ParseLines is Parse over a line sequence.
func ParseLines(lines []string) Fields {
	return Parse(strings.Join(lines, "\n"))
}
