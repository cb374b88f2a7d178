package measure

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/maciekjanusz/covlink/internal/resource"
)

// ConditionsMeasure is the decision outcome tuple of one line.
type ConditionsMeasure struct {
	Total   int `json:"total"`
	Covered int `json:"covered"`
}

// LineMeasure is one committed line fact.
type LineMeasure struct {
	Line       int                `json:"line"`
	Hits       int                `json:"hits"`
	Conditions *ConditionsMeasure `json:"conditions,omitempty"`
}

// FileMeasures holds all committed facts for one resource.
type FileMeasures struct {
	Key   string        `json:"key"`
	Path  string        `json:"path"`
	Lines []LineMeasure `json:"lines"`
}

// TestFileLines lists the lines one test covered in one resource.
type TestFileLines struct {
	Key   string `json:"key"`
	Lines []int  `json:"lines"`
}

// TestMeasures holds the covered lines attributed to one test session.
type TestMeasures struct {
	Session string          `json:"session"`
	Files   []TestFileLines `json:"files"`
}

// Report is the JSON document written at the end of an analysis run.
type Report struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Files       []FileMeasures `json:"files"`
	Tests       []TestMeasures `json:"tests,omitempty"`
}

// JSONReportSink collects committed measures and writes them out as a
// single JSON report.
type JSONReportSink struct {
	files []FileMeasures
	tests map[string][]TestFileLines
}

// NewJSONReportSink creates an empty report sink.
func NewJSONReportSink() *JSONReportSink {
	return &JSONReportSink{tests: make(map[string][]TestFileLines)}
}

// NewBuilder returns a builder staging measures for one resource.
func (s *JSONReportSink) NewBuilder(res *resource.Resource) Builder {
	return &reportBuilder{
		sink:       s,
		key:        res.Key,
		path:       res.Path,
		hits:       make(map[int]int),
		conditions: make(map[int]ConditionsMeasure),
	}
}

// RecordTestLines attributes covered lines in one resource to a test
// session.
func (s *JSONReportSink) RecordTestLines(session, resourceKey string, lines []int) {
	s.tests[session] = append(s.tests[session], TestFileLines{Key: resourceKey, Lines: lines})
}

// CommittedFiles returns the number of resources committed so far.
func (s *JSONReportSink) CommittedFiles() int {
	return len(s.files)
}

// Write renders the report to path, creating parent directories.
func (s *JSONReportSink) Write(path string) error {
	report := Report{GeneratedAt: time.Now().UTC(), Files: s.files}
	sessions := make([]string, 0, len(s.tests))
	for session := range s.tests {
		sessions = append(sessions, session)
	}
	sort.Strings(sessions)
	for _, session := range sessions {
		report.Tests = append(report.Tests, TestMeasures{Session: session, Files: s.tests[session]})
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal coverage report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write coverage report: %w", err)
	}
	return nil
}

type reportBuilder struct {
	sink       *JSONReportSink
	key        string
	path       string
	hits       map[int]int
	conditions map[int]ConditionsMeasure
	committed  bool
}

func (b *reportBuilder) LineHit(line, hits int) {
	b.hits[line] = hits
}

func (b *reportBuilder) Conditions(line, total, covered int) {
	b.conditions[line] = ConditionsMeasure{Total: total, Covered: covered}
}

func (b *reportBuilder) Commit() error {
	if b.committed {
		return fmt.Errorf("measure for %s already committed", b.key)
	}
	b.committed = true

	lines := make([]int, 0, len(b.hits))
	for line := range b.hits {
		lines = append(lines, line)
	}
	sort.Ints(lines)

	measures := make([]LineMeasure, 0, len(lines))
	for _, line := range lines {
		m := LineMeasure{Line: line, Hits: b.hits[line]}
		if c, ok := b.conditions[line]; ok {
			cond := c
			m.Conditions = &cond
		}
		measures = append(measures, m)
	}

	b.sink.files = append(b.sink.files, FileMeasures{Key: b.key, Path: b.path, Lines: measures})
	return nil
}

// Files returns the committed file measures, in commit order.
func (s *JSONReportSink) Files() []FileMeasures {
	return s.files
}
