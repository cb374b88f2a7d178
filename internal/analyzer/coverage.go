// Package analyzer correlates execution records with compiled class
// files and produces per-source-file line and branch coverage.
package analyzer

import (
	"fmt"
	"sort"
)

// Status classifies the execution state of one source line.
type Status int

const (
	// StatusEmpty marks a line without executable code.
	StatusEmpty Status = iota
	// StatusNotCovered marks a line whose code never executed.
	StatusNotCovered
	// StatusPartlyCovered marks a line with both executed and missed code.
	StatusPartlyCovered
	// StatusFullyCovered marks a line whose code fully executed.
	StatusFullyCovered
	// StatusUnknown marks a status the analysis cannot classify. It is
	// a deliberate explicit variant, not a fallback: consumers must
	// handle it and report it.
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusNotCovered:
		return "not_covered"
	case StatusPartlyCovered:
		return "partly_covered"
	case StatusFullyCovered:
		return "fully_covered"
	case StatusUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// BranchCounter counts decision outcomes on one line.
type BranchCounter struct {
	Total   int
	Covered int
}

// LineCoverage is the coverage of a single source line.
type LineCoverage struct {
	Status   Status
	Branches BranchCounter
}

// SourceCoverage is the decoded coverage result for one source file.
type SourceCoverage struct {
	Package   string // slash-joined package, empty for the default package
	Name      string // simple source file name, e.g. "Bar.kt"
	FirstLine int
	LastLine  int
	Lines     map[int]LineCoverage
}

// LineAt returns the coverage of a line. Lines never touched by any
// artifact read as empty.
func (sc *SourceCoverage) LineAt(line int) LineCoverage {
	if lc, ok := sc.Lines[line]; ok {
		return lc
	}
	return LineCoverage{Status: StatusEmpty}
}

// CoveredLines returns the sorted line numbers with at least partial
// coverage.
func (sc *SourceCoverage) CoveredLines() []int {
	var lines []int
	for line, lc := range sc.Lines {
		if lc.Status == StatusFullyCovered || lc.Status == StatusPartlyCovered {
			lines = append(lines, line)
		}
	}
	sort.Ints(lines)
	return lines
}

// setLine records a line's coverage, widening the file's line range.
// On collision between two classes of the same source file the last
// writer wins per line.
func (sc *SourceCoverage) setLine(line int, lc LineCoverage) {
	if sc.FirstLine == 0 || line < sc.FirstLine {
		sc.FirstLine = line
	}
	if line > sc.LastLine {
		sc.LastLine = line
	}
	sc.Lines[line] = lc
}
