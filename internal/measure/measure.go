// Package measure stages per-line coverage facts against resolved
// resources and commits them to a measure sink.
package measure

import (
	"github.com/maciekjanusz/covlink/internal/analyzer"
	"github.com/maciekjanusz/covlink/internal/logger"
	"github.com/maciekjanusz/covlink/internal/resource"
)

// Builder accumulates the per-line facts for one resource. A builder
// is committed exactly once, after the full line walk.
type Builder interface {
	// LineHit records whether a line was executed (hits 0 or 1).
	LineHit(line, hits int)
	// Conditions records the decision outcomes of a line.
	Conditions(line, total, covered int)
	// Commit persists the staged measure. Committing twice is an error.
	Commit() error
}

// Sink creates measure builders for resolved resources.
type Sink interface {
	NewBuilder(res *resource.Resource) Builder
}

// Project walks the line range of a source coverage result and stages
// line hits and branch conditions into one builder for the resource.
// The walk is inclusive of the last line but stops early when the
// resource's own line count is smaller: compiled artifacts can lag
// behind the sources they were built from.
func Project(res *resource.Resource, sc *analyzer.SourceCoverage, sink Sink) error {
	logger.Info("[Measure] Analyzing %s (source file %s/%s)", res.Path, sc.Package, sc.Name)

	builder := sink.NewBuilder(res)
	for line := sc.FirstLine; line <= sc.LastLine; line++ {
		if line > res.Lines {
			break
		}

		lc := sc.LineAt(line)
		hit := false
		switch lc.Status {
		case analyzer.StatusFullyCovered, analyzer.StatusPartlyCovered:
			builder.LineHit(line, 1)
			hit = true
		case analyzer.StatusNotCovered:
			builder.LineHit(line, 0)
			hit = true
		case analyzer.StatusEmpty:
			// Not even a zero hit: the line holds no executable code.
		case analyzer.StatusUnknown:
			logger.Warn("[Measure] Unknown coverage status for line %d of %s", line, res.Key)
		default:
			logger.Warn("[Measure] Unhandled coverage status %v for line %d of %s", lc.Status, line, res.Key)
		}

		if hit && lc.Branches.Total > 0 {
			builder.Conditions(line, lc.Branches.Total, lc.Branches.Covered)
		}
	}

	return builder.Commit()
}
