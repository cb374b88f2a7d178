// Package sensor drives one coverage analysis run: index the compiled
// classes, decode execution data, project measures per resource and
// attribute coverage per test session.
package sensor

import (
	"sort"
	"strings"
	"unicode"

	"github.com/maciekjanusz/covlink/internal/analyzer"
	"github.com/maciekjanusz/covlink/internal/classindex"
	"github.com/maciekjanusz/covlink/internal/execdata"
	"github.com/maciekjanusz/covlink/internal/logger"
	"github.com/maciekjanusz/covlink/internal/measure"
	"github.com/maciekjanusz/covlink/internal/resource"
)

// Context carries the inputs and collaborators of one analysis run.
type Context struct {
	// BinaryRoots are the directories scanned for compiled class files.
	BinaryRoots []string
	// ExecFile is the optional path to the recorded execution data.
	ExecFile string
	// Registry resolves class identifiers to source resources.
	Registry resource.Registry
	// Sink receives the staged measures.
	Sink measure.Sink
	// PerTest enables per-test coverage attribution.
	PerTest bool
}

// testLinesRecorder is implemented by sinks that can store per-test
// covered lines in addition to plain measures.
type testLinesRecorder interface {
	RecordTestLines(session, resourceKey string, lines []int)
}

// Sensor is the coverage analysis entry point. It holds no state: the
// class index and all intermediate results are owned by a single
// Analyse call and cannot leak into the next one.
type Sensor struct{}

// New creates a Sensor.
func New() *Sensor {
	return &Sensor{}
}

// Analyse runs the full analysis. All results are side effects:
// committed measures on the sink and log messages. Missing inputs
// degrade to informational notices, never to failures.
func (s *Sensor) Analyse(ctx *Context) {
	index := classindex.Build(ctx.BinaryRoots)
	if len(index) == 0 {
		logger.Info("[Sensor] No class files found in %v, coverage analysis skipped", ctx.BinaryRoots)
		return
	}
	logger.Debug("[Sensor] Indexed %d class files", len(index))

	data := execdata.Decode(ctx.ExecFile)

	analyzed := s.projectMeasures(ctx, index, data.Merged)

	perTestCollected := false
	if ctx.PerTest {
		perTestCollected = s.attributePerTest(ctx, index, data)
	}

	switch {
	case analyzed == 0:
		logger.Warn("[Sensor] Coverage information was not collected. Perhaps the build was compiled without debug information.")
	case perTestCollected:
		logger.Info("[Sensor] Information about coverage per test has been collected.")
	case data.Present:
		logger.Info("[Sensor] No information about coverage per test.")
	}
}

// projectMeasures analyzes the merged record store and commits one
// measure per resolvable production resource. It returns the number of
// resources that received a committed measure.
func (s *Sensor) projectMeasures(ctx *Context, index classindex.Index, merged *execdata.Store) int {
	analyzed := 0
	for _, sc := range analyzer.Analyze(merged, index.AllFiles()) {
		res, ok := s.resolve(ctx.Registry, sc)
		if !ok {
			continue
		}
		if err := measure.Project(res, sc, ctx.Sink); err != nil {
			logger.Warn("[Sensor] Failed to save measures for %s: %v", res.Key, err)
			continue
		}
		analyzed++
	}
	return analyzed
}

// resolve maps a coverage result to a production resource. Results
// without a known resource, and results resolving to test sources, are
// skipped silently.
func (s *Sensor) resolve(registry resource.Registry, sc *analyzer.SourceCoverage) (*resource.Resource, bool) {
	classID := resource.FullyQualifiedClassName(sc.Package, sc.Name)
	res, ok := registry.Resolve(classID)
	if !ok {
		logger.Debug("[Sensor] No resource found for %q, skipping", classID)
		return nil, false
	}
	if res.Type == resource.TypeTest {
		logger.Debug("[Sensor] Resource %s is a test source, skipping", res.Key)
		return nil, false
	}
	return res, true
}

// attributePerTest replays the analysis once per eligible session and
// reduces each result to the covered lines per resource. It reports
// whether at least one session contributed coverage.
func (s *Sensor) attributePerTest(ctx *Context, index classindex.Index, data *execdata.Data) bool {
	recorder, canRecord := ctx.Sink.(testLinesRecorder)

	sessions := make([]string, 0, len(data.Sessions))
	for id := range data.Sessions {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)

	collected := false
	for _, id := range sessions {
		if !eligibleSession(id) {
			logger.Debug("[Sensor] Session %q is not attributable to a test, skipping", id)
			continue
		}

		store := data.Sessions[id]
		files := index.Files(store.Contents())
		for _, sc := range analyzer.Analyze(store, files) {
			res, ok := s.resolve(ctx.Registry, sc)
			if !ok {
				continue
			}
			covered := sc.CoveredLines()
			if len(covered) == 0 {
				continue
			}
			collected = true
			if canRecord {
				recorder.RecordTestLines(id, res.Key, covered)
			}
		}
	}
	return collected
}

// eligibleSession reports whether a session identifier follows the
// "<vm-id> <test-name>" convention. Identifiers without a whitespace
// separator belong to a shared VM and cannot be attributed.
func eligibleSession(id string) bool {
	return strings.ContainsFunc(id, unicode.IsSpace)
}
