package measure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maciekjanusz/covlink/internal/analyzer"
	"github.com/maciekjanusz/covlink/internal/resource"
)

// recordingSink captures builder calls for assertions.
type recordingSink struct {
	builders []*recordingBuilder
}

type recordingBuilder struct {
	hits       map[int]int
	conditions map[int][2]int
	commits    int
}

func (s *recordingSink) NewBuilder(res *resource.Resource) Builder {
	b := &recordingBuilder{hits: make(map[int]int), conditions: make(map[int][2]int)}
	s.builders = append(s.builders, b)
	return b
}

func (b *recordingBuilder) LineHit(line, hits int) { b.hits[line] = hits }
func (b *recordingBuilder) Conditions(line, total, covered int) {
	b.conditions[line] = [2]int{total, covered}
}
func (b *recordingBuilder) Commit() error {
	b.commits++
	return nil
}

func coverage(first, last int, lines map[int]analyzer.LineCoverage) *analyzer.SourceCoverage {
	return &analyzer.SourceCoverage{
		Package:   "com/foo",
		Name:      "Bar.kt",
		FirstLine: first,
		LastLine:  last,
		Lines:     lines,
	}
}

func production(lines int) *resource.Resource {
	return &resource.Resource{Key: "com/foo/Bar", Path: "src/com/foo/Bar.kt", Type: resource.TypeProduction, Lines: lines}
}

func TestProject_HitsPerStatus(t *testing.T) {
	sc := coverage(1, 5, map[int]analyzer.LineCoverage{
		1: {Status: analyzer.StatusFullyCovered},
		2: {Status: analyzer.StatusFullyCovered},
		3: {Status: analyzer.StatusNotCovered},
		4: {Status: analyzer.StatusPartlyCovered},
		5: {Status: analyzer.StatusFullyCovered},
	})

	sink := &recordingSink{}
	require.NoError(t, Project(production(5), sc, sink))

	require.Len(t, sink.builders, 1)
	b := sink.builders[0]
	assert.Equal(t, map[int]int{1: 1, 2: 1, 3: 0, 4: 1, 5: 1}, b.hits)
	assert.Equal(t, 1, b.commits, "commits exactly once")
}

func TestProject_ClampsAtResourceLineCount(t *testing.T) {
	sc := coverage(1, 5, map[int]analyzer.LineCoverage{
		1: {Status: analyzer.StatusFullyCovered},
		2: {Status: analyzer.StatusFullyCovered},
		3: {Status: analyzer.StatusFullyCovered},
		4: {Status: analyzer.StatusFullyCovered},
		5: {Status: analyzer.StatusFullyCovered},
	})

	sink := &recordingSink{}
	require.NoError(t, Project(production(3), sc, sink))

	b := sink.builders[0]
	assert.Equal(t, map[int]int{1: 1, 2: 1, 3: 1}, b.hits, "lines beyond the resource line count are never consulted")
	assert.Equal(t, 1, b.commits)
}

func TestProject_EmptyLineHasNoEntry(t *testing.T) {
	sc := coverage(1, 3, map[int]analyzer.LineCoverage{
		1: {Status: analyzer.StatusFullyCovered},
		3: {Status: analyzer.StatusNotCovered},
	})

	sink := &recordingSink{}
	require.NoError(t, Project(production(3), sc, sink))

	b := sink.builders[0]
	_, exists := b.hits[2]
	assert.False(t, exists, "empty line must not contribute an entry, not even a zero")
	assert.Equal(t, 0, b.hits[3])
}

func TestProject_UnknownStatusSkipsLine(t *testing.T) {
	sc := coverage(1, 2, map[int]analyzer.LineCoverage{
		1: {Status: analyzer.StatusUnknown},
		2: {Status: analyzer.StatusFullyCovered},
	})

	sink := &recordingSink{}
	require.NoError(t, Project(production(2), sc, sink))

	b := sink.builders[0]
	assert.Equal(t, map[int]int{2: 1}, b.hits)
	assert.Equal(t, 1, b.commits)
}

func TestProject_Conditions(t *testing.T) {
	sc := coverage(1, 3, map[int]analyzer.LineCoverage{
		1: {Status: analyzer.StatusFullyCovered, Branches: analyzer.BranchCounter{Total: 2, Covered: 2}},
		2: {Status: analyzer.StatusFullyCovered, Branches: analyzer.BranchCounter{Total: 0, Covered: 0}},
		3: {Status: analyzer.StatusNotCovered, Branches: analyzer.BranchCounter{Total: 4, Covered: 0}},
	})

	sink := &recordingSink{}
	require.NoError(t, Project(production(3), sc, sink))

	b := sink.builders[0]
	assert.Equal(t, [2]int{2, 2}, b.conditions[1])
	_, exists := b.conditions[2]
	assert.False(t, exists, "zero total conditions are never recorded")
	assert.Equal(t, [2]int{4, 0}, b.conditions[3])
}
