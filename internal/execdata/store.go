// Package execdata decodes recorded execution data into per-session
// record stores and a merged aggregate.
package execdata

import "sort"

// Record holds the raw probe data recorded for one instrumented class.
type Record struct {
	ID     int64
	Name   string // slash-joined class identifier
	Probes []bool
}

// merge ORs another record's probes into this one. Probe arrays of
// different lengths come from mismatched instrumentation; the longer
// array wins and the common prefix is merged.
func (r *Record) merge(other *Record) {
	if len(other.Probes) > len(r.Probes) {
		extended := make([]bool, len(other.Probes))
		copy(extended, r.Probes)
		r.Probes = extended
	}
	for i, hit := range other.Probes {
		if hit {
			r.Probes[i] = true
		}
	}
}

// Covered reports whether the probe at the given index was executed.
// Out-of-range indices read as not executed.
func (r *Record) Covered(index int) bool {
	if r == nil || index < 0 || index >= len(r.Probes) {
		return false
	}
	return r.Probes[index]
}

// Store is a collection of execution records keyed by class identifier.
type Store struct {
	records map[string]*Record
}

// NewStore creates an empty record store.
func NewStore() *Store {
	return &Store{records: make(map[string]*Record)}
}

// Put adds a record to the store, merging probes when a record for the
// same class identifier is already present.
func (s *Store) Put(r *Record) {
	if existing, ok := s.records[r.Name]; ok {
		existing.merge(r)
		return
	}
	clone := &Record{ID: r.ID, Name: r.Name, Probes: make([]bool, len(r.Probes))}
	copy(clone.Probes, r.Probes)
	s.records[r.Name] = clone
}

// Get returns the record for a class identifier.
func (s *Store) Get(name string) (*Record, bool) {
	r, ok := s.records[name]
	return r, ok
}

// Contents returns the class identifiers of all records, sorted.
func (s *Store) Contents() []string {
	names := make([]string, 0, len(s.records))
	for name := range s.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Size returns the number of records in the store.
func (s *Store) Size() int {
	return len(s.records)
}

// Empty reports whether the store holds no records.
func (s *Store) Empty() bool {
	return len(s.records) == 0
}
