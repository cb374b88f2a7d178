package execdata

import "testing"

func TestStore_PutMergesProbes(t *testing.T) {
	s := NewStore()
	s.Put(&Record{ID: 1, Name: "X", Probes: []bool{true, false}})
	s.Put(&Record{ID: 1, Name: "X", Probes: []bool{false, true, true}})

	r, ok := s.Get("X")
	if !ok {
		t.Fatal("record X not found")
	}
	want := []bool{true, true, true}
	if len(r.Probes) != len(want) {
		t.Fatalf("Expected %d probes, got %d", len(want), len(r.Probes))
	}
	for i := range want {
		if r.Probes[i] != want[i] {
			t.Errorf("Probe %d = %v, want %v", i, r.Probes[i], want[i])
		}
	}
}

func TestStore_PutCopiesProbes(t *testing.T) {
	probes := []bool{true}
	s := NewStore()
	s.Put(&Record{Name: "X", Probes: probes})

	probes[0] = false
	r, _ := s.Get("X")
	if !r.Probes[0] {
		t.Error("store must not alias the caller's probe slice")
	}
}

func TestStore_Contents(t *testing.T) {
	s := NewStore()
	if !s.Empty() {
		t.Error("new store should be empty")
	}
	s.Put(&Record{Name: "b/B"})
	s.Put(&Record{Name: "a/A"})

	contents := s.Contents()
	if len(contents) != 2 || contents[0] != "a/A" || contents[1] != "b/B" {
		t.Errorf("Contents() = %v, want sorted [a/A b/B]", contents)
	}
	if s.Size() != 2 {
		t.Errorf("Size() = %d, want 2", s.Size())
	}
}
