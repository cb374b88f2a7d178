package execdata

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeExecFile(t *testing.T, build func(*Writer)) string {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	build(w)

	path := filepath.Join(t.TempDir(), "coverage.exec")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestDecode_MissingFile(t *testing.T) {
	data := Decode(filepath.Join(t.TempDir(), "nope.exec"))

	assert.False(t, data.Present)
	assert.True(t, data.Merged.Empty())
	assert.Empty(t, data.Sessions)
}

func TestDecode_EmptyPath(t *testing.T) {
	data := Decode("")

	assert.False(t, data.Present)
	assert.True(t, data.Merged.Empty())
}

func TestDecode_SessionsAndMerge(t *testing.T) {
	path := writeExecFile(t, func(w *Writer) {
		require.NoError(t, w.WriteSessionInfo(SessionInfo{ID: "vm1 testFoo", Start: 1, Dump: 2}))
		require.NoError(t, w.WriteRecord(&Record{ID: 11, Name: "com/foo/Bar", Probes: []bool{true, false, false}}))
		require.NoError(t, w.WriteSessionInfo(SessionInfo{ID: "vm1 testBaz", Start: 3, Dump: 4}))
		require.NoError(t, w.WriteRecord(&Record{ID: 11, Name: "com/foo/Bar", Probes: []bool{false, true, false}}))
		require.NoError(t, w.WriteRecord(&Record{ID: 22, Name: "com/foo/Qux", Probes: []bool{true}}))
	})

	data := Decode(path)
	require.True(t, data.Present)

	// Merged store ORs probes across sessions.
	merged, ok := data.Merged.Get("com/foo/Bar")
	require.True(t, ok)
	assert.Equal(t, []bool{true, true, false}, merged.Probes)
	assert.Equal(t, []string{"com/foo/Bar", "com/foo/Qux"}, data.Merged.Contents())

	// Per-session stores stay isolated.
	require.Len(t, data.Sessions, 2)
	first, ok := data.Sessions["vm1 testFoo"].Get("com/foo/Bar")
	require.True(t, ok)
	assert.Equal(t, []bool{true, false, false}, first.Probes)
	second, ok := data.Sessions["vm1 testBaz"].Get("com/foo/Bar")
	require.True(t, ok)
	assert.Equal(t, []bool{false, true, false}, second.Probes)
	assert.Equal(t, 2, data.Sessions["vm1 testBaz"].Size())
}

func TestDecode_LargeProbeArray(t *testing.T) {
	probes := make([]bool, 200)
	for i := 0; i < len(probes); i += 3 {
		probes[i] = true
	}
	path := writeExecFile(t, func(w *Writer) {
		require.NoError(t, w.WriteSessionInfo(SessionInfo{ID: "vm1"}))
		require.NoError(t, w.WriteRecord(&Record{ID: 1, Name: "Big", Probes: probes}))
	})

	data := Decode(path)
	record, ok := data.Merged.Get("Big")
	require.True(t, ok)
	assert.Equal(t, probes, record.Probes)
}

func TestDecode_TruncatedStreamDegrades(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, w.WriteSessionInfo(SessionInfo{ID: "vm1"}))
	require.NoError(t, w.WriteRecord(&Record{ID: 1, Name: "A", Probes: []bool{true}}))

	// Chop the stream mid-record.
	full := buf.Bytes()
	require.NoError(t, w.WriteRecord(&Record{ID: 2, Name: "B", Probes: []bool{true}}))
	truncated := buf.Bytes()[:len(full)+5]

	path := filepath.Join(t.TempDir(), "trunc.exec")
	require.NoError(t, os.WriteFile(path, truncated, 0644))

	data := Decode(path)
	assert.True(t, data.Present)
	_, ok := data.Merged.Get("A")
	assert.True(t, ok, "records before the corruption survive")
	_, ok = data.Merged.Get("B")
	assert.False(t, ok)
}

func TestDecode_BadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.exec")
	require.NoError(t, os.WriteFile(path, []byte{0x01, 0xDE, 0xAD, 0x10, 0x07}, 0644))

	data := Decode(path)
	assert.True(t, data.Present)
	assert.True(t, data.Merged.Empty())
}

func TestRecord_Covered(t *testing.T) {
	r := &Record{Probes: []bool{true, false}}
	assert.True(t, r.Covered(0))
	assert.False(t, r.Covered(1))
	assert.False(t, r.Covered(2), "out of range reads as not executed")
	assert.False(t, r.Covered(-1))

	var nilRecord *Record
	assert.False(t, nilRecord.Covered(0))
}
