// Package classindex builds the index of compiled class files for one
// analysis run.
package classindex

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/maciekjanusz/covlink/internal/logger"
)

// Extension is the file extension of compiled class artifacts.
const Extension = ".class"

// Index maps a slash-joined class identifier (e.g. "com/foo/Bar$Inner")
// to the file on disk holding its compiled bytecode. An Index is local
// to a single analysis invocation and never shared across runs.
type Index map[string]string

// Build recursively scans the given root directories and indexes every
// regular file ending in the class extension. The identifier of a class
// is its path relative to the root, joined with forward slashes, with
// the extension stripped. Roots that are missing or unreadable are
// skipped silently: a module without compiled output is a normal host
// environment, not an error.
func Build(roots []string) Index {
	index := make(Index)
	for _, root := range roots {
		addRoot(index, root)
	}
	return index
}

func addRoot(index Index, root string) {
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Debug("[ClassIndex] Skipping unreadable path %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), Extension) {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		id := strings.TrimSuffix(filepath.ToSlash(rel), Extension)
		index[id] = path
		return nil
	})
}

// Files returns the indexed artifact files for the given class
// identifiers. Identifiers without an indexed artifact are ignored.
func (i Index) Files(ids []string) []string {
	files := make([]string, 0, len(ids))
	for _, id := range ids {
		if path, ok := i[id]; ok {
			files = append(files, path)
		}
	}
	return files
}

// AllFiles returns every indexed artifact file.
func (i Index) AllFiles() []string {
	files := make([]string, 0, len(i))
	for _, path := range i {
		files = append(files, path)
	}
	return files
}
