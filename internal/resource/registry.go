package resource

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/maciekjanusz/covlink/internal/logger"
)

// sourceExtensions are the source file extensions the registry indexes.
var sourceExtensions = []string{".java", ".kt", ".kts", ".groovy", ".scala"}

const lineCountCacheSize = 512

// DirRegistry is a Registry backed by source directory trees. Files
// under the test roots resolve as test resources.
type DirRegistry struct {
	production map[string]string // class identifier -> path
	tests      map[string]string
	lineCounts *lru.Cache[string, int]
}

// NewDirRegistry scans the production and test source roots and builds
// the lookup tables. Unreadable roots are skipped silently, matching
// the treatment of missing compiled output.
func NewDirRegistry(sources, tests []string) *DirRegistry {
	cache, _ := lru.New[string, int](lineCountCacheSize)
	r := &DirRegistry{
		production: make(map[string]string),
		tests:      make(map[string]string),
		lineCounts: cache,
	}
	for _, root := range sources {
		scanRoot(root, r.production)
	}
	for _, root := range tests {
		scanRoot(root, r.tests)
	}
	return r
}

func scanRoot(root string, into map[string]string) {
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(d.Name())
		if !isSourceExtension(ext) {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		key := strings.TrimSuffix(filepath.ToSlash(rel), ext)
		into[key] = path
		return nil
	})
}

func isSourceExtension(ext string) bool {
	for _, known := range sourceExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

// Resolve looks up a class identifier. Test sources resolve with
// TypeTest so the caller can exclude them from coverage measures.
func (r *DirRegistry) Resolve(classID string) (*Resource, bool) {
	if classID == "" {
		return nil, false
	}
	if path, ok := r.production[classID]; ok {
		return &Resource{Key: classID, Path: path, Type: TypeProduction, Lines: r.countLines(path)}, true
	}
	if path, ok := r.tests[classID]; ok {
		return &Resource{Key: classID, Path: path, Type: TypeTest, Lines: r.countLines(path)}, true
	}
	return nil, false
}

// countLines counts the lines of a source file, caching results for
// the classes that share one file.
func (r *DirRegistry) countLines(path string) int {
	if cached, ok := r.lineCounts.Get(path); ok {
		return cached
	}

	file, err := os.Open(path)
	if err != nil {
		logger.Debug("[Resource] Cannot count lines of %s: %v", path, err)
		return 0
	}
	defer file.Close()

	count := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		logger.Debug("[Resource] Error counting lines of %s: %v", path, err)
	}

	r.lineCounts.Add(path, count)
	return count
}
