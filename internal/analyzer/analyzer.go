package analyzer

import (
	"sort"
	"strings"

	"github.com/maciekjanusz/covlink/internal/bytecode"
	"github.com/maciekjanusz/covlink/internal/execdata"
	"github.com/maciekjanusz/covlink/internal/logger"
)

// Analyze statically correlates each candidate class file with its
// execution record and returns one SourceCoverage per distinct source
// file. Artifacts without a record still contribute their lines as not
// covered; an artifact that fails to parse is skipped with a warning
// and never aborts the analysis of the others.
func Analyze(store *execdata.Store, files []string) []*SourceCoverage {
	infos := make([]*bytecode.ClassInfo, 0, len(files))
	for _, file := range files {
		info, err := bytecode.Parse(file)
		if err != nil {
			logger.Warn("[Analyzer] Skipping unreadable class file %s: %v", file, err)
			continue
		}
		infos = append(infos, info)
	}
	return AnalyzeClasses(store, infos)
}

// AnalyzeClasses correlates already-parsed class metadata with the
// record store. Classes sharing a source file are merged into one
// SourceCoverage; on a line collision the last writer wins.
func AnalyzeClasses(store *execdata.Store, infos []*bytecode.ClassInfo) []*SourceCoverage {
	bySource := make(map[string]*SourceCoverage)
	for _, info := range infos {
		analyzeClass(store, info, bySource)
	}

	result := make([]*SourceCoverage, 0, len(bySource))
	for _, sc := range bySource {
		result = append(result, sc)
	}
	sort.Slice(result, func(a, b int) bool {
		if result[a].Package != result[b].Package {
			return result[a].Package < result[b].Package
		}
		return result[a].Name < result[b].Name
	})
	return result
}

func analyzeClass(store *execdata.Store, info *bytecode.ClassInfo, bySource map[string]*SourceCoverage) {
	if info.SourceFile == "" {
		logger.Debug("[Analyzer] Class %s has no source file attribute, skipping", info.Name)
		return
	}

	pkg := packageOf(info.Name)
	key := pkg + "/" + info.SourceFile
	sc, ok := bySource[key]
	if !ok {
		sc = &SourceCoverage{
			Package: pkg,
			Name:    info.SourceFile,
			Lines:   make(map[int]LineCoverage),
		}
		bySource[key] = sc
	}

	record, _ := store.Get(info.Name)
	for probe, method := range info.Methods {
		executed := record.Covered(probe)
		for _, line := range method.Lines {
			status := StatusNotCovered
			if executed {
				status = StatusFullyCovered
			}
			total := method.Branches[line]
			covered := 0
			if executed {
				covered = total
			}
			sc.setLine(line, LineCoverage{
				Status:   status,
				Branches: BranchCounter{Total: total, Covered: covered},
			})
		}
	}
}

// packageOf returns the slash-joined package of a class identifier,
// empty for the default package.
func packageOf(className string) string {
	idx := strings.LastIndex(className, "/")
	if idx < 0 {
		return ""
	}
	return className[:idx]
}
