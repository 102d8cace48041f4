// Package selection ranks candidate files so analysis spends its budget on
// the files most likely to represent the codebase.
package selection

import (
	"path"
	"sort"
	"strings"

	"github.com/joescharf/repolens/internal/models"
)

// Score weights. Entry points dominate, source roots follow, and size
// breaks ties in favor of larger files. The size term is capped below
// the gap between tiers so a large file can never jump a tier.
const (
	entryPointWeight = 1000
	sourceRootWeight = 500
	sizeDivisor      = 100
	maxSizeScore     = 400
)

var entryPointNames = map[string]bool{
	"index.js": true, "index.ts": true, "index.jsx": true, "index.tsx": true,
	"main.go": true, "main.py": true, "main.rs": true, "main.java": true,
	"app.js": true, "app.ts": true, "App.tsx": true, "App.jsx": true,
	"server.js": true,
}

var sourceRootSegments = map[string]bool{
	"src": true, "lib": true, "app": true, "cmd": true, "internal": true, "pkg": true,
}

var testDirSegments = map[string]bool{
	"test": true, "tests": true, "__tests__": true, "spec": true,
}

var configNamePatterns = []string{
	"webpack.config", "rollup.config", "vite.config", "babel.config",
	"jest.config", "karma.conf", "tsconfig", "eslint.config", "prettier.config",
}

// isTestFile recognizes test files by directory marker or infix.
func isTestFile(p string) bool {
	lower := strings.ToLower(p)
	for _, seg := range strings.Split(lower, "/") {
		if testDirSegments[seg] {
			return true
		}
	}
	return strings.Contains(lower, ".test.") ||
		strings.Contains(lower, ".spec.") ||
		strings.HasSuffix(lower, "_test.go")
}

// isConfigFile recognizes build, lint, and bundler configuration files.
func isConfigFile(p string) bool {
	base := strings.ToLower(path.Base(p))
	for _, pattern := range configNamePatterns {
		if strings.HasPrefix(base, pattern) {
			return true
		}
	}
	if strings.HasPrefix(base, ".") && strings.HasSuffix(base, "rc") {
		return true
	}
	return strings.Contains(base, ".config.")
}

// scoreFile computes the analysis-worthiness of one file.
func scoreFile(entry models.TreeEntry) float64 {
	score := float64(entry.SizeBytes) / sizeDivisor
	if score > maxSizeScore {
		score = maxSizeScore
	}
	if entryPointNames[path.Base(entry.Path)] {
		score += entryPointWeight
	}
	for _, seg := range strings.Split(entry.Path, "/") {
		if sourceRootSegments[seg] {
			score += sourceRootWeight
			break
		}
	}
	return score
}

// SelectImportant filters out test and configuration files, scores the
// survivors, and returns the top limit entries in descending score order.
// Ties keep the original listing order. The result is never padded: fewer
// than limit candidates yields fewer than limit results.
func SelectImportant(files []models.TreeEntry, limit int) []models.ScoredFile {
	scored := make([]models.ScoredFile, 0, len(files))
	for _, f := range files {
		if isTestFile(f.Path) || isConfigFile(f.Path) {
			continue
		}
		scored = append(scored, models.ScoredFile{TreeEntry: f, Score: scoreFile(f)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if limit >= 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// SelectByExplicitPaths returns the files whose paths appear in paths,
// preserving listing order, plus the requested paths that matched nothing.
// Unknown paths are a caller warning, not an error.
func SelectByExplicitPaths(files []models.TreeEntry, paths []string) (matched []models.ScoredFile, missing []string) {
	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		want[p] = true
	}
	for _, f := range files {
		if want[f.Path] {
			matched = append(matched, models.ScoredFile{TreeEntry: f})
			delete(want, f.Path)
		}
	}
	for _, p := range paths {
		if want[p] {
			missing = append(missing, p)
		}
	}
	return matched, missing
}
