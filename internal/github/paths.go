package github

import (
	"net/url"
	"strings"

	"github.com/joescharf/repolens/internal/apperr"
	"github.com/joescharf/repolens/internal/models"
)

// sourceExtensions is the set of file extensions treated as source code.
var sourceExtensions = []string{
	".js", ".jsx", ".ts", ".tsx", ".py", ".java", ".go", ".rb", ".php",
	".c", ".cpp", ".cs", ".rs", ".kt", ".swift", ".scala", ".vue", ".svelte",
}

// excludedSegments are path segments that mark dependency caches, build
// output, version-control metadata, and vendored code.
var excludedSegments = []string{
	"node_modules", "vendor", "dist", "build", "out", "target",
	".git", ".next", "coverage", "__pycache__", ".venv", "bower_components",
}

// ValidatePath rejects any path that could escape the repository root.
// Both the raw path and its percent-decoded form are checked. This is a
// security gate: it must run before any remote fetch.
func ValidatePath(path string) error {
	candidates := []string{path}
	if decoded, err := url.QueryUnescape(path); err == nil && decoded != path {
		candidates = append(candidates, decoded)
	}
	for _, p := range candidates {
		switch {
		case p == "":
			return apperr.ErrPathTraversalRejected.WithMessage("empty path")
		case strings.Contains(p, ".."):
			return apperr.ErrPathTraversalRejected.WithMessage("path %q contains a parent reference", path)
		case strings.HasPrefix(p, "/"):
			return apperr.ErrPathTraversalRejected.WithMessage("path %q is absolute", path)
		case strings.Contains(p, "//"):
			return apperr.ErrPathTraversalRejected.WithMessage("path %q contains doubled separators", path)
		case strings.ContainsRune(p, 0):
			return apperr.ErrPathTraversalRejected.WithMessage("path %q contains a null byte", path)
		}
	}
	return nil
}

// IsSourceFile reports whether path looks like analyzable source code and
// does not live under an excluded directory.
func IsSourceFile(path string) bool {
	lower := strings.ToLower(path)
	matched := false
	for _, ext := range sourceExtensions {
		if strings.HasSuffix(lower, ext) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	for _, seg := range strings.Split(lower, "/") {
		for _, excluded := range excludedSegments {
			if seg == excluded {
				return false
			}
		}
	}
	return true
}

// FilterSourceFiles keeps only entries that IsSourceFile accepts,
// preserving listing order. Filtering is idempotent.
func FilterSourceFiles(entries []models.TreeEntry) []models.TreeEntry {
	kept := make([]models.TreeEntry, 0, len(entries))
	for _, e := range entries {
		if e.Kind == models.TreeEntryFile && IsSourceFile(e.Path) {
			kept = append(kept, e)
		}
	}
	return kept
}
