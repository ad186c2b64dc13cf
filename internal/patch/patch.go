// Package patch gates generated diff text before it reaches the
// workspace. Validation is a syntactic pre-filter; whether the patch
// actually applies is the workspace's concern.
package patch

import (
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// validPrefixes are the recognized unified-diff header openings.
var validPrefixes = []string{
	"diff --git",
	"Index:",
	"---",
	"+++",
}

// IsValid reports whether the trimmed text begins with a recognized
// diff header. Empty text is never valid.
func IsValid(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	for _, p := range validPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// Stat parses an accepted patch and returns the touched file paths.
// Best-effort: a parse failure yields an empty list, never an error,
// since the stat only decorates reports.
func Stat(text string) []string {
	fds, err := diff.ParseMultiFileDiff([]byte(text))
	if err != nil {
		return nil
	}

	files := make([]string, 0, len(fds))
	for _, fd := range fds {
		name := fd.NewName
		if name == "" || name == "/dev/null" {
			name = fd.OrigName
		}
		files = append(files, strings.TrimPrefix(name, "b/"))
	}
	return files
}
