package ingest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dkaiser/batchline/internal/domain"
)

// deniedDirs are sensitive system directories an input file may never be read
// from, regardless of the traversal policy.
var deniedDirs = []string{"/etc", "/sys", "/proc", "/dev", "/boot"}

// ResolvePath resolves path to absolute form and enforces the traversal
// policy. With traversal disallowed the resolved path must live under the
// current working directory.
func ResolvePath(path string, allowTraversal bool) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &domain.SecurityError{Path: path, Message: "cannot resolve path"}
	}
	abs = filepath.Clean(abs)

	for _, dir := range deniedDirs {
		if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return "", &domain.SecurityError{Path: abs, Message: "path is inside a restricted system directory"}
		}
	}

	if !allowTraversal {
		cwd, err := os.Getwd()
		if err != nil {
			return "", &domain.SecurityError{Path: abs, Message: "cannot determine working directory"}
		}
		rel, err := filepath.Rel(cwd, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", &domain.SecurityError{Path: abs, Message: "path escapes the working directory"}
		}
	}

	return abs, nil
}
