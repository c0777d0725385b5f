package code

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Directories that never contain project source.
//
//nolint:gochecknoglobals // Static skip list
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"target":       true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
	"dist":         true,
}

// LoadDir reads a project directory into a root snapshot, splitting test
// files from source files by the language's naming conventions.
func LoadDir(dir, language, framework string) (*Snapshot, error) {
	files := make(map[string]string)
	testFiles := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}

		if isTestFile(rel, language) {
			testFiles[rel] = string(data)
		} else {
			files[rel] = string(data)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load project from %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files found in %s", dir)
	}

	return NewSnapshot(language, framework, files, testFiles), nil
}

// isTestFile applies the language's test naming conventions.
func isTestFile(rel, language string) bool {
	base := filepath.Base(rel)
	switch strings.ToLower(language) {
	case "go":
		return strings.HasSuffix(base, "_test.go")
	case "rust":
		// Inline #[cfg(test)] modules are source; only tests/ is separate.
		return strings.HasPrefix(rel, "tests/")
	case "python":
		return strings.HasPrefix(base, "test_") || strings.HasSuffix(base, "_test.py")
	case "typescript", "javascript":
		return strings.Contains(base, ".test.") || strings.Contains(base, ".spec.") ||
			strings.HasPrefix(rel, "__tests__/") || strings.Contains(rel, "/__tests__/")
	default:
		return false
	}
}
