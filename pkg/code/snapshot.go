// Package code models generated project code as a chain of immutable
// snapshots. Every accepted round of edits produces a new version linked to
// its parent, so rollback is a pointer move rather than an in-place undo.
package code

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Snapshot is one immutable version of a generated project. File maps are
// copied on construction and on access; callers can never mutate a version
// that has already been created.
type Snapshot struct {
	versionID string
	parentID  string // empty for the root version
	language  string
	framework string
	files     map[string]string // relative path -> content
	testFiles map[string]string
}

// NewSnapshot creates the root version of a project.
func NewSnapshot(language, framework string, files, testFiles map[string]string) *Snapshot {
	return &Snapshot{
		versionID: uuid.New().String(),
		language:  language,
		framework: framework,
		files:     copyFileMap(files),
		testFiles: copyFileMap(testFiles),
	}
}

// VersionID returns this version's unique identifier.
func (s *Snapshot) VersionID() string { return s.versionID }

// ParentID returns the predecessor's version ID, or "" for the root.
func (s *Snapshot) ParentID() string { return s.parentID }

// Language returns the project language (e.g. "go", "python").
func (s *Snapshot) Language() string { return s.language }

// Framework returns the test framework identifier (e.g. "gotest", "jest").
func (s *Snapshot) Framework() string { return s.framework }

// File returns the content of a source or test file by relative path.
func (s *Snapshot) File(path string) (string, bool) {
	if content, ok := s.files[path]; ok {
		return content, true
	}
	content, ok := s.testFiles[path]
	return content, ok
}

// HasFile reports whether the given relative path exists in this version.
func (s *Snapshot) HasFile(path string) bool {
	_, ok := s.File(path)
	return ok
}

// Files returns a copy of the source file map.
func (s *Snapshot) Files() map[string]string {
	return copyFileMap(s.files)
}

// TestFiles returns a copy of the test file map.
func (s *Snapshot) TestFiles() map[string]string {
	return copyFileMap(s.testFiles)
}

// SourcePaths returns source file paths in deterministic order.
func (s *Snapshot) SourcePaths() []string {
	paths := make([]string, 0, len(s.files))
	for path := range s.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// WithEdits creates the successor version with the given source files
// replaced. Paths absent from updated are carried over unchanged; test
// files are never edited by the correction loop and carry over as-is.
func (s *Snapshot) WithEdits(updated map[string]string) (*Snapshot, error) {
	for path := range updated {
		if _, ok := s.files[path]; !ok {
			return nil, fmt.Errorf("edit targets unknown file %q", path)
		}
	}

	next := &Snapshot{
		versionID: uuid.New().String(),
		parentID:  s.versionID,
		language:  s.language,
		framework: s.framework,
		files:     copyFileMap(s.files),
		testFiles: s.testFiles, // shared: never mutated after construction
	}
	for path, content := range updated {
		next.files[path] = content
	}
	return next, nil
}

// Materialize writes every file of this version under dir, creating parent
// directories as needed. The directory becomes this version's working copy.
func (s *Snapshot) Materialize(dir string) error {
	write := func(relPath, content string) error {
		if strings.Contains(relPath, "..") {
			return fmt.Errorf("refusing path escaping the working copy: %q", relPath)
		}
		fullPath := filepath.Join(dir, relPath)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", relPath, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", relPath, err)
		}
		return nil
	}

	for path, content := range s.files {
		if err := write(path, content); err != nil {
			return err
		}
	}
	for path, content := range s.testFiles {
		if err := write(path, content); err != nil {
			return err
		}
	}
	return nil
}

func copyFileMap(m map[string]string) map[string]string {
	copied := make(map[string]string, len(m))
	for k, v := range m {
		copied[k] = v
	}
	return copied
}
