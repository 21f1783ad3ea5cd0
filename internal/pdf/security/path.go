package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator confines document ids to a storage directory
type PathValidator struct {
	root string
}

// NewPathValidator creates a validator rooted at dir. The directory does not
// need to exist yet.
func NewPathValidator(dir string) (*PathValidator, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage directory cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	return &PathValidator{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute storage directory
func (v *PathValidator) Root() string {
	return v.root
}

// Resolve maps a document id to an absolute path inside the storage
// directory. Absolute ids, parent traversal and symlinks escaping the
// directory are rejected.
func (v *PathValidator) Resolve(documentID string) (string, error) {
	id := strings.ReplaceAll(documentID, "\x00", "")
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("document id cannot be empty")
	}
	if filepath.IsAbs(id) {
		return "", fmt.Errorf("document id must be relative to the storage directory: %s", documentID)
	}

	path := filepath.Join(v.root, id)
	if !isWithin(v.root, path) {
		return "", fmt.Errorf("document id escapes the storage directory: %s", documentID)
	}

	// Symlinks are followed only when they stay inside the root.
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		realRoot := v.root
		if r, err := filepath.EvalSymlinks(v.root); err == nil {
			realRoot = r
		}
		if !isWithin(realRoot, resolved) {
			return "", fmt.Errorf("document id resolves outside the storage directory: %s", documentID)
		}
	}
	return path, nil
}

// Contains reports whether path lies inside the storage directory
func (v *PathValidator) Contains(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return isWithin(v.root, abs)
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// StatFile returns file info for a resolved path, rejecting directories
func StatFile(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", filepath.Base(path))
	}
	return info, nil
}
