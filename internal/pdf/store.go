package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/a3tai/mcp-legal-extractor/internal/errors"
	"github.com/a3tai/mcp-legal-extractor/internal/pdf/security"
)

// Store locates documents by id
type Store interface {
	Path(documentID string) (string, error)
	Stat(ctx context.Context, documentID string) (FileInfo, error)
	Read(ctx context.Context, documentID string) ([]byte, error)
}

// FileStore serves documents from a directory on local disk
type FileStore struct {
	guard       *security.PathValidator
	maxFileSize int64
}

// NewFileStore creates a store rooted at dir. maxFileSize <= 0 disables the
// size limit.
func NewFileStore(dir string, maxFileSize int64) (*FileStore, error) {
	guard, err := security.NewPathValidator(dir)
	if err != nil {
		return nil, errors.Configuration("store.new", err.Error())
	}
	return &FileStore{guard: guard, maxFileSize: maxFileSize}, nil
}

// Dir returns the storage directory
func (s *FileStore) Dir() string {
	return s.guard.Root()
}

// Path resolves documentID to a path inside the storage directory
func (s *FileStore) Path(documentID string) (string, error) {
	path, err := s.guard.Resolve(documentID)
	if err != nil {
		return "", errors.Validation("store.path", err.Error())
	}
	return path, nil
}

// Stat checks that the document exists, is a PDF and respects the size limit
func (s *FileStore) Stat(_ context.Context, documentID string) (FileInfo, error) {
	const op = "store.stat"

	path, err := s.Path(documentID)
	if err != nil {
		return FileInfo{}, err
	}

	info, err := security.StatFile(path)
	if os.IsNotExist(err) {
		return FileInfo{}, errors.NotFound(op, documentID)
	}
	if err != nil {
		return FileInfo{}, errors.Validation(op, err.Error()).WithDocument(documentID)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return FileInfo{}, errors.Validation(op,
			fmt.Sprintf("file is not a PDF: %s", documentID)).WithDocument(documentID)
	}
	if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
		return FileInfo{}, errors.Validation(op,
			fmt.Sprintf("file too large: %d bytes (max: %d bytes)", info.Size(), s.maxFileSize)).WithDocument(documentID)
	}

	return FileInfo{
		DocumentID: documentID,
		Path:       path,
		Name:       filepath.Base(path),
		Size:       info.Size(),
		ModTime:    info.ModTime(),
	}, nil
}

// Read returns the raw bytes of a document
func (s *FileStore) Read(ctx context.Context, documentID string) ([]byte, error) {
	info, err := s.Stat(ctx, documentID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(info.Path)
	if err != nil {
		return nil, errors.Extraction("store.read", "failed to read document", err).WithDocument(documentID)
	}
	return data, nil
}

// List returns the PDF documents in the storage directory, as ids relative to it
func (s *FileStore) List(ctx context.Context) ([]FileInfo, error) {
	root := s.guard.Root()
	var files []FileInfo

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".pdf") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr // Skip files that vanished during the walk
		}
		files = append(files, FileInfo{
			DocumentID: filepath.ToSlash(rel),
			Path:       path,
			Name:       d.Name(),
			Size:       info.Size(),
			ModTime:    info.ModTime(),
		})
		return nil
	})
	if os.IsNotExist(err) {
		return []FileInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return files, nil
}

var _ Store = (*FileStore)(nil)
