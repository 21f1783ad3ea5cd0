package pdf

import (
	"context"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Validator checks that a stored document is a structurally readable PDF
type Validator struct {
	store Store
}

// NewValidator creates a validator over store
func NewValidator(store Store) *Validator {
	return &Validator{store: store}
}

// Validate inspects a document with pdfcpu in relaxed mode. Structural
// problems are reported in the result; only store errors (not found, path
// escapes) are returned as errors.
func (v *Validator) Validate(ctx context.Context, documentID string) (*ValidationResult, error) {
	info, err := v.store.Stat(ctx, documentID)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{DocumentID: documentID, Size: info.Size}
	if info.Size == 0 {
		result.Message = fmt.Sprintf("file is empty: %s", documentID)
		return result, nil
	}

	pages, version, encrypted, err := inspect(info.Path)
	if err != nil {
		result.Message = err.Error()
		return result, nil //nolint:nilerr // Return result with validation error, not a processing error
	}

	result.Valid = true
	result.PageCount = pages
	result.Version = version
	result.Encrypted = encrypted
	return result, nil
}

// inspect reads the cross reference table and page tree of path
func inspect(path string) (pages int, version string, encrypted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid PDF file: %v", r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return 0, "", false, fmt.Errorf("cannot access file: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(f, conf)
	if err != nil {
		return 0, "", false, fmt.Errorf("invalid PDF file: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return 0, "", false, fmt.Errorf("invalid PDF page tree: %w", err)
	}

	return ctx.PageCount, ctx.VersionString(), ctx.Encrypt != nil, nil
}
