package schema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-legal-extractor/internal/errors"
	"github.com/a3tai/mcp-legal-extractor/internal/models"
)

func TestNewRegistry_Builtins(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, []string{
		"answers_extraction",
		"complaint",
		"medical_record",
		"questions_extraction",
		"retainer_agreement",
	}, r.Names())

	complaint, err := r.Get("complaint")
	require.NoError(t, err)
	assert.Equal(t, 0.85, complaint.ConfidenceThreshold)
	assert.Contains(t, complaint.FieldNames(), "case_number")
	assert.Contains(t, complaint.FieldNames(), "defendant_names")

	var spec map[string]string
	require.NoError(t, json.Unmarshal(complaint.Fields["defendant_names"], &spec))
	assert.Equal(t, "array", spec["type"])
	assert.NotEmpty(t, spec["description"])

	assert.Len(t, r.All(), 5)
}

func TestRegistry_GetUnknown(t *testing.T) {
	_, err := NewRegistry().Get("lease")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Contains(t, err.Error(), "complaint")
}

func TestParseTemplate(t *testing.T) {
	s, err := ParseTemplate([]byte(`
name: lease
fields:
  landlord:
    type: string
    description: Landlord name
  rent:
    type: string
`))
	require.NoError(t, err)
	assert.Equal(t, "lease", s.Name)
	assert.Equal(t, models.DefaultConfidenceThreshold, s.ConfidenceThreshold)
	assert.JSONEq(t, `{"type":"string"}`, string(s.Fields["rent"]))

	tests := []struct {
		name string
		yaml string
	}{
		{"no fields", "name: empty\nfields: {}\n"},
		{"no name", "fields:\n  a:\n    type: string\n"},
		{"bad threshold", "name: x\nconfidence_threshold: 1.5\nfields:\n  a:\n    type: string\n"},
		{"not yaml", "name: [unclosed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplate([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
		})
	}
}

func TestRegistry_LoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lease.yml"),
		[]byte("name: lease\nconfidence_threshold: 0.8\nfields:\n  landlord:\n    type: string\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "complaint.yaml"),
		[]byte("name: complaint\nfields:\n  docket:\n    type: string\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	r := NewRegistry()
	n, err := r.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "overrides do not count as new")

	lease, err := r.Get("lease")
	require.NoError(t, err)
	assert.Equal(t, 0.8, lease.ConfidenceThreshold)

	complaint, err := r.Get("complaint")
	require.NoError(t, err)
	assert.Equal(t, []string{"docket"}, complaint.FieldNames())

	n, err = r.LoadDir(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0o644))
	_, err = r.LoadDir(dir)
	assert.ErrorContains(t, err, "broken.yaml")
}

func TestParseFields(t *testing.T) {
	fields, err := ParseFields(`{"case_number": {"type": "string"}, "parties": null}`)
	require.NoError(t, err)
	assert.Len(t, fields, 2)

	for _, raw := range []string{`[]`, `{}`, `{"": {}}`, `not json`} {
		_, err := ParseFields(raw)
		assert.True(t, errors.IsValidation(err), raw)
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	low, high := 0.5, 1.5

	s, err := r.Resolve("complaint", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.85, s.ConfidenceThreshold)

	s, err = r.Resolve("complaint", "", &low)
	require.NoError(t, err)
	assert.Equal(t, 0.5, s.ConfidenceThreshold)

	original, err := r.Get("complaint")
	require.NoError(t, err)
	assert.Equal(t, 0.85, original.ConfidenceThreshold, "override must not leak into the registry")

	s, err = r.Resolve("", `{"docket": {"type": "string"}}`, nil)
	require.NoError(t, err)
	assert.Equal(t, "custom", s.Name)
	assert.Equal(t, models.DefaultConfidenceThreshold, s.ConfidenceThreshold)
	assert.Equal(t, []string{"docket"}, s.FieldNames())

	s, err = r.Resolve("intake", `{"docket": {}}`, nil)
	require.NoError(t, err)
	assert.Equal(t, "intake", s.Name)

	for name, call := range map[string]func() error{
		"nothing":        func() error { _, err := r.Resolve("", "", nil); return err },
		"unknown":        func() error { _, err := r.Resolve("lease", "", nil); return err },
		"bad fields":     func() error { _, err := r.Resolve("", "{}", nil); return err },
		"threshold high": func() error { _, err := r.Resolve("complaint", "", &high); return err },
	} {
		assert.True(t, errors.IsValidation(call()), name)
	}
}
