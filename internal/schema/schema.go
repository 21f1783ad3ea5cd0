// Package schema manages named extraction schema templates.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/a3tai/mcp-legal-extractor/internal/errors"
	"github.com/a3tai/mcp-legal-extractor/internal/models"
)

//go:embed templates/*.yaml
var builtin embed.FS

// Template is the YAML form of an extraction schema
type Template struct {
	Name                string              `yaml:"name"`
	ConfidenceThreshold *float64            `yaml:"confidence_threshold"`
	Fields              map[string]FieldDef `yaml:"fields"`
}

// FieldDef describes one field to extract
type FieldDef struct {
	Type        string `yaml:"type" json:"type,omitempty"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// Schema converts the template to an extraction schema
func (t Template) Schema() (models.ExtractionSchema, error) {
	threshold := -1.0
	if t.ConfidenceThreshold != nil {
		threshold = *t.ConfidenceThreshold
	}

	fields := make(map[string]models.FieldSpec, len(t.Fields))
	for name, def := range t.Fields {
		spec, err := json.Marshal(def)
		if err != nil {
			return models.ExtractionSchema{}, fmt.Errorf("field %s: %w", name, err)
		}
		fields[name] = spec
	}

	s := models.NewExtractionSchema(t.Name, fields, threshold)
	if err := s.Validate(); err != nil {
		return models.ExtractionSchema{}, err
	}
	return s, nil
}

// ParseTemplate decodes a YAML template
func ParseTemplate(data []byte) (models.ExtractionSchema, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return models.ExtractionSchema{}, errors.Validation("schema.parse", fmt.Sprintf("invalid template: %v", err))
	}
	return t.Schema()
}

// Registry holds schemas by name
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]models.ExtractionSchema
}

// NewRegistry returns a registry preloaded with the built-in templates
func NewRegistry() *Registry {
	r := &Registry{schemas: make(map[string]models.ExtractionSchema)}
	if err := r.loadFS(builtin, "templates"); err != nil {
		panic(fmt.Sprintf("built-in schema templates are invalid: %v", err))
	}
	return r
}

// Register adds or replaces a schema
func (r *Registry) Register(s models.ExtractionSchema) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.Name] = s
	return nil
}

// Get returns the schema registered under name
func (r *Registry) Get(name string) (models.ExtractionSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[strings.TrimSpace(name)]
	if !ok {
		return models.ExtractionSchema{}, errors.Validation("schema.get",
			fmt.Sprintf("unknown schema %q (available: %s)", name, strings.Join(r.namesLocked(), ", ")))
	}
	return s, nil
}

// Resolve builds the schema for one request. Inline fieldsJSON wins over a
// template name; a threshold in [0,1] overrides the template's own.
func (r *Registry) Resolve(name, fieldsJSON string, threshold *float64) (models.ExtractionSchema, error) {
	var s models.ExtractionSchema
	if strings.TrimSpace(fieldsJSON) != "" {
		fields, err := ParseFields(fieldsJSON)
		if err != nil {
			return models.ExtractionSchema{}, err
		}
		if strings.TrimSpace(name) == "" {
			name = "custom"
		}
		s = models.NewExtractionSchema(name, fields, -1)
	} else {
		if strings.TrimSpace(name) == "" {
			return models.ExtractionSchema{}, errors.Validation("schema.resolve",
				"either a schema name or inline fields are required")
		}
		var err error
		if s, err = r.Get(name); err != nil {
			return models.ExtractionSchema{}, err
		}
		s = models.NewExtractionSchema(s.Name, s.Fields, s.ConfidenceThreshold)
	}

	if threshold != nil {
		s.ConfidenceThreshold = *threshold
	}
	if err := s.Validate(); err != nil {
		return models.ExtractionSchema{}, err
	}
	return s, nil
}

// Names returns the registered schema names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

// All returns every registered schema ordered by name
func (r *Registry) All() []models.ExtractionSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ExtractionSchema, 0, len(r.schemas))
	for _, name := range r.namesLocked() {
		out = append(out, r.schemas[name])
	}
	return out
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadDir registers every *.yaml and *.yml template in dir and returns how
// many were loaded. A missing directory loads nothing.
func (r *Registry) LoadDir(dir string) (int, error) {
	if dir == "" {
		return 0, nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}
	before := len(r.Names())
	if err := r.loadFS(os.DirFS(dir), "."); err != nil {
		return 0, err
	}
	return len(r.Names()) - before, nil
}

func (r *Registry) loadFS(fsys fs.FS, root string) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return fmt.Errorf("failed to read templates: %w", err)
	}
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(root, e.Name())))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		s, err := ParseTemplate(data)
		if err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
		if err := r.Register(s); err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
	}
	return nil
}

// ParseFields decodes inline JSON field descriptors
func ParseFields(raw string) (map[string]models.FieldSpec, error) {
	var fields map[string]models.FieldSpec
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, errors.Validation("schema.fields", fmt.Sprintf("fields must be a JSON object: %v", err))
	}
	if err := ValidateFields(fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// ValidateFields requires a non-empty map with non-empty field names
func ValidateFields(fields map[string]models.FieldSpec) error {
	if len(fields) == 0 {
		return errors.Validation("schema.fields", "schema must define at least one field")
	}
	for name := range fields {
		if strings.TrimSpace(name) == "" {
			return errors.Validation("schema.fields", "field names cannot be empty")
		}
	}
	return nil
}
