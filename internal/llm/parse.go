package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/a3tai/mcp-legal-extractor/internal/errors"
	"github.com/a3tai/mcp-legal-extractor/internal/models"
)

// flatValueConfidence is assigned to fields returned as bare values instead
// of {value, source_text, confidence_score} envelopes
const flatValueConfidence = 0.5

// Parsed is the outcome of parsing one LLM reply
type Parsed struct {
	Fields map[string]models.ExtractionField
	// Strict is true when the whole reply matched the envelope schema.
	Strict bool
	// SchemaError explains why strict validation failed.
	SchemaError error
}

// BuildEnvelopeSchema returns a JSON Schema requiring every present field to
// be a {value, source_text, confidence_score} envelope. Unknown keys are allowed.
func BuildEnvelopeSchema(fieldNames []string) map[string]any {
	envelope := map[string]any{
		"type":     "object",
		"required": []string{"value", "source_text", "confidence_score"},
		"properties": map[string]any{
			"value": map[string]any{
				"type":  []string{"string", "number", "array", "null"},
				"items": map[string]any{"type": []string{"string", "number"}},
			},
			"source_text":      map[string]any{"type": []string{"string", "null"}},
			"confidence_score": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		},
	}

	props := make(map[string]any, len(fieldNames))
	for _, name := range fieldNames {
		props[name] = envelope
	}
	return map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"type":       "object",
		"properties": props,
	}
}

// validateAgainstSchema validates decoded JSON against schemaMap
func validateAgainstSchema(schemaMap map[string]any, v any) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("envelope.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("envelope.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// StripCodeFence removes a surrounding ``` or ```json fence
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseResponse converts a raw reply into one field per expected name. The
// reply must be a JSON object; anything else is an InvalidResponse error.
func ParseResponse(raw string, fieldNames []string) (*Parsed, error) {
	const op = "llm.parse"

	var root any
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &root); err != nil {
		return nil, errors.InvalidResponse(op, "response is not valid JSON", err)
	}
	obj, ok := root.(map[string]any)
	if !ok {
		return nil, errors.InvalidResponse(op, fmt.Sprintf("response root is %s, not an object", jsonKind(root)), nil)
	}

	parsed := &Parsed{Fields: make(map[string]models.ExtractionField, len(fieldNames))}
	if err := validateAgainstSchema(BuildEnvelopeSchema(fieldNames), obj); err != nil {
		parsed.SchemaError = err
	} else {
		parsed.Strict = true
	}

	for _, name := range fieldNames {
		v, present := obj[name]
		if !present {
			parsed.Fields[name] = models.NullField()
			continue
		}
		parsed.Fields[name] = parseField(v)
	}
	return parsed, nil
}

func parseField(v any) models.ExtractionField {
	envelope, ok := v.(map[string]any)
	if !ok {
		value := normalizeValue(v)
		if value == nil {
			return models.NullField()
		}
		return models.ExtractionField{Value: value, ConfidenceScore: flatValueConfidence}
	}

	value := normalizeValue(envelope["value"])
	if value == nil {
		return models.NullField()
	}
	field := models.ExtractionField{
		Value:           value,
		ConfidenceScore: parseConfidence(envelope["confidence_score"]),
	}
	if src, ok := envelope["source_text"]; ok && src != nil {
		var s string
		if str, isStr := src.(string); isStr {
			s = str
		} else {
			s = jsonText(src)
		}
		field.SourceText = &s
	}
	return field
}

func parseConfidence(v any) float64 {
	var score float64
	switch c := v.(type) {
	case float64:
		score = c
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil || math.IsNaN(f) {
			return 0
		}
		score = f
	default:
		return 0
	}
	return min(max(score, 0), 1)
}

// normalizeValue maps decoded JSON onto the value shapes a field may hold:
// nil, string, float64 or []string
func normalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return val
	case float64:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			switch it := item.(type) {
			case nil:
				continue
			case string:
				out = append(out, it)
			case float64:
				out = append(out, strconv.FormatFloat(it, 'f', -1, 64))
			default:
				out = append(out, jsonText(it))
			}
		}
		return out
	default:
		return jsonText(val)
	}
}

func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
