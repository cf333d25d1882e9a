package schema_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stevemurr/item-store/schema"
)

var itemDoc = map[string]any{
	"type":     "object",
	"required": []any{"name"},
	"properties": map[string]any{
		"name":  map[string]any{"type": "string", "minLength": float64(1), "maxLength": float64(5)},
		"count": map[string]any{"type": "integer", "minimum": float64(0), "maximum": float64(100)},
		"score": map[string]any{"type": "number", "exclusiveMinimum": float64(0), "exclusiveMaximum": float64(1)},
		"role":  map[string]any{"type": "string", "enum": []any{"admin", "user"}},
		"tags": map[string]any{
			"type":     "array",
			"items":    map[string]any{"type": "string"},
			"minItems": float64(1),
			"maxItems": float64(3),
		},
		"address": map[string]any{
			"type":     "object",
			"required": []any{"city"},
			"properties": map[string]any{
				"city": map[string]any{"type": "string"},
			},
		},
	},
	"additionalProperties": false,
}

func mustNew(t *testing.T, doc map[string]any) *schema.Validator {
	t.Helper()
	v, err := schema.New(doc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestValidate(t *testing.T) {
	itemSchema := mustNew(t, itemDoc)
	tests := []struct {
		name    string
		doc     map[string]any
		wantErr bool
	}{
		{"minimal", map[string]any{"name": "A"}, false},
		{"missing required", map[string]any{"count": float64(1)}, true},
		{"wrong type", map[string]any{"name": float64(1)}, true},
		{"string too short", map[string]any{"name": ""}, true},
		{"string too long", map[string]any{"name": "ABCDEF"}, true},
		{"integer whole float", map[string]any{"name": "A", "count": float64(5)}, false},
		{"integer fractional", map[string]any{"name": "A", "count": 5.5}, true},
		{"below minimum", map[string]any{"name": "A", "count": float64(-1)}, true},
		{"above maximum", map[string]any{"name": "A", "count": float64(101)}, true},
		{"exclusive bounds", map[string]any{"name": "A", "score": float64(1)}, true},
		{"inside exclusive bounds", map[string]any{"name": "A", "score": 0.5}, false},
		{"enum ok", map[string]any{"name": "A", "role": "admin"}, false},
		{"enum bad", map[string]any{"name": "A", "role": "root"}, true},
		{"array ok", map[string]any{"name": "A", "tags": []any{"x", "y"}}, false},
		{"array empty", map[string]any{"name": "A", "tags": []any{}}, true},
		{"array too long", map[string]any{"name": "A", "tags": []any{"a", "b", "c", "d"}}, true},
		{"array wrong element", map[string]any{"name": "A", "tags": []any{"a", float64(1)}}, true},
		{"nested missing required", map[string]any{"name": "A", "address": map[string]any{}}, true},
		{"nested ok", map[string]any{"name": "A", "address": map[string]any{"city": "NY"}}, false},
		{"additional property", map[string]any{"name": "A", "extra": true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := itemSchema.Validate(tt.doc)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%v) error = %v, wantErr %v", tt.doc, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePatch(t *testing.T) {
	itemSchema := mustNew(t, itemDoc)
	if err := itemSchema.ValidatePatch(map[string]any{"count": float64(3)}); err != nil {
		t.Fatalf("patch without required root field should pass: %v", err)
	}
	if err := itemSchema.ValidatePatch(map[string]any{"count": "three"}); err == nil {
		t.Fatal("expected type error in patch")
	}
	if err := itemSchema.ValidatePatch(map[string]any{"address": map[string]any{}}); err == nil {
		t.Fatal("nested required fields still apply to patches")
	}
	if err := itemSchema.Validate(map[string]any{"count": float64(3)}); err == nil {
		t.Fatal("full validation must still require name")
	}
}

func TestValidationErrorNamesField(t *testing.T) {
	err := mustNew(t, itemDoc).Validate(map[string]any{"name": float64(1)})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "/name") {
		t.Fatalf("error should point at /name: %v", err)
	}
}

func TestNewRejectsInvalidSchema(t *testing.T) {
	if _, err := schema.New(map[string]any{"type": float64(5)}); err == nil {
		t.Fatal("expected compile error for a non-string type")
	}
	if _, err := schema.New(nil); err == nil {
		t.Fatal("expected error for nil document")
	}
}

func TestNilSchemaAcceptsAnything(t *testing.T) {
	var s *schema.Validator
	if err := s.Validate(map[string]any{"anything": "goes"}); err != nil {
		t.Fatalf("nil schema should pass: %v", err)
	}
	if err := s.ValidatePatch(nil); err != nil {
		t.Fatalf("nil schema should pass: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "item.yaml")
	src := `type: object
required: [name]
properties:
  name: {type: string}
  priority: {type: integer, enum: [1, 2, 3]}
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := schema.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Validate(map[string]any{"name": "x", "priority": float64(2)}); err != nil {
		t.Fatalf("expected pass: %v", err)
	}
	if err := s.Validate(map[string]any{"name": "x", "priority": float64(4)}); err == nil {
		t.Fatal("expected enum error")
	}
	if err := s.Validate(map[string]any{}); err == nil {
		t.Fatal("expected required error")
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "item.json")
	if err := os.WriteFile(path, []byte(`{"type": "object", "required": ["name"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := schema.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Validate(map[string]any{}); err == nil {
		t.Fatal("expected required error")
	}

	if _, err := schema.Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
