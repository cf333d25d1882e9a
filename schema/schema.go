// Package schema validates item bodies against an optional JSON Schema
// before they reach the store.
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// Schema resources are registered under these names; they never touch disk.
const (
	fullURL  = "item.json"
	patchURL = "item-patch.json"
)

var printer = message.NewPrinter(language.English)

// Validator checks item bodies against a compiled JSON Schema. Documents
// without "$schema" are read as draft-07. A nil *Validator accepts
// everything.
type Validator struct {
	full  *jsonschema.Schema
	patch *jsonschema.Schema
}

// New compiles doc. Update patches are checked against a copy of doc
// without its top-level required list; nested required lists still apply.
func New(doc map[string]any) (*Validator, error) {
	if doc == nil {
		return nil, errors.New("schema is empty")
	}
	full, err := compile(fullURL, doc)
	if err != nil {
		return nil, err
	}
	patchDoc := maps.Clone(doc)
	delete(patchDoc, "required")
	patch, err := compile(patchURL, patchDoc)
	if err != nil {
		return nil, err
	}
	return &Validator{full: full, patch: patch}, nil
}

// Load reads and compiles a schema from a .json, .yaml or .yml file.
func Load(path string) (*Validator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		var v any
		if v, err = jsonschema.UnmarshalJSON(bytes.NewReader(data)); err == nil {
			var ok bool
			if doc, ok = v.(map[string]any); !ok && v != nil {
				err = errors.New("not a JSON object")
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}
	v, err := New(doc)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return v, nil
}

// Validate checks a full item body.
func (v *Validator) Validate(doc map[string]any) error {
	if v == nil {
		return nil
	}
	return describe(v.full.Validate(doc))
}

// ValidatePatch checks a partial update: the top-level required list is not
// enforced, every field that is present must still match.
func (v *Validator) ValidatePatch(patch map[string]any) error {
	if v == nil {
		return nil
	}
	if patch == nil {
		patch = map[string]any{}
	}
	return describe(v.patch.Validate(patch))
}

func compile(url string, doc map[string]any) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft7)
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return sch, nil
}

// describe flattens a validation error into one "location: reason" entry per
// failing leaf.
func describe(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	var msgs []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := "/" + strings.Join(e.InstanceLocation, "/")
			msgs = append(msgs, loc+": "+e.ErrorKind.LocalizedString(printer))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return errors.New(strings.Join(msgs, "; "))
}
