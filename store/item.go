package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
)

// IDField is the reserved key that carries an item's identifier in its JSON form.
const IDField = "id"

// Item is a schema-less record. Fields holds arbitrary JSON values and never
// contains IDField; the identifier lives in ID.
type Item struct {
	ID     int64
	Fields map[string]any
}

// MarshalJSON flattens the item into a single JSON object.
func (it Item) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(it.Fields)+1)
	maps.Copy(flat, it.Fields)
	flat[IDField] = it.ID
	return json.Marshal(flat)
}

// UnmarshalJSON reads a flat JSON object. A missing or non-integer id leaves
// ID at zero; the store repairs such items on load.
func (it *Item) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("item must be a JSON object")
	}

	it.ID = 0
	if rawID, ok := raw[IDField]; ok {
		// Only a bare JSON integer counts; "123" stays a string.
		if id, err := strconv.ParseInt(string(bytes.TrimSpace(rawID)), 10, 64); err == nil {
			it.ID = id
		}
		delete(raw, IDField)
	}

	it.Fields = make(map[string]any, len(raw))
	for k, v := range raw {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		it.Fields[k] = val
	}
	return nil
}

// Get returns a field value, or the id for IDField.
func (it Item) Get(key string) (any, bool) {
	if key == IDField {
		return it.ID, true
	}
	v, ok := it.Fields[key]
	return v, ok
}

// clone returns a deep copy so callers can never alias store state.
func (it Item) clone() Item {
	return Item{ID: it.ID, Fields: deepCopy(it.Fields)}
}

// deepCopy returns a deep copy of a JSON document.
func deepCopy(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = copyValue(v)
	}
	return dst
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return t
	}
}

// stripID returns a deep copy of fields without IDField.
func stripID(fields map[string]any) map[string]any {
	out := deepCopy(fields)
	delete(out, IDField)
	return out
}

func cloneAll(items []Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it.clone()
	}
	return out
}
