// Package schema loads the JSON description of the warehouse that grounds
// SQL generation.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

var (
	ErrSchemaNotFound  = errors.New("schema not found")
	ErrSchemaMalformed = errors.New("schema malformed")
)

//go:embed default_schema.json
var defaultSchema []byte

// nonTableKeys are top-level keys that carry metadata rather than tables.
var nonTableKeys = map[string]struct{}{
	"relationships":  {},
	"business_logic": {},
}

// Description is the parsed schema document. It is treated as opaque and
// only ever rendered back to text.
type Description map[string]any

// Default returns the embedded description of the sample retail warehouse.
func Default() (Description, error) {
	return Parse(bytes.NewReader(defaultSchema))
}

// Parse decodes a description. The top-level value must be a JSON object.
func Parse(r io.Reader) (Description, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMalformed, err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("%w: trailing data after top-level value", ErrSchemaMalformed)
	}
	object, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value must be an object", ErrSchemaMalformed)
	}
	return Description(object), nil
}

// Render returns the description as two-space-indented JSON.
func (d Description) Render() (string, error) {
	if d == nil {
		return "{}", nil
	}
	encoded, err := json.MarshalIndent(map[string]any(d), "", "  ")
	if err != nil {
		return "", fmt.Errorf("render schema: %w", err)
	}
	return string(encoded), nil
}

// Tables lists the top-level table keys in sorted order.
func (d Description) Tables() []string {
	tables := make([]string, 0, len(d))
	for key := range d {
		if _, skip := nonTableKeys[key]; skip {
			continue
		}
		tables = append(tables, key)
	}
	sort.Strings(tables)
	return tables
}
