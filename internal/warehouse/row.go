package warehouse

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is one result row. Columns keep the order the query produced them in,
// including through JSON encoding.
type Row struct {
	Columns []string
	Values  []any
}

func NewRow(columns []string, values []any) Row {
	return Row{Columns: columns, Values: values}
}

// Get returns the value of the first column named column.
func (r Row) Get(column string) (any, bool) {
	for i, name := range r.Columns {
		if name == column && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map returns the row as an unordered map.
func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r.Columns))
	for i, name := range r.Columns {
		if i < len(r.Values) {
			out[name] = r.Values[i]
		}
	}
	return out
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var value any
		if i < len(r.Values) {
			value = r.Values[i]
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode column %q: %w", name, err)
		}
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Row) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	token, err := decoder.Token()
	if err != nil {
		return err
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("row must be a JSON object")
	}

	columns := make([]string, 0)
	values := make([]any, 0)
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return err
		}
		key, ok := keyToken.(string)
		if !ok {
			return fmt.Errorf("row key must be a string")
		}
		var value any
		if err := decoder.Decode(&value); err != nil {
			return fmt.Errorf("decode column %q: %w", key, err)
		}
		columns = append(columns, key)
		values = append(values, value)
	}
	if _, err := decoder.Token(); err != nil {
		return err
	}

	r.Columns = columns
	r.Values = values
	return nil
}

// CloneRows copies rows so that callers can retain them independently.
func CloneRows(rows []Row) []Row {
	if rows == nil {
		return nil
	}
	out := make([]Row, len(rows))
	for i, row := range rows {
		out[i] = Row{
			Columns: append([]string(nil), row.Columns...),
			Values:  append([]any(nil), row.Values...),
		}
	}
	return out
}
