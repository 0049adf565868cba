package rowparse

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Composition is the variable width tail of a report row, column name to
// value, kept in column order.
type Composition struct {
	keys   []string
	values map[string]any
}

func NewComposition() *Composition {
	return &Composition{values: map[string]any{}}
}

// Set stores a value, a repeated key keeps its original position.
func (c *Composition) Set(key string, value any) {
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
}

func (c *Composition) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

func (c *Composition) Keys() []string {
	return append([]string(nil), c.keys...)
}

func (c *Composition) Len() int {
	return len(c.keys)
}

func encodeJSON(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode terminates every value with a newline
	buf.Truncate(buf.Len() - 1)
	return nil
}

func (c *Composition) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeJSON(&buf, key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		mark := buf.Len()
		if err := encodeJSON(&buf, c.values[key]); err != nil {
			// values json cannot hold, such as NaN, are kept as their text
			buf.Truncate(mark)
			if err := encodeJSON(&buf, fmt.Sprint(c.values[key])); err != nil {
				return nil, fmt.Errorf("encode %q: %w", key, err)
			}
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Composition) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("composition must be a json object")
	}

	c.keys = nil
	c.values = map[string]any{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("composition key is not a string")
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		c.Set(key, value)
	}
	_, err = dec.Token()
	return err
}

// String returns the json encoding, "{}" for a nil composition.
func (c *Composition) String() string {
	if c == nil {
		return "{}"
	}
	b, err := c.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ParseComposition decodes a stored composition payload, an empty payload
// is an empty composition.
func ParseComposition(payload string) (*Composition, error) {
	c := NewComposition()
	if payload == "" {
		return c, nil
	}
	if err := c.UnmarshalJSON([]byte(payload)); err != nil {
		return nil, err
	}
	return c, nil
}
