package searchindex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type document struct {
	Docs []Record `json:"docs"`
}

// Encode writes the collection as {"docs":[...]} followed by a newline.
// HTML characters are left unescaped so that texts round-trip byte for byte.
func (c *Collection) Encode(w io.Writer) error {
	docs := c.records
	if docs == nil {
		docs = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(document{Docs: docs}); err != nil {
		return fmt.Errorf("failed to encode search index: %w", err)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c *Collection) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// WriteScript writes the collection as a variable assignment that a browser
// can load with a plain <script> tag.
func (c *Collection) WriteScript(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "var %s = ", orDefault(c.Variable)); err != nil {
		return fmt.Errorf("failed to write script header: %w", err)
	}
	return c.Encode(w)
}

// EncodeYAML writes the collection as a YAML document with a docs list.
func (c *Collection) EncodeYAML(w io.Writer) error {
	docs := c.records
	if docs == nil {
		docs = []Record{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(yamlDocument{Docs: docs}); err != nil {
		return fmt.Errorf("failed to encode search index as YAML: %w", err)
	}
	return enc.Close()
}

type yamlDocument struct {
	Docs []Record `yaml:"docs"`
}
