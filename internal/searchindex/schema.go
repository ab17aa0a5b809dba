package searchindex

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const schemaURL = "https://docsearch.local/schema/search-index.json"

//go:embed schema.json
var schemaJSON []byte

// SchemaJSON returns a copy of the JSON Schema for search index documents.
func SchemaJSON() []byte {
	return bytes.Clone(schemaJSON)
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	return compiler.Compile(schemaURL)
})

// Violation is a single schema failure. Path is a JSON pointer into the
// document ("" for the root).
type Violation struct {
	Path    string `json:"path" yaml:"path"`
	Message string `json:"message" yaml:"message"`
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// Validate checks data against the search index schema. Unlike Parse it
// reports every bad record instead of skipping it. A nil result means the
// document is valid.
func Validate(data []byte) ([]Violation, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, err
	}

	_, body, base := splitAssignment(data)
	if len(bytes.TrimSpace(body)) == 0 {
		return []Violation{{Message: ErrEmptyInput.Error()}}, nil
	}

	var probe json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return []Violation{{Message: classifyError(err, base).Error()}}, nil
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to decode search index: %w", err)
	}

	err = schema.Validate(inst)
	if err == nil {
		return nil, nil
	}
	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	printer := message.NewPrinter(language.English)
	return collectViolations(validationErr, printer), nil
}

// collectViolations flattens the error tree to its leaves.
func collectViolations(verr *jsonschema.ValidationError, p *message.Printer) []Violation {
	if len(verr.Causes) == 0 {
		path := ""
		if len(verr.InstanceLocation) > 0 {
			path = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []Violation{{Path: path, Message: verr.ErrorKind.LocalizedString(p)}}
	}
	var out []Violation
	for _, cause := range verr.Causes {
		out = append(out, collectViolations(cause, p)...)
	}
	return out
}
