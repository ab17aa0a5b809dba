package searchindex

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
)

var (
	// ErrEmptyInput is returned when there is nothing to parse.
	ErrEmptyInput = errors.New("empty search index")

	// ErrMalformedIndex is returned when the input is valid JSON but not a
	// {"docs": [...]} object.
	ErrMalformedIndex = errors.New("malformed search index")
)

// ParseError reports invalid or truncated JSON. Offset is relative to the
// start of the original input, including any variable assignment prefix.
type ParseError struct {
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid search index at byte %d: %v", e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var assignmentRegex = regexp.MustCompile(`^\s*(?:var|let|const)\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=`)

// splitAssignment strips an optional "var name =" prefix and trailing ";".
// It returns the variable name, the JSON body and the body's offset in data.
func splitAssignment(data []byte) (string, []byte, int64) {
	variable := ""
	var base int64
	if m := assignmentRegex.FindSubmatchIndex(data); m != nil {
		variable = string(data[m[2]:m[3]])
		base = int64(m[1])
		data = data[m[1]:]
	}
	body := bytes.TrimRight(data, " \t\r\n")
	body = bytes.TrimSuffix(body, []byte(";"))
	return variable, body, base
}

// Parse loads a search index in either the script form
// ("var documenterSearchIndex = {...}") or as a bare JSON object.
//
// The top-level shape is checked strictly. Individual records missing a
// field or carrying a non-string value are skipped and listed in the report.
func Parse(data []byte) (*Collection, *LoadReport, error) {
	variable, body, base := splitAssignment(data)
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil, ErrEmptyInput
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, nil, classifyError(err, base)
	}
	if top == nil {
		return nil, nil, fmt.Errorf("%w: top-level value is null", ErrMalformedIndex)
	}

	if dup := duplicateKey(body); dup != "" {
		return nil, nil, fmt.Errorf("%w: duplicate top-level key %q", ErrMalformedIndex, dup)
	}

	rawDocs, ok := top["docs"]
	if !ok || len(top) != 1 {
		keys := make([]string, 0, len(top))
		for k := range top {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, nil, fmt.Errorf("%w: expected exactly one key \"docs\", found [%s]",
			ErrMalformedIndex, strings.Join(keys, ", "))
	}

	trimmed := bytes.TrimSpace(rawDocs)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, nil, fmt.Errorf("%w: \"docs\" must be an array", ErrMalformedIndex)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedIndex, err)
	}

	report := &LoadReport{Total: len(entries)}
	records := make([]Record, 0, len(entries))
	for i, raw := range entries {
		rec, reason := decodeRecord(raw)
		if reason != "" {
			report.Skipped = append(report.Skipped, SkippedEntry{Position: i, Reason: reason})
			continue
		}
		records = append(records, rec)
	}
	report.Accepted = len(records)

	return &Collection{Variable: orDefault(variable), records: records}, report, nil
}

// ParseReader reads r fully and parses it.
func ParseReader(r io.Reader) (*Collection, *LoadReport, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read search index: %w", err)
	}
	return Parse(data)
}

// ParseFile parses the search index at path.
func ParseFile(path string) (*Collection, *LoadReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read search index: %w", err)
	}
	c, report, err := Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, report, nil
}

// duplicateKey returns the first key repeated in the top-level object of a
// document that is already known to be valid JSON.
func duplicateKey(body []byte) string {
	dec := json.NewDecoder(bytes.NewReader(body))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return ""
	}
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		key, _ := tok.(string)
		if seen[key] {
			return key
		}
		seen[key] = true
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return ""
		}
	}
	return ""
}

// decodeRecord returns the record or a non-empty reason it was rejected.
func decodeRecord(raw json.RawMessage) (Record, string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return Record{}, "entry is not an object"
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Record{}, fmt.Sprintf("entry is not an object: %v", err)
	}

	var values [len(recordFields)]string
	for i, name := range recordFields {
		v, ok := fields[name]
		if !ok {
			return Record{}, fmt.Sprintf("missing field %q", name)
		}
		// json.Unmarshal accepts null into a string, so check the token.
		v = bytes.TrimSpace(v)
		if len(v) == 0 || v[0] != '"' {
			return Record{}, fmt.Sprintf("field %q is not a string", name)
		}
		if err := json.Unmarshal(v, &values[i]); err != nil {
			return Record{}, fmt.Sprintf("field %q: %v", name, err)
		}
	}

	return Record{
		Location: values[0],
		Page:     values[1],
		Title:    values[2],
		Text:     values[3],
		Category: values[4],
	}, ""
}

func classifyError(err error, base int64) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &ParseError{Offset: base + syntaxErr.Offset, Err: err}
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Errorf("%w: top-level value is %s, want object", ErrMalformedIndex, typeErr.Value)
	}
	return fmt.Errorf("%w: %v", ErrMalformedIndex, err)
}

func orDefault(variable string) string {
	if variable == "" {
		return DefaultVariable
	}
	return variable
}
