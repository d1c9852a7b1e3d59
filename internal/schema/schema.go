// Package schema validates untrusted JSON bodies against JSON Schema documents
// and reports failures per field.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FieldErrors maps a dotted field path (items.0.quantity) to its messages.
type FieldErrors map[string][]string

func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// Error is returned when a document fails validation or is not JSON at all.
type Error struct {
	Fields FieldErrors
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], "; "))
	}
	return "invalid payload: " + strings.Join(parts, ", ")
}

type Schema struct {
	name     string
	compiled *jsonschema.Schema
}

// Compile loads a Draft 2020-12 schema. Formats such as date-time are asserted.
func Compile(name, src string) (*Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true
	url := fmt.Sprintf("https://shop.schemas.local/%s.schema.json", name)
	if err := c.AddResource(url, strings.NewReader(src)); err != nil {
		return nil, fmt.Errorf("schema %s load failed: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %s compile failed: %w", name, err)
	}
	return &Schema{name: name, compiled: compiled}, nil
}

func MustCompile(name, src string) *Schema {
	s, err := Compile(name, src)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateBytes checks a raw body. Any failure is an *Error.
func (s *Schema) ValidateBytes(body []byte) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return &Error{Fields: FieldErrors{"body": {"must be a valid JSON document"}}}
	}
	if _, err := dec.Token(); err != io.EOF {
		return &Error{Fields: FieldErrors{"body": {"must contain a single JSON document"}}}
	}
	return s.Validate(doc)
}

// Validate checks an already decoded document (numbers as json.Number or float64).
func (s *Schema) Validate(doc any) error {
	err := s.compiled.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("schema %s: %w", s.name, err)
	}
	fields := FieldErrors{}
	collect(ve, fields)
	if len(fields) == 0 {
		fields.Add("body", ve.Message)
	}
	return &Error{Fields: fields}
}

// collect flattens the cause tree, keeping only leaves.
func collect(ve *jsonschema.ValidationError, out FieldErrors) {
	if len(ve.Causes) > 0 {
		for _, c := range ve.Causes {
			collect(c, out)
		}
		return
	}
	if strings.HasSuffix(ve.KeywordLocation, "/required") {
		if names := quoted(ve.Message); len(names) > 0 {
			for _, n := range names {
				out.Add(joinPath(ve.InstanceLocation, n), "is required")
			}
			return
		}
	}
	out.Add(fieldPath(ve.InstanceLocation), ve.Message)
}

func fieldPath(ptr string) string {
	p := strings.Trim(ptr, "/")
	if p == "" {
		return "body"
	}
	return strings.ReplaceAll(p, "/", ".")
}

func joinPath(ptr, name string) string {
	p := strings.Trim(ptr, "/")
	if p == "" {
		return name
	}
	return strings.ReplaceAll(p, "/", ".") + "." + name
}

// quoted extracts 'a', 'b' style names from a "missing properties" message.
func quoted(msg string) []string {
	var out []string
	for {
		i := strings.IndexByte(msg, '\'')
		if i < 0 {
			return out
		}
		j := strings.IndexByte(msg[i+1:], '\'')
		if j < 0 {
			return out
		}
		out = append(out, msg[i+1:i+1+j])
		msg = msg[i+j+2:]
	}
}
