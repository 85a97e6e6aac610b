package model

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/hupe1980/ordermesh/core"
	"github.com/tidwall/gjson"
)

// FieldType is the JSON type of a schema field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
)

// Field describes one property of a structured response.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Enum        []string
	Required    bool
	// Items describes the object elements of an array field.
	Items []Field
}

// Schema is the small fixed set of fields a structured completion must return.
type Schema struct {
	Name        string
	Description string
	Fields      []Field
}

// ValidationError describes the first schema violation found in a response.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// JSONSchema renders the schema in the strict JSON Schema dialect accepted by
// structured output APIs: every property is listed as required and optional
// ones are made nullable.
func (s *Schema) JSONSchema() map[string]any {
	return objectSchema(s.Fields)
}

func objectSchema(fields []Field) map[string]any {
	props := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		var p map[string]any
		if f.Type == TypeArray {
			p = map[string]any{"type": "array", "items": objectSchema(f.Items)}
		} else {
			p = map[string]any{"type": string(f.Type)}
			if !f.Required {
				p["type"] = []string{string(f.Type), "null"}
			}
		}
		if f.Description != "" {
			p["description"] = f.Description
		}
		if len(f.Enum) > 0 {
			p["enum"] = f.Enum
		}
		props[f.Name] = p
		required = append(required, f.Name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// Instruction describes the expected object in prose, for providers without
// native structured output.
func (s *Schema) Instruction() string {
	var b strings.Builder
	b.WriteString("Respond with a single JSON object and nothing else. Fields:\n")
	describeFields(&b, s.Fields, "")
	return b.String()
}

func describeFields(b *strings.Builder, fields []Field, indent string) {
	for _, f := range fields {
		fmt.Fprintf(b, "%s- %q (%s", indent, f.Name, f.Type)
		if f.Required {
			b.WriteString(", required")
		}
		b.WriteString(")")
		if len(f.Enum) > 0 {
			fmt.Fprintf(b, " one of [%s]", strings.Join(f.Enum, ", "))
		}
		if f.Description != "" {
			b.WriteString(": " + f.Description)
		}
		b.WriteString("\n")
		if len(f.Items) > 0 {
			describeFields(b, f.Items, indent+"  ")
		}
	}
}

// Validate extracts the JSON object from text and checks it against the
// schema. Failures wrap core.ErrMalformedOutput and a *ValidationError.
func (s *Schema) Validate(text string) (gjson.Result, error) {
	raw := ExtractJSON(text)
	if !gjson.Valid(raw) {
		return gjson.Result{}, malformed(&ValidationError{Message: "response is not valid JSON"})
	}
	root := gjson.Parse(raw)
	if !root.IsObject() {
		return gjson.Result{}, malformed(&ValidationError{Message: "response is not a JSON object"})
	}
	if err := validateFields(root, s.Fields, ""); err != nil {
		return gjson.Result{}, malformed(err)
	}
	return root, nil
}

func malformed(err error) error {
	return fmt.Errorf("%w: %w", core.ErrMalformedOutput, err)
}

func validateFields(obj gjson.Result, fields []Field, prefix string) error {
	for _, f := range fields {
		name := prefix + f.Name
		v := obj.Get(f.Name)
		if !v.Exists() || v.Type == gjson.Null {
			if f.Required {
				return &ValidationError{Field: name, Message: "required field is missing"}
			}
			continue
		}
		if !isValidType(v, f.Type) {
			return &ValidationError{Field: name, Value: v.Value(), Message: fmt.Sprintf("expected type %s", f.Type)}
		}
		if len(f.Enum) > 0 && !slices.Contains(f.Enum, v.String()) {
			return &ValidationError{Field: name, Value: v.String(), Message: "value not in enum"}
		}
		if f.Type == TypeArray && len(f.Items) > 0 {
			for i, el := range v.Array() {
				if !el.IsObject() {
					return &ValidationError{Field: fmt.Sprintf("%s[%d]", name, i), Message: "expected object"}
				}
				if err := validateFields(el, f.Items, fmt.Sprintf("%s[%d].", name, i)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func isValidType(v gjson.Result, t FieldType) bool {
	switch t {
	case TypeString:
		return v.Type == gjson.String
	case TypeInteger:
		return v.Type == gjson.Number && v.Num == math.Trunc(v.Num)
	case TypeNumber:
		return v.Type == gjson.Number
	case TypeBoolean:
		return v.Type == gjson.True || v.Type == gjson.False
	case TypeArray:
		return v.IsArray()
	default:
		return true
	}
}

// ExtractJSON strips markdown code fences and surrounding prose from a model
// response, returning the outermost JSON object text.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
