// Package schema declares typed input/output contracts for generation steps,
// validates bound inputs against them and parses backend responses back into
// typed values.
package schema

import (
	"fmt"
	"strings"
)

const (
	emptySchemaNameReason   = "schema name is empty"
	emptyFieldNameReason    = "field name is empty"
	duplicateFieldReason    = "duplicate field name"
	unknownFieldTypeReason  = "field has no declared type"
	unknownFieldRoleReason  = "field has no declared role"
	noInputFieldsReason     = "schema declares no input fields"
	noOutputFieldsReason    = "schema declares no output fields"
	missingInputReason      = "missing input"
	unexpectedInputReason   = "not a declared input field"
	inputTypeMismatchFormat = "expected %s, got %s"
)

// Schema is an immutable contract: a purpose statement plus ordered typed fields.
type Schema struct {
	name    string
	purpose string
	fields  []Field
	index   map[string]int
}

// Define validates the declaration and returns the schema. Malformed
// declarations fail here, never at call time.
func Define(name string, purpose string, fields ...Field) (*Schema, error) {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return nil, &DefinitionError{Schema: name, Reason: emptySchemaNameReason}
	}

	definedSchema := &Schema{
		name:    trimmedName,
		purpose: strings.TrimSpace(purpose),
		fields:  make([]Field, 0, len(fields)),
		index:   make(map[string]int, len(fields)),
	}

	var inputCount, outputCount int
	for _, field := range fields {
		if strings.TrimSpace(field.Name) == "" {
			return nil, &DefinitionError{Schema: trimmedName, Reason: emptyFieldNameReason}
		}
		if _, duplicate := definedSchema.index[field.Name]; duplicate {
			return nil, &DefinitionError{Schema: trimmedName, Field: field.Name, Reason: duplicateFieldReason}
		}
		switch field.Type {
		case String, StringList, StringListMapType:
		default:
			return nil, &DefinitionError{Schema: trimmedName, Field: field.Name, Reason: unknownFieldTypeReason}
		}
		switch field.Role {
		case Input:
			inputCount++
		case Output:
			outputCount++
		default:
			return nil, &DefinitionError{Schema: trimmedName, Field: field.Name, Reason: unknownFieldRoleReason}
		}
		definedSchema.index[field.Name] = len(definedSchema.fields)
		definedSchema.fields = append(definedSchema.fields, field)
	}

	if inputCount == 0 {
		return nil, &DefinitionError{Schema: trimmedName, Reason: noInputFieldsReason}
	}
	if outputCount == 0 {
		return nil, &DefinitionError{Schema: trimmedName, Reason: noOutputFieldsReason}
	}
	return definedSchema, nil
}

// MustDefine is like Define but panics on a malformed declaration. It is meant
// for package-level schemas so that mistakes surface at process start.
func MustDefine(name string, purpose string, fields ...Field) *Schema {
	definedSchema, err := Define(name, purpose, fields...)
	if err != nil {
		panic(err)
	}
	return definedSchema
}

func (s *Schema) Name() string    { return s.name }
func (s *Schema) Purpose() string { return s.purpose }

// Fields returns all fields in declaration order.
func (s *Schema) Fields() []Field {
	fields := make([]Field, len(s.fields))
	copy(fields, s.fields)
	return fields
}

// Inputs returns the input fields in declaration order.
func (s *Schema) Inputs() []Field { return s.byRole(Input) }

// Outputs returns the output fields in declaration order.
func (s *Schema) Outputs() []Field { return s.byRole(Output) }

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	position, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[position], true
}

func (s *Schema) byRole(role Role) []Field {
	var selected []Field
	for _, field := range s.fields {
		if field.Role == role {
			selected = append(selected, field)
		}
	}
	return selected
}

// WithLeadingOutputs returns a new schema whose outputs start with the given
// fields. The receiver is left untouched.
func (s *Schema) WithLeadingOutputs(leading ...Field) (*Schema, error) {
	combined := make([]Field, 0, len(s.fields)+len(leading))
	combined = append(combined, s.Inputs()...)
	for _, field := range leading {
		field.Role = Output
		combined = append(combined, field)
	}
	combined = append(combined, s.Outputs()...)
	return Define(s.name, s.purpose, combined...)
}

// BindInputs checks that values covers exactly the declared inputs with
// matching types. Binding has no side effects and may be repeated.
func (s *Schema) BindInputs(values Values) error {
	for _, field := range s.Inputs() {
		value, present := values.Get(field.Name)
		if !present {
			return &BindingError{Schema: s.name, Field: field.Name, Reason: missingInputReason}
		}
		if !field.Type.Accepts(value) {
			return &BindingError{
				Schema: s.name,
				Field:  field.Name,
				Reason: fmt.Sprintf(inputTypeMismatchFormat, field.Type, describeValue(value)),
			}
		}
	}
	for _, name := range values.Names() {
		field, declared := s.Field(name)
		if !declared || field.Role != Input {
			return &BindingError{Schema: s.name, Field: name, Reason: unexpectedInputReason}
		}
	}
	return nil
}
