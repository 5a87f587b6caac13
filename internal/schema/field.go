package schema

import (
	"fmt"
	"slices"
)

// FieldType is the semantic type of a schema field.
type FieldType int

const (
	// Unknown is the zero value and is rejected at definition time.
	Unknown FieldType = iota
	// String values are Go strings.
	String
	// StringList values are []string.
	StringList
	// StringListMapType values are StringListMap, an ordered heading -> items mapping.
	StringListMapType
)

func (fieldType FieldType) String() string {
	switch fieldType {
	case String:
		return "string"
	case StringList:
		return "list[string]"
	case StringListMapType:
		return "map[string]list[string]"
	default:
		return "unknown"
	}
}

// Accepts reports whether value has exactly the Go representation of the type.
// No coercion is attempted.
func (fieldType FieldType) Accepts(value any) bool {
	switch fieldType {
	case String:
		_, ok := value.(string)
		return ok
	case StringList:
		_, ok := value.([]string)
		return ok
	case StringListMapType:
		mapping, ok := value.(StringListMap)
		return ok && mapping.uniqueKeys()
	default:
		return false
	}
}

// Role tells whether a field is supplied by the caller or produced by the backend.
type Role int

const (
	// RoleUnknown is the zero value and is rejected at definition time.
	RoleUnknown Role = iota
	// Input fields are bound by the caller before the call.
	Input
	// Output fields are parsed from the backend response.
	Output
)

func (role Role) String() string {
	switch role {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return "unknown"
	}
}

// Field declares one named, typed slot of a schema.
type Field struct {
	Name        string
	Type        FieldType
	Role        Role
	Description string
}

// InputField declares an input field.
func InputField(name string, fieldType FieldType, description string) Field {
	return Field{Name: name, Type: fieldType, Role: Input, Description: description}
}

// OutputField declares an output field.
func OutputField(name string, fieldType FieldType, description string) Field {
	return Field{Name: name, Type: fieldType, Role: Output, Description: description}
}

// Entry is one key of a StringListMap together with its ordered values.
type Entry struct {
	Key    string   `json:"key" yaml:"key"`
	Values []string `json:"values" yaml:"values"`
}

// StringListMap maps strings to ordered string lists while keeping the order in
// which keys were produced. Go maps do not preserve insertion order, and the
// drafting order of an outline depends on it.
type StringListMap []Entry

// Keys returns the keys in order.
func (mapping StringListMap) Keys() []string {
	keys := make([]string, 0, len(mapping))
	for _, entry := range mapping {
		keys = append(keys, entry.Key)
	}
	return keys
}

// Lookup returns a copy of the values stored under key.
func (mapping StringListMap) Lookup(key string) ([]string, bool) {
	for _, entry := range mapping {
		if entry.Key == key {
			return slices.Clone(entry.Values), true
		}
	}
	return nil, false
}

// Len returns the number of keys.
func (mapping StringListMap) Len() int { return len(mapping) }

func (mapping StringListMap) clone() StringListMap {
	if mapping == nil {
		return nil
	}
	cloned := make(StringListMap, len(mapping))
	for index, entry := range mapping {
		cloned[index] = Entry{Key: entry.Key, Values: slices.Clone(entry.Values)}
	}
	return cloned
}

func (mapping StringListMap) uniqueKeys() bool {
	seen := make(map[string]struct{}, len(mapping))
	for _, entry := range mapping {
		if _, duplicate := seen[entry.Key]; duplicate {
			return false
		}
		seen[entry.Key] = struct{}{}
	}
	return true
}

func describeValue(value any) string {
	if value == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", value)
}
