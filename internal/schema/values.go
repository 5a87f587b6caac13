package schema

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
)

// Values is an immutable bag of named field values. Slices are copied on the
// way in and on the way out so that holders cannot mutate each other's view.
type Values struct {
	values map[string]any
}

// NewValues copies the provided map into a Values bag.
func NewValues(values map[string]any) Values {
	copied := make(map[string]any, len(values))
	for name, value := range values {
		copied[name] = cloneValue(value)
	}
	return Values{values: copied}
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case []string:
		return slices.Clone(typed)
	case StringListMap:
		return typed.clone()
	default:
		return value
	}
}

// Get returns the raw value stored under name.
func (v Values) Get(name string) (any, bool) {
	value, ok := v.values[name]
	if !ok {
		return nil, false
	}
	return cloneValue(value), true
}

// Len returns the number of stored values.
func (v Values) Len() int { return len(v.values) }

// Names returns the stored names in sorted order.
func (v Values) Names() []string {
	names := make([]string, 0, len(v.values))
	for name := range v.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (v Values) String(name string) (string, error) {
	value, ok := v.values[name]
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrMissingValue)
	}
	typed, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%s: %w: expected %s, got %s", name, ErrTypeMismatch, String, describeValue(value))
	}
	return typed, nil
}

func (v Values) StringList(name string) ([]string, error) {
	value, ok := v.values[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrMissingValue)
	}
	typed, ok := value.([]string)
	if !ok {
		return nil, fmt.Errorf("%s: %w: expected %s, got %s", name, ErrTypeMismatch, StringList, describeValue(value))
	}
	return slices.Clone(typed), nil
}

func (v Values) StringListMap(name string) (StringListMap, error) {
	value, ok := v.values[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrMissingValue)
	}
	typed, ok := value.(StringListMap)
	if !ok {
		return nil, fmt.Errorf("%s: %w: expected %s, got %s", name, ErrTypeMismatch, StringListMapType, describeValue(value))
	}
	return typed.clone(), nil
}

// MarshalJSON renders the bag as a JSON object with sorted keys. Ordered
// mappings use the same array-of-entries form the backend is asked to produce.
func (v Values) MarshalJSON() ([]byte, error) {
	if v.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v.values)
}
