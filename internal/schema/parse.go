package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	notJSONObjectReasonFormat = "response is not a JSON object: %v"
	missingOutputReason       = "missing output field"
	nullValueReason           = "value is null"
	duplicateKeyReasonFormat  = "duplicate key %q"
	codeFence                 = "```"
)

var errNullValue = errors.New(nullValueReason)

// ParseOutputs extracts every declared output field from a raw JSON response.
// Undeclared keys are ignored; a missing or mistyped declared field is a
// ParseError.
func (s *Schema) ParseOutputs(raw string) (Values, error) {
	payload := stripCodeFence(raw)

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return Values{}, &ParseError{Schema: s.name, Reason: fmt.Sprintf(notJSONObjectReasonFormat, err)}
	}

	parsed := make(map[string]any, len(s.fields))
	for _, field := range s.Outputs() {
		rawValue, present := decoded[field.Name]
		if !present {
			return Values{}, &ParseError{Schema: s.name, Field: field.Name, Reason: missingOutputReason}
		}
		value, decodeErr := decodeValue(field.Type, rawValue)
		if decodeErr != nil {
			return Values{}, &ParseError{
				Schema: s.name,
				Field:  field.Name,
				Reason: fmt.Sprintf("expected %s: %v", field.Type, decodeErr),
			}
		}
		parsed[field.Name] = value
	}
	return Values{values: parsed}, nil
}

func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, codeFence) {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, codeFence)
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		trimmed = trimmed[newline+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), codeFence)
	return strings.TrimSpace(trimmed)
}

func decodeValue(fieldType FieldType, raw json.RawMessage) (any, error) {
	switch fieldType {
	case String:
		return decodeString(raw)
	case StringList:
		return decodeStringList(raw)
	case StringListMapType:
		return decodeStringListMap(raw)
	default:
		return nil, fmt.Errorf("unsupported field type %s", fieldType)
	}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeString(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", errNullValue
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", err
	}
	return value, nil
}

func decodeStringList(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return nil, errNullValue
	}
	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, err
	}
	values := make([]string, 0, len(elements))
	for position, element := range elements {
		value, err := decodeString(element)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", position, err)
		}
		values = append(values, value)
	}
	return values, nil
}

// decodeStringListMap accepts the wire form (an array of {"key","values"}
// objects) as well as a plain JSON object, whose key order is kept by walking
// the token stream instead of decoding into a Go map.
func decodeStringListMap(raw json.RawMessage) (StringListMap, error) {
	trimmed := bytes.TrimSpace(raw)
	if isNull(trimmed) {
		return nil, errNullValue
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return decodeEntryArray(trimmed)
	}
	return decodeOrderedObject(trimmed)
}

type wireEntry struct {
	Key    *string         `json:"key"`
	Values json.RawMessage `json:"values"`
}

func decodeEntryArray(raw []byte) (StringListMap, error) {
	var wireEntries []wireEntry
	if err := json.Unmarshal(raw, &wireEntries); err != nil {
		return nil, err
	}
	mapping := make(StringListMap, 0, len(wireEntries))
	seen := make(map[string]struct{}, len(wireEntries))
	for position, candidate := range wireEntries {
		if candidate.Key == nil {
			return nil, fmt.Errorf("entry %d: missing key", position)
		}
		if _, duplicate := seen[*candidate.Key]; duplicate {
			return nil, fmt.Errorf(duplicateKeyReasonFormat, *candidate.Key)
		}
		if candidate.Values == nil {
			return nil, fmt.Errorf("entry %q: missing values", *candidate.Key)
		}
		values, err := decodeStringList(candidate.Values)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", *candidate.Key, err)
		}
		seen[*candidate.Key] = struct{}{}
		mapping = append(mapping, Entry{Key: *candidate.Key, Values: values})
	}
	return mapping, nil
}

func decodeOrderedObject(raw []byte) (StringListMap, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	openToken, err := decoder.Token()
	if err != nil {
		return nil, err
	}
	if delimiter, ok := openToken.(json.Delim); !ok || delimiter != '{' {
		return nil, fmt.Errorf("expected object or array, got %v", openToken)
	}

	var mapping StringListMap
	seen := make(map[string]struct{})
	for decoder.More() {
		keyToken, keyErr := decoder.Token()
		if keyErr != nil {
			return nil, keyErr
		}
		key, ok := keyToken.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", keyToken)
		}
		if _, duplicate := seen[key]; duplicate {
			return nil, fmt.Errorf(duplicateKeyReasonFormat, key)
		}
		var element json.RawMessage
		if decodeErr := decoder.Decode(&element); decodeErr != nil {
			return nil, decodeErr
		}
		values, listErr := decodeStringList(element)
		if listErr != nil {
			return nil, fmt.Errorf("key %q: %w", key, listErr)
		}
		seen[key] = struct{}{}
		mapping = append(mapping, Entry{Key: key, Values: values})
	}
	if _, err := decoder.Token(); err != nil {
		return nil, err
	}
	if mapping == nil {
		mapping = StringListMap{}
	}
	return mapping, nil
}
