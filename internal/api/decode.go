package api

import (
	"bytes"
	"encoding/json"
	"sort"
)

// listEnvelopeKeys are the wrapper fields the backend uses around lists.
var listEnvelopeKeys = []string{"data", "notifications", "content", "items", "result"}

// objectEnvelopeKeys are the wrapper fields used around single objects.
var objectEnvelopeKeys = []string{"data"}

// Unwrap strips a response envelope when present. Only envelope values
// that are objects, arrays or null are unwrapped, so a scalar field such
// as a template's "content" is never mistaken for a wrapper. A null
// envelope value is returned as null.
func Unwrap(raw json.RawMessage, keys ...string) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return trimmed
	}
	for _, key := range keys {
		inner, ok := obj[key]
		if !ok {
			continue
		}
		inner = bytes.TrimSpace(inner)
		if isNull(inner) {
			return inner
		}
		if len(inner) > 0 && (inner[0] == '{' || inner[0] == '[') {
			return Unwrap(inner, keys...)
		}
	}
	return trimmed
}

// DecodeList decodes a list payload that may be wrapped in an envelope.
// A null or missing payload decodes to an empty list.
func DecodeList[T any](raw json.RawMessage) ([]T, error) {
	inner := Unwrap(raw, listEnvelopeKeys...)
	out := []T{}
	if len(inner) == 0 || isNull(inner) {
		return out, nil
	}
	if err := json.Unmarshal(inner, &out); err != nil {
		return []T{}, err
	}
	return out, nil
}

// DecodeObject decodes an object payload that may be wrapped in an
// envelope.
func DecodeObject[T any](raw json.RawMessage) (T, error) {
	var out T
	inner := Unwrap(raw, objectEnvelopeKeys...)
	if len(inner) == 0 || isNull(inner) {
		return out, nil
	}
	err := json.Unmarshal(inner, &out)
	return out, err
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func sortStrings(s []string) { sort.Strings(s) }
