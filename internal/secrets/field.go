package secrets

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ExtractField parses payload as a JSON object and returns the named field.
// Strings are returned as-is and numbers in their decimal form, so "5432" and
// 5432 both yield "5432". Booleans, objects and arrays come back as JSON text.
// A missing or null field, or a payload that is not a JSON object, fails with
// ErrSecretFieldMissing.
func ExtractField(payload, field string) (string, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()

	var doc map[string]json.RawMessage
	if err := dec.Decode(&doc); err != nil {
		return "", fmt.Errorf("%w: %q: parse payload: %w", ErrSecretFieldMissing, field, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: %q: parse payload: trailing data after JSON object", ErrSecretFieldMissing, field)
	}
	raw, ok := doc[field]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrSecretFieldMissing, field)
	}

	var value any
	inner := json.NewDecoder(bytes.NewReader(raw))
	inner.UseNumber()
	if err := inner.Decode(&value); err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrSecretFieldMissing, field, err)
	}

	switch v := value.(type) {
	case nil:
		return "", fmt.Errorf("%w: %q is null", ErrSecretFieldMissing, field)
	case string:
		return v, nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		if f, err := v.Float64(); err == nil && f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10), nil
		}
		return v.String(), nil
	default:
		return string(raw), nil
	}
}

// ExtractFields returns every named field, failing on the first missing one.
func ExtractFields(payload string, fields ...string) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		v, err := ExtractField(payload, f)
		if err != nil {
			return nil, err
		}
		out[f] = v
	}
	return out, nil
}
