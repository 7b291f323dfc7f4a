package feedapi

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var nullLiteral = []byte("null")

// Number is a JSON number that may also arrive as a numeric string.
// Non-numeric and non-finite values decode as zero.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, nullLiteral) {
		*n = 0
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		s, err := strconv.Unquote(raw)
		if err != nil {
			return fmt.Errorf("decode number %s: %w", raw, err)
		}
		raw = strings.TrimSpace(s)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		*n = 0
		return nil
	}
	*n = Number(f)
	return nil
}

// Int truncates toward negative infinity.
func (n Number) Int() int64 {
	return int64(math.Floor(float64(n)))
}

// Flag is a 0/1 integer flag; booleans and "1"/"true" strings are accepted too.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch strings.ToLower(raw) {
	case "true", "1":
		*f = true
	case "", "null", "false", "0":
		*f = false
	default:
		v, err := strconv.ParseFloat(raw, 64)
		*f = Flag(err == nil && v != 0)
	}
	return nil
}

// MarshalJSON encodes the flag in its wire form.
func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// Tags is a tag list that may be served as an array or as a JSON-encoded string.
type Tags []string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tags) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, nullLiteral) {
		*t = nil
		return nil
	}
	if data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("decode tags: %w", err)
		}
		*t = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*t = nil
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(s), &list); err == nil {
		*t = list
		return nil
	}
	if s == "" {
		*t = nil
		return nil
	}
	*t = Tags{s}
	return nil
}

// decodeList decodes a list body that is either a JSON array or a string holding one.
// Anything else (an empty body, an error object) yields an empty list.
func decodeList[T any](body []byte) ([]T, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	if body[0] == '"' {
		var inner string
		if err := json.Unmarshal(body, &inner); err != nil {
			return nil, fmt.Errorf("decode string-wrapped list: %w", err)
		}
		body = bytes.TrimSpace([]byte(inner))
	}
	if len(body) == 0 || body[0] != '[' {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return out, nil
}

// decodeCount reads {"count": n} where n may be a number or numeric string.
func decodeCount(body []byte) (int64, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return 0, nil
	}
	var payload struct {
		Count Number `json:"count"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("decode count: %w", err)
	}
	return payload.Count.Int(), nil
}
