// Package filter normalizes multi-value list filters that arrive either as a
// single value or as a list.
package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
)

var ErrInvalidID = errors.New("invalid_id")

// OneOrMany decodes JSON `"a"` and `["a","b"]` alike.
type OneOrMany[T comparable] []T

func (o *OneOrMany[T]) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*o = nil
		return nil
	}
	if trimmed[0] == '[' {
		var many []T
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return err
	}
	*o = OneOrMany[T]{one}
	return nil
}

// Set returns the distinct values in first-seen order.
func (o OneOrMany[T]) Set() []T {
	return Distinct([]T(o))
}

func Distinct[T comparable](values []T) []T {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[T]struct{}, len(values))
	out := make([]T, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Strings flattens repeated and comma separated query values.
func Strings(values []string) []string {
	var out []string
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return Distinct(out)
}

func IDs(values []string) ([]snowflake.ID, error) {
	parts := Strings(values)
	if len(parts) == 0 {
		return nil, nil
	}
	ids := make([]snowflake.ID, 0, len(parts))
	for _, part := range parts {
		id, err := snowflake.ParseString(part)
		if err != nil || id <= 0 {
			return nil, ErrInvalidID
		}
		ids = append(ids, id)
	}
	return Distinct(ids), nil
}
