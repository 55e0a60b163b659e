// Package jsonutil holds small JSON rendering helpers for places where a
// marshal failure has no useful recovery, such as log output and tool
// result blocks.
package jsonutil

import (
	"encoding/json"
)

// MustJSON renders v as compact JSON. A nil value renders as an empty
// object and a marshal failure as an empty string.
func MustJSON(v any) string {
	if v == nil {
		return "{}"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// MustMarshalIndent renders v as indented JSON with the same fallbacks as
// MustJSON.
func MustMarshalIndent(v any) string {
	if v == nil {
		return "{}"
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}
