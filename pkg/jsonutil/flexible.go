// Package jsonutil decodes backend payloads whose shape is not guaranteed.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// TextValue returns the text carried by a response body. The backend answers
// some endpoints with a JSON string ("\"SELECT ...\"") and others with plain
// text; numbers and booleans are rendered in their JSON form. Returns an
// empty string for an empty or null body.
func TextValue(body []byte) string {
	raw := bytes.TrimSpace(body)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return strconv.FormatInt(int64(numVal), 10)
		}
		return strconv.FormatFloat(numVal, 'g', -1, 64)
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return strconv.FormatBool(boolVal)
	}

	return string(raw)
}

// IsJSONArray reports whether body holds a JSON array.
func IsJSONArray(body []byte) bool {
	raw := bytes.TrimSpace(body)
	return len(raw) > 0 && raw[0] == '[' && json.Valid(raw)
}
