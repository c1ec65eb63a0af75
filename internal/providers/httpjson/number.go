package httpjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Number decodes a JSON number that some providers send as a string. Null,
// empty strings and absent values leave it unset.
type Number struct {
	Value float64
	Set   bool
}

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("number %q: %w", s, err)
		}
		n.Value, n.Set = v, true
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("number %s: %w", b, err)
	}
	n.Value, n.Set = v, true
	return nil
}

// Ptr returns the value or nil when unset.
func (n Number) Ptr() *float64 {
	if !n.Set {
		return nil
	}
	v := n.Value
	return &v
}

// IntPtr returns the value truncated to int, or nil when unset.
func (n Number) IntPtr() *int {
	if !n.Set {
		return nil
	}
	v := int(n.Value)
	return &v
}
