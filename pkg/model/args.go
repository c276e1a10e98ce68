package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Args holds invocation arguments. The platform sends them as a JSON object of strings;
// older platform versions send an empty array when there are none.
type Args map[string]string

func (a *Args) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*a = Args{}
		return nil
	}

	if trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		if len(list) != 0 {
			return fmt.Errorf("model: args must be an object, got array of %d elements", len(list))
		}
		*a = Args{}
		return nil
	}

	m := map[string]string{}
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return err
	}
	*a = m
	return nil
}

// Get returns the value stored under key.
func (a Args) Get(key string) (string, bool) {
	v, ok := a[key]
	return v, ok
}

// GetOr returns the value stored under key, or def when the key is absent.
func (a Args) GetOr(key, def string) string {
	if v, ok := a[key]; ok {
		return v
	}
	return def
}
