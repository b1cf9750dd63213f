package site

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/k11v/sitegen/internal/fault"
)

// Extract parses the JSON object spanning from the first "{" to the last "}" of raw.
// Text around the object, such as prose or markdown fences, is ignored.
// Every value of the object must be a string.
// The returned error wraps fault.ErrMalformedResponse.
func Extract(raw string) (FileSet, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("site: %w: no JSON object found", fault.ErrMalformedResponse)
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw[start:end+1]), &values); err != nil {
		return nil, fmt.Errorf("site: %w: %w", fault.ErrMalformedResponse, err)
	}

	fs := make(FileSet, len(values))
	for name, value := range values {
		var content string
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			return nil, fmt.Errorf("site: %w: value of %q is null", fault.ErrMalformedResponse, name)
		}
		if err := json.Unmarshal(value, &content); err != nil {
			return nil, fmt.Errorf("site: %w: value of %q is not a string", fault.ErrMalformedResponse, name)
		}
		fs[name] = content
	}
	return fs, nil
}
