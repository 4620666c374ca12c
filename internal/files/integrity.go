package files

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"
)

// CorruptionThreshold is the size below which a blob is inspected for a
// stored error payload before it is served.
const CorruptionThreshold = 100

// looksCorrupted reports whether a small blob holds an error payload (for
// example a JSON error body captured in place of the uploaded file).
func looksCorrupted(content []byte) bool {
	if !utf8.Valid(content) {
		return false
	}
	trimmed := bytes.TrimSpace(content)
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err == nil {
		_, ok := obj["error"]
		return ok
	}
	return bytes.Contains(trimmed, []byte("{")) && bytes.Contains(trimmed, []byte(`"error"`))
}
