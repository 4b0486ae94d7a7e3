package endpoint

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Resolve extracts the value at a dotted path such as "data.results" from
// a JSON document. Array elements are addressed by their decimal index
// ("items.0.words").
//
// An empty path returns doc unchanged. A missing segment or a null value
// reports false. Resolve never fails on missing keys; malformed documents
// must be rejected by the caller.
func Resolve(doc []byte, path string) (json.RawMessage, bool) {
	if path == "" {
		return json.RawMessage(doc), true
	}

	segments := strings.Split(path, ".")
	for i, seg := range segments {
		if seg == "" {
			return nil, false
		}
		segments[i] = escapeSegment(seg)
	}

	res := gjson.GetBytes(doc, strings.Join(segments, "."))
	if !res.Exists() || res.Type == gjson.Null {
		return nil, false
	}

	raw := make([]byte, len(res.Raw))
	copy(raw, res.Raw)
	return json.RawMessage(raw), true
}

// escapeSegment makes gjson treat seg as a plain object key.
func escapeSegment(seg string) string {
	var b strings.Builder
	for _, r := range seg {
		switch r {
		case '\\', '*', '?', '|', '#', '@', '!', '=', '<', '>', '%', '.':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
