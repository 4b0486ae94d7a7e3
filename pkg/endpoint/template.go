package endpoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/valyala/fasttemplate"
)

// ErrTemplate is returned when a body template references a placeholder
// that cannot be filled.
var ErrTemplate = errors.New("invalid body template")

// Placeholders understood by RenderBody.
const (
	PlaceholderText    = "text"
	PlaceholderPayload = "payload"
)

const (
	tagStart = "{{"
	tagEnd   = "}}"
)

// RenderBody fills a body template.
//
// A template whose first non-space character is '{' or '[' is a JSON body:
// {{text}} is then escaped for use inside a JSON string. Any other template
// receives text literally.
//
// {{payload}} is replaced by the JSON encoding of payload; when written as
// "{{payload}}" the surrounding quotes are consumed so the result stays
// valid JSON. Every occurrence is replaced. Any other placeholder, an
// unclosed one, or {{payload}} without a payload, yields ErrTemplate.
func RenderBody(tmpl string, text string, payload any) (string, error) {
	t, err := fasttemplate.NewTemplate(tmpl, tagStart, tagEnd)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplate, err)
	}

	textValue := text
	if isJSONBody(tmpl) {
		escaped, err := encodeJSON(text)
		if err != nil {
			return "", err
		}
		textValue = escaped[1 : len(escaped)-1]
	}

	var payloadJSON string
	if payload != nil {
		payloadJSON, err = encodeJSON(payload)
		if err != nil {
			return "", fmt.Errorf("%w: encode payload: %v", ErrTemplate, err)
		}
	}

	out := &bodyWriter{}
	_, err = t.ExecuteFunc(out, func(_ io.Writer, tag string) (int, error) {
		switch name := strings.TrimSpace(tag); name {
		case PlaceholderText:
			return out.Write([]byte(textValue))
		case PlaceholderPayload:
			if payload == nil {
				return 0, fmt.Errorf("%w: {{payload}} used without a payload", ErrTemplate)
			}
			return out.writeValue(payloadJSON)
		default:
			return 0, fmt.Errorf("%w: unknown placeholder {{%s}}", ErrTemplate, name)
		}
	})
	if err != nil {
		return "", err
	}
	out.flush()
	return out.buf.String(), nil
}

// bodyWriter collects rendered output. A JSON value written right after a
// quote is held back until the next non-empty write shows whether a
// closing quote follows; if so both quotes are dropped.
type bodyWriter struct {
	buf     bytes.Buffer
	pending string
	held    bool
}

func (w *bodyWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if w.held {
		w.held = false
		if p[0] == '"' {
			w.buf.Truncate(w.buf.Len() - 1)
			w.buf.WriteString(w.pending)
			w.buf.Write(p[1:])
			return len(p), nil
		}
		w.buf.WriteString(w.pending)
	}
	return w.buf.Write(p)
}

func (w *bodyWriter) writeValue(v string) (int, error) {
	w.flush()
	if b := w.buf.Bytes(); len(b) > 0 && b[len(b)-1] == '"' {
		w.pending = v
		w.held = true
		return len(v), nil
	}
	return w.buf.WriteString(v)
}

func (w *bodyWriter) flush() {
	if w.held {
		w.held = false
		w.buf.WriteString(w.pending)
	}
}

func isJSONBody(tmpl string) bool {
	s := strings.TrimSpace(tmpl)
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

func encodeJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
