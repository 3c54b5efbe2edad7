package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ==================== Chat Completions Request Models ====================

// ChatRequest represents the Chat Completions API request sent upstream
type ChatRequest struct {
	Model            string            `json:"model"`
	Messages         []ChatMessage     `json:"messages"`
	Stream           *bool             `json:"stream,omitempty"`
	Temperature      float64           `json:"temperature"`
	SearchParameters *SearchParameters `json:"search_parameters,omitempty"`
}

// ChatMessage represents a single message in the request
type ChatMessage struct {
	Role    string `json:"role"` // "user"
	Content string `json:"content"`
}

// SearchParameters enables live search on providers that take it in the payload
type SearchParameters struct {
	Mode string `json:"mode"` // "on", "off", "auto"
}

// ==================== Chat Completions Response Models ====================

// ChatResponse is the response envelope decoded one level deep. Nested fields
// are decoded on access so a field of an unexpected type only fails its own
// lookup.
type ChatResponse map[string]json.RawMessage

// Annotation represents an annotation attached to a message
type Annotation struct {
	Type        string       `json:"type"`
	URLCitation *URLCitation `json:"url_citation,omitempty"`
}

// AnnotationTypeURLCitation marks a web citation annotation
const AnnotationTypeURLCitation = "url_citation"

// URLCitation represents a web search result citation
type URLCitation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ErrorText returns the upstream error description. Providers send either a
// bare string or an object carrying a message; anything else is returned as
// compact JSON. An absent error yields "".
func (r ChatResponse) ErrorText() string {
	raw, ok := r["error"]
	if !ok || isNull(raw) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		if m, ok := obj["message"]; ok && !isNull(m) {
			if err := json.Unmarshal(m, &s); err != nil {
				return compact(m)
			}
			if s != "" {
				return s
			}
		}
	}

	return compact(raw)
}

// FirstContent returns the text content and annotations of the first choice.
// The error names the first field that is missing or of the wrong type.
func (r ChatResponse) FirstContent() (string, []Annotation, error) {
	raw, ok := r["choices"]
	if !ok || isNull(raw) {
		return "", nil, errors.New("no choices in response")
	}

	var choices []json.RawMessage
	if err := json.Unmarshal(raw, &choices); err != nil {
		return "", nil, errors.New("choices is not a list")
	}
	if len(choices) == 0 {
		return "", nil, errors.New("no choices in response")
	}

	var choice map[string]json.RawMessage
	if err := json.Unmarshal(choices[0], &choice); err != nil {
		return "", nil, errors.New("first choice is not an object")
	}

	rawMsg, ok := choice["message"]
	if !ok || isNull(rawMsg) {
		return "", nil, errors.New("first choice has no message")
	}
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		return "", nil, errors.New("first choice message is not an object")
	}

	rawContent, ok := msg["content"]
	if !ok || isNull(rawContent) {
		return "", nil, errors.New("first choice has no message content")
	}
	var content string
	if err := json.Unmarshal(rawContent, &content); err != nil {
		return "", nil, errors.New("first choice message content is not a string")
	}
	if content == "" {
		return "", nil, errors.New("first choice has no message content")
	}

	return content, decodeAnnotations(msg["annotations"]), nil
}

// decodeAnnotations keeps every entry that decodes; citations are optional
// so a malformed list never hides the content
func decodeAnnotations(raw json.RawMessage) []Annotation {
	if len(raw) == 0 || isNull(raw) {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	annotations := make([]Annotation, 0, len(items))
	for _, item := range items {
		var a Annotation
		if err := json.Unmarshal(item, &a); err != nil {
			continue
		}
		annotations = append(annotations, a)
	}
	return annotations
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
