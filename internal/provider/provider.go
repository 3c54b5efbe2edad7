package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/young1lin/postfetch/internal/models"
)

// SearchMode selects how a provider is asked to augment the answer with live search
type SearchMode int

const (
	// SearchParameters sends `search_parameters: {mode: "on"}` in the payload
	SearchParameters SearchMode = iota
	// ModelSuffix appends ":online" to the model identifier
	ModelSuffix
)

const onlineSuffix = ":online"

// Profile holds exactly what differs between upstream providers
type Profile struct {
	Name  string
	Label string // used in operator diagnostics, e.g. "OpenRouter API"

	Search SearchMode

	// ExplicitNoStream sends `stream: false` rather than omitting the field
	ExplicitNoStream bool

	// ExtraHeaders lists the header names the provider expects beyond auth
	// and content type. Values come from configuration.
	ExtraHeaders []string

	DefaultBaseURL string
	DefaultPath    string
	DefaultModel   string
}

var profiles = map[string]Profile{
	"xai": {
		Name:             "xai",
		Label:            "Grok API",
		Search:           SearchParameters,
		ExplicitNoStream: true,
		DefaultBaseURL:   "https://api.x.ai",
		DefaultPath:      "/v1/chat/completions",
		DefaultModel:     "grok-4-1-fast-reasoning",
	},
	"openrouter": {
		Name:           "openrouter",
		Label:          "OpenRouter API",
		Search:         ModelSuffix,
		ExtraHeaders:   []string{"HTTP-Referer", "X-Title"},
		DefaultBaseURL: "https://openrouter.ai",
		DefaultPath:    "/api/v1/chat/completions",
		DefaultModel:   "x-ai/grok-4.1-fast:online",
	},
}

// Lookup returns the profile registered under name
func Lookup(name string) (Profile, error) {
	p, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("unknown provider %q (expected one of: %s)", name, strings.Join(Names(), ", "))
	}
	return p, nil
}

// Names returns the registered provider names in sorted order
func Names() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Model returns the model identifier to put on the wire
func (p Profile) Model(model string) string {
	if model == "" {
		model = p.DefaultModel
	}
	if p.Search == ModelSuffix && !strings.HasSuffix(model, onlineSuffix) {
		model += onlineSuffix
	}
	return model
}

// Payload builds the chat request for a single user prompt
func (p Profile) Payload(model, prompt string) *models.ChatRequest {
	req := &models.ChatRequest{
		Model: p.Model(model),
		Messages: []models.ChatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
	}

	if p.ExplicitNoStream {
		stream := false
		req.Stream = &stream
	}

	if p.Search == SearchParameters {
		req.SearchParameters = &models.SearchParameters{Mode: "on"}
	}

	return req
}
