// Package router classifies a model id into the upstream API flavor that
// should serve it.
package router

import "strings"

// Flavor names an upstream API shape.
type Flavor string

const (
	Chat      Flavor = "chat"
	Responses Flavor = "responses"
)

// responsesPrefixes lists model-id prefixes routed to the Responses API.
var responsesPrefixes = []string{"gpt-5", "o1", "o3", "o4"}

// Classify applies the deterministic, side-effect-free routing rules: the
// first matching rule wins, and anything left unmatched is Chat.
func Classify(modelID string) Flavor {
	lower := strings.ToLower(modelID)
	for _, prefix := range responsesPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return Responses
		}
	}
	if strings.Contains(lower, "codex") {
		return Responses
	}
	return Chat
}

// ClassifyWithOverrides applies Classify but lets a caller-configured map
// of model id to flavor take precedence, implementing the per-request
// override a caller may configure.
func ClassifyWithOverrides(modelID string, overrides map[string]string) Flavor {
	if overrides != nil {
		if f, ok := overrides[modelID]; ok {
			switch Flavor(f) {
			case Chat, Responses:
				return Flavor(f)
			}
		}
	}
	return Classify(modelID)
}

// Other returns the flavor not given, used by the dispatcher's one-shot
// fallback.
func Other(f Flavor) Flavor {
	if f == Chat {
		return Responses
	}
	return Chat
}
