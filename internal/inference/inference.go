// Package inference wraps the external paid text/audio inference
// service. The client layers three protections in front of every call:
// a local token-bucket limiter (don't hammer a metered API), a circuit
// breaker (stop paying for calls into a dead service), and capped
// exponential backoff for transient failures. Exhausting all of them
// surfaces a typed error; the calling agent degrades to a deterministic
// fallback rather than propagating.
package inference

import "context"

// Request is one completion call to the inference service.
type Request struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Response is the service's reply. Text is free-form and expected to
// parse as JSON per the calling agent's schema; Cost is the monetary
// charge for this call.
type Response struct {
	Text   string  `json:"text"`
	Cost   float64 `json:"cost"`
	Tokens int     `json:"tokens"`
}

// Service is the inference contract consumed by the domain agents.
type Service interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
