// Package llm provides the text-generation backends and the retrying
// structured (JSON) generator layered on top of them.
package llm

import (
	"context"
	"fmt"
)

// Request is a single generation call.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64

	// Stop sequences; only honoured by backends that support them.
	Stop []string
}

// Backend is a text-generation provider.
type Backend interface {
	// Name identifies the provider in logs and errors.
	Name() string

	// Generate returns the raw completion text for req. Provider and
	// transport failures are reported as *BackendError.
	Generate(ctx context.Context, req Request) (string, error)
}

// JSONPrompter is implemented by backends that need their own framing for
// JSON-only requests.
type JSONPrompter interface {
	JSONRequest(system, user string, maxTokens int) Request
}

const hostedJSONInstruction = "\n\nIMPORTANT: Return ONLY valid JSON. " +
	"No explanation, no markdown formatting."

// hostedJSONRequest is the framing used by the hosted providers.
func hostedJSONRequest(system, user string, maxTokens int) Request {
	return Request{
		System:      system + hostedJSONInstruction,
		User:        user,
		MaxTokens:   maxTokens,
		Temperature: 0.3,
	}
}

// jsonRequest builds the JSON-only request for b.
func jsonRequest(b Backend, system, user string, maxTokens int) Request {
	if p, ok := b.(JSONPrompter); ok {
		return p.JSONRequest(system, user, maxTokens)
	}
	return hostedJSONRequest(system, user, maxTokens)
}

// BackendError reports a provider or transport failure.
type BackendError struct {
	Backend    string
	StatusCode int
	Message    string
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s backend error (%d): %s", e.Backend, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s backend error: %s: %v", e.Backend, e.Message, e.Err)
	}
	return fmt.Sprintf("%s backend error: %s", e.Backend, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
