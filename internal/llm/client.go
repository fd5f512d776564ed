// Package llm abstracts the completion providers. The pipeline treats a
// provider as a black box: ordered messages in, text (or a stream of text
// deltas) out, failures surfaced as typed errors.
package llm

import (
	"context"
	"fmt"
)

// Message is one turn in a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client issues a single completion call.
type Client interface {
	Complete(ctx context.Context, system string, messages []Message, maxTokens int) (string, error)
}

// StreamingClient additionally supports incremental delivery. onDelta is
// invoked for each text fragment in order; the full assembled text is
// returned when the provider signals completion. Streams are finite and not
// restartable mid-stream.
type StreamingClient interface {
	Client
	Stream(ctx context.Context, system string, messages []Message, maxTokens int, onDelta func(string)) (string, error)
}

// CallError is a provider call failure: a human-readable message plus the
// HTTP status when one was received (0 for transport-level failures).
type CallError struct {
	Status  int
	Message string
}

func (e *CallError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("llm call failed (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("llm call failed: %s", e.Message)
}
