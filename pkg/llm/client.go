package llm

import "context"

// Client is the surface the pipeline needs from a chat-completion provider:
// a soft emotion distribution for the classifier's model vote, and a short
// advisory message for a finished prediction.
type Client interface {
	Distribution(ctx context.Context, text string) ([]float64, error)
	Advise(ctx context.Context, prediction string) (string, error)
	ModelName() string
}
