package llm

import "context"

// Provider completes a prompt with the named model. One provider may serve
// several models, each quota-tracked independently by the caller.
type Provider interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
	Close() error
}
