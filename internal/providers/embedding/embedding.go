package embedding

import "context"

// Provider maps texts to sentence embeddings, one vector per input, in order.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}
