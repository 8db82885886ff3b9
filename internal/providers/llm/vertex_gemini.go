package llm

import (
	"context"
	"strings"
	"sync"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

type VertexGemini struct {
	client *vertexgenai.Client

	mu     sync.Mutex
	models map[string]*vertexgenai.GenerativeModel

	Temperature float32
}

func NewVertexGemini(ctx context.Context, projectID, location string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}
	return &VertexGemini{client: c, models: map[string]*vertexgenai.GenerativeModel{}, Temperature: 0.2}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) model(name string) *vertexgenai.GenerativeModel {
	v.mu.Lock()
	defer v.mu.Unlock()

	m, ok := v.models[name]
	if !ok {
		m = v.client.GenerativeModel(name)
		m.SetTemperature(v.Temperature)
		v.models[name] = m
	}
	return m
}

// Complete streams the answer and returns it concatenated.
func (v *VertexGemini) Complete(ctx context.Context, prompt, model string) (string, error) {
	it := v.model(model).GenerateContentStream(ctx, vertexgenai.Text(prompt))

	var full strings.Builder
	for {
		resp, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", err
		}
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if t, ok := part.(vertexgenai.Text); ok {
					full.WriteString(string(t))
				}
			}
		}
	}
	return full.String(), nil
}
