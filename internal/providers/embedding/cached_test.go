package embedding

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoocare/internal/cache"
)

type countingProvider struct {
	calls [][]string
	err   error
}

func (p *countingProvider) Model() string { return "test-model" }

func (p *countingProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	p.calls = append(p.calls, append([]string(nil), texts...))
	if p.err != nil {
		return nil, p.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestCachedOnlyEmbedsMisses(t *testing.T) {
	ctx := context.Background()
	inner := &countingProvider{}
	c := NewCached(inner, cache.NewMemoryCache(), time.Hour, quietLogger())

	if _, err := c.Embed(ctx, []string{"cardiology", "neurology"}); err != nil {
		t.Fatal(err)
	}
	got, err := c.Embed(ctx, []string{"neurology", "dermatology", "cardiology"})
	if err != nil {
		t.Fatal(err)
	}

	if len(inner.calls) != 2 {
		t.Fatalf("inner calls = %d, want 2", len(inner.calls))
	}
	if len(inner.calls[1]) != 1 || inner.calls[1][0] != "dermatology" {
		t.Fatalf("second call = %v, want only the miss", inner.calls[1])
	}
	if got[0][0] != float32(len("neurology")) || got[1][0] != float32(len("dermatology")) || got[2][0] != float32(len("cardiology")) {
		t.Fatalf("vectors out of order: %v", got)
	}
}

func TestCachedPropagatesProviderError(t *testing.T) {
	inner := &countingProvider{err: errors.New("rate limited")}
	c := NewCached(inner, cache.NewMemoryCache(), time.Hour, quietLogger())
	if _, err := c.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error")
	}
}
