package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoocare/internal/cache"
)

// Cached memoizes embeddings by model and text hash. Cache errors fall
// through to the wrapped provider.
type Cached struct {
	next   Provider
	cache  cache.Cache
	ttl    time.Duration
	logger *logrus.Logger
}

func NewCached(next Provider, c cache.Cache, ttl time.Duration, l *logrus.Logger) *Cached {
	if l == nil {
		l = logrus.New()
	}
	return &Cached{next: next, cache: c, ttl: ttl, logger: l}
}

func (c *Cached) Model() string { return c.next.Model() }

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding:" + c.next.Model() + ":" + hex.EncodeToString(sum[:])
}

func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTxt []string

	for i, t := range texts {
		var v []float32
		hit, err := c.cache.GetJSON(ctx, c.key(t), &v)
		if err != nil {
			c.logger.WithError(err).Warn("embedding cache read failed")
		}
		if hit && len(v) > 0 {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTxt = append(missTxt, t)
	}
	if len(missTxt) == 0 {
		return out, nil
	}

	vecs, err := c.next.Embed(ctx, missTxt)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		if err := c.cache.SetJSON(ctx, c.key(missTxt[j]), vecs[j], c.ttl); err != nil {
			c.logger.WithError(err).Warn("embedding cache write failed")
		}
	}
	return out, nil
}
