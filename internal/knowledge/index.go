// Package knowledge holds the patient-utterance retrieval index used to ground
// context extraction prompts.
package knowledge

import (
	"context"
	"sort"

	"github.com/yoockh/yoocare/internal/models"
	"github.com/yoockh/yoocare/internal/utils"
)

// Source lists knowledge base rows in load order.
type Source interface {
	ListAll(ctx context.Context) ([]models.KBExample, error)
}

type Example struct {
	Text   string
	Vector []float32
}

// Index is immutable after construction and safe for concurrent reads.
type Index struct {
	examples []Example
	dim      int
}

func New(examples []Example) (*Index, error) {
	const op = "knowledge.New"

	dim := 0
	for i, e := range examples {
		if len(e.Vector) == 0 {
			return nil, utils.E(utils.CodeInvalidArgument, op, "example without embedding", nil)
		}
		if i == 0 {
			dim = len(e.Vector)
		} else if len(e.Vector) != dim {
			return nil, utils.E(utils.CodeInvalidArgument, op, "embedding dimensions differ", nil)
		}
	}
	cp := make([]Example, len(examples))
	copy(cp, examples)
	return &Index{examples: cp, dim: dim}, nil
}

// Load reads every example once from src.
func Load(ctx context.Context, src Source) (*Index, error) {
	const op = "knowledge.Load"

	rows, err := src.ListAll(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to load knowledge base", err)
	}
	ex := make([]Example, 0, len(rows))
	for _, r := range rows {
		ex = append(ex, Example{Text: r.Text, Vector: r.Embedding.Slice()})
	}
	return New(ex)
}

func (ix *Index) Len() int { return len(ix.examples) }
func (ix *Index) Dim() int { return ix.dim }

// Search returns up to k example texts nearest to q by Euclidean distance.
// Equal distances keep load order.
func (ix *Index) Search(q []float32, k int) ([]string, error) {
	const op = "Index.Search"

	if k <= 0 || len(ix.examples) == 0 {
		return nil, nil
	}
	if len(q) != ix.dim {
		return nil, utils.E(utils.CodeInvalidArgument, op, "query dimension mismatch", nil)
	}

	type hit struct {
		i int
		d float64
	}
	hits := make([]hit, len(ix.examples))
	for i, e := range ix.examples {
		hits[i] = hit{i: i, d: sqL2(q, e.Vector)}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].d < hits[b].d })

	if k > len(hits) {
		k = len(hits)
	}
	out := make([]string, k)
	for j := 0; j < k; j++ {
		out[j] = ix.examples[hits[j].i].Text
	}
	return out, nil
}

// squared distance preserves ordering
func sqL2(a, b []float32) float64 {
	var s float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		s += d * d
	}
	return s
}
