package services

import (
	"context"
	"math"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoocare/internal/models"
	"github.com/yoockh/yoocare/internal/observability/metrics"
	"github.com/yoockh/yoocare/internal/providers/embedding"
	"github.com/yoockh/yoocare/internal/retry"
	"github.com/yoockh/yoocare/internal/utils"
)

// DefaultMatchThreshold is the minimum cosine similarity for a catalog match.
const DefaultMatchThreshold = 0.35

type SpecialistDirectory interface {
	List(ctx context.Context) ([]models.SpecialistEntry, error)
}

type MatchResult struct {
	Matched    bool                   `json:"matched"`
	Entry      models.SpecialistEntry `json:"entry"`
	Specialist string                 `json:"specialist"`
	Similarity float64                `json:"similarity"`
}

type SpecialistMatcher interface {
	// Match returns CodeNotFound when no entry reaches the threshold.
	Match(ctx context.Context, recommended string) (MatchResult, error)
	// Candidates lists entries for a canonical specialist in catalog order.
	Candidates(specialist string) []models.SpecialistEntry
	Catalog() []models.SpecialistEntry
	Refresh(ctx context.Context) error
}

type SpecialistMatcherConfig struct {
	Threshold float64
	Retry     retry.Policy
}

type catalogSnapshot struct {
	entries []models.SpecialistEntry
	vectors [][]float32
}

type specialistMatcher struct {
	dir       SpecialistDirectory
	embed     embedding.Provider
	threshold float64
	retry     retry.Policy
	metrics   *metrics.Metrics
	logger    *logrus.Logger

	snap atomic.Pointer[catalogSnapshot]
}

// NewSpecialistMatcher builds a matcher with an empty catalog; call Refresh
// before serving.
func NewSpecialistMatcher(cfg SpecialistMatcherConfig, dir SpecialistDirectory, e embedding.Provider, m *metrics.Metrics, l *logrus.Logger) SpecialistMatcher {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultMatchThreshold
	}
	if l == nil {
		l = logrus.New()
	}
	sm := &specialistMatcher{
		dir:       dir,
		embed:     e,
		threshold: cfg.Threshold,
		retry:     cfg.Retry,
		metrics:   metricsOrDefault(m),
		logger:    l,
	}
	sm.snap.Store(&catalogSnapshot{})
	return sm
}

func catalogText(e models.SpecialistEntry) string {
	return strings.ToLower(strings.TrimSpace(e.Specialist))
}

// Refresh reloads the directory and swaps in a new snapshot. Readers never
// see a half-built catalog.
func (s *specialistMatcher) Refresh(ctx context.Context) error {
	const op = "SpecialistMatcher.Refresh"

	entries, err := retry.DoValue(ctx, s.retry, func() ([]models.SpecialistEntry, error) {
		return s.dir.List(ctx)
	})
	if err != nil {
		return utils.E(utils.CodeUnavailable, op, "specialist directory unavailable", err)
	}

	kept := make([]models.SpecialistEntry, 0, len(entries))
	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		if t := catalogText(e); t != "" {
			kept = append(kept, e)
			texts = append(texts, t)
		}
	}

	var vecs [][]float32
	if len(texts) > 0 {
		vecs, err = retry.DoValue(ctx, s.retry, func() ([][]float32, error) {
			return s.embed.Embed(ctx, texts)
		})
		if err != nil {
			return utils.E(utils.CodeUnavailable, op, "embedding catalog failed", err)
		}
		if len(vecs) != len(texts) {
			return utils.E(utils.CodeInternal, op, "embedding count mismatch", nil)
		}
	}

	s.snap.Store(&catalogSnapshot{entries: kept, vectors: vecs})
	s.logger.WithFields(logrus.Fields{"op": op, "entries": len(kept)}).Info("specialist catalog loaded")
	return nil
}

func (s *specialistMatcher) Catalog() []models.SpecialistEntry {
	snap := s.snap.Load()
	out := make([]models.SpecialistEntry, len(snap.entries))
	copy(out, snap.entries)
	return out
}

func (s *specialistMatcher) Candidates(specialist string) []models.SpecialistEntry {
	want := strings.ToLower(strings.TrimSpace(specialist))
	var out []models.SpecialistEntry
	for _, e := range s.snap.Load().entries {
		if catalogText(e) == want {
			out = append(out, e)
		}
	}
	return out
}

func (s *specialistMatcher) Match(ctx context.Context, recommended string) (MatchResult, error) {
	const op = "SpecialistMatcher.Match"

	recommended = strings.TrimSpace(recommended)
	snap := s.snap.Load()
	if recommended == "" || len(snap.entries) == 0 {
		s.metrics.RecordMatch(false)
		return MatchResult{}, utils.E(utils.CodeNotFound, op, "no specialist to match", nil)
	}

	vecs, err := retry.DoValue(ctx, s.retry, func() ([][]float32, error) {
		return s.embed.Embed(ctx, []string{strings.ToLower(recommended)})
	})
	if err != nil || len(vecs) != 1 {
		return MatchResult{}, utils.E(utils.CodeUnavailable, op, "embedding request failed", err)
	}

	best, score := BestMatch(vecs[0], snap.vectors)
	if best < 0 || score < s.threshold {
		s.metrics.RecordMatch(false)
		return MatchResult{Similarity: score}, utils.E(utils.CodeNotFound, op, "no specialist above threshold", nil)
	}

	s.metrics.RecordMatch(true)
	e := snap.entries[best]
	return MatchResult{Matched: true, Entry: e, Specialist: e.Specialist, Similarity: score}, nil
}

// BestMatch returns the index of the highest cosine similarity; on ties the
// earliest index wins. It returns -1 for an empty candidate list.
func BestMatch(q []float32, candidates [][]float32) (int, float64) {
	best, score := -1, math.Inf(-1)
	for i, c := range candidates {
		if sim := Cosine(q, c); sim > score {
			best, score = i, sim
		}
	}
	if best < 0 {
		return -1, 0
	}
	return best, score
}

// Cosine is 0 for mismatched dimensions or zero vectors.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
