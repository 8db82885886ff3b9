package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoocare/internal/llmjson"
	"github.com/yoockh/yoocare/internal/observability/metrics"
	"github.com/yoockh/yoocare/internal/providers/embedding"
	"github.com/yoockh/yoocare/internal/providers/llm"
	"github.com/yoockh/yoocare/internal/retry"
	"github.com/yoockh/yoocare/internal/utils"
)

// DefaultKBTopK is how many knowledge base exemplars ground each prompt.
const DefaultKBTopK = 3

// Retriever finds the k knowledge base texts nearest to a query embedding.
type Retriever interface {
	Search(q []float32, k int) ([]string, error)
}

type ContextExtractor interface {
	Extract(ctx context.Context, transcript string) (string, error)
}

type ContextExtractorConfig struct {
	Model string
	TopK  int
	Retry retry.Policy
}

type contextExtractor struct {
	inference
	embed     embedding.Provider
	retriever Retriever
	model     string
	topK      int
	logger    *logrus.Logger
}

func NewContextExtractor(cfg ContextExtractorConfig, p llm.Provider, q QuotaGate, e embedding.Provider, r Retriever, m *metrics.Metrics, l *logrus.Logger) ContextExtractor {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultKBTopK
	}
	if l == nil {
		l = logrus.New()
	}
	return &contextExtractor{
		inference: inference{llm: p, quota: q, retry: cfg.Retry, metrics: metricsOrDefault(m)},
		embed:     e,
		retriever: r,
		model:     cfg.Model,
		topK:      cfg.TopK,
		logger:    l,
	}
}

const contextInstructions = `You are a medical conversation analyzer.
Extract ONLY the patient's statements from a doctor-patient conversation.
Patient statements include:
- Descriptions of symptoms, feelings, or conditions.
- Questions the patient asks about their health.
- Statements about past medical history or medications.

Do NOT include:
- Any statements or advice from the doctor.
- Any meta-text or unrelated content.

Use the provided patient knowledge base examples to guide your extraction.
Return STRICTLY in JSON format:

{
  "patient_context": "..."
}

Ensure the order of patient statements is preserved and do not add any interpretation.`

// BuildContextPrompt is deterministic in its inputs.
func BuildContextPrompt(transcript string, examples []string) string {
	var b strings.Builder
	b.WriteString("System Prompt:\n")
	b.WriteString(contextInstructions)
	b.WriteString("\n\nUser Prompt:\nTranscript:\n")
	b.WriteString(transcript)
	b.WriteString("\n\nRelevant Knowledge Base Examples:\n")
	for i, ex := range examples {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(ex)
	}
	b.WriteString("\n\nExtract ONLY the patient context.\n")
	return b.String()
}

type contextPayload struct {
	PatientContext any `json:"patient_context"`
}

// parsePatientContext never fails: unparseable output becomes the context itself.
func parsePatientContext(raw string) (string, bool) {
	res := llmjson.Parse[contextPayload](raw)
	if v, ok := res.Value(); ok {
		return llmjson.String(v.PatientContext), true
	}
	return strings.TrimSpace(res.Raw()), false
}

func (s *contextExtractor) Extract(ctx context.Context, transcript string) (string, error) {
	const op = "ContextExtractor.Extract"

	if strings.TrimSpace(transcript) == "" {
		return "", nil
	}

	examples, err := s.exemplars(ctx, transcript)
	if err != nil {
		return "", err
	}

	raw, err := s.complete(ctx, op, s.model, BuildContextPrompt(transcript, examples))
	if err != nil {
		return "", err
	}

	out, parsed := parsePatientContext(raw)
	if !parsed {
		s.logger.WithFields(logrus.Fields{"op": op, "model": s.model}).
			Warn("model output was not JSON; using raw text as patient context")
	}
	return out, nil
}

func (s *contextExtractor) exemplars(ctx context.Context, transcript string) ([]string, error) {
	const op = "ContextExtractor.exemplars"

	if s.embed == nil || s.retriever == nil {
		return nil, nil
	}
	vecs, err := retry.DoValue(ctx, s.retry, func() ([][]float32, error) {
		return s.embed.Embed(ctx, []string{transcript})
	})
	if err != nil || len(vecs) != 1 {
		return nil, utils.E(utils.CodeUnavailable, op, "embedding backend unavailable", err)
	}
	out, err := s.retriever.Search(vecs[0], s.topK)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "knowledge base search failed", err)
	}
	return out, nil
}
