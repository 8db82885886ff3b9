package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoocare/internal/llmjson"
	"github.com/yoockh/yoocare/internal/models"
	"github.com/yoockh/yoocare/internal/observability/metrics"
	"github.com/yoockh/yoocare/internal/providers/llm"
	"github.com/yoockh/yoocare/internal/retry"
)

type RiskInput struct {
	Age           int
	Gender        string
	PriorSymptoms []string
	History       string
	Context       string
	At            time.Time
}

type RiskAnalyzer interface {
	Analyze(ctx context.Context, in RiskInput) (models.RiskAssessment, error)
}

type RiskAnalyzerConfig struct {
	Model string
	Retry retry.Policy
}

type riskAnalyzer struct {
	inference
	model  string
	logger *logrus.Logger
}

func NewRiskAnalyzer(cfg RiskAnalyzerConfig, p llm.Provider, q QuotaGate, m *metrics.Metrics, l *logrus.Logger) RiskAnalyzer {
	if l == nil {
		l = logrus.New()
	}
	return &riskAnalyzer{
		inference: inference{llm: p, quota: q, retry: cfg.Retry, metrics: metricsOrDefault(m)},
		model:     cfg.Model,
		logger:    l,
	}
}

func BuildRiskPrompt(in RiskInput) string {
	previous := strings.Join(in.PriorSymptoms, ", ")
	if h := strings.TrimSpace(in.History); h != "" {
		if previous != "" {
			previous += "; "
		}
		previous += h
	}
	if previous == "" {
		previous = "none reported"
	}
	at := in.At
	if at.IsZero() {
		at = time.Now()
	}

	return fmt.Sprintf(`You are an AI-powered medical triage assistant (trained on WHO, Mayo Clinic, and PubMed data).

### Objective:
Analyze the patient's description and extract:
1. Key symptoms
2. Urgency level (high, medium, low)
3. Probable disease name
4. Which specialist doctor to contact
5. Brief medical advice

### Patient Data:
- Age: %d
- Gender: %s
- Description: Previous condition: %s
Current condition: %s
- Time: %s

### Output Schema (must be valid JSON):
[
  {
    "symptoms": ["string"],
    "disease": "string",
    "probability": 0,
    "urgency": "string",
    "possible_causes": "string",
    "recommended_specialist": "string",
    "advice": "string"
  }
]
Only return the JSON, nothing else.
`, in.Age, in.Gender, previous, in.Context, at.Format("2006-01-02 15:04:05"))
}

// rawRisk tolerates the loose shapes models produce (string symptoms, "80%").
type rawRisk struct {
	Symptoms              any    `json:"symptoms"`
	Disease               any    `json:"disease"`
	Probability           any    `json:"probability"`
	Urgency               any    `json:"urgency"`
	PossibleCauses        any    `json:"possible_causes"`
	RecommendedSpecialist any    `json:"recommended_specialist"`
	Advice                any    `json:"advice"`
	Error                 string `json:"error"`
}

func (r rawRisk) entry() models.RiskEntry {
	return models.RiskEntry{
		Symptoms:              stringList(r.Symptoms),
		Disease:               llmjson.String(r.Disease),
		Probability:           probability(r.Probability),
		Urgency:               models.ParseUrgency(llmjson.String(r.Urgency)),
		PossibleCauses:        llmjson.String(r.PossibleCauses),
		RecommendedSpecialist: llmjson.String(r.RecommendedSpecialist),
		Advice:                llmjson.String(r.Advice),
	}
}

const unparsedRiskError = "model output could not be parsed"

func unparsedAssessment() models.RiskAssessment {
	return models.RiskAssessment{Entries: []models.RiskEntry{{
		Symptoms: []string{},
		Urgency:  models.UrgencyLow,
		Error:    unparsedRiskError,
	}}}
}

// ParseRiskAssessment accepts a JSON array or a single object. Anything else,
// including an empty list or an {"error": ...} payload, yields one error entry
// with low urgency.
func ParseRiskAssessment(raw string) (models.RiskAssessment, bool) {
	res := llmjson.Parse[json.RawMessage](raw, '[', '{')
	v, ok := res.Value()
	if !ok || len(v) == 0 {
		return unparsedAssessment(), false
	}

	var items []rawRisk
	if v[0] == '[' {
		if err := json.Unmarshal(v, &items); err != nil {
			return unparsedAssessment(), false
		}
	} else {
		var one rawRisk
		if err := json.Unmarshal(v, &one); err != nil {
			return unparsedAssessment(), false
		}
		items = []rawRisk{one}
	}

	out := models.RiskAssessment{}
	for _, it := range items {
		if it.Error != "" {
			continue
		}
		out.Entries = append(out.Entries, it.entry())
	}
	if len(out.Entries) == 0 {
		return unparsedAssessment(), false
	}
	return out, true
}

func (s *riskAnalyzer) Analyze(ctx context.Context, in RiskInput) (models.RiskAssessment, error) {
	const op = "RiskAnalyzer.Analyze"

	raw, err := s.complete(ctx, op, s.model, BuildRiskPrompt(in))
	if err != nil {
		return models.RiskAssessment{}, err
	}

	ra, ok := ParseRiskAssessment(raw)
	if !ok {
		s.logger.WithFields(logrus.Fields{"op": op, "model": s.model}).
			Warn("risk assessment output unparseable; defaulting to low urgency")
	}
	return ra, nil
}

func stringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s := llmjson.String(x); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		out := []string{}
		for _, p := range strings.Split(t, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return []string{llmjson.String(t)}
	}
}

// probability clamps to [0,100]; fractions in (0,1) are read as ratios.
func probability(v any) int {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "%")), 64)
		if err != nil {
			return 0
		}
		f = n
	default:
		return 0
	}
	if f > 0 && f < 1 {
		f *= 100
	}
	return int(math.Round(math.Max(0, math.Min(100, f))))
}
