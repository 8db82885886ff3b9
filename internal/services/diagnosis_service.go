package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoocare/internal/llmjson"
	"github.com/yoockh/yoocare/internal/models"
	"github.com/yoockh/yoocare/internal/observability/metrics"
	"github.com/yoockh/yoocare/internal/providers/llm"
	"github.com/yoockh/yoocare/internal/retry"
	"github.com/yoockh/yoocare/internal/utils"
	"gorm.io/datatypes"
)

type DiagnosisInput struct {
	PatientID string
	Age       int
	Gender    string
	Symptoms  []string
}

// DiagnosisService recognizes the single best-matching disease from
// registration symptoms and attaches the matched doctor.
type DiagnosisService interface {
	Recognize(ctx context.Context, in DiagnosisInput) (models.Diagnosis, error)
}

type DiagnosisStore interface {
	SetInitialDiagnosis(ctx context.Context, id string, diagnosis datatypes.JSON) error
}

type diagnosisService struct {
	inference
	model   string
	matcher SpecialistMatcher
	store   DiagnosisStore
	logger  *logrus.Logger
}

func NewDiagnosisService(model string, policy retry.Policy, p llm.Provider, q QuotaGate, matcher SpecialistMatcher, store DiagnosisStore, m *metrics.Metrics, l *logrus.Logger) DiagnosisService {
	if l == nil {
		l = logrus.New()
	}
	return &diagnosisService{
		inference: inference{llm: p, quota: q, retry: policy, metrics: metricsOrDefault(m)},
		model:     model,
		matcher:   matcher,
		store:     store,
		logger:    l,
	}
}

func BuildDiagnosisPrompt(in DiagnosisInput) string {
	return fmt.Sprintf(`You are a medical AI assistant trained on WHO, Mayo Clinic, and PubMed data.

### Objective:
Analyze the patient's symptoms and recommend **the single best matching disease** with probability and suggested specialist doctor.

### Patient Info:
- Age: %d
- Gender: %s
- Symptoms: %s

### Instructions:
Return a single disease that best matches all symptoms. Include:
- disease: name of disease
- probability: integer chance percentage
- possible_causes: short summary
- recommended_specialist: doctor specialist to contact
- advice: short, actionable step

Output must be pure JSON with the following schema:

{
    "disease": "string",
    "probability": 0,
    "possible_causes": "string",
    "recommended_specialist": "string",
    "advice": "string"
}
`, in.Age, in.Gender, strings.Join(in.Symptoms, ", "))
}

func (s *diagnosisService) Recognize(ctx context.Context, in DiagnosisInput) (models.Diagnosis, error) {
	const op = "DiagnosisService.Recognize"

	if len(in.Symptoms) == 0 {
		return models.Diagnosis{}, utils.E(utils.CodeInvalidArgument, op, "at least one symptom is required", nil)
	}

	raw, err := s.complete(ctx, op, s.model, BuildDiagnosisPrompt(in))
	if err != nil {
		return models.Diagnosis{}, err
	}

	res := llmjson.Parse[rawRisk](raw)
	v, ok := res.Value()
	if !ok || v.Error != "" {
		s.logger.WithFields(logrus.Fields{"op": op, "model": s.model}).Warn("diagnosis output unparseable")
		return models.Diagnosis{Error: unparsedRiskError}, nil
	}
	e := v.entry()
	d := models.Diagnosis{
		Disease:               e.Disease,
		Probability:           e.Probability,
		PossibleCauses:        e.PossibleCauses,
		RecommendedSpecialist: e.RecommendedSpecialist,
		Advice:                e.Advice,
	}

	if s.matcher != nil && d.RecommendedSpecialist != "" {
		m, err := s.matcher.Match(ctx, d.RecommendedSpecialist)
		switch {
		case err == nil && m.Matched:
			id := m.Entry.DoctorID
			d.DoctorID = &id
			d.MatchedSpecialist = m.Entry.Specialist
			d.Similarity = m.Similarity
		case err != nil && !utils.IsCode(err, utils.CodeNotFound):
			return models.Diagnosis{}, err
		}
	}

	if s.store != nil && in.PatientID != "" {
		b, _ := json.Marshal(d)
		if err := s.store.SetInitialDiagnosis(ctx, in.PatientID, datatypes.JSON(b)); err != nil {
			s.logger.WithError(err).WithField("patient_id", in.PatientID).Warn("failed to persist initial diagnosis")
		}
	}
	return d, nil
}
