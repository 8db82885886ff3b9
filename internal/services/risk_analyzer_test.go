package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yoockh/yoocare/internal/models"
	"github.com/yoockh/yoocare/internal/utils"
)

func TestParseRiskAssessment(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		ok       bool
		disease  string
		urgency  models.Urgency
		prob     int
		symptoms int
	}{
		{
			name:     "array in fences",
			raw:      "```json\n[{\"symptoms\":[\"fever\",\"cough\"],\"disease\":\"Influenza\",\"probability\":72,\"urgency\":\"MEDIUM\",\"recommended_specialist\":\"pulmonologist\"}]\n```",
			ok:       true,
			disease:  "Influenza",
			urgency:  models.UrgencyMedium,
			prob:     72,
			symptoms: 2,
		},
		{
			name:     "single object with loose fields",
			raw:      `Here you go: {"symptoms":"chest pain, sweating","disease":"Angina","probability":"85%","urgency":" High "}`,
			ok:       true,
			disease:  "Angina",
			urgency:  models.UrgencyHigh,
			prob:     85,
			symptoms: 2,
		},
		{
			name:    "unknown urgency and out of range probability",
			raw:     `[{"disease":"Cold","probability":140,"urgency":"critical"}]`,
			ok:      true,
			disease: "Cold",
			urgency: models.UrgencyLow,
			prob:    100,
		},
		{name: "not json", raw: "I am not sure.", urgency: models.UrgencyLow},
		{name: "empty list", raw: "[]", urgency: models.UrgencyLow},
		{name: "error payload", raw: `{"error": "Failed to parse Gemini output"}`, urgency: models.UrgencyLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ra, ok := ParseRiskAssessment(tt.raw)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			p, has := ra.Primary()
			if !has {
				t.Fatalf("no entries")
			}
			if p.Urgency != tt.urgency {
				t.Fatalf("urgency = %q, want %q", p.Urgency, tt.urgency)
			}
			if !tt.ok {
				if len(ra.Entries) != 1 || p.Error == "" {
					t.Fatalf("unparsed should be one error entry, got %+v", ra.Entries)
				}
				return
			}
			if p.Disease != tt.disease || p.Probability != tt.prob || len(p.Symptoms) != tt.symptoms {
				t.Fatalf("entry = %+v", p)
			}
		})
	}
}

func TestBuildRiskPrompt(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	in := RiskInput{
		Age: 54, Gender: "female",
		PriorSymptoms: []string{"hypertension"},
		Context:       "I have had chest pain since this morning.",
		At:            at,
	}
	p := BuildRiskPrompt(in)
	for _, want := range []string{
		"- Age: 54",
		"- Gender: female",
		"Previous condition: hypertension",
		"Current condition: I have had chest pain since this morning.",
		"2025-03-01 09:30:00",
		"Only return the JSON, nothing else.",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if BuildRiskPrompt(in) != p {
		t.Fatalf("prompt is not deterministic")
	}
}

func TestAnalyzeDegradesOnGarbage(t *testing.T) {
	llm := &fakeLLM{resp: "sorry, cannot help"}
	ra := NewRiskAnalyzer(RiskAnalyzerConfig{Model: "m"}, llm, newQuota(5), testMetrics(), testLogger())

	got, err := ra.Analyze(context.Background(), RiskInput{Context: "pain"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	p, _ := got.Primary()
	if p.Error == "" || p.Urgency != models.UrgencyLow {
		t.Fatalf("primary = %+v", p)
	}
}

func TestAnalyzeQuotaAndBackendErrors(t *testing.T) {
	llm := &fakeLLM{resp: "[]"}
	ra := NewRiskAnalyzer(RiskAnalyzerConfig{Model: "m"}, llm, newQuota(0), testMetrics(), testLogger())
	if _, err := ra.Analyze(context.Background(), RiskInput{}); !utils.IsCode(err, utils.CodeQuotaExceeded) {
		t.Fatalf("err = %v, want quota exceeded", err)
	}
	if llm.calls() != 0 {
		t.Fatalf("backend called with no quota")
	}

	down := &fakeLLM{err: errors.New("connection refused")}
	ra = NewRiskAnalyzer(RiskAnalyzerConfig{Model: "m"}, down, newQuota(5), testMetrics(), testLogger())
	if _, err := ra.Analyze(context.Background(), RiskInput{}); !utils.IsCode(err, utils.CodeUnavailable) {
		t.Fatalf("err = %v, want unavailable", err)
	}
}
