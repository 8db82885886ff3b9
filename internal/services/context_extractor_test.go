package services

import (
	"context"
	"testing"

	"github.com/yoockh/yoocare/internal/quota"
	"github.com/yoockh/yoocare/internal/utils"
)

func newQuota(capacity int) *quota.Manager {
	return quota.NewManager(quota.NewMemoryStore(), map[string]int{"m": capacity}, 1)
}

func newExtractor(llm *fakeLLM, q QuotaGate) ContextExtractor {
	return NewContextExtractor(
		ContextExtractorConfig{Model: "m"},
		llm, q,
		&fakeEmbedder{dim: 4},
		&fakeRetriever{examples: []string{"I feel dizzy", "My chest hurts", "I have a cough", "unused"}},
		testMetrics(), testLogger(),
	)
}

func TestExtractDeterministicPrompt(t *testing.T) {
	llm := &fakeLLM{resp: "```json\n{\"patient_context\": \"  My head hurts since Monday. \"}\n```"}
	ex := newExtractor(llm, newQuota(10))

	const transcript = "Doctor: What brings you in? Patient: My head hurts since Monday."
	a, err := ex.Extract(context.Background(), transcript)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	b, err := ex.Extract(context.Background(), transcript)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if a != "My head hurts since Monday." || a != b {
		t.Fatalf("outputs = %q, %q", a, b)
	}
	if len(llm.prompts) != 2 || llm.prompts[0] != llm.prompts[1] {
		t.Fatalf("prompts differ across identical calls")
	}
	want := BuildContextPrompt(transcript, []string{"I feel dizzy", "My chest hurts", "I have a cough"})
	if llm.prompts[0] != want {
		t.Fatalf("prompt mismatch:\n%s\nwant:\n%s", llm.prompts[0], want)
	}
}

func TestExtractNoPatientLines(t *testing.T) {
	llm := &fakeLLM{resp: `{"patient_context": ""}`}
	ex := newExtractor(llm, newQuota(10))

	got, err := ex.Extract(context.Background(), "Doctor: How are you feeling? Doctor: Any pain?")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "" {
		t.Fatalf("context = %q, want empty", got)
	}
}

func TestExtractUnparsedFallsBackToRaw(t *testing.T) {
	llm := &fakeLLM{resp: "  The patient says their knee hurts.  "}
	ex := newExtractor(llm, newQuota(10))

	got, err := ex.Extract(context.Background(), "Patient: my knee hurts")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "The patient says their knee hurts." {
		t.Fatalf("context = %q", got)
	}
}

func TestExtractEmptyTranscriptSkipsInference(t *testing.T) {
	llm := &fakeLLM{resp: `{"patient_context": "x"}`}
	ex := newExtractor(llm, newQuota(10))

	got, err := ex.Extract(context.Background(), "   ")
	if err != nil || got != "" {
		t.Fatalf("Extract = %q, %v", got, err)
	}
	if llm.calls() != 0 {
		t.Fatalf("backend called %d times", llm.calls())
	}
}

func TestExtractQuotaExhaustedNeverCallsBackend(t *testing.T) {
	llm := &fakeLLM{resp: `{"patient_context": "ok"}`}
	ex := newExtractor(llm, newQuota(1))

	if _, err := ex.Extract(context.Background(), "Patient: first"); err != nil {
		t.Fatalf("first Extract: %v", err)
	}
	_, err := ex.Extract(context.Background(), "Patient: second")
	if !utils.IsCode(err, utils.CodeQuotaExceeded) {
		t.Fatalf("err = %v, want quota exceeded", err)
	}
	if llm.calls() != 1 {
		t.Fatalf("backend called %d times, want 1", llm.calls())
	}
}

func TestParsePatientContextCoercesNonString(t *testing.T) {
	got, ok := parsePatientContext(`noise {"patient_context": ["a", "b"]} trailing`)
	if !ok || got != `["a","b"]` {
		t.Fatalf("parsePatientContext = %q, %v", got, ok)
	}
}
