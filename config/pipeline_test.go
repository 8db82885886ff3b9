package config

import (
	"strings"
	"testing"
	"time"
)

var pipelineEnv = []string{
	"AUDIO_MAX_BYTES", "AUDIO_ALLOWED_EXTS", "NOISE_PROP_DECREASE", "STT_PROVIDER", "LLM_PROVIDER",
	"GCP_PROJECT_ID", "QUOTA_MODELS", "QUOTA_UTILIZATION_RATIO", "QUOTA_STORE", "CONTEXT_MODEL",
	"RISK_MODEL", "DIAGNOSIS_MODEL", "KB_TOP_K", "SPECIALIST_THRESHOLD", "RETRY_MAX", "NOTIFY_CHANNEL",
	"SMTP_USER", "SMTP_PASSWORD", "SMTP_FROM", "KAFKA_BROKERS", "STORAGE_BACKEND", "GCS_BUCKET",
	"INTAKE_JOB_TTL", "WS_ALLOWED_ORIGINS",
}

func clearPipelineEnv(t *testing.T) {
	t.Helper()
	for _, k := range pipelineEnv {
		t.Setenv(k, "")
	}
}

func TestLoadPipelineDefaults(t *testing.T) {
	clearPipelineEnv(t)
	t.Setenv("GCP_PROJECT_ID", "proj")
	t.Setenv("GCS_BUCKET", "voices")

	p, err := LoadPipeline()
	if err != nil {
		t.Fatalf("LoadPipeline: %v", err)
	}
	if p.AudioMaxBytes != 10<<20 || p.QuotaRatio != 0.8 || p.SpecialistThreshold != 0.35 || p.KBTopK != 3 {
		t.Fatalf("defaults = %+v", p)
	}
	if p.RetryMax != 0 || p.NotifyChannel != "log" || p.JobTTL != 24*time.Hour {
		t.Fatalf("defaults = %+v", p)
	}
	if p.QuotaCapacities["gemma-3n-e2b-it"] != 14400 {
		t.Fatalf("capacities = %v", p.QuotaCapacities)
	}
}

func TestLoadPipelineOverrides(t *testing.T) {
	clearPipelineEnv(t)
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("STORAGE_BACKEND", "local")
	t.Setenv("QUOTA_MODELS", "gpt-4o-mini=500, gpt-4o=20")
	t.Setenv("CONTEXT_MODEL", "gpt-4o-mini")
	t.Setenv("RISK_MODEL", "gpt-4o")
	t.Setenv("DIAGNOSIS_MODEL", "gpt-4o-mini")
	t.Setenv("AUDIO_ALLOWED_EXTS", ".wav, .mp3")
	t.Setenv("RETRY_MAX", "2")
	t.Setenv("NOTIFY_CHANNEL", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	p, err := LoadPipeline()
	if err != nil {
		t.Fatalf("LoadPipeline: %v", err)
	}
	if len(p.AudioAllowedExts) != 2 || p.AudioAllowedExts[1] != ".mp3" {
		t.Fatalf("exts = %v", p.AudioAllowedExts)
	}
	if p.RetryMax != 2 || len(p.KafkaBrokers) != 2 || p.QuotaCapacities["gpt-4o"] != 20 {
		t.Fatalf("overrides = %+v", p)
	}
}

func TestPipelineValidate(t *testing.T) {
	clearPipelineEnv(t)
	t.Setenv("QUOTA_UTILIZATION_RATIO", "1.5")
	t.Setenv("NOTIFY_CHANNEL", "email")
	t.Setenv("RISK_MODEL", "unknown-model")

	_, err := LoadPipeline()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"QUOTA_UTILIZATION_RATIO", "SMTP_USER", "unknown-model", "GCP_PROJECT_ID", "GCS_BUCKET"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
