package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yoockh/yoocare/internal/audio"
	"github.com/yoockh/yoocare/internal/quota"
)

// Pipeline holds the intake pipeline knobs read from the environment.
type Pipeline struct {
	Port string

	AudioMaxBytes    int64
	AudioAllowedExts []string
	NoisePropDecr    float64
	FFmpegPath       string

	STTProvider    string // google|whisper
	SpeechLanguage string
	AltLanguages   []string

	LLMProvider    string // vertex|openai
	GCPProject     string
	GCPLocation    string
	OpenAIKey      string
	OpenAIBaseURL  string
	WhisperModel   string
	EmbeddingModel string
	EmbeddingTTL   time.Duration

	ContextModel   string
	RiskModel      string
	DiagnosisModel string

	QuotaCapacities map[string]int
	QuotaRatio      float64
	QuotaStore      string // redis|memory

	KBTopK              int
	SpecialistThreshold float64
	RetryMax            uint64

	NotifyChannel   string // email|kafka|log
	AlertRatePerMin int
	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPassword    string
	SMTPFrom        string
	KafkaBrokers    []string
	KafkaTopic      string

	StorageBackend string // gcs|local
	GCSBucket      string
	GCSPublic      bool
	LocalDir       string

	Workers          int
	JobTTL           time.Duration
	RunTimeout       time.Duration
	IntakePerMinute  int
	WSAllowedOrigins []string
}

func LoadPipeline() (Pipeline, error) {
	caps := quota.DefaultCapacities()
	if v := os.Getenv("QUOTA_MODELS"); v != "" {
		parsed, err := quota.ParseCapacities(v)
		if err != nil {
			return Pipeline{}, fmt.Errorf("QUOTA_MODELS: %w", err)
		}
		caps = parsed
	}

	p := Pipeline{
		Port: getenv("PORT", "8080"),

		AudioMaxBytes:    getInt64("AUDIO_MAX_BYTES", audio.DefaultMaxBytes),
		AudioAllowedExts: getList("AUDIO_ALLOWED_EXTS", audio.DefaultAllowedExts),
		NoisePropDecr:    getFloat("NOISE_PROP_DECREASE", audio.DefaultPropDecrease),
		FFmpegPath:       getenv("FFMPEG_PATH", "ffmpeg"),

		STTProvider:    strings.ToLower(getenv("STT_PROVIDER", "google")),
		SpeechLanguage: getenv("SPEECH_LANGUAGE", "en-US"),
		AltLanguages:   getList("SPEECH_ALT_LANGUAGES", []string{"bn-BD"}),

		LLMProvider:    strings.ToLower(getenv("LLM_PROVIDER", "vertex")),
		GCPProject:     os.Getenv("GCP_PROJECT_ID"),
		GCPLocation:    getenv("GCP_LOCATION", "us-central1"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		WhisperModel:   getenv("WHISPER_MODEL", "whisper-1"),
		EmbeddingModel: getenv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingTTL:   getDuration("EMBEDDING_CACHE_TTL", 7*24*time.Hour),

		ContextModel:   getenv("CONTEXT_MODEL", quota.DefaultModel),
		RiskModel:      getenv("RISK_MODEL", quota.DefaultModel),
		DiagnosisModel: getenv("DIAGNOSIS_MODEL", quota.DefaultModel),

		QuotaCapacities: caps,
		QuotaRatio:      getFloat("QUOTA_UTILIZATION_RATIO", quota.DefaultUtilization),
		QuotaStore:      strings.ToLower(getenv("QUOTA_STORE", "redis")),

		KBTopK:              getInt("KB_TOP_K", 3),
		SpecialistThreshold: getFloat("SPECIALIST_THRESHOLD", 0.35),
		RetryMax:            uint64(getInt("RETRY_MAX", 0)),

		NotifyChannel:   strings.ToLower(getenv("NOTIFY_CHANNEL", "log")),
		AlertRatePerMin: getInt("ALERT_RATE_PER_MIN", 30),
		SMTPHost:        getenv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:        getInt("SMTP_PORT", 465),
		SMTPUser:        os.Getenv("SMTP_USER"),
		SMTPPassword:    os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:        os.Getenv("SMTP_FROM"),
		KafkaBrokers:    getList("KAFKA_BROKERS", nil),
		KafkaTopic:      getenv("KAFKA_ALERT_TOPIC", "triage.alerts"),

		StorageBackend: strings.ToLower(getenv("STORAGE_BACKEND", "gcs")),
		GCSBucket:      os.Getenv("GCS_BUCKET"),
		GCSPublic:      getBool("GCS_PUBLIC", false),
		LocalDir:       getenv("LOCAL_STORAGE_DIR", "./data/voice"),

		Workers:          getInt("INTAKE_WORKERS", 5),
		JobTTL:           getDuration("INTAKE_JOB_TTL", 24*time.Hour),
		RunTimeout:       getDuration("INTAKE_RUN_TIMEOUT", 3*time.Minute),
		IntakePerMinute:  getInt("INTAKE_RATE_PER_MIN", 20),
		WSAllowedOrigins: getList("WS_ALLOWED_ORIGINS", nil),
	}
	if p.SMTPFrom == "" {
		p.SMTPFrom = p.SMTPUser
	}
	return p, p.Validate()
}

func (p Pipeline) Validate() error {
	var errs []error
	if p.AudioMaxBytes <= 0 {
		errs = append(errs, errors.New("AUDIO_MAX_BYTES must be > 0"))
	}
	if len(p.AudioAllowedExts) == 0 {
		errs = append(errs, errors.New("AUDIO_ALLOWED_EXTS must not be empty"))
	}
	if p.NoisePropDecr <= 0 || p.NoisePropDecr > 1 {
		errs = append(errs, errors.New("NOISE_PROP_DECREASE must be in (0,1]"))
	}
	if p.QuotaRatio <= 0 || p.QuotaRatio > 1 {
		errs = append(errs, errors.New("QUOTA_UTILIZATION_RATIO must be in (0,1]"))
	}
	if p.SpecialistThreshold <= 0 || p.SpecialistThreshold >= 1 {
		errs = append(errs, errors.New("SPECIALIST_THRESHOLD must be in (0,1)"))
	}
	if p.KBTopK <= 0 {
		errs = append(errs, errors.New("KB_TOP_K must be > 0"))
	}
	for _, m := range []string{p.ContextModel, p.RiskModel, p.DiagnosisModel} {
		if _, ok := p.QuotaCapacities[m]; !ok {
			errs = append(errs, fmt.Errorf("model %q has no quota capacity", m))
		}
	}
	if !oneOf(p.STTProvider, "google", "whisper") {
		errs = append(errs, fmt.Errorf("STT_PROVIDER %q is not supported", p.STTProvider))
	}
	if !oneOf(p.LLMProvider, "vertex", "openai") {
		errs = append(errs, fmt.Errorf("LLM_PROVIDER %q is not supported", p.LLMProvider))
	}
	if p.LLMProvider == "vertex" && p.GCPProject == "" {
		errs = append(errs, errors.New("GCP_PROJECT_ID is required for LLM_PROVIDER=vertex"))
	}
	if !oneOf(p.QuotaStore, "redis", "memory") {
		errs = append(errs, fmt.Errorf("QUOTA_STORE %q is not supported", p.QuotaStore))
	}
	switch p.NotifyChannel {
	case "log":
	case "email":
		if p.SMTPUser == "" || p.SMTPPassword == "" {
			errs = append(errs, errors.New("SMTP_USER and SMTP_PASSWORD are required for NOTIFY_CHANNEL=email"))
		}
	case "kafka":
		if len(p.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required for NOTIFY_CHANNEL=kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("NOTIFY_CHANNEL %q is not supported", p.NotifyChannel))
	}
	switch p.StorageBackend {
	case "local":
	case "gcs":
		if p.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET is required for STORAGE_BACKEND=gcs"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND %q is not supported", p.StorageBackend))
	}
	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	n, err := strconv.Atoi(getenv(k, ""))
	if err != nil {
		return def
	}
	return n
}

func getInt64(k string, def int64) int64 {
	n, err := strconv.ParseInt(getenv(k, ""), 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getFloat(k string, def float64) float64 {
	f, err := strconv.ParseFloat(getenv(k, ""), 64)
	if err != nil {
		return def
	}
	return f
}

func getBool(k string, def bool) bool {
	b, err := strconv.ParseBool(getenv(k, ""))
	if err != nil {
		return def
	}
	return b
}

func getDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(getenv(k, ""))
	if err != nil {
		return def
	}
	return d
}

func getList(k string, def []string) []string {
	v := getenv(k, "")
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
