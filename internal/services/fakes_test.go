package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoocare/internal/audio"
	"github.com/yoockh/yoocare/internal/models"
	"github.com/yoockh/yoocare/internal/observability/metrics"
	"github.com/yoockh/yoocare/internal/providers/notify"
	"github.com/yoockh/yoocare/internal/utils"
)

func testMetrics() *metrics.Metrics { return metrics.New(prometheus.NewRegistry()) }

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeLLM answers every prompt with a fixed response and records prompts.
type fakeLLM struct {
	mu      sync.Mutex
	resp    string
	err     error
	prompts []string
}

func (f *fakeLLM) Complete(_ context.Context, prompt, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.resp, f.err
}

func (f *fakeLLM) Close() error { return nil }

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// scriptedLLM picks a response by a substring of the prompt.
type scriptedLLM struct {
	mu     sync.Mutex
	byHint map[string]string
	n      int
}

func (f *scriptedLLM) Complete(_ context.Context, prompt, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	for hint, resp := range f.byHint {
		if strings.Contains(prompt, hint) {
			return resp, nil
		}
	}
	return "", errors.New("no scripted response")
}

func (f *scriptedLLM) Close() error { return nil }

// fakeEmbedder returns fixed vectors per lower-cased text; unknown text maps
// to a vector orthogonal to everything in the table.
type fakeEmbedder struct {
	vecs  map[string][]float32
	dim   int
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vecs[strings.ToLower(t)]; ok {
			out[i] = v
			continue
		}
		v := make([]float32, f.dim)
		v[f.dim-1] = 1
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string { return "fake" }

type fakeRetriever struct {
	examples []string
	k        int
}

func (f *fakeRetriever) Search(_ []float32, k int) ([]string, error) {
	f.k = k
	if k > len(f.examples) {
		k = len(f.examples)
	}
	return f.examples[:k], nil
}

type fakeDirectory struct {
	entries []models.SpecialistEntry
	err     error
}

func (f *fakeDirectory) List(context.Context) ([]models.SpecialistEntry, error) {
	return f.entries, f.err
}

type fakeChannel struct {
	mu   sync.Mutex
	err  error
	sent []notify.Alert
}

func (f *fakeChannel) Send(_ context.Context, a notify.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, a)
	return f.err
}

func (f *fakeChannel) Method() string { return "email" }

type fakeAuditStore struct {
	mu      sync.Mutex
	entries []models.AuditReview
	err     error
}

func (f *fakeAuditStore) Insert(_ context.Context, a *models.AuditReview) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.entries = append(f.entries, *a)
	return "audit-" + a.RunID, nil
}

type fakePatients struct {
	byID map[string]*models.Patient
	err  error
}

func (f *fakePatients) GetByID(_ context.Context, id string) (*models.Patient, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.byID[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return p, nil
}

type fakeVoices struct {
	err    error
	stored int
}

func (f *fakeVoices) Store(_ context.Context, in VoiceUpload) (*models.VoiceFile, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.stored++
	return &models.VoiceFile{ID: "vf-1", PatientID: in.PatientID, URL: "gs://voice/" + in.PatientID + in.Ext}, nil
}

func (f *fakeVoices) List(context.Context, string, int) ([]models.VoiceFile, error) { return nil, nil }

// fakePreprocessor skips DSP; Validate enforces only the extension.
type fakePreprocessor struct {
	err error
}

func (f *fakePreprocessor) Validate(c audio.Clip) error {
	if c.Ext != ".wav" && c.Ext != ".mp3" {
		return utils.E(utils.CodeInvalidArgument, "fake.Validate", "unsupported extension", nil)
	}
	return nil
}

func (f *fakePreprocessor) Process(context.Context, audio.Clip) (audio.Waveform, error) {
	if f.err != nil {
		return audio.Waveform{}, f.err
	}
	return audio.Waveform{Samples: make([]float32, 1600), SampleRate: audio.TargetSampleRate}, nil
}

type fakeSTT struct {
	tr  models.Transcript
	err error
}

func (f *fakeSTT) Transcribe(context.Context, audio.Waveform, string) (models.Transcript, error) {
	return f.tr, f.err
}

func (f *fakeSTT) Close() error { return nil }
