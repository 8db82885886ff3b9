package services

import (
	"context"
	"strings"

	"github.com/yoockh/yoocare/internal/audio"
	"github.com/yoockh/yoocare/internal/models"
	"github.com/yoockh/yoocare/internal/providers/stt"
	"github.com/yoockh/yoocare/internal/retry"
	"github.com/yoockh/yoocare/internal/utils"
)

type Transcriber interface {
	Transcribe(ctx context.Context, wf audio.Waveform, language string) (models.Transcript, error)
}

type transcriber struct {
	stt   stt.Provider
	retry retry.Policy
}

func NewTranscriber(p stt.Provider, policy retry.Policy) Transcriber {
	return &transcriber{stt: p, retry: policy}
}

func (t *transcriber) Transcribe(ctx context.Context, wf audio.Waveform, language string) (models.Transcript, error) {
	const op = "Transcriber.Transcribe"

	if len(wf.Samples) == 0 {
		return models.Transcript{}, utils.E(utils.CodeInvalidArgument, op, "empty waveform", nil)
	}

	tr, err := retry.DoValue(ctx, t.retry, func() (models.Transcript, error) {
		return t.stt.Transcribe(ctx, wf, NormalizeLanguage(language))
	})
	if err != nil {
		return models.Transcript{}, utils.E(utils.CodeUnavailable, op, "speech-to-text backend unavailable", err)
	}
	return tr, nil
}

// NormalizeLanguage maps short codes to BCP-47 tags. Empty stays empty so the
// backend detects the language or applies its own default.
func NormalizeLanguage(v string) string {
	v = strings.TrimSpace(v)
	switch v {
	case "en":
		return "en-US"
	case "bn":
		return "bn-BD"
	case "id":
		return "id-ID"
	default:
		return v
	}
}
