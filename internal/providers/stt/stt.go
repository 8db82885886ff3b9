package stt

import (
	"context"

	"github.com/yoockh/yoocare/internal/audio"
	"github.com/yoockh/yoocare/internal/models"
)

// Provider returns the detected language and ordered timed segments.
type Provider interface {
	Transcribe(ctx context.Context, wf audio.Waveform, language string) (models.Transcript, error)
	Close() error
}
