package stt

import (
	"bytes"
	"context"

	openai "github.com/sashabaranov/go-openai"
	"github.com/yoockh/yoocare/internal/audio"
	"github.com/yoockh/yoocare/internal/models"
)

// Whisper talks to any OpenAI-compatible transcription endpoint.
type Whisper struct {
	client *openai.Client
	model  string
}

func NewWhisper(apiKey, baseURL, model string) *Whisper {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &Whisper{client: openai.NewClientWithConfig(cfg), model: model}
}

func (w *Whisper) Close() error { return nil }

func (w *Whisper) Transcribe(ctx context.Context, wf audio.Waveform, language string) (models.Transcript, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: "patient.wav",
		Reader:   bytes.NewReader(wf.WAV()),
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: whisperLanguage(language),
	})
	if err != nil {
		return models.Transcript{}, err
	}

	out := models.Transcript{Language: resp.Language}
	for _, s := range resp.Segments {
		out.Segments = append(out.Segments, models.Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	if len(out.Segments) == 0 && resp.Text != "" {
		out.Segments = []models.Segment{{Start: 0, End: resp.Duration, Text: resp.Text}}
	}
	return out, nil
}

// whisper wants ISO-639-1 ("en"), not a BCP-47 tag ("en-US")
func whisperLanguage(tag string) string {
	if len(tag) > 2 && tag[2] == '-' {
		return tag[:2]
	}
	return tag
}
