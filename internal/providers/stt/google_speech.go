package stt

import (
	"context"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/yoockh/yoocare/internal/audio"
	"github.com/yoockh/yoocare/internal/models"
)

const (
	// SyncMaxSeconds keeps synchronous requests under the API's one minute cap.
	SyncMaxSeconds = 55
	// LongChunkSeconds keeps each inline LINEAR16 payload under the 10 MB request limit.
	LongChunkSeconds = 300
)

// recognizer is the slice of the Speech client used here.
type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest) ([]*speechpb.SpeechRecognitionResult, error)
	LongRunningRecognize(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) ([]*speechpb.SpeechRecognitionResult, error)
	Close() error
}

type speechClient struct {
	c *speech.Client
}

func (s speechClient) Recognize(ctx context.Context, req *speechpb.RecognizeRequest) ([]*speechpb.SpeechRecognitionResult, error) {
	resp, err := s.c.Recognize(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (s speechClient) LongRunningRecognize(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) ([]*speechpb.SpeechRecognitionResult, error) {
	op, err := s.c.LongRunningRecognize(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := op.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (s speechClient) Close() error { return s.c.Close() }

type GoogleSpeech struct {
	r recognizer

	Encoding        speechpb.RecognitionConfig_AudioEncoding
	AltLanguages    []string
	DefaultLanguage string
}

func NewGoogleSpeech(ctx context.Context, defaultLanguage string, alt ...string) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return newGoogleSpeech(speechClient{c: c}, defaultLanguage, alt...), nil
}

func newGoogleSpeech(r recognizer, defaultLanguage string, alt ...string) *GoogleSpeech {
	if defaultLanguage == "" {
		defaultLanguage = "en-US"
	}
	return &GoogleSpeech{
		r:               r,
		Encoding:        speechpb.RecognitionConfig_LINEAR16,
		AltLanguages:    alt,
		DefaultLanguage: defaultLanguage,
	}
}

func (g *GoogleSpeech) Close() error { return g.r.Close() }

// Transcribe uses synchronous recognition for short clips. Longer clips go
// through long-running recognition, one operation per chunk, with segment
// times shifted by the chunk offset. Each result becomes one segment that
// starts where the previous one ended.
func (g *GoogleSpeech) Transcribe(ctx context.Context, wf audio.Waveform, language string) (models.Transcript, error) {
	if language == "" {
		language = g.DefaultLanguage
	}
	cfg := &speechpb.RecognitionConfig{
		Encoding:                   g.Encoding,
		SampleRateHertz:            int32(wf.SampleRate),
		LanguageCode:               language,
		AlternativeLanguageCodes:   g.AltLanguages,
		EnableAutomaticPunctuation: true,
	}
	out := models.Transcript{Language: language}

	if wf.DurationSeconds() <= SyncMaxSeconds {
		results, err := g.r.Recognize(ctx, &speechpb.RecognizeRequest{
			Config: cfg,
			Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: wf.PCM16()}},
		})
		if err != nil {
			return models.Transcript{}, err
		}
		appendResults(&out, results, 0)
		return out, nil
	}

	chunk := LongChunkSeconds * wf.SampleRate
	for start := 0; start < len(wf.Samples); start += chunk {
		end := min(start+chunk, len(wf.Samples))
		part := audio.Waveform{Samples: wf.Samples[start:end], SampleRate: wf.SampleRate}
		results, err := g.r.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{
			Config: cfg,
			Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: part.PCM16()}},
		})
		if err != nil {
			return models.Transcript{}, err
		}
		appendResults(&out, results, float64(start)/float64(wf.SampleRate))
	}
	return out, nil
}

func appendResults(out *models.Transcript, results []*speechpb.SpeechRecognitionResult, offset float64) {
	prev := offset
	for _, r := range results {
		if len(r.Alternatives) == 0 || r.Alternatives[0].Transcript == "" {
			continue
		}
		end := prev
		if r.ResultEndTime != nil {
			end = offset + r.ResultEndTime.AsDuration().Seconds()
		}
		if r.LanguageCode != "" {
			out.Language = r.LanguageCode
		}
		out.Segments = append(out.Segments, models.Segment{
			Start: prev,
			End:   end,
			Text:  r.Alternatives[0].Transcript,
		})
		prev = end
	}
}
