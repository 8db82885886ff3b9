// Package audio turns an uploaded voice clip into the clean 16 kHz mono
// waveform the speech backends expect.
package audio

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yoockh/yoocare/internal/utils"
)

const (
	TargetSampleRate    = 16000
	DefaultMaxBytes     = 10 << 20
	DefaultPropDecrease = 0.8
)

var DefaultAllowedExts = []string{".mp3", ".wav", ".m4a", ".webm", ".ogg"}

// Clip is the raw upload of one intake run.
type Clip struct {
	Data []byte
	Ext  string
}

// Waveform samples are mono and within [-1, 1].
type Waveform struct {
	Samples    []float32
	SampleRate int
}

func (w Waveform) DurationSeconds() float64 {
	if w.SampleRate == 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

type Config struct {
	MaxBytes     int64
	AllowedExts  []string
	PropDecrease float64
	FFmpegPath   string
}

type Preprocessor struct {
	maxBytes int64
	allowed  map[string]struct{}
	prop     float64
	decoders map[string]Decoder
}

func NewPreprocessor(cfg Config) *Preprocessor {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if len(cfg.AllowedExts) == 0 {
		cfg.AllowedExts = DefaultAllowedExts
	}
	if cfg.PropDecrease <= 0 || cfg.PropDecrease > 1 {
		cfg.PropDecrease = DefaultPropDecrease
	}

	p := &Preprocessor{
		maxBytes: cfg.MaxBytes,
		allowed:  map[string]struct{}{},
		prop:     cfg.PropDecrease,
		decoders: map[string]Decoder{},
	}
	for _, e := range cfg.AllowedExts {
		p.allowed[NormalizeExt(e)] = struct{}{}
	}

	ff := FFmpegDecoder{Path: cfg.FFmpegPath}
	p.decoders[".wav"] = WAVDecoder{}
	p.decoders[".mp3"] = MP3Decoder{}
	for _, e := range []string{".m4a", ".webm", ".ogg"} {
		p.decoders[e] = ff
	}
	return p
}

// RegisterDecoder overrides the decoder used for ext.
func (p *Preprocessor) RegisterDecoder(ext string, d Decoder) {
	p.decoders[NormalizeExt(ext)] = d
}

// NormalizeExt accepts "wav", ".WAV" or a file name.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if e := filepath.Ext(ext); e != "" {
		return e
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}

func (p *Preprocessor) Validate(c Clip) error {
	const op = "AudioPreprocessor.Validate"

	ext := NormalizeExt(c.Ext)
	if _, ok := p.allowed[ext]; !ok {
		return utils.E(utils.CodeInvalidArgument, op, "unsupported audio format "+strconv.Quote(ext), nil)
	}
	if len(c.Data) == 0 {
		return utils.E(utils.CodeInvalidArgument, op, "empty audio file", nil)
	}
	if int64(len(c.Data)) > p.maxBytes {
		return utils.E(utils.CodeInvalidArgument, op, "audio file too large (max "+strconv.FormatInt(p.maxBytes>>20, 10)+"MB)", nil)
	}
	return nil
}

// Process validates, decodes, downmixes, resamples, peak-normalizes and
// noise-gates the clip. Identical input yields identical output.
func (p *Preprocessor) Process(ctx context.Context, c Clip) (Waveform, error) {
	const op = "AudioPreprocessor.Process"

	if err := p.Validate(c); err != nil {
		return Waveform{}, err
	}
	dec, ok := p.decoders[NormalizeExt(c.Ext)]
	if !ok {
		return Waveform{}, utils.E(utils.CodeInvalidArgument, op, "no decoder for "+NormalizeExt(c.Ext), nil)
	}

	pcm, err := dec.Decode(ctx, c.Data)
	if err != nil {
		var ae *utils.AppError
		if errors.As(err, &ae) {
			return Waveform{}, err
		}
		return Waveform{}, utils.E(utils.CodeInvalidArgument, op, "failed to decode audio", err)
	}
	if len(pcm.Samples) == 0 || pcm.SampleRate <= 0 {
		return Waveform{}, utils.E(utils.CodeInvalidArgument, op, "audio contains no samples", nil)
	}

	mono := Downmix(pcm.Samples, pcm.Channels)
	mono = Resample(mono, pcm.SampleRate, TargetSampleRate)
	NormalizePeak(mono)
	clean := SpectralGate(mono, p.prop)

	return Waveform{Samples: clean, SampleRate: TargetSampleRate}, nil
}
