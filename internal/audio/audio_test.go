package audio

import (
	"context"
	"math"
	"math/rand"
	"runtime"
	"testing"

	"github.com/yoockh/yoocare/internal/utils"
)

func TestValidate(t *testing.T) {
	p := NewPreprocessor(Config{MaxBytes: 1024})
	cases := []struct {
		name string
		clip Clip
		ok   bool
	}{
		{"wav ok", Clip{Data: make([]byte, 100), Ext: ".wav"}, true},
		{"upper case ext", Clip{Data: make([]byte, 100), Ext: "voice.MP3"}, true},
		{"bare ext", Clip{Data: make([]byte, 100), Ext: "ogg"}, true},
		{"bad ext", Clip{Data: make([]byte, 100), Ext: ".flac"}, false},
		{"too large", Clip{Data: make([]byte, 1025), Ext: ".wav"}, false},
		{"empty", Clip{Ext: ".wav"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := p.Validate(tc.clip)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !utils.IsCode(err, utils.CodeInvalidArgument) {
				t.Fatalf("err = %v, want InvalidArgument", err)
			}
		})
	}
}

func TestDownmix(t *testing.T) {
	got := Downmix([]float32{1, 0, 0.5, 0.5, -1, 1}, 2)
	want := []float32{0.5, 0.5, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Downmix()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestResampleLength(t *testing.T) {
	in := make([]float32, 44100)
	if got := len(Resample(in, 44100, 16000)); got != 16000 {
		t.Fatalf("len = %d, want 16000", got)
	}
	if got := len(Resample(in[:8000], 8000, 16000)); got != 16000 {
		t.Fatalf("len = %d, want 16000", got)
	}
}

func sine(freq float64, rate, n int, amp float64) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return s
}

func TestResampleDownsamplingRejectsAliases(t *testing.T) {
	// 12 kHz folds to 4 kHz at 16 kHz without filtering
	high := Resample(sine(12000, 48000, 48000, 0.5), 48000, 16000)
	if got := rms(high[200 : len(high)-200]); got > 0.02 {
		t.Fatalf("12 kHz tone leaked through with rms %v", got)
	}

	low := sine(1000, 44100, 44100, 0.5)
	out := Resample(low, 44100, 16000)
	in, got := rms(low), rms(out[200:len(out)-200])
	if got < 0.9*in || got > 1.1*in {
		t.Fatalf("1 kHz tone rms %v -> %v, want it preserved", in, got)
	}
}

func TestResampleUpsamplingInterpolates(t *testing.T) {
	out := Resample([]float32{0, 1}, 8000, 16000)
	if len(out) != 4 || out[0] != 0 || out[1] != 0.5 || out[2] != 1 {
		t.Fatalf("Resample() = %v", out)
	}
}

func TestNormalizePeak(t *testing.T) {
	s := []float32{0.1, -0.25, 0.05}
	NormalizePeak(s)
	if math.Abs(float64(s[1])+float64(normalizeTarget)) > 1e-6 {
		t.Fatalf("peak = %v, want %v", s[1], -normalizeTarget)
	}
	silent := []float32{0, 0}
	NormalizePeak(silent)
	if silent[0] != 0 || silent[1] != 0 {
		t.Fatal("silence must stay silent")
	}
}

func rms(s []float32) float64 {
	var e float64
	for _, v := range s {
		e += float64(v) * float64(v)
	}
	return math.Sqrt(e / float64(len(s)))
}

func TestSpectralGateAttenuatesStationaryNoise(t *testing.T) {
	const n = 16000
	rng := rand.New(rand.NewSource(7))
	x := make([]float32, n)
	for i := range x {
		x[i] = float32(rng.NormFloat64() * 0.01)
		if i >= n-n/8 {
			x[i] += float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/TargetSampleRate))
		}
	}

	y := SpectralGate(x, DefaultPropDecrease)
	if len(y) != n {
		t.Fatalf("len = %d, want %d", len(y), n)
	}

	noiseIn, noiseOut := rms(x[:n/4]), rms(y[:n/4])
	if noiseOut > 0.5*noiseIn {
		t.Fatalf("noise rms %v -> %v, expected attenuation", noiseIn, noiseOut)
	}
	toneIn, toneOut := rms(x[n-1500:n-300]), rms(y[n-1500:n-300])
	if toneOut < 0.7*toneIn {
		t.Fatalf("tone rms %v -> %v, tone should survive", toneIn, toneOut)
	}
	for i, v := range y {
		if v < -1 || v > 1 {
			t.Fatalf("sample %d out of range: %v", i, v)
		}
	}
}

func TestSpectralGateMemoryIsLinearInClip(t *testing.T) {
	const n = 60 * TargetSampleRate
	rng := rand.New(rand.NewSource(3))
	x := make([]float32, n)
	for i := range x {
		x[i] = float32(rng.NormFloat64() * 0.05)
	}

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	y := SpectralGate(x, DefaultPropDecrease)
	runtime.ReadMemStats(&after)

	if len(y) != n {
		t.Fatalf("len = %d, want %d", len(y), n)
	}
	// the output buffer is about 4 bytes per sample
	if alloc := after.TotalAlloc - before.TotalAlloc; alloc > 3*4*n {
		t.Fatalf("allocated %d bytes for %d samples", alloc, n)
	}
}

func TestProcessWAVDeterministic(t *testing.T) {
	src := Waveform{SampleRate: 8000, Samples: make([]float32, 8000)}
	for i := range src.Samples {
		src.Samples[i] = float32(0.3 * math.Sin(2*math.Pi*300*float64(i)/8000))
	}
	clip := Clip{Data: src.WAV(), Ext: ".wav"}

	p := NewPreprocessor(Config{})
	a, err := p.Process(context.Background(), clip)
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Process(context.Background(), clip)
	if err != nil {
		t.Fatal(err)
	}
	if a.SampleRate != TargetSampleRate || len(a.Samples) != 16000 {
		t.Fatalf("rate=%d len=%d", a.SampleRate, len(a.Samples))
	}
	for i := range a.Samples {
		if a.Samples[i] != b.Samples[i] {
			t.Fatalf("sample %d differs between runs", i)
		}
	}
}

func TestProcessRejectsGarbageWAV(t *testing.T) {
	p := NewPreprocessor(Config{})
	_, err := p.Process(context.Background(), Clip{Data: []byte("definitely not audio"), Ext: ".wav"})
	if !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("err = %v, want InvalidArgument", err)
	}
}

func TestWAVDecodeStereo16(t *testing.T) {
	w := Waveform{SampleRate: 22050, Samples: []float32{0.5, -0.5, 0.25}}
	pcm, err := WAVDecoder{}.Decode(context.Background(), w.WAV())
	if err != nil {
		t.Fatal(err)
	}
	if pcm.Channels != 1 || pcm.SampleRate != 22050 || len(pcm.Samples) != 3 {
		t.Fatalf("pcm = %+v", pcm)
	}
	if math.Abs(float64(pcm.Samples[1])+0.5) > 1e-3 {
		t.Fatalf("sample = %v", pcm.Samples[1])
	}
}
