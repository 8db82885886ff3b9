package audio

import (
	"math"

	"gonum.org/v1/gonum/dsp/window"
)

// Downmix averages interleaved channels into one.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(interleaved))
		copy(out, interleaved)
		return out
	}
	n := len(interleaved) / channels
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		var s float32
		for c := 0; c < channels; c++ {
			s += interleaved[i*channels+c]
		}
		out[i] = s / float32(channels)
	}
	return out
}

// resampleTaps is the length of the anti-aliasing filter applied before
// downsampling.
const resampleTaps = 63

// Resample converts between rates by linear interpolation. When downsampling,
// the input is low-passed below the new Nyquist rate first.
func Resample(in []float32, from, to int) []float32 {
	if from == to || len(in) == 0 {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}
	n := int(math.Round(float64(len(in)) * float64(to) / float64(from)))
	if n < 1 {
		n = 1
	}

	at := func(i int) float32 { return in[i] }
	if to < from {
		taps := lowpass(0.45*float64(to)/float64(from), resampleTaps)
		at = func(i int) float32 { return filterAt(in, taps, i) }
	}

	out := make([]float32, n)
	step := float64(from) / float64(to)
	last := len(in) - 1
	for i := range out {
		pos := float64(i) * step
		i0 := int(pos)
		if i0 >= last {
			out[i] = at(last)
			continue
		}
		frac := float32(pos - float64(i0))
		out[i] = at(i0)*(1-frac) + at(i0+1)*frac
	}
	return out
}

// lowpass returns a Blackman-windowed sinc filter with unit DC gain. cutoff is
// in cycles per input sample.
func lowpass(cutoff float64, taps int) []float64 {
	h := make([]float64, taps)
	mid := float64(taps-1) / 2
	for k := range h {
		x := 2 * cutoff * (float64(k) - mid)
		h[k] = 2 * cutoff
		if x != 0 {
			h[k] *= math.Sin(math.Pi*x) / (math.Pi * x)
		}
	}
	window.Blackman(h)
	var sum float64
	for _, v := range h {
		sum += v
	}
	for k := range h {
		h[k] /= sum
	}
	return h
}

// filterAt is the filtered value of sample i; edges repeat the end samples.
func filterAt(in []float32, h []float64, i int) float32 {
	mid := len(h) / 2
	last := len(in) - 1
	var s float64
	for k, c := range h {
		j := min(max(i+k-mid, 0), last)
		s += c * float64(in[j])
	}
	return float32(s)
}

// headroom matches pydub's effects.normalize default of 0.1 dB
var normalizeTarget = float32(math.Pow(10, -0.1/20))

// NormalizePeak scales in place so the loudest sample sits just under full scale.
// Silence is left untouched.
func NormalizePeak(s []float32) {
	var peak float32
	for _, v := range s {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		return
	}
	g := normalizeTarget / peak
	for i := range s {
		s[i] *= g
	}
}
