package audio

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	gateFrame      = 512
	gateHop        = 128
	gateBins       = gateFrame/2 + 1
	gateStdThresh  = 1.5
	gateSmoothBins = 2
	gateSmoothHops = 2
)

// stft produces windowed frames of x, zero padded by half a frame on each
// side, one at a time into reused buffers.
type stft struct {
	x     []float32
	win   []float64
	fft   *fourier.FFT
	buf   []float64
	coeff []complex128
}

func newSTFT(x []float32) *stft {
	return &stft{
		x:     x,
		win:   hann(gateFrame),
		fft:   fourier.NewFFT(gateFrame),
		buf:   make([]float64, gateFrame),
		coeff: make([]complex128, gateBins),
	}
}

// frame returns the spectrum of frame f. The slice is overwritten by the next call.
func (s *stft) frame(f int) []complex128 {
	start := f*gateHop - gateFrame/2
	for j := range s.buf {
		k := start + j
		v := 0.0
		if k >= 0 && k < len(s.x) {
			v = float64(s.x[k])
		}
		s.buf[j] = v * s.win[j]
	}
	return s.fft.Coefficients(s.coeff, s.buf)
}

func toDB(c complex128) float64 { return 20 * math.Log10(cmplxAbs(c)+1e-10) }

// SpectralGate performs stationary spectral-gating noise reduction. Each
// frequency bin gets a threshold of mean + 1.5 std of its dB magnitude over the
// whole clip; bins below it are attenuated by propDecrease.
//
// The clip is analysed twice, frame by frame: once for the per-bin statistics
// and once to gate and resynthesize. Only the output buffer grows with the
// clip length.
func SpectralGate(x []float32, propDecrease float64) []float32 {
	n := len(x)
	if n == 0 {
		return nil
	}

	half := gateFrame / 2
	frames := max(1, 1+(n+2*half-gateFrame+gateHop-1)/gateHop)
	st := newSTFT(x)

	var sum, sq [gateBins]float64
	for f := 0; f < frames; f++ {
		for b, c := range st.frame(f) {
			d := toDB(c)
			sum[b] += d
			sq[b] += d * d
		}
	}
	var thresh [gateBins]float64
	for b := range thresh {
		mean := sum[b] / float64(frames)
		variance := math.Max(0, sq[b]/float64(frames)-mean*mean)
		thresh[b] = mean + gateStdThresh*math.Sqrt(variance)
	}

	// masks holds the raw 0/1 rows of the frames the time smoothing can reach;
	// specs holds the spectra still waiting for their smoothed mask.
	const dt, df = gateSmoothHops, gateSmoothBins
	masks := make([][gateBins]float32, 2*dt+1)
	specs := make([][gateBins]complex128, dt+1)

	acc := make([]float32, (frames-1)*gateHop+gateFrame)
	seq := make([]float64, gateFrame)
	for i := 0; i < frames+dt; i++ {
		if i < frames {
			spec := &specs[i%len(specs)]
			row := &masks[i%len(masks)]
			for b, c := range st.frame(i) {
				spec[b] = c
				row[b] = 0
				if toDB(c) > thresh[b] {
					row[b] = 1
				}
			}
		}

		f := i - dt
		if f < 0 {
			continue
		}
		spec := &specs[f%len(specs)]
		lo, hi := max(0, f-dt), min(frames-1, f+dt)
		for b := range spec {
			bl, bh := max(0, b-df), min(gateBins-1, b+df)
			var s float32
			for r := lo; r <= hi; r++ {
				row := &masks[r%len(masks)]
				for j := bl; j <= bh; j++ {
					s += row[j]
				}
			}
			m := float64(s) / float64((hi-lo+1)*(bh-bl+1))
			spec[b] *= complex(m*propDecrease+(1-propDecrease), 0)
		}

		st.fft.Sequence(seq, spec[:])
		start := f * gateHop
		for j, v := range seq {
			// gonum's inverse is unnormalized
			acc[start+j] += float32(v / gateFrame * st.win[j])
		}
	}

	res := acc[half : half+n : half+n]
	for i := range res {
		v := float64(res[i])
		if norm := windowNorm(i+half, frames, st.win); norm > 1e-8 {
			v /= norm
		}
		res[i] = float32(math.Max(-1, math.Min(1, v)))
	}
	return res
}

// windowNorm is the summed squared window of every frame covering padded index k.
func windowNorm(k, frames int, win []float64) float64 {
	first := 0
	if k >= gateFrame {
		first = (k-gateFrame)/gateHop + 1
	}
	last := min(frames-1, k/gateHop)
	var s float64
	for f := first; f <= last; f++ {
		w := win[k-f*gateHop]
		s += w * w
	}
	return s
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

func cmplxAbs(c complex128) float64 { return math.Hypot(real(c), imag(c)) }
