package audio

import (
	"bytes"
	"encoding/binary"
	"math"
)

// PCM16 renders the waveform as little-endian signed 16-bit samples.
func (w Waveform) PCM16() []byte {
	out := make([]byte, 2*len(w.Samples))
	for i, v := range w.Samples {
		f := math.Max(-1, math.Min(1, float64(v)))
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(math.Round(f*32767))))
	}
	return out
}

// WAV wraps PCM16 in a canonical 44-byte RIFF header.
func (w Waveform) WAV() []byte {
	pcm := w.PCM16()
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	le := binary.LittleEndian
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, le, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, le, uint32(16))
	_ = binary.Write(&buf, le, uint16(1)) // PCM
	_ = binary.Write(&buf, le, uint16(1)) // mono
	_ = binary.Write(&buf, le, uint32(w.SampleRate))
	_ = binary.Write(&buf, le, uint32(w.SampleRate*2))
	_ = binary.Write(&buf, le, uint16(2))
	_ = binary.Write(&buf, le, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, le, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
