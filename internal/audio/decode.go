package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os/exec"
	"strconv"

	"github.com/hajimehoshi/go-mp3"
	"github.com/yoockh/yoocare/internal/utils"
)

// PCM holds interleaved float samples.
type PCM struct {
	Samples    []float32
	Channels   int
	SampleRate int
}

type Decoder interface {
	Decode(ctx context.Context, data []byte) (PCM, error)
}

// WAVDecoder reads RIFF/WAVE with integer PCM (8/16/24/32 bit) or 32-bit float.
type WAVDecoder struct{}

func (WAVDecoder) Decode(_ context.Context, data []byte) (PCM, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return PCM{}, errors.New("not a RIFF/WAVE file")
	}

	var (
		format, channels, bits uint16
		rate                   uint32
		haveFmt                bool
		body                   []byte
	)
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		off += 8
		end := off + size
		if end > len(data) {
			end = len(data)
		}
		switch id {
		case "fmt ":
			if end-off < 16 {
				return PCM{}, errors.New("short fmt chunk")
			}
			format = binary.LittleEndian.Uint16(data[off:])
			channels = binary.LittleEndian.Uint16(data[off+2:])
			rate = binary.LittleEndian.Uint32(data[off+4:])
			bits = binary.LittleEndian.Uint16(data[off+14:])
			// WAVE_FORMAT_EXTENSIBLE carries the real format in the sub-format GUID
			if format == 0xFFFE && end-off >= 26 {
				format = binary.LittleEndian.Uint16(data[off+24:])
			}
			haveFmt = true
		case "data":
			body = data[off:end]
		}
		off = end + size%2
	}
	if !haveFmt || body == nil {
		return PCM{}, errors.New("missing fmt or data chunk")
	}
	if channels == 0 {
		return PCM{}, errors.New("zero channels")
	}

	samples, err := decodePCM(body, format, bits)
	if err != nil {
		return PCM{}, err
	}
	return PCM{Samples: samples, Channels: int(channels), SampleRate: int(rate)}, nil
}

func decodePCM(b []byte, format, bits uint16) ([]float32, error) {
	switch {
	case format == 1 && bits == 8:
		out := make([]float32, len(b))
		for i, v := range b {
			out[i] = (float32(v) - 128) / 128
		}
		return out, nil
	case format == 1 && bits == 16:
		out := make([]float32, len(b)/2)
		for i := range out {
			out[i] = float32(int16(binary.LittleEndian.Uint16(b[2*i:]))) / 32768
		}
		return out, nil
	case format == 1 && bits == 24:
		out := make([]float32, len(b)/3)
		for i := range out {
			v := int32(b[3*i]) | int32(b[3*i+1])<<8 | int32(int8(b[3*i+2]))<<16
			out[i] = float32(v) / 8388608
		}
		return out, nil
	case format == 1 && bits == 32:
		out := make([]float32, len(b)/4)
		for i := range out {
			out[i] = float32(int32(binary.LittleEndian.Uint32(b[4*i:]))) / 2147483648
		}
		return out, nil
	case format == 3 && bits == 32:
		out := make([]float32, len(b)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
		}
		return out, nil
	}
	return nil, errors.New("unsupported wav encoding: format " + strconv.Itoa(int(format)) + ", " + strconv.Itoa(int(bits)) + " bit")
}

// MP3Decoder always yields 16-bit stereo, as go-mp3 does.
type MP3Decoder struct{}

func (MP3Decoder) Decode(_ context.Context, data []byte) (PCM, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return PCM{}, err
	}
	raw, err := io.ReadAll(d)
	if err != nil {
		return PCM{}, err
	}
	samples, err := decodePCM(raw, 1, 16)
	if err != nil {
		return PCM{}, err
	}
	return PCM{Samples: samples, Channels: 2, SampleRate: d.SampleRate()}, nil
}

// FFmpegDecoder shells out for container formats without a Go decoder
// (m4a, webm, ogg). ffmpeg does the mono 16 kHz conversion itself.
type FFmpegDecoder struct {
	Path string
}

func (f FFmpegDecoder) Decode(ctx context.Context, data []byte) (PCM, error) {
	const op = "FFmpegDecoder.Decode"

	path := f.Path
	if path == "" {
		path = "ffmpeg"
	}
	bin, err := exec.LookPath(path)
	if err != nil {
		return PCM{}, utils.E(utils.CodeUnavailable, op, "ffmpeg is not available", err)
	}

	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "f32le", "-ac", "1", "-ar", strconv.Itoa(TargetSampleRate),
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return PCM{}, utils.E(utils.CodeInvalidArgument, op, "ffmpeg could not decode audio: "+stderr.String(), err)
	}

	samples, err := decodePCM(stdout.Bytes(), 3, 32)
	if err != nil {
		return PCM{}, err
	}
	return PCM{Samples: samples, Channels: 1, SampleRate: TargetSampleRate}, nil
}
