package audio

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/tosone/minimp3"
	"github.com/youpy/go-wav"
)

// Format identifies an encoded audio payload.
type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatUnknown Format = "unknown"
)

// DetectFormat sniffs the container of an encoded payload.
func DetectFormat(data []byte) Format {
	if len(data) >= 4 && bytes.Equal(data[:4], []byte("RIFF")) {
		return FormatWAV
	}
	if len(data) >= 3 && bytes.Equal(data[:3], []byte("ID3")) {
		return FormatMP3
	}
	if len(data) >= 2 && data[0] == 0xFF && (data[1]&0xE0) == 0xE0 {
		return FormatMP3
	}
	return FormatUnknown
}

// Decode returns mono float32 samples and the sample rate of an encoded
// WAV or MP3 payload.
func Decode(data []byte) ([]float32, int, error) {
	switch DetectFormat(data) {
	case FormatWAV:
		return DecodeWAV(bytes.NewReader(data))
	case FormatMP3:
		return DecodeMP3(data)
	default:
		return nil, 0, fmt.Errorf("unrecognized audio format")
	}
}

// DecodeWAVFile reads a WAV file from disk.
func DecodeWAVFile(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer f.Close()
	return DecodeWAV(f)
}

type riffReader interface {
	io.Reader
	io.ReaderAt
}

// DecodeWAV decodes PCM WAV data, mixing stereo down to mono.
func DecodeWAV(r riffReader) ([]float32, int, error) {
	reader := wav.NewReader(r)

	format, err := reader.Format()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read WAV format: %w", err)
	}

	scale := fullScale(format.BitsPerSample)
	channels := int(format.NumChannels)
	if channels < 1 {
		channels = 1
	}

	var samples []float32
	for {
		chunk, err := reader.ReadSamples()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read WAV samples: %w", err)
		}

		for _, s := range chunk {
			var mixed float32
			for ch := 0; ch < channels && ch < 2; ch++ {
				mixed += clampUnit(float32(reader.IntValue(s, uint(ch))) / scale)
			}
			if channels >= 2 {
				mixed /= 2
			}
			samples = append(samples, mixed)
		}
	}

	return samples, int(format.SampleRate), nil
}

func fullScale(bits uint16) float32 {
	switch bits {
	case 8:
		return 128.0
	case 24:
		return 8388608.0
	case 32:
		return 2147483648.0
	default:
		return 32768.0
	}
}

// DecodeMP3 decodes an MP3 payload into mono float32 samples.
func DecodeMP3(data []byte) ([]float32, int, error) {
	decoder, pcm, err := minimp3.DecodeFull(data)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode MP3: %w", err)
	}
	defer decoder.Close()

	channels := decoder.Channels
	if channels < 1 {
		channels = 1
	}

	frames := len(pcm) / 2 / channels
	samples := make([]float32, 0, frames)
	for i := 0; i < frames; i++ {
		var mixed float32
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * 2
			raw := int16(pcm[off]) | int16(pcm[off+1])<<8
			mixed += float32(raw) / 32768.0
		}
		samples = append(samples, clampUnit(mixed/float32(channels)))
	}

	return samples, decoder.SampleRate, nil
}

func clampUnit(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
