package playback

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/Dupahar/crisis-call-murf-agent/pkg/audioio"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/tts"
)

// Decode errors.
var (
	ErrNoAudio           = errors.New("playback: no audio")
	ErrUnsupportedFormat = errors.New("playback: unsupported audio format")
)

// Decode turns a synthesized payload into mono PCM16 at sampleRate.
func Decode(audio []byte, format tts.AudioFormat, sampleRate int) ([]byte, error) {
	if len(audio) == 0 {
		return nil, ErrNoAudio
	}

	var (
		pcm      []byte
		rate     int
		channels int
		err      error
	)

	switch format.Encoding {
	case tts.EncodingMP3:
		pcm, rate, err = decodeMP3(audio)
		channels = 2 // go-mp3 always yields interleaved stereo
	case tts.EncodingWAV:
		pcm, rate, channels, err = decodeWAV(audio)
	case tts.EncodingPCM:
		pcm, rate, channels = audio, format.SampleRate, format.Channels
		if rate <= 0 {
			return nil, fmt.Errorf("%w: pcm without sample rate", ErrUnsupportedFormat)
		}
		if channels <= 0 {
			channels = 1
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format.Encoding)
	}
	if err != nil {
		return nil, err
	}

	out := audioio.ConvertPCM(pcm, rate, channels, sampleRate)
	if len(out) == 0 {
		return nil, ErrNoAudio
	}
	return out, nil
}

func decodeMP3(data []byte) ([]byte, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("decode mp3: %w", err)
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("decode mp3: %w", err)
	}
	return pcm, dec.SampleRate(), nil
}

// decodeWAV walks the RIFF chunks for fmt and data. Only 16-bit PCM is accepted.
func decodeWAV(wav []byte) (pcm []byte, rate, channels int, err error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, 0, 0, fmt.Errorf("%w: not a RIFF/WAVE file", ErrUnsupportedFormat)
	}

	var bits int
	pos := 12
	for pos+8 <= len(wav) {
		id := string(wav[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		start := pos + 8
		end := start + size
		if end > len(wav) || size < 0 {
			end = len(wav)
		}

		switch id {
		case "fmt ":
			if end-start < 16 {
				return nil, 0, 0, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedFormat)
			}
			audioFormat := binary.LittleEndian.Uint16(wav[start : start+2])
			channels = int(binary.LittleEndian.Uint16(wav[start+2 : start+4]))
			rate = int(binary.LittleEndian.Uint32(wav[start+4 : start+8]))
			bits = int(binary.LittleEndian.Uint16(wav[start+14 : start+16]))
			if audioFormat != 1 || bits != 16 {
				return nil, 0, 0, fmt.Errorf("%w: wav format %d, %d bits", ErrUnsupportedFormat, audioFormat, bits)
			}
		case "data":
			if rate == 0 {
				return nil, 0, 0, fmt.Errorf("%w: data before fmt", ErrUnsupportedFormat)
			}
			return wav[start:end], rate, channels, nil
		}

		pos = end
		// Chunks are word-aligned.
		if size%2 != 0 {
			pos++
		}
	}
	return nil, 0, 0, fmt.Errorf("%w: data chunk not found", ErrUnsupportedFormat)
}
