package tts

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// AudioParams is the (channel count, sample width, frame rate) triple that
// describes a WAV payload.
type AudioParams struct {
	Channels    int // number of interleaved channels
	SampleWidth int // bytes per sample
	FrameRate   int // frames per second
}

// String implements fmt.Stringer
func (p AudioParams) String() string {
	return fmt.Sprintf("%dch/%dbit/%dHz", p.Channels, p.SampleWidth*8, p.FrameRate)
}

// BitDepth returns the sample width in bits.
func (p AudioParams) BitDepth() int {
	return p.SampleWidth * 8
}

// DecodePayload reads a WAV payload into its parameters and PCM samples.
func DecodePayload(payload []byte) (AudioParams, *audio.IntBuffer, error) {
	d := wav.NewDecoder(bytes.NewReader(payload))
	if !d.IsValidFile() {
		if err := d.Err(); err != nil {
			return AudioParams{}, nil, fmt.Errorf("invalid WAV payload: %w", err)
		}
		return AudioParams{}, nil, errors.New("invalid WAV payload")
	}
	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		return AudioParams{}, nil, fmt.Errorf("unsupported WAV format %d: only linear PCM is supported", d.WavAudioFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return AudioParams{}, nil, fmt.Errorf("failed to read PCM data: %w", err)
	}

	params := AudioParams{
		Channels:    int(d.NumChans),
		SampleWidth: int(d.BitDepth) / 8,
		FrameRate:   int(d.SampleRate),
	}
	return params, buf, nil
}

// EncodePayload writes interleaved PCM samples as a WAV payload.
func EncodePayload(params AudioParams, samples []int) ([]byte, error) {
	if params.Channels <= 0 || params.SampleWidth <= 0 || params.FrameRate <= 0 {
		return nil, NewTTSError(ErrorCodeAudioFormat, fmt.Sprintf("invalid audio parameters %s", params), nil)
	}

	out := &seekBuffer{}
	enc := wav.NewEncoder(out, params.FrameRate, params.BitDepth(), params.Channels, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: params.Channels,
			SampleRate:  params.FrameRate,
		},
		Data:           samples,
		SourceBitDepth: params.BitDepth(),
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}
	return out.Bytes(), nil
}

// Concatenate merges WAV payloads in order into one payload. All payloads
// must share the same AudioParams. A single payload is returned as is.
func Concatenate(payloads [][]byte) ([]byte, error) {
	switch len(payloads) {
	case 0:
		return nil, NewTTSError(ErrorCodeEmptyAssemblyInput, "nothing to concatenate", nil)
	case 1:
		log.Debug("Single audio fragment, skipping concatenation")
		return payloads[0], nil
	}

	var (
		first   AudioParams
		samples []int
	)
	for i, payload := range payloads {
		params, buf, err := DecodePayload(payload)
		if err != nil {
			return nil, NewTTSError(ErrorCodeAudioFormat,
				fmt.Sprintf("cannot decode audio fragment %d", i+1), err).
				WithContext("fragment", i+1)
		}

		if i == 0 {
			first = params
			log.Debug("Audio params from first fragment", "params", first)
		} else if params != first {
			return nil, NewTTSError(ErrorCodeParameterMismatch,
				fmt.Sprintf("fragment %d is %s, expected %s", i+1, params, first), nil).
				WithContext("fragment", i+1).
				WithContext("expected", first).
				WithContext("actual", params)
		}

		samples = append(samples, buf.Data...)
	}

	merged, err := EncodePayload(first, samples)
	if err != nil {
		return nil, err
	}

	log.Debug("Concatenated audio fragments", "fragments", len(payloads), "bytes", len(merged))
	return merged, nil
}

// FrameCount returns the number of frames in a decoded buffer.
func FrameCount(params AudioParams, buf *audio.IntBuffer) int {
	if params.Channels == 0 {
		return 0
	}
	return len(buf.Data) / params.Channels
}

// seekBuffer is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes on Close.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if need := s.pos + len(p); need > len(s.buf) {
		s.buf = append(s.buf, make([]byte, need-len(s.buf))...)
	}
	copy(s.buf[s.pos:], p)
	s.pos += len(p)
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(s.pos) + offset
	case io.SeekEnd:
		abs = int64(len(s.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	s.pos = int(abs)
	return abs, nil
}

// Bytes returns the written contents.
func (s *seekBuffer) Bytes() []byte {
	return s.buf
}
