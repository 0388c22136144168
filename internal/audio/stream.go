package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgnsrekt/soundbox/internal/tts"
)

var (
	// ErrAudioUnavailable is returned when the binary was built without audio support.
	ErrAudioUnavailable = errors.New("audio playback not available in this build")

	// ErrPlayerClosed is returned by Play after Close.
	ErrPlayerClosed = errors.New("player is closed")

	// ErrFormatChanged is returned when a payload's rate or channel count differs
	// from the one the output device was opened with.
	ErrFormatChanged = errors.New("audio format differs from the open output device")
)

// PlayerState represents the current state of a player.
type PlayerState int32

const (
	StateStopped PlayerState = iota
	StatePlaying
	StateClosed
)

func (s PlayerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Player plays WAV payloads. Play blocks until playback finishes or ctx is done.
type Player interface {
	Play(ctx context.Context, payload []byte) error
	State() PlayerState
	Close() error
}

// Stream is a payload decoded to signed 16-bit little-endian PCM, the one
// sample format every oto backend accepts.
type Stream struct {
	Params   tts.AudioParams // parameters of the source payload
	PCM      []byte
	Duration time.Duration
}

// NewStream decodes a WAV payload into a Stream. 24 and 32-bit samples are
// reduced to 16 bits.
func NewStream(payload []byte) (*Stream, error) {
	params, buf, err := tts.DecodePayload(payload)
	if err != nil {
		return nil, err
	}

	var shift uint
	switch params.SampleWidth {
	case 2:
	case 3:
		shift = 8
	case 4:
		shift = 16
	default:
		return nil, fmt.Errorf("unsupported sample width %d bytes", params.SampleWidth)
	}

	pcm := make([]byte, 2*len(buf.Data))
	for i, v := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(v>>shift))) //nolint:gosec
	}

	frames := tts.FrameCount(params, buf)
	return &Stream{
		Params:   params,
		PCM:      pcm,
		Duration: time.Duration(frames) * time.Second / time.Duration(params.FrameRate),
	}, nil
}
