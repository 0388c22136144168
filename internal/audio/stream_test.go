package audio

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/dgnsrekt/soundbox/internal/tts"
)

var (
	_ Player = (*OtoPlayer)(nil)
	_ Player = (*MockPlayer)(nil)
)

func encode(t *testing.T, params tts.AudioParams, samples []int) []byte {
	t.Helper()
	payload, err := tts.EncodePayload(params, samples)
	if err != nil {
		t.Fatalf("EncodePayload() error = %v", err)
	}
	return payload
}

func TestNewStream(t *testing.T) {
	tests := []struct {
		name    string
		params  tts.AudioParams
		samples []int
		want    []int16
	}{
		{
			name:    "16-bit passes through",
			params:  tts.AudioParams{Channels: 1, SampleWidth: 2, FrameRate: 8000},
			samples: []int{0, 1000, -1000, 32767},
			want:    []int16{0, 1000, -1000, 32767},
		},
		{
			name:    "24-bit is reduced",
			params:  tts.AudioParams{Channels: 1, SampleWidth: 3, FrameRate: 8000},
			samples: []int{256, -256, 8388607},
			want:    []int16{1, -1, 32767},
		},
		{
			name:    "32-bit stereo is reduced",
			params:  tts.AudioParams{Channels: 2, SampleWidth: 4, FrameRate: 8000},
			samples: []int{65536, -65536},
			want:    []int16{1, -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream, err := NewStream(encode(t, tt.params, tt.samples))
			if err != nil {
				t.Fatalf("NewStream() error = %v", err)
			}
			if stream.Params != tt.params {
				t.Errorf("Params = %s, want %s", stream.Params, tt.params)
			}
			if len(stream.PCM) != 2*len(tt.want) {
				t.Fatalf("PCM = %d bytes, want %d", len(stream.PCM), 2*len(tt.want))
			}
			for i, w := range tt.want {
				if got := int16(binary.LittleEndian.Uint16(stream.PCM[2*i:])); got != w { //nolint:gosec
					t.Errorf("sample %d = %d, want %d", i, got, w)
				}
			}
		})
	}
}

func TestNewStream_Duration(t *testing.T) {
	params := tts.AudioParams{Channels: 2, SampleWidth: 2, FrameRate: 1000}
	stream, err := NewStream(encode(t, params, make([]int, 1000)))
	if err != nil {
		t.Fatal(err)
	}
	// 1000 samples over two channels is 500 frames.
	if stream.Duration != 500*time.Millisecond {
		t.Errorf("Duration = %v, want 500ms", stream.Duration)
	}
}

func TestNewStream_InvalidPayload(t *testing.T) {
	if _, err := NewStream([]byte("not a wav file")); err == nil {
		t.Error("expected an error for a non-WAV payload")
	}
}

func TestPlayerState_String(t *testing.T) {
	tests := map[PlayerState]string{
		StateStopped:    "stopped",
		StatePlaying:    "playing",
		StateClosed:     "closed",
		PlayerState(42): "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
