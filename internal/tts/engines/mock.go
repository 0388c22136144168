package engines

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/soundbox/internal/tts"
)

// MockEngine implements tts.Synthesizer without any network access. Output is
// a deterministic tone whose length follows the word count, which is enough
// for tests, demos and exercising the assembler.
type MockEngine struct {
	params         tts.AudioParams
	wordsPerMinute int
	failureRate    float64
	failOn         string
	latency        time.Duration

	calls atomic.Int64
}

// MockConfig holds configuration for the mock engine.
type MockConfig struct {
	// SampleRate in Hz (defaults to 22050)
	SampleRate int

	// Channels (defaults to 1)
	Channels int

	// BitDepth, one of 16, 24 or 32 (defaults to 16)
	BitDepth int

	// WordsPerMinute sets the speaking pace (defaults to 150)
	WordsPerMinute int

	// FailureRate is the fraction of texts, chosen by hash, that fail
	FailureRate float64

	// FailOn fails any text containing this substring
	FailOn string

	// Latency is added to every call
	Latency time.Duration
}

// NewMockEngine creates a new mock engine.
func NewMockEngine(config MockConfig) (*MockEngine, error) {
	if config.SampleRate == 0 {
		config.SampleRate = 22050
	}
	if config.Channels == 0 {
		config.Channels = 1
	}
	if config.BitDepth == 0 {
		config.BitDepth = 16
	}
	if config.WordsPerMinute == 0 {
		config.WordsPerMinute = 150
	}

	switch config.BitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", config.BitDepth)
	}
	if config.Channels < 1 || config.Channels > 8 {
		return nil, fmt.Errorf("unsupported channel count %d", config.Channels)
	}
	if config.FailureRate < 0 || config.FailureRate > 1 {
		return nil, fmt.Errorf("failure rate must be between 0 and 1, got %.2f", config.FailureRate)
	}

	return &MockEngine{
		params: tts.AudioParams{
			Channels:    config.Channels,
			SampleWidth: config.BitDepth / 8,
			FrameRate:   config.SampleRate,
		},
		wordsPerMinute: config.WordsPerMinute,
		failureRate:    config.FailureRate,
		failOn:         config.FailOn,
		latency:        config.Latency,
	}, nil
}

// Name returns the engine name.
func (e *MockEngine) Name() string {
	return string(tts.EngineMock)
}

// Params returns the audio parameters of every payload this engine produces.
func (e *MockEngine) Params() tts.AudioParams {
	return e.params
}

// Calls returns the number of Synthesize calls made so far.
func (e *MockEngine) Calls() int64 {
	return e.calls.Load()
}

// Synthesize returns a WAV payload for req.
func (e *MockEngine) Synthesize(ctx context.Context, req tts.SynthesisRequest) ([]byte, error) {
	e.calls.Add(1)

	if strings.TrimSpace(req.Text) == "" {
		return nil, tts.NewTTSError(tts.ErrorCodeInvalidInput, "text cannot be empty", nil)
	}

	if e.latency > 0 {
		select {
		case <-time.After(e.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := textHash(req)
	if e.failOn != "" && strings.Contains(req.Text, e.failOn) {
		return nil, tts.NewTTSError(tts.ErrorCodeSynthesisFailed, "injected failure", nil)
	}
	if e.failureRate > 0 && float64(h%10000)/10000 < e.failureRate {
		return nil, tts.NewTTSError(tts.ErrorCodeSynthesisFailed, "injected random failure", nil)
	}

	frames := e.frameCount(req.Text)
	samples := tone(e.params, frames, 220+float64(h%8)*55)

	payload, err := tts.EncodePayload(e.params, samples)
	if err != nil {
		return nil, err
	}

	log.Debug("Mock synthesis completed",
		"words", len(strings.Fields(req.Text)),
		"frames", frames,
		"bytes", len(payload))
	return payload, nil
}

// frameCount converts the text's word count to a number of frames.
func (e *MockEngine) frameCount(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}
	seconds := float64(words) * 60 / float64(e.wordsPerMinute)
	return int(math.Round(seconds * float64(e.params.FrameRate)))
}

// tone generates an interleaved sine wave at a fifth of full scale.
func tone(params tts.AudioParams, frames int, freq float64) []int {
	peak := float64(int(1)<<(params.BitDepth()-1)-1) * 0.2
	samples := make([]int, 0, frames*params.Channels)
	for i := 0; i < frames; i++ {
		v := int(peak * math.Sin(2*math.Pi*freq*float64(i)/float64(params.FrameRate)))
		for c := 0; c < params.Channels; c++ {
			samples = append(samples, v)
		}
	}
	return samples
}

func textHash(req tts.SynthesisRequest) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(req.Text))
	_, _ = h.Write([]byte(req.Language))
	_, _ = h.Write([]byte(req.Speaker))
	return h.Sum64()
}
