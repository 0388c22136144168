package tts

import "context"

// Synthesizer defines the contract for text-to-speech engines.
// Implementations include Sarvam (online) and Mock (offline, for tests).
type Synthesizer interface {
	// Synthesize converts one fragment of text to a WAV payload.
	// Failures must be returned, never an empty or placeholder payload.
	Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error)

	// Name returns the engine name (e.g., "sarvam", "mock").
	Name() string
}

// SynthesisRequest is the input for a single synthesis call.
type SynthesisRequest struct {
	Text     string // fragment text
	Language string // target language code, e.g. "hi-IN"
	Speaker  string // voice name
	Model    string // model identifier, e.g. "bulbul:v2"
}

// AudioStore caches synthesized fragments by key.
// Implementations live in internal/cache.
type AudioStore interface {
	// Get retrieves cached audio for the given key.
	Get(key string) ([]byte, bool)

	// Put stores audio data with the given key.
	Put(key string, audio []byte) error
}

// KeyFunc derives the AudioStore key for a request.
type KeyFunc func(req SynthesisRequest) string
