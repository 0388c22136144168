package tts

import (
	"encoding/base64"
	"time"
)

// EngineType represents the TTS engine selection
type EngineType string

const (
	// EngineSarvam represents the Sarvam AI text-to-speech HTTP API
	EngineSarvam EngineType = "sarvam"

	// EngineMock represents the offline mock engine
	EngineMock EngineType = "mock"

	// EngineNone represents no engine selected
	EngineNone EngineType = ""
)

// silentPlaceholder is the fixed WAV returned when there is nothing to say.
const silentPlaceholder = "UklGRkoAAABXQVZFZm10IBAAAAABAAEARKwAAIhYAQACABAAZGF0YQYAAAAAAQ=="

// SilentPlaceholder returns a fresh copy of the silent-audio payload.
func SilentPlaceholder() []byte {
	b, _ := base64.StdEncoding.DecodeString(silentPlaceholder)
	return b
}

// SilentPlaceholderBase64 returns the silent-audio payload in base64 form.
func SilentPlaceholderBase64() string {
	return silentPlaceholder
}

// Result is the outcome of one text-to-speech request.
type Result struct {
	// Audio is the merged WAV payload
	Audio []byte

	// Fragments are the text fragments that were synthesized
	Fragments []Fragment

	// Placeholder is true when the text was empty and Audio is the silent placeholder
	Placeholder bool

	// CacheHits is the number of fragments served from the AudioStore
	CacheHits int

	// Duration is the wall time spent on the request
	Duration time.Duration
}

// Base64 returns the audio in the base64 form web front-ends expect.
func (r *Result) Base64() string {
	if r.Placeholder {
		return silentPlaceholder
	}
	return base64.StdEncoding.EncodeToString(r.Audio)
}
