// Package engines contains implementations of different TTS engines.
// Currently supports Sarvam AI (online) and a mock engine (offline).
// Each engine implements the Synthesizer interface from the parent package.
package engines
