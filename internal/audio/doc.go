// Package audio plays assembled WAV payloads on the default output device
// using oto/v3. Builds tagged nocgo get a stub player that reports
// ErrAudioUnavailable.
package audio
