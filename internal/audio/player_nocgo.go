//go:build nocgo
// +build nocgo

package audio

import "context"

// OtoPlayer is unavailable in nocgo builds.
type OtoPlayer struct{}

// NewPlayer reports that playback is unavailable.
func NewPlayer() (*OtoPlayer, error) {
	return nil, ErrAudioUnavailable
}

func (p *OtoPlayer) Play(context.Context, []byte) error { return ErrAudioUnavailable }
func (p *OtoPlayer) State() PlayerState                 { return StateClosed }
func (p *OtoPlayer) Close() error                       { return nil }
