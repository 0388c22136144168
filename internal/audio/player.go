//go:build !nocgo
// +build !nocgo

package audio

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process, fixed to the rate and channel
// count of the first stream played.
var (
	otoMu       sync.Mutex
	otoCtx      *oto.Context
	otoRate     int
	otoChannels int
)

// pollInterval is how often Play checks whether the device drained.
const pollInterval = 10 * time.Millisecond

// OtoPlayer plays payloads on the default output device.
type OtoPlayer struct {
	mu    sync.Mutex // serializes Play
	state atomic.Int32
}

// NewPlayer returns a player for the default output device. The device is
// opened on the first Play.
func NewPlayer() (*OtoPlayer, error) {
	p := &OtoPlayer{}
	p.state.Store(int32(StateStopped))
	return p, nil
}

func openContext(rate, channels int) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if rate != otoRate || channels != otoChannels {
			return nil, fmt.Errorf("%w: open at %dHz/%dch, got %dHz/%dch",
				ErrFormatChanged, otoRate, otoChannels, rate, channels)
		}
		return otoCtx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	log.Debug("Opened audio device", "rate", rate, "channels", channels)
	otoCtx, otoRate, otoChannels = ctx, rate, channels
	return ctx, nil
}

// Play decodes payload and blocks until it has been played or ctx is done.
func (p *OtoPlayer) Play(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() == StateClosed {
		return ErrPlayerClosed
	}

	stream, err := NewStream(payload)
	if err != nil {
		return err
	}
	device, err := openContext(stream.Params.FrameRate, stream.Params.Channels)
	if err != nil {
		return err
	}

	// The reader holds stream.PCM until the player is closed.
	player := device.NewPlayer(bytes.NewReader(stream.PCM))
	defer player.Close() //nolint:errcheck

	p.state.Store(int32(StatePlaying))
	defer p.state.CompareAndSwap(int32(StatePlaying), int32(StateStopped))

	log.Debug("Playing", "params", stream.Params, "duration", stream.Duration)
	player.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// State returns the current player state.
func (p *OtoPlayer) State() PlayerState {
	return PlayerState(p.state.Load())
}

// Close marks the player closed. The shared device stays open for the
// lifetime of the process.
func (p *OtoPlayer) Close() error {
	p.state.Store(int32(StateClosed))
	return nil
}
