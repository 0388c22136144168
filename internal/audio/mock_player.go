package audio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MockPlayer decodes payloads like the real player but produces no sound.
// Simulated playback takes the stream duration scaled by DelayFactor.
type MockPlayer struct {
	// DelayFactor scales simulated playback time; 0 returns immediately.
	DelayFactor float64

	// OnPlay is called with each decoded stream.
	OnPlay func(*Stream)

	mu      sync.Mutex
	streams []*Stream
	state   atomic.Int32
}

// NewMockPlayer creates a mock player that returns immediately.
func NewMockPlayer() *MockPlayer {
	mp := &MockPlayer{}
	mp.state.Store(int32(StateStopped))
	return mp
}

// Play decodes payload, records it, and waits out the simulated duration.
func (mp *MockPlayer) Play(ctx context.Context, payload []byte) error {
	if mp.State() == StateClosed {
		return ErrPlayerClosed
	}

	stream, err := NewStream(payload)
	if err != nil {
		return err
	}

	mp.mu.Lock()
	mp.streams = append(mp.streams, stream)
	mp.mu.Unlock()
	if mp.OnPlay != nil {
		mp.OnPlay(stream)
	}

	mp.state.Store(int32(StatePlaying))
	defer mp.state.CompareAndSwap(int32(StatePlaying), int32(StateStopped))

	if mp.DelayFactor <= 0 {
		return nil
	}
	timer := time.NewTimer(time.Duration(float64(stream.Duration) * mp.DelayFactor))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Played returns the streams played so far.
func (mp *MockPlayer) Played() []*Stream {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return append([]*Stream(nil), mp.streams...)
}

// State returns the current player state.
func (mp *MockPlayer) State() PlayerState {
	return PlayerState(mp.state.Load())
}

// Close marks the player closed.
func (mp *MockPlayer) Close() error {
	mp.state.Store(int32(StateClosed))
	return nil
}
