package tts

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
)

// Metrics holds timing for one synthesis call
type Metrics struct {
	Engine            string
	Fragment          int
	TextLength        int
	SynthesisStart    time.Time
	SynthesisDuration time.Duration
	AudioBytes        int
	CacheHit          bool
	Err               error
}

// StartSynthesis starts tracking synthesis metrics
func StartSynthesis(engine string, f Fragment) *Metrics {
	m := &Metrics{
		Engine:         engine,
		Fragment:       f.Index,
		TextLength:     f.Len(),
		SynthesisStart: time.Now(),
	}

	log.Debug("Synthesis started",
		"engine", engine,
		"fragment", f.Index,
		"textLength", m.TextLength,
		"preview", Preview(f.Text, 50))

	return m
}

// EndSynthesis completes tracking synthesis metrics
func (m *Metrics) EndSynthesis(audioBytes int, cacheHit bool, err error) {
	m.SynthesisDuration = time.Since(m.SynthesisStart)
	m.AudioBytes = audioBytes
	m.CacheHit = cacheHit
	m.Err = err

	if err != nil {
		log.Error("Synthesis failed",
			"engine", m.Engine,
			"fragment", m.Fragment,
			"duration", m.SynthesisDuration,
			"error", err)
		return
	}

	log.Debug("Synthesis completed",
		"engine", m.Engine,
		"fragment", m.Fragment,
		"textLength", m.TextLength,
		"audio", humanize.Bytes(uint64(m.AudioBytes)), //nolint:gosec
		"duration", m.SynthesisDuration,
		"cacheHit", m.CacheHit,
		"throughput", calculateBytesPerSecond(m.AudioBytes, m.SynthesisDuration))
}

// calculateBytesPerSecond calculates synthesis throughput
func calculateBytesPerSecond(bytes int, duration time.Duration) string {
	if duration == 0 {
		return "N/A"
	}
	bps := float64(bytes) / duration.Seconds()
	return fmt.Sprintf("%s/s", humanize.Bytes(uint64(bps)))
}

// Preview shortens s to at most width terminal cells for log output.
func Preview(s string, width int) string {
	return runewidth.Truncate(s, width, "...")
}
