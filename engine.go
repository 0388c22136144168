package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/soundbox/internal/cache"
	"github.com/dgnsrekt/soundbox/internal/tts"
	"github.com/dgnsrekt/soundbox/internal/tts/engines"
	"github.com/mitchellh/go-homedir"
)

// newEngine creates the synthesizer named by cfg.Engine.
func newEngine(cfg tts.Config) (tts.Synthesizer, error) {
	engineType, err := tts.ValidateEngineSelection("", cfg)
	if err != nil {
		return nil, err
	}

	switch engineType {
	case tts.EngineSarvam:
		if res := tts.ValidateEngine(engineType, cfg); !res.Available {
			return nil, fmt.Errorf("%w\n\n%s", res.Error, res.Guidance)
		}
		return engines.NewSarvamEngine(engines.SarvamConfig{
			APIKey:            cfg.Sarvam.APIKey,
			BaseURL:           cfg.Sarvam.BaseURL,
			Timeout:           cfg.Sarvam.Timeout,
			RequestsPerMinute: cfg.Sarvam.RequestsPerMinute,
			MaxLength:         cfg.Segment.MaxLength,
		})
	case tts.EngineMock:
		return engines.NewMockEngine(engines.MockConfig{
			SampleRate:     cfg.Mock.SampleRate,
			Channels:       cfg.Mock.Channels,
			BitDepth:       cfg.Mock.BitDepth,
			WordsPerMinute: cfg.Mock.WordsPerMinute,
			FailureRate:    cfg.Mock.FailureRate,
		})
	default:
		return nil, fmt.Errorf("%w: %s", tts.ErrInvalidEngine, engineType)
	}
}

// openCache opens the fragment cache described by cfg.
func openCache(cfg tts.CacheConfig) (*cache.CacheManager, error) {
	dir := cfg.Dir
	if dir != "" {
		expanded, err := homedir.Expand(dir)
		if err != nil {
			return nil, fmt.Errorf("unable to expand cache dir: %w", err)
		}
		dir = expanded
	}

	return cache.NewCacheManager(&cache.Config{
		MemoryCapacity:   int64(cfg.MemoryMB) << 20,
		Backend:          cache.Backend(cfg.Backend),
		Dir:              dir,
		DiskCapacity:     int64(cfg.DiskMB) << 20,
		CompressionLevel: 3,
		TTL:              time.Duration(cfg.TTLDays) * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	})
}

// buildPipeline wires an engine, segmenter and, unless disabled, the
// fragment cache. The returned func releases the cache.
func buildPipeline(cfg tts.Config, useCache bool, extra ...tts.PipelineOption) (*tts.Pipeline, func() error, error) {
	synth, err := newEngine(cfg)
	if err != nil {
		return nil, nil, err
	}

	var store tts.AudioStore
	closer := func() error { return nil }
	if useCache && cfg.Cache.Enabled {
		cm, err := openCache(cfg.Cache)
		if err != nil {
			log.Warn("Continuing without fragment cache", "error", err)
		} else {
			store, closer = cm, cm.Close
		}
	}

	p, err := newPipeline(synth, cfg, store, extra...)
	if err != nil {
		_ = closer()
		return nil, nil, err
	}
	return p, closer, nil
}

// newPipeline builds a pipeline for synth from cfg. A nil store disables
// fragment caching.
func newPipeline(synth tts.Synthesizer, cfg tts.Config, store tts.AudioStore, extra ...tts.PipelineOption) (*tts.Pipeline, error) {
	opts := []tts.PipelineOption{
		tts.WithSegmenter(tts.NewSegmenterFromConfig(cfg.Segment)),
		tts.WithConcurrency(cfg.Concurrency),
		tts.WithVoice(cfg.Language, cfg.Speaker, cfg.Model),
	}
	if store != nil {
		opts = append(opts, tts.WithStore(store))
	}

	p, err := tts.NewPipeline(synth, append(opts, extra...)...)
	if err != nil {
		return nil, err
	}

	log.Debug("Pipeline ready", "engine", synth.Name(), "language", cfg.Language,
		"speaker", cfg.Speaker, "max", cfg.Segment.MaxLength, "concurrency", cfg.Concurrency)
	return p, nil
}
