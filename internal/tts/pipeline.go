package tts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/soundbox/internal/cache"
)

// minPayloadBytes is the smallest payload accepted from an engine: a bare
// RIFF/WAVE header with fmt and data chunk headers.
const minPayloadBytes = 44

// Pipeline turns text into one WAV payload: clean, segment, synthesize each
// fragment, concatenate.
type Pipeline struct {
	synth       Synthesizer
	segmenter   *Segmenter
	store       AudioStore
	key         KeyFunc
	concurrency int
	markdown    bool

	language string
	speaker  string
	model    string
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithSegmenter replaces the default segmenter.
func WithSegmenter(s *Segmenter) PipelineOption {
	return func(p *Pipeline) {
		if s != nil {
			p.segmenter = s
		}
	}
}

// WithStore enables fragment caching. A nil store disables it.
func WithStore(store AudioStore) PipelineOption {
	return func(p *Pipeline) {
		p.store = store
	}
}

// WithKeyFunc overrides how store keys are derived.
func WithKeyFunc(fn KeyFunc) PipelineOption {
	return func(p *Pipeline) {
		if fn != nil {
			p.key = fn
		}
	}
}

// WithConcurrency bounds the number of synthesis calls in flight.
func WithConcurrency(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithVoice sets the language, speaker and model sent with every fragment.
func WithVoice(language, speaker, model string) PipelineOption {
	return func(p *Pipeline) {
		p.language = language
		p.speaker = speaker
		p.model = model
	}
}

// WithMarkdown makes Speak render its input from markdown before cleaning.
func WithMarkdown(enabled bool) PipelineOption {
	return func(p *Pipeline) {
		p.markdown = enabled
	}
}

// NewPipeline creates a pipeline around synth.
func NewPipeline(synth Synthesizer, opts ...PipelineOption) (*Pipeline, error) {
	if synth == nil {
		return nil, fmt.Errorf("%w: synthesizer cannot be nil", ErrNoEngineConfigured)
	}

	defaults := DefaultConfig()
	p := &Pipeline{
		synth:       synth,
		segmenter:   NewSegmenter(DefaultMaxLength, DefaultMinForceSplitLength),
		key:         DefaultKey,
		concurrency: 1,
		language:    defaults.Language,
		speaker:     defaults.Speaker,
		model:       defaults.Model,
	}
	for _, opt := range opts {
		opt(p)
	}

	if err := p.segmenter.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// DefaultKey derives the store key from the request content.
func DefaultKey(req SynthesisRequest) string {
	return cache.GenerateCacheKey(req.Text, req.Language, req.Speaker, req.Model)
}

// Speak converts text to a single WAV payload. Empty text yields the silent
// placeholder without calling the engine. Any fragment failure aborts the
// whole request.
func (p *Pipeline) Speak(ctx context.Context, text string) (*Result, error) {
	start := time.Now()

	if p.markdown {
		rendered, err := MarkdownToText(text)
		if err != nil {
			return nil, NewTTSError(ErrorCodeInvalidInput, "cannot render markdown", err)
		}
		text = rendered
	}

	fragments, err := p.segmenter.Segment(CleanText(text))
	if errors.Is(err, ErrEmptyInput) {
		log.Info("Nothing to synthesize, returning silent placeholder")
		return &Result{
			Audio:       SilentPlaceholder(),
			Placeholder: true,
			Duration:    time.Since(start),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	payloads, hits, err := p.synthesizeAll(ctx, fragments)
	if err != nil {
		return nil, err
	}

	merged, err := Concatenate(payloads)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Audio:     merged,
		Fragments: fragments,
		CacheHits: hits,
		Duration:  time.Since(start),
	}
	log.Info("Speech ready",
		"engine", p.synth.Name(),
		"fragments", len(fragments),
		"cacheHits", hits,
		"duration", result.Duration)
	return result, nil
}

// ForVoice returns a copy of p that synthesizes with the given voice. Empty
// arguments keep p's settings. The engine and store are shared.
func (p *Pipeline) ForVoice(language, speaker, model string) *Pipeline {
	cp := *p
	if language != "" {
		cp.language = language
	}
	if speaker != "" {
		cp.speaker = speaker
	}
	if model != "" {
		cp.model = model
	}
	return &cp
}

// Segment exposes the pipeline's cleaning and segmentation without synthesis.
func (p *Pipeline) Segment(text string) ([]Fragment, error) {
	if p.markdown {
		rendered, err := MarkdownToText(text)
		if err != nil {
			return nil, NewTTSError(ErrorCodeInvalidInput, "cannot render markdown", err)
		}
		text = rendered
	}
	return p.segmenter.Segment(CleanText(text))
}

// synthesizeAll returns one payload per fragment, in fragment order.
func (p *Pipeline) synthesizeAll(ctx context.Context, fragments []Fragment) ([][]byte, int, error) {
	payloads := make([][]byte, len(fragments))
	hits := make([]bool, len(fragments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, f := range fragments {
		g.Go(func() error {
			payload, hit, err := p.synthesize(gctx, f)
			if err != nil {
				return err
			}
			payloads[i] = payload
			hits[i] = hit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	count := 0
	for _, h := range hits {
		if h {
			count++
		}
	}
	return payloads, count, nil
}

// synthesize produces the payload for one fragment, consulting the store first.
func (p *Pipeline) synthesize(ctx context.Context, f Fragment) ([]byte, bool, error) {
	req := SynthesisRequest{
		Text:     f.Text,
		Language: p.language,
		Speaker:  p.speaker,
		Model:    p.model,
	}

	m := StartSynthesis(p.synth.Name(), f)

	var key string
	if p.store != nil {
		key = p.key(req)
		if cached, ok := p.store.Get(key); ok && len(cached) >= minPayloadBytes {
			m.EndSynthesis(len(cached), true, nil)
			return cached, true, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, false, contextError(err, f)
	}

	payload, err := p.synth.Synthesize(ctx, req)
	if err == nil && len(payload) < minPayloadBytes {
		err = fmt.Errorf("engine returned %d bytes", len(payload))
	}
	if err != nil {
		m.EndSynthesis(0, false, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, contextError(ctxErr, f)
		}
		var ttsErr *TTSError
		if errors.As(err, &ttsErr) && ttsErr.Code == ErrorCodeSynthesisFailed {
			ttsErr.WithContext("fragment", f.Index)
			return nil, false, ttsErr
		}
		return nil, false, NewTTSError(ErrorCodeSynthesisFailed,
			fmt.Sprintf("fragment %d failed", f.Index), err).
			WithContext("fragment", f.Index)
	}
	m.EndSynthesis(len(payload), false, nil)

	if p.store != nil {
		if err := p.store.Put(key, payload); err != nil {
			log.Warn("Failed to cache fragment audio", "fragment", f.Index, "error", err)
		}
	}
	return payload, false, nil
}

func contextError(err error, f Fragment) error {
	code := ErrorCodeCanceled
	if errors.Is(err, context.DeadlineExceeded) {
		code = ErrorCodeTimeout
	}
	return NewTTSError(code, fmt.Sprintf("fragment %d not synthesized", f.Index), err).
		WithContext("fragment", f.Index)
}
