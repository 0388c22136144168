package engines

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/soundbox/internal/tts"
)

const (
	// DefaultSarvamURL is the public Sarvam AI API endpoint.
	DefaultSarvamURL = "https://api.sarvam.ai"

	// minAudioBase64 is the shortest base64 audio field accepted as real speech.
	minAudioBase64 = 100

	// maxErrorBody bounds how much of an error response is kept for messages.
	maxErrorBody = 512
)

// SarvamEngine implements tts.Synthesizer using the Sarvam AI
// text-to-speech HTTP API. It returns one WAV payload per call.
type SarvamEngine struct {
	apiKey    string
	baseURL   string
	maxLength int

	client      *http.Client
	rateLimiter *rate.Limiter
}

// SarvamConfig holds configuration for the Sarvam engine.
type SarvamConfig struct {
	// APIKey is sent as the api-subscription-key header (required)
	APIKey string

	// BaseURL of the API - defaults to DefaultSarvamURL
	BaseURL string

	// Timeout per request - defaults to 30s
	Timeout time.Duration

	// RequestsPerMinute paces calls to the API (defaults to 60, negative disables)
	RequestsPerMinute int

	// MaxLength rejects longer fragments before sending (defaults to tts.DefaultMaxLength)
	MaxLength int

	// HTTPClient overrides the client used for requests (optional)
	HTTPClient *http.Client
}

// sarvamRequest is the JSON body of a synthesis call.
type sarvamRequest struct {
	Text               string `json:"text"`
	TargetLanguageCode string `json:"target_language_code"`
	Speaker            string `json:"speaker,omitempty"`
	Model              string `json:"model,omitempty"`
}

// sarvamResponse is the JSON body of a successful synthesis call.
type sarvamResponse struct {
	RequestID string   `json:"request_id"`
	Audios    []string `json:"audios"`
}

// NewSarvamEngine creates a new Sarvam engine.
func NewSarvamEngine(config SarvamConfig) (*SarvamEngine, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: Sarvam API key is required (set SARVAM_API_KEY)", tts.ErrEngineNotAvailable)
	}

	if config.BaseURL == "" {
		config.BaseURL = DefaultSarvamURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RequestsPerMinute == 0 {
		config.RequestsPerMinute = 60
	}
	if config.MaxLength == 0 {
		config.MaxLength = tts.DefaultMaxLength
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1)
	}

	return &SarvamEngine{
		apiKey:      config.APIKey,
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		maxLength:   config.MaxLength,
		client:      client,
		rateLimiter: limiter,
	}, nil
}

// Name returns the engine name.
func (e *SarvamEngine) Name() string {
	return string(tts.EngineSarvam)
}

// Synthesize sends one fragment to the API and returns the decoded WAV.
func (e *SarvamEngine) Synthesize(ctx context.Context, req tts.SynthesisRequest) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, tts.NewTTSError(tts.ErrorCodeInvalidInput, "text cannot be empty", nil)
	}
	if n := utf8.RuneCountInString(req.Text); n > e.maxLength {
		return nil, tts.NewTTSError(tts.ErrorCodeInvalidInput,
			fmt.Sprintf("text too long: %d characters (max %d)", n, e.maxLength), nil)
	}
	if req.Language == "" {
		return nil, tts.NewTTSError(tts.ErrorCodeInvalidInput, "target language code is required", nil)
	}

	if err := e.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	body, err := json.Marshal(sarvamRequest{
		Text:               req.Text,
		TargetLanguageCode: req.Language,
		Speaker:            req.Speaker,
		Model:              req.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/text-to-speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("api-subscription-key", e.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, tts.NewTTSError(tts.ErrorCodeSynthesisFailed, "request to Sarvam failed", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Error("Sarvam API error",
			"status", resp.StatusCode,
			"body", strings.TrimSpace(string(excerpt)))
		return nil, tts.NewTTSError(tts.ErrorCodeSynthesisFailed,
			fmt.Sprintf("Sarvam returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt))), nil).
			WithContext("status", resp.StatusCode)
	}

	var out sarvamResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, tts.NewTTSError(tts.ErrorCodeSynthesisFailed, "invalid JSON from Sarvam", err)
	}
	if len(out.Audios) == 0 || out.Audios[0] == "" {
		return nil, tts.NewTTSError(tts.ErrorCodeSynthesisFailed, "Sarvam response has no audio", nil).
			WithContext("request_id", out.RequestID)
	}
	if len(out.Audios[0]) < minAudioBase64 {
		return nil, tts.NewTTSError(tts.ErrorCodeSynthesisFailed,
			fmt.Sprintf("implausibly short audio (%d base64 characters)", len(out.Audios[0])), nil).
			WithContext("request_id", out.RequestID)
	}

	audio, err := base64.StdEncoding.DecodeString(out.Audios[0])
	if err != nil {
		return nil, tts.NewTTSError(tts.ErrorCodeSynthesisFailed, "audio is not valid base64", err).
			WithContext("request_id", out.RequestID)
	}

	log.Debug("Sarvam synthesis completed",
		"requestID", out.RequestID,
		"language", req.Language,
		"speaker", req.Speaker,
		"bytes", len(audio),
		"duration", time.Since(start))

	return audio, nil
}
