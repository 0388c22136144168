package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/soundbox/internal/cache"
	"github.com/dgnsrekt/soundbox/internal/tts"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// maxRequestBytes bounds the JSON body of a synthesis request.
	maxRequestBytes = 4 << 20

	// handoffCapacity bounds audio held for GET /api/audio/{id}.
	handoffCapacity = 64 << 20

	requestIDHeader = "X-Request-ID"
)

var (
	serveAddr        string
	serveEngine      string
	serveConcurrency int

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve text-to-speech over HTTP",
		Long: paragraph(fmt.Sprintf("\n%s an HTTP API. POST /api/tts takes JSON text and returns base64 WAV audio; GET /api/audio/{id} returns the same audio once as audio/wav. The config file is watched and changes apply to subsequent requests.", keyword("Serve"))),
		Example: paragraph(`soundbox serve --addr :8080
curl -s localhost:8080/api/tts -d '{"text":"नमस्ते","language_code":"hi-IN"}'`),
		Args: cobra.NoArgs,
		RunE: runServe,
	}
)

type ttsRequest struct {
	Text         string `json:"text"`
	LanguageCode string `json:"language_code"`
	LangCode     string `json:"lang_code"`
	Speaker      string `json:"speaker"`
	Model        string `json:"model"`
}

type ttsResponse struct {
	Audio       string `json:"audio"`
	AudioID     string `json:"audio_id"`
	Fragments   int    `json:"fragments"`
	Placeholder bool   `json:"placeholder"`
	CacheHits   int    `json:"cache_hits"`
	RequestID   string `json:"request_id"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id"`
}

// server holds the live pipeline. Reloads swap it under mu; in-flight
// requests keep the pipeline they started with. Every pipeline shares store,
// so a reload keeps the fragment cache open.
type server struct {
	mu       sync.RWMutex
	pipeline *tts.Pipeline

	load    func() (tts.Config, error)
	engine  func(tts.Config) (tts.Synthesizer, error)
	store   *sharedStore
	handoff *cache.MemoryCache
}

func newServer(load func() (tts.Config, error), engine func(tts.Config) (tts.Synthesizer, error)) (*server, error) {
	s := &server{
		load:    load,
		engine:  engine,
		store:   &sharedStore{open: openCache},
		handoff: cache.NewMemoryCache(handoffCapacity),
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// reload rebuilds the pipeline. On error the previous pipeline stays live.
func (s *server) reload() error {
	cfg, err := s.load()
	if err != nil {
		return err
	}
	synth, err := s.engine(cfg)
	if err != nil {
		return err
	}

	s.store.apply(cfg.Cache)
	p, err := newPipeline(synth, cfg, s.store)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.pipeline = p
	s.mu.Unlock()
	return nil
}

func (s *server) current() *tts.Pipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pipeline
}

func (s *server) Close() error {
	return s.store.Close()
}

// sharedStore is the fragment cache behind every pipeline the server
// builds. It is reopened only when the cache settings change.
type sharedStore struct {
	mu     sync.RWMutex
	cm     *cache.CacheManager
	cfg    tts.CacheConfig
	active bool

	open func(tts.CacheConfig) (*cache.CacheManager, error)
}

func (st *sharedStore) Get(key string) ([]byte, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.cm == nil {
		return nil, false
	}
	return st.cm.Get(key)
}

func (st *sharedStore) Put(key string, value []byte) error {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.cm == nil {
		return nil
	}
	return st.cm.Put(key, value)
}

// apply makes cfg the cache in use. A changed configuration closes the old
// cache before opening the new one, releasing its directory lock.
func (st *sharedStore) apply(cfg tts.CacheConfig) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.active && cfg == st.cfg {
		return
	}
	if st.cm != nil {
		if err := st.cm.Close(); err != nil {
			log.Warn("Failed to close previous cache", "error", err)
		}
		st.cm = nil
	}
	st.active = false

	if !cfg.Enabled {
		st.cfg, st.active = cfg, true
		log.Debug("Fragment cache disabled")
		return
	}
	cm, err := st.open(cfg)
	if err != nil {
		// active stays false so the next reload tries again
		log.Warn("Continuing without fragment cache", "error", err)
		return
	}
	st.cm, st.cfg, st.active = cm, cfg, true
	log.Debug("Fragment cache opened", "backend", cfg.Backend, "dir", cfg.Dir)
}

func (st *sharedStore) Close() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.active = false
	if st.cm == nil {
		return nil
	}
	err := st.cm.Close()
	st.cm = nil
	return err
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tts", s.handleTTS)
	mux.HandleFunc("GET /api/audio/{id}", s.handleAudio)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return withRequestID(mux)
}

type requestIDKey struct{}

// withRequestID tags each request with a UUID, reusing a valid incoming one.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		log.Debug("Request", "id", id, "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
	})
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

func (s *server) handleTTS(w http.ResponseWriter, r *http.Request) {
	id := requestID(r)

	var req ttsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, id, http.StatusBadRequest, "", fmt.Errorf("invalid JSON body: %w", err))
		return
	}
	if req.LanguageCode == "" {
		req.LanguageCode = req.LangCode
	}

	p := s.current().ForVoice(req.LanguageCode, req.Speaker, req.Model)
	res, err := p.Speak(r.Context(), req.Text)
	if err != nil {
		status := statusFor(err)
		log.Error("Synthesis request failed", "id", id, "status", status, "error", err)
		writeError(w, id, status, string(tts.CodeOf(err)), err)
		return
	}

	audioID := uuid.NewString()
	if err := s.handoff.Put(audioID, res.Audio); err != nil {
		log.Warn("Audio too large to hold for retrieval", "id", id, "error", err)
		audioID = ""
	}

	writeJSON(w, http.StatusOK, ttsResponse{
		Audio:       res.Base64(),
		AudioID:     audioID,
		Fragments:   len(res.Fragments),
		Placeholder: res.Placeholder,
		CacheHits:   res.CacheHits,
		RequestID:   id,
	})
}

// handleAudio serves held audio once, then forgets it.
func (s *server) handleAudio(w http.ResponseWriter, r *http.Request) {
	audioID := r.PathValue("id")
	data, ok := s.handoff.Get(audioID)
	if !ok {
		writeError(w, requestID(r), http.StatusNotFound, "", errors.New("audio not found or already retrieved"))
		return
	}
	_ = s.handoff.Delete(audioID)

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	_, _ = w.Write(data)
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch tts.CodeOf(err) {
	case tts.ErrorCodeInvalidInput, tts.ErrorCodeEmptyInput:
		return http.StatusBadRequest
	case tts.ErrorCodeSynthesisFailed, tts.ErrorCodeEngineUnavailable:
		return http.StatusBadGateway
	case tts.ErrorCodeTimeout:
		return http.StatusGatewayTimeout
	case tts.ErrorCodeCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, id string, status int, code string, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code, RequestID: id})
}

func runServe(cmd *cobra.Command, _ []string) error {
	load := func() (tts.Config, error) {
		cfg, err := loadConfig()
		if err != nil {
			return tts.Config{}, err
		}
		applyVoiceFlags(cmd, &cfg, &serveEngine, nil, nil, nil, &serveConcurrency)
		if err := cfg.Validate(); err != nil {
			return tts.Config{}, err
		}
		return cfg, nil
	}

	s, err := newServer(load, newEngine)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	if viper.ConfigFileUsed() != "" {
		viper.OnConfigChange(func(e fsnotify.Event) {
			log.Info("Configuration changed, reloading", "file", e.Name, "op", e.Op.String())
			if err := s.reload(); err != nil {
				log.Error("Keeping previous configuration", "error", err)
			}
		})
		viper.WatchConfig()
	}

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("Listening", "addr", serveAddr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "address to listen on")
	serveCmd.Flags().StringVar(&serveEngine, "engine", "", "TTS engine (sarvam/mock)")
	serveCmd.Flags().IntVar(&serveConcurrency, "concurrency", 0, "fragments synthesized in parallel per request")
}
