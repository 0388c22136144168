package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dgnsrekt/soundbox/internal/tts"
	"github.com/dgnsrekt/soundbox/internal/tts/engines"
	"github.com/google/uuid"
)

// testConfig uses the mock engine with small limits so short text splits.
func testConfig(cacheCfg tts.CacheConfig) tts.Config {
	cfg := tts.DefaultConfig()
	cfg.Engine = string(tts.EngineMock)
	cfg.Segment = tts.SegmentConfig{MaxLength: 40, MinForceSplitLength: 20}
	cfg.Concurrency = 2
	cfg.Cache = cacheCfg
	return cfg
}

func mockEngine(builds *atomic.Int32) func(tts.Config) (tts.Synthesizer, error) {
	return func(tts.Config) (tts.Synthesizer, error) {
		if builds != nil {
			builds.Add(1)
		}
		eng, err := engines.NewMockEngine(engines.MockConfig{SampleRate: 8000, WordsPerMinute: 600, FailOn: "explode"})
		if err != nil {
			return nil, err
		}
		return eng, nil
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	load := func() (tts.Config, error) { return testConfig(tts.CacheConfig{}), nil }
	s, err := newServer(load, mockEngine(nil))
	if err != nil {
		t.Fatalf("newServer() error = %v", err)
	}
	ts := httptest.NewServer(s.routes())
	t.Cleanup(func() {
		ts.Close()
		_ = s.Close()
	})
	return ts
}

func postTTS(t *testing.T, ts *httptest.Server, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/tts", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, b
}

func TestServe_TTS(t *testing.T) {
	ts := newTestServer(t)

	resp, body := postTTS(t, ts, `{"text":"The quick brown fox jumps over the lazy dog. Then it naps.","language_code":"en-IN"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	if _, err := uuid.Parse(resp.Header.Get(requestIDHeader)); err != nil {
		t.Errorf("%s = %q is not a UUID", requestIDHeader, resp.Header.Get(requestIDHeader))
	}

	var out ttsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Placeholder {
		t.Error("placeholder should be false for real text")
	}
	if out.Fragments < 2 {
		t.Errorf("fragments = %d, want at least 2", out.Fragments)
	}
	if out.RequestID != resp.Header.Get(requestIDHeader) {
		t.Errorf("request_id = %q, header = %q", out.RequestID, resp.Header.Get(requestIDHeader))
	}

	audio, err := base64.StdEncoding.DecodeString(out.Audio)
	if err != nil {
		t.Fatal(err)
	}
	params, _, err := tts.DecodePayload(audio)
	if err != nil {
		t.Fatalf("response audio is not a WAV payload: %v", err)
	}
	if params.FrameRate != 8000 {
		t.Errorf("FrameRate = %d, want 8000", params.FrameRate)
	}

	// The same audio is available once by id.
	get, err := http.Get(ts.URL + "/api/audio/" + out.AudioID)
	if err != nil {
		t.Fatal(err)
	}
	wav, _ := io.ReadAll(get.Body)
	_ = get.Body.Close()
	if get.StatusCode != http.StatusOK || get.Header.Get("Content-Type") != "audio/wav" {
		t.Errorf("GET audio status = %d, type = %q", get.StatusCode, get.Header.Get("Content-Type"))
	}
	if !bytes.Equal(wav, audio) {
		t.Error("GET audio does not match the inline audio")
	}

	again, err := http.Get(ts.URL + "/api/audio/" + out.AudioID)
	if err != nil {
		t.Fatal(err)
	}
	_ = again.Body.Close()
	if again.StatusCode != http.StatusNotFound {
		t.Errorf("second GET status = %d, want 404", again.StatusCode)
	}
}

func TestServe_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"invalid json", `{"text":`, http.StatusBadRequest, ""},
		{"synthesis failure", `{"text":"please explode now, right away, thank you"}`, http.StatusBadGateway, "SYNTHESIS_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postTTS(t, ts, tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, tt.status, body)
			}
			var out errorResponse
			if err := json.Unmarshal(body, &out); err != nil {
				t.Fatal(err)
			}
			if out.Code != tt.code {
				t.Errorf("code = %q, want %q", out.Code, tt.code)
			}
			if out.Error == "" || out.RequestID == "" {
				t.Errorf("error response = %+v", out)
			}
		})
	}
}

func TestServe_EmptyTextReturnsPlaceholder(t *testing.T) {
	ts := newTestServer(t)

	resp, body := postTTS(t, ts, `{"text":"   ","lang_code":"hi-IN"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	var out ttsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if !out.Placeholder || out.Audio != tts.SilentPlaceholderBase64() {
		t.Errorf("response = %+v, want the silent placeholder", out)
	}
	if out.Fragments != 0 {
		t.Errorf("fragments = %d, want 0", out.Fragments)
	}
}

func TestServe_RequestIDPassthrough(t *testing.T) {
	ts := newTestServer(t)
	id := uuid.NewString()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	req.Header.Set(requestIDHeader, id)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get(requestIDHeader); got != id {
		t.Errorf("%s = %q, want %q", requestIDHeader, got, id)
	}
}

func TestServer_Reload(t *testing.T) {
	var builds atomic.Int32

	fail := false
	load := func() (tts.Config, error) {
		if fail {
			return tts.Config{}, errors.New("bad config")
		}
		return testConfig(tts.CacheConfig{}), nil
	}
	s, err := newServer(load, mockEngine(&builds))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close() //nolint:errcheck

	first := s.current()
	if err := s.reload(); err != nil {
		t.Fatal(err)
	}
	if s.current() == first {
		t.Error("reload should swap the pipeline")
	}

	fail = true
	live := s.current()
	if err := s.reload(); err == nil {
		t.Error("expected reload error")
	}
	if s.current() != live {
		t.Error("failed reload should keep the previous pipeline")
	}
	if builds.Load() != 2 {
		t.Errorf("builds = %d, want 2", builds.Load())
	}
}

func TestServer_ReloadKeepsPersistentCache(t *testing.T) {
	const text = "The quick brown fox jumps over the lazy dog. Then it naps."

	for _, backend := range []string{"disk", "badger"} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(tts.CacheConfig{
				Enabled:  true,
				Backend:  backend,
				Dir:      t.TempDir(),
				MemoryMB: 1,
				DiskMB:   8,
				TTLDays:  1,
			})
			s, err := newServer(func() (tts.Config, error) { return cfg, nil }, mockEngine(nil))
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close() //nolint:errcheck

			speak := func(step string, wantHits int) {
				t.Helper()
				res, err := s.current().Speak(context.Background(), text)
				if err != nil {
					t.Fatalf("%s: Speak() error = %v", step, err)
				}
				if res.CacheHits != wantHits {
					t.Errorf("%s: CacheHits = %d, want %d", step, res.CacheHits, wantHits)
				}
			}

			speak("first request", 0)
			speak("repeat request", 2)

			if err := s.reload(); err != nil {
				t.Fatal(err)
			}
			speak("after unchanged reload", 2)

			// A changed cache setting reopens the same directory.
			cfg.Cache.MemoryMB = 2
			if err := s.reload(); err != nil {
				t.Fatal(err)
			}
			speak("after cache reopen", 2)

			cfg.Cache.Dir = t.TempDir()
			if err := s.reload(); err != nil {
				t.Fatal(err)
			}
			speak("new cache directory", 0)
			speak("new cache directory repeat", 2)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{tts.NewTTSError(tts.ErrorCodeInvalidInput, "bad", nil), http.StatusBadRequest},
		{tts.NewTTSError(tts.ErrorCodeSynthesisFailed, "upstream", nil), http.StatusBadGateway},
		{tts.NewTTSError(tts.ErrorCodeEngineUnavailable, "no key", nil), http.StatusBadGateway},
		{tts.NewTTSError(tts.ErrorCodeTimeout, "slow", nil), http.StatusGatewayTimeout},
		{tts.NewTTSError(tts.ErrorCodeParameterMismatch, "rates", nil), http.StatusInternalServerError},
		{tts.NewTTSError(tts.ErrorCodeEmptyAssemblyInput, "none", nil), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
