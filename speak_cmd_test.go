package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgnsrekt/soundbox/internal/tts"
)

func testResult(t *testing.T) *tts.Result {
	t.Helper()
	audio, err := tts.EncodePayload(tts.AudioParams{Channels: 1, SampleWidth: 2, FrameRate: 8000}, []int{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	return &tts.Result{Audio: audio, Fragments: []tts.Fragment{{Index: 0, Text: "hi"}}}
}

func TestWriteResult(t *testing.T) {
	res := testResult(t)

	t.Run("file", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "speech.wav")
		var stdout bytes.Buffer
		if err := writeResult(res, out, false, &stdout, true); err != nil {
			t.Fatalf("writeResult() error = %v", err)
		}
		got, err := os.ReadFile(out)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, res.Audio) {
			t.Error("file contents do not match the audio")
		}
		if stdout.Len() != 0 {
			t.Errorf("nothing should be written to stdout, got %q", stdout.String())
		}
	})

	t.Run("stdout pipe", func(t *testing.T) {
		var stdout bytes.Buffer
		if err := writeResult(res, "-", false, &stdout, false); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(stdout.Bytes(), res.Audio) {
			t.Error("stdout does not match the audio")
		}
	})

	t.Run("stdout terminal", func(t *testing.T) {
		var stdout bytes.Buffer
		if err := writeResult(res, "-", false, &stdout, true); err == nil {
			t.Error("writing binary audio to a terminal should be refused")
		}
		if stdout.Len() != 0 {
			t.Error("nothing should be written when refused")
		}
	})

	t.Run("base64", func(t *testing.T) {
		var stdout bytes.Buffer
		if err := writeResult(res, "ignored.wav", true, &stdout, true); err != nil {
			t.Fatal(err)
		}
		if got := strings.TrimSpace(stdout.String()); got != res.Base64() {
			t.Errorf("base64 output = %q", got)
		}
	})
}

func TestReadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("from a file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := readInput("inline", nil)
	if err != nil || got != "inline" {
		t.Errorf("readInput(--text) = %q, %v", got, err)
	}

	got, err = readInput("", []string{path})
	if err != nil || got != "from a file" {
		t.Errorf("readInput(FILE) = %q, %v", got, err)
	}

	if _, err := readInput("inline", []string{path}); err == nil {
		t.Error("--text with a FILE should be rejected")
	}
	if _, err := readInput("", []string{filepath.Join(t.TempDir(), "missing.txt")}); err == nil {
		t.Error("missing file should be an error")
	}
}
