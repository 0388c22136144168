package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/soundbox/internal/audio"
	"github.com/dgnsrekt/soundbox/internal/tts"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	speakText        string
	speakEngine      string
	speakLang        string
	speakSpeaker     string
	speakModel       string
	speakOutput      string
	speakBase64      bool
	speakCopy        bool
	speakMarkdown    bool
	speakPlay        bool
	speakNoCache     bool
	speakConcurrency int

	speakCmd = &cobra.Command{
		Use:   "speak [FILE|-]",
		Short: "Synthesize text into a single WAV file",
		Long: paragraph(fmt.Sprintf("\n%s text of any length. Text longer than the engine limit is split at sentence and word boundaries, each fragment is synthesized, and the audio is joined in order.", keyword("Speak"))),
		Example: paragraph(`soundbox speak --text "नमस्ते दुनिया"
soundbox speak README.md --markdown -o readme.wav
cat notes.txt | soundbox speak --engine mock --play`),
		Args: cobra.MaximumNArgs(1),
		RunE: runSpeak,
	}
)

// applyVoiceFlags overrides cfg with the flags the user set.
func applyVoiceFlags(cmd *cobra.Command, cfg *tts.Config, engine, lang, speaker, model *string, concurrency *int) {
	flags := cmd.Flags()
	if flags.Changed("engine") {
		cfg.Engine = *engine
	}
	if flags.Changed("lang") {
		cfg.Language = *lang
	}
	if flags.Changed("speaker") {
		cfg.Speaker = *speaker
	}
	if flags.Changed("model") {
		cfg.Model = *model
	}
	if concurrency != nil && flags.Changed("concurrency") {
		cfg.Concurrency = *concurrency
	}
}

func runSpeak(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyVoiceFlags(cmd, &cfg, &speakEngine, &speakLang, &speakSpeaker, &speakModel, &speakConcurrency)
	if err := cfg.Validate(); err != nil {
		return err
	}

	text, err := readInput(speakText, args)
	if err != nil {
		return err
	}

	p, closeCache, err := buildPipeline(cfg, !speakNoCache, tts.WithMarkdown(speakMarkdown))
	if err != nil {
		return err
	}
	defer closeCache() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	res, err := p.Speak(ctx, text)
	if err != nil {
		return err
	}

	stdout := cmd.OutOrStdout()
	isTerminal := term.IsTerminal(int(os.Stdout.Fd())) //nolint:gosec
	if err := writeResult(res, speakOutput, speakBase64, stdout, isTerminal); err != nil {
		return err
	}

	if speakCopy {
		if err := clipboard.WriteAll(res.Base64()); err != nil {
			return fmt.Errorf("unable to copy to clipboard: %w", err)
		}
		log.Info("Copied base64 audio to clipboard")
	}

	if speakPlay {
		if err := play(ctx, res.Audio); err != nil {
			return err
		}
	}
	return nil
}

// writeResult writes the merged audio to output, or the base64 form to w.
// An output of "-" writes raw WAV to w and is refused on a terminal.
func writeResult(res *tts.Result, output string, asBase64 bool, w io.Writer, isTerminal bool) error {
	if asBase64 {
		_, err := fmt.Fprintln(w, res.Base64())
		return err
	}

	if output == "-" {
		if isTerminal {
			return errors.New("refusing to write binary audio to a terminal; use -o FILE or --base64")
		}
		_, err := w.Write(res.Audio)
		return err
	}

	if err := os.WriteFile(output, res.Audio, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("unable to write audio: %w", err)
	}

	log.Info("Wrote audio",
		"file", output,
		"size", humanize.Bytes(uint64(len(res.Audio))),
		"fragments", len(res.Fragments),
		"cached", res.CacheHits,
		"took", res.Duration.Round(time.Millisecond),
	)
	return nil
}

func play(ctx context.Context, payload []byte) error {
	player, err := audio.NewPlayer()
	if err != nil {
		return err
	}
	defer player.Close() //nolint:errcheck

	if err := player.Play(ctx, payload); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("playback failed: %w", err)
	}
	return nil
}

func init() {
	speakCmd.Flags().StringVar(&speakText, "text", "", "text to speak (instead of FILE or stdin)")
	speakCmd.Flags().StringVar(&speakEngine, "engine", "", "TTS engine (sarvam/mock)")
	speakCmd.Flags().StringVar(&speakLang, "lang", "", "target language code, e.g. hi-IN")
	speakCmd.Flags().StringVar(&speakSpeaker, "speaker", "", "voice name")
	speakCmd.Flags().StringVar(&speakModel, "model", "", "model identifier")
	speakCmd.Flags().StringVarP(&speakOutput, "output", "o", "speech.wav", "output WAV file (- for stdout)")
	speakCmd.Flags().BoolVar(&speakBase64, "base64", false, "print base64-encoded audio instead of writing a file")
	speakCmd.Flags().BoolVar(&speakCopy, "copy", false, "copy base64-encoded audio to the clipboard")
	speakCmd.Flags().BoolVar(&speakMarkdown, "markdown", false, "strip markdown before speaking")
	speakCmd.Flags().BoolVar(&speakPlay, "play", false, "play the audio when done")
	speakCmd.Flags().BoolVar(&speakNoCache, "no-cache", false, "do not read or write the fragment cache")
	speakCmd.Flags().IntVar(&speakConcurrency, "concurrency", 0, "fragments synthesized in parallel")
}
