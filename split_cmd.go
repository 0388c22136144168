package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dgnsrekt/soundbox/internal/tts"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	splitText      string
	splitMarkdown  bool
	splitMaxLength int
	splitMinForce  int
	splitIndic     bool
	splitWidth     uint

	splitCmd = &cobra.Command{
		Use:   "split [FILE|-]",
		Short: "Show how text would be split, without synthesizing",
		Long:  paragraph(fmt.Sprintf("\n%s text into the fragments that would be sent to the engine, with each fragment's length in characters.", keyword("Split"))),
		Example: paragraph(`soundbox split --text "A long paragraph..." --max-length 200
soundbox split notes.md --markdown`),
		Args: cobra.MaximumNArgs(1),
		RunE: runSplit,
	}
)

func runSplit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("max-length") {
		cfg.Segment.MaxLength = splitMaxLength
	}
	if cmd.Flags().Changed("min-force-split") {
		cfg.Segment.MinForceSplitLength = splitMinForce
	}
	if cmd.Flags().Changed("indic") {
		cfg.Segment.IndicDelimiters = splitIndic
	}

	text, err := readInput(splitText, args)
	if err != nil {
		return err
	}

	width := int(splitWidth) //nolint:gosec
	if !cmd.Flags().Changed("width") {
		width = 80
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 && w < width { //nolint:gosec
			width = w
		}
	}

	return printFragments(cmd.OutOrStdout(), text, cfg.Segment, splitMarkdown, width)
}

// printFragments segments text and writes each fragment word-wrapped to w.
func printFragments(w io.Writer, text string, cfg tts.SegmentConfig, markdown bool, width int) error {
	if markdown {
		rendered, err := tts.MarkdownToText(text)
		if err != nil {
			return err
		}
		text = rendered
	}

	segmenter := tts.NewSegmenterFromConfig(cfg)
	fragments, err := segmenter.Segment(tts.CleanText(text))
	if errors.Is(err, tts.ErrEmptyInput) {
		_, err = fmt.Fprintln(w, faint("(empty: the silent placeholder would be returned)"))
		return err
	}
	if err != nil {
		return err
	}

	for _, f := range fragments {
		header := fmt.Sprintf("%s %s", keyword(fmt.Sprintf("#%d", f.Index)), faint(fmt.Sprintf("%d chars", f.Len())))
		body := indent.String(wordwrap.String(f.Text, max(width-2, 10)), 2)
		if _, err := fmt.Fprintf(w, "%s\n%s\n\n", header, body); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	splitCmd.Flags().StringVar(&splitText, "text", "", "text to split (instead of FILE or stdin)")
	splitCmd.Flags().BoolVar(&splitMarkdown, "markdown", false, "strip markdown before splitting")
	splitCmd.Flags().IntVar(&splitMaxLength, "max-length", tts.DefaultMaxLength, "maximum fragment length in characters")
	splitCmd.Flags().IntVar(&splitMinForce, "min-force-split", tts.DefaultMinForceSplitLength, "shortest text that may be force-split")
	splitCmd.Flags().BoolVar(&splitIndic, "indic", false, "also split on danda (।) and double danda (॥)")
	splitCmd.Flags().UintVarP(&splitWidth, "width", "w", 0, "word-wrap at width")
}
