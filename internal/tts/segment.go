package tts

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/rivo/uniseg"
)

const (
	// DefaultMaxLength is the synthesis service's per-request character limit.
	DefaultMaxLength = 1500

	// DefaultMinForceSplitLength is the length below which text is never split.
	DefaultMinForceSplitLength = 20
)

// SentenceDelimiters end a sentence for boundary-aware chunking.
var SentenceDelimiters = []string{". ", "! ", "? ", "\n"}

// IndicSentenceDelimiters adds the danda and double danda used by Devanagari
// and related scripts.
var IndicSentenceDelimiters = append(append([]string{}, SentenceDelimiters...), "। ", "॥ ")

// Fragment is one bounded slice of input text queued for synthesis.
type Fragment struct {
	// Index is the 1-based position of the fragment in the input
	Index int
	// Text is the trimmed, non-empty fragment text
	Text string
}

// Len returns the fragment length in characters.
func (f Fragment) Len() int {
	return len([]rune(f.Text))
}

// BoundaryStrategy looks for a split point inside text[start:end].
// It returns the index to split at (exclusive end of the current fragment)
// and whether a split point was found. A returned split must be > start.
type BoundaryStrategy func(text []rune, start, end int) (int, bool)

// SentenceBoundary splits right after the last delimiter lying entirely
// inside the window.
func SentenceBoundary(delimiters ...string) BoundaryStrategy {
	delims := make([][]rune, 0, len(delimiters))
	for _, d := range delimiters {
		if d != "" {
			delims = append(delims, []rune(d))
		}
	}

	return func(text []rune, start, end int) (int, bool) {
		best := -1
		for _, d := range delims {
			if i := lastIndexRunes(text, d, start, end); i >= 0 {
				if split := i + len(d); split > best {
					best = split
				}
			}
		}
		if best > start {
			return best, true
		}
		return 0, false
	}
}

// WordBoundary splits right after the last space in the window. A space at
// the very start of the window does not count.
func WordBoundary(text []rune, start, end int) (int, bool) {
	for i := end - 1; i > start; i-- {
		if text[i] == ' ' {
			return i + 1, true
		}
	}
	return 0, false
}

// HardBoundary splits at the end of the window. When that would cut a
// grapheme cluster it backs off to the start of the cluster, unless the
// cluster begins at the window start.
func HardBoundary(text []rune, start, end int) (int, bool) {
	if end >= len(text) {
		return end, end > start
	}

	g := uniseg.NewGraphemes(string(text[start:]))
	pos := start
	last := start
	for pos < end && g.Next() {
		last = pos
		pos += len(g.Runes())
	}
	if pos == end || last == start {
		return end, true
	}
	return last, true
}

// DefaultStrategies returns sentence, word and hard boundary search in that order.
func DefaultStrategies() []BoundaryStrategy {
	return []BoundaryStrategy{
		SentenceBoundary(SentenceDelimiters...),
		WordBoundary,
		HardBoundary,
	}
}

// IndicStrategies is DefaultStrategies with danda-aware sentence search.
func IndicStrategies() []BoundaryStrategy {
	return []BoundaryStrategy{
		SentenceBoundary(IndicSentenceDelimiters...),
		WordBoundary,
		HardBoundary,
	}
}

// Segmenter turns cleaned text into fragments that each fit the synthesis
// service's character limit.
type Segmenter struct {
	// MaxLength is the maximum fragment length in characters
	MaxLength int
	// MinForceSplitLength is the shortest text that gets a forced two-way split
	MinForceSplitLength int
	// Strategies are tried in order to pick a chunk boundary.
	// Nil means DefaultStrategies.
	Strategies []BoundaryStrategy
}

// NewSegmenter creates a segmenter with the default strategies.
func NewSegmenter(maxLength, minForceSplitLength int) *Segmenter {
	return &Segmenter{
		MaxLength:           maxLength,
		MinForceSplitLength: minForceSplitLength,
	}
}

// Segment splits text with the default strategies.
func Segment(text string, maxLength, minForceSplitLength int) ([]Fragment, error) {
	return NewSegmenter(maxLength, minForceSplitLength).Segment(text)
}

// Validate checks the length limits.
func (s *Segmenter) Validate() error {
	if s.MinForceSplitLength <= 0 {
		return NewTTSError(ErrorCodeInvalidInput,
			fmt.Sprintf("min force split length must be positive, got %d", s.MinForceSplitLength), nil)
	}
	if s.MaxLength <= s.MinForceSplitLength {
		return NewTTSError(ErrorCodeInvalidInput,
			fmt.Sprintf("max length %d must exceed min force split length %d", s.MaxLength, s.MinForceSplitLength), nil)
	}
	return nil
}

// Segment splits cleaned text into ordered fragments.
// It returns ErrEmptyInput when nothing but whitespace is left.
func (s *Segmenter) Segment(text string) ([]Fragment, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	stripped := strings.TrimSpace(text)
	if stripped == "" {
		return nil, ErrEmptyInput
	}

	runes := []rune(stripped)
	var parts []string
	switch {
	case len(runes) > s.MaxLength:
		parts = s.chunk(runes)
		log.Debug("Chunked text at boundaries", "length", len(runes), "fragments", len(parts))
	case len(runes) < s.MinForceSplitLength:
		parts = []string{stripped}
	default:
		parts = splitInTwo(runes)
		log.Debug("Forced two-way split", "length", len(runes), "fragments", len(parts))
	}

	return toFragments(parts), nil
}

// chunk walks the text window by window, cutting at the first boundary a
// strategy finds.
func (s *Segmenter) chunk(text []rune) []string {
	strategies := s.Strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}

	var parts []string
	cursor := 0
	for cursor < len(text) {
		if len(text)-cursor <= s.MaxLength {
			parts = append(parts, string(text[cursor:]))
			break
		}

		end := cursor + s.MaxLength
		split := end
		for _, strategy := range strategies {
			if at, ok := strategy(text, cursor, end); ok && at > cursor && at <= end {
				split = at
				break
			}
		}

		parts = append(parts, string(text[cursor:split]))
		cursor = split
	}
	return parts
}

// splitInTwo cuts text after the space nearest its midpoint. Ties go to the
// earlier space; text without spaces is cut at the midpoint.
func splitInTwo(text []rune) []string {
	mid := len(text) / 2

	backward := -1
	for i := mid; i >= 0; i-- {
		if text[i] == ' ' {
			backward = i
			break
		}
	}
	forward := -1
	for i := mid; i < len(text); i++ {
		if text[i] == ' ' {
			forward = i
			break
		}
	}

	var split int
	switch {
	case backward >= 0 && forward >= 0:
		if mid-backward <= forward-mid {
			split = backward + 1
		} else {
			split = forward + 1
		}
	case backward >= 0:
		split = backward + 1
	case forward >= 0:
		split = forward + 1
	default:
		split = mid
	}

	parts := []string{string(text[:split]), string(text[split:])}
	kept := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return []string{string(text)}
	}
	return kept
}

func toFragments(parts []string) []Fragment {
	fragments := make([]Fragment, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimFunc(p, unicode.IsSpace)
		if p == "" {
			continue
		}
		fragments = append(fragments, Fragment{Index: len(fragments) + 1, Text: p})
	}
	return fragments
}

// lastIndexRunes returns the start of the last occurrence of sub that lies
// entirely within text[start:end], or -1.
func lastIndexRunes(text, sub []rune, start, end int) int {
	if end > len(text) {
		end = len(text)
	}
	for i := end - len(sub); i >= start; i-- {
		match := true
		for j, r := range sub {
			if text[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
