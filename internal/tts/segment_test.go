package tts

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
)

func fragmentTexts(fragments []Fragment) []string {
	out := make([]string, len(fragments))
	for i, f := range fragments {
		out[i] = f.Text
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSegment(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		maxLength int
		minLength int
		want      []string
	}{
		{
			name:      "Below force split threshold",
			text:      "Hello world",
			maxLength: 1500,
			minLength: 20,
			want:      []string{"Hello world"},
		},
		{
			name:      "One below threshold is not split",
			text:      "abcdefghi jklmnopqr",
			maxLength: 1500,
			minLength: 20,
			want:      []string{"abcdefghi jklmnopqr"},
		},
		{
			name:      "Exactly at threshold is split",
			text:      "abcdefghi jklmnopqrs",
			maxLength: 1500,
			minLength: 20,
			want:      []string{"abcdefghi", "jklmnopqrs"},
		},
		{
			name:      "Thirty characters with a single space",
			text:      "abcdefghijklmn opqrstuvwxyzABC",
			maxLength: 1500,
			minLength: 20,
			want:      []string{"abcdefghijklmn", "opqrstuvwxyzABC"},
		},
		{
			name:      "Tie goes to the earlier space",
			text:      "aaaaaaaa bcd eeeeeeee",
			maxLength: 1500,
			minLength: 20,
			want:      []string{"aaaaaaaa", "bcd eeeeeeee"},
		},
		{
			name:      "Closer forward space wins",
			text:      "aaaaa bbbbbb ccccccccc",
			maxLength: 1500,
			minLength: 20,
			want:      []string{"aaaaa bbbbbb", "ccccccccc"},
		},
		{
			name:      "No space splits at midpoint",
			text:      "abcdefghijklmnopqrstuvwxy",
			maxLength: 1500,
			minLength: 20,
			want:      []string{"abcdefghijkl", "mnopqrstuvwxy"},
		},
		{
			name:      "Exactly at max length is force split not chunked",
			text:      "aaaa bbbb cccc dddd eeee ffff",
			maxLength: 29,
			minLength: 5,
			want:      []string{"aaaa bbbb cccc", "dddd eeee ffff"},
		},
		{
			name:      "No whitespace forces hard splits",
			text:      strings.Repeat("a", 25),
			maxLength: 10,
			minLength: 3,
			want:      []string{strings.Repeat("a", 10), strings.Repeat("a", 10), strings.Repeat("a", 5)},
		},
		{
			name:      "Sentence boundary inside window",
			text:      "One two. Three four five six",
			maxLength: 20,
			minLength: 5,
			want:      []string{"One two.", "Three four five six"},
		},
		{
			name:      "Sentence delimiter outside window falls back to words",
			text:      "aaaa bbbb cccc dddd eeee. ffff",
			maxLength: 20,
			minLength: 5,
			want:      []string{"aaaa bbbb cccc dddd", "eeee. ffff"},
		},
		{
			name:      "Newline is a sentence boundary",
			text:      "first line here\nsecond line is here",
			maxLength: 20,
			minLength: 5,
			want:      []string{"first line here", "second line is here"},
		},
		{
			name:      "Surrounding whitespace is trimmed",
			text:      "   Hello world   ",
			maxLength: 1500,
			minLength: 20,
			want:      []string{"Hello world"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Segment(tt.text, tt.maxLength, tt.minLength)
			if err != nil {
				t.Fatalf("Segment() error = %v", err)
			}
			if texts := fragmentTexts(got); !equalStrings(texts, tt.want) {
				t.Errorf("Segment() = %q, want %q", texts, tt.want)
			}
			for i, f := range got {
				if f.Index != i+1 {
					t.Errorf("fragment %d has Index %d", i, f.Index)
				}
			}
		})
	}
}

func TestSegment_EmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t  \n"} {
		got, err := Segment(text, DefaultMaxLength, DefaultMinForceSplitLength)
		if !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Segment(%q) error = %v, want ErrEmptyInput", text, err)
		}
		if got != nil {
			t.Errorf("Segment(%q) = %v, want nil", text, got)
		}
	}
}

func TestSegment_InvalidLimits(t *testing.T) {
	tests := []struct {
		name      string
		maxLength int
		minLength int
	}{
		{"Zero minimum", 100, 0},
		{"Negative minimum", 100, -1},
		{"Max equals min", 20, 20},
		{"Max below min", 10, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Segment("some text to split", tt.maxLength, tt.minLength)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Segment() error = %v, want ErrInvalidInput", err)
			}
			if CodeOf(err) != ErrorCodeInvalidInput {
				t.Errorf("CodeOf() = %q, want %q", CodeOf(err), ErrorCodeInvalidInput)
			}
		})
	}
}

func TestSegment_SentenceChunking(t *testing.T) {
	// Ten 200-character sentences.
	sentence := strings.Repeat("abcd ", 39) + "wxy. "
	if len(sentence) != 200 {
		t.Fatalf("bad fixture length %d", len(sentence))
	}
	text := strings.Repeat(sentence, 10)

	got, err := Segment(text, 1500, 20)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d fragments, want 2", len(got))
	}

	first := got[0].Text
	if !strings.HasSuffix(first, "wxy.") {
		t.Errorf("first fragment should end at a sentence boundary, ends with %q", first[len(first)-10:])
	}
	if got[0].Len() != 7*200-1 {
		t.Errorf("first fragment length = %d, want %d", got[0].Len(), 7*200-1)
	}
	if got[1].Len() != 3*200-1 {
		t.Errorf("second fragment length = %d, want %d", got[1].Len(), 3*200-1)
	}
}

func TestSegment_IndicDelimiters(t *testing.T) {
	text := "aaaa। bbbb cccc dddd eeee"

	plain := NewSegmenter(20, 5)
	got, err := plain.Segment(text)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	want := []string{"aaaa। bbbb cccc", "dddd eeee"}
	if texts := fragmentTexts(got); !equalStrings(texts, want) {
		t.Errorf("default strategies = %q, want %q", texts, want)
	}

	indic := NewSegmenterFromConfig(SegmentConfig{MaxLength: 20, MinForceSplitLength: 5, IndicDelimiters: true})
	got, err = indic.Segment(text)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	want = []string{"aaaa।", "bbbb cccc dddd eeee"}
	if texts := fragmentTexts(got); !equalStrings(texts, want) {
		t.Errorf("indic strategies = %q, want %q", texts, want)
	}
}

func TestSegment_HardSplitKeepsGraphemes(t *testing.T) {
	// "e" followed by a combining acute accent, six times, no spaces.
	cluster := "e\u0301"
	text := strings.Repeat(cluster, 6)

	got, err := Segment(text, 5, 2)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	want := []string{strings.Repeat(cluster, 2), strings.Repeat(cluster, 2), strings.Repeat(cluster, 2)}
	if texts := fragmentTexts(got); !equalStrings(texts, want) {
		t.Errorf("Segment() = %q, want %q", texts, want)
	}
}

func TestSegment_CustomStrategies(t *testing.T) {
	commaBoundary := SentenceBoundary(", ")
	s := &Segmenter{
		MaxLength:           18,
		MinForceSplitLength: 5,
		Strategies:          []BoundaryStrategy{commaBoundary, HardBoundary},
	}

	got, err := s.Segment("red, green blue yellow")
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	want := []string{"red,", "green blue yellow"}
	if texts := fragmentTexts(got); !equalStrings(texts, want) {
		t.Errorf("Segment() = %q, want %q", texts, want)
	}
}

func TestSegment_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	words := []string{"a", "to", "the", "house", "speech", "synthesis", "नमस्ते", "दुनिया।", "end.", "why?", "wow!", "x\ny", strings.Repeat("z", 40)}

	for round := 0; round < 200; round++ {
		var b strings.Builder
		n := rng.Intn(120)
		for i := 0; i < n; i++ {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(words[rng.Intn(len(words))])
		}
		text := b.String()
		maxLength := 30 + rng.Intn(100)
		minLength := 1 + rng.Intn(20)

		got, err := Segment(text, maxLength, minLength)
		if strings.TrimSpace(text) == "" {
			if !errors.Is(err, ErrEmptyInput) {
				t.Fatalf("round %d: error = %v, want ErrEmptyInput", round, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("round %d: Segment() error = %v", round, err)
		}

		for _, f := range got {
			if f.Len() == 0 || f.Len() > maxLength {
				t.Fatalf("round %d: fragment %d has length %d (max %d)", round, f.Index, f.Len(), maxLength)
			}
			if strings.TrimSpace(f.Text) != f.Text {
				t.Fatalf("round %d: fragment %d is not trimmed: %q", round, f.Index, f.Text)
			}
		}

		joined := strings.Join(fragmentTexts(got), "")
		if stripSpace(joined) != stripSpace(text) {
			t.Fatalf("round %d: fragments do not reconstruct the input\n got: %q\nwant: %q", round, joined, text)
		}
	}
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func TestFragment_Len(t *testing.T) {
	f := Fragment{Index: 1, Text: "नमस्ते"}
	if f.Len() != 6 {
		t.Errorf("Len() = %d, want 6", f.Len())
	}
}

func BenchmarkSegment(b *testing.B) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 200)
	s := NewSegmenter(DefaultMaxLength, DefaultMinForceSplitLength)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Segment(text); err != nil {
			b.Fatal(err)
		}
	}
}
