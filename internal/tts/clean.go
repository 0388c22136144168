package tts

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/unicode/norm"
)

var (
	boldItalicPattern = regexp.MustCompile(`\*\*\*(.*?)\*\*\*`)
	boldPattern       = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicPattern     = regexp.MustCompile(`\*(.*?)\*`)
	headingPattern    = regexp.MustCompile(`(?m)^#+\s*`)
	// Unicode spaces too: RE2's \s is ASCII only.
	whitespacePattern = regexp.MustCompile(`[\s\p{Z}\x{85}\x{1C}-\x{1F}]+`)

	emojiPattern = regexp.MustCompile(`[` +
		`\x{1F600}-\x{1F64F}` + // emoticons
		`\x{1F300}-\x{1F5FF}` + // symbols & pictographs
		`\x{1F680}-\x{1F6FF}` + // transport & map symbols
		`\x{1F1E0}-\x{1F1FF}` + // flags
		`\x{2600}-\x{26FF}` + // miscellaneous symbols
		`\x{2700}-\x{27BF}` + // dingbats
		`\x{FE0F}` + // variation selector
		`\x{1F900}-\x{1F9FF}` + // supplemental symbols and pictographs
		`]+`)
)

// CleanText removes markdown emphasis and heading markers, emoji and
// redundant whitespace so the text can be segmented and spoken.
func CleanText(input string) string {
	if input == "" {
		return ""
	}

	// Order matters: *** before ** before *.
	cleaned := boldItalicPattern.ReplaceAllString(input, "$1")
	cleaned = boldPattern.ReplaceAllString(cleaned, "$1")
	cleaned = italicPattern.ReplaceAllString(cleaned, "$1")
	cleaned = headingPattern.ReplaceAllString(cleaned, "")

	cleaned = emojiPattern.ReplaceAllString(cleaned, "")

	cleaned = strings.TrimSpace(whitespacePattern.ReplaceAllString(cleaned, " "))
	cleaned = strings.ReplaceAll(cleaned, "```", "")

	cleaned = norm.NFC.String(cleaned)

	log.Debug("Cleaned text for speech",
		"original", len([]rune(input)),
		"cleaned", len([]rune(cleaned)),
		"preview", Preview(cleaned, 50))
	return cleaned
}

// MarkdownToText parses markdown and keeps only the speakable text of
// paragraphs, headings, list items and quotes. Code blocks are dropped.
func MarkdownToText(source string) (string, error) {
	src := []byte(source)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var blocks []string
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.(type) {
		case *ast.Paragraph, *ast.Heading, *ast.TextBlock:
			if s := extractText(n, src); s != "" {
				blocks = append(blocks, s)
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to walk markdown AST: %w", err)
	}

	return strings.Join(blocks, "\n"), nil
}

// extractText extracts text content from a node
func extractText(node ast.Node, source []byte) string {
	var b strings.Builder

	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch c := child.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(source))
			if c.SoftLineBreak() || c.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		case *ast.CodeSpan, *ast.RawHTML, *ast.Image:
			// not speakable
		default:
			b.WriteString(extractText(c, source))
		}
	}

	return strings.TrimSpace(b.String())
}
