package tts

import (
	"strings"
	"unicode/utf8"
)

// SentenceBuffer accumulates text and extracts complete sentences.
type SentenceBuffer struct {
	buffer strings.Builder
}

// NewSentenceBuffer creates a new sentence buffer.
func NewSentenceBuffer() *SentenceBuffer {
	return &SentenceBuffer{}
}

// Add adds text to the buffer and returns any complete sentences.
func (b *SentenceBuffer) Add(text string) []string {
	b.buffer.WriteString(text)

	content := b.buffer.String()
	var sentences []string

	lastEnd := 0
	for i := 0; i < len(content); {
		r, size := utf8.DecodeRuneInString(content[i:])
		end := i + size
		if isSentenceEnd(content, i, r, size) {
			if sentence := strings.TrimSpace(content[lastEnd:end]); sentence != "" {
				sentences = append(sentences, sentence)
			}
			lastEnd = end
		}
		i = end
	}

	// Keep remainder in buffer
	if lastEnd > 0 {
		b.buffer.Reset()
		b.buffer.WriteString(content[lastEnd:])
	}

	return sentences
}

// Flush returns any remaining text and clears the buffer.
func (b *SentenceBuffer) Flush() string {
	result := strings.TrimSpace(b.buffer.String())
	b.buffer.Reset()
	return result
}

// Pending returns the current pending text without clearing.
func (b *SentenceBuffer) Pending() string {
	return b.buffer.String()
}

// SplitSentences splits a complete text into sentences. Text after the last
// terminator becomes the final sentence.
func SplitSentences(text string) []string {
	b := NewSentenceBuffer()
	sentences := b.Add(text)
	if rest := b.Flush(); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// isFullWidthEnd reports CJK terminators, which need no trailing space
func isFullWidthEnd(r rune) bool {
	switch r {
	case '。', '！', '？', '；', '…':
		return true
	}
	return false
}

// isSentenceEnd checks if the rune r at byte offset i ends a sentence.
func isSentenceEnd(s string, i int, r rune, size int) bool {
	if isFullWidthEnd(r) {
		return true
	}
	if r != '.' && r != '!' && r != '?' && r != ';' {
		return false
	}

	// Check it's not an abbreviation (Dr., Mr., etc.)
	if r == '.' && isAbbreviation(s, i) {
		return false
	}

	// Require whitespace or end of string after, so 3.14 stays whole
	next := i + size
	if next < len(s) && s[next] != ' ' && s[next] != '\n' && s[next] != '\r' && s[next] != '\t' {
		return false
	}

	return true
}

var commonAbbreviations = []string{
	"Dr.", "Mr.", "Mrs.", "Ms.", "Jr.", "Sr.",
	"Prof.", "Rev.", "Gen.", "Col.", "Lt.", "Sgt.",
	"Inc.", "Ltd.", "Corp.", "Co.", "vs.", "etc.",
	"i.e.", "e.g.", "a.m.", "p.m.", "U.S.", "U.K.",
}

// isAbbreviation checks if the period at position i is likely an abbreviation.
func isAbbreviation(s string, i int) bool {
	if i < 1 {
		return false
	}

	// Get the word ending at i (including the period)
	start := i
	for start > 0 && s[start-1] != ' ' && s[start-1] != '\n' {
		start--
	}
	word := s[start : i+1]

	for _, abbr := range commonAbbreviations {
		if strings.EqualFold(word, abbr) {
			return true
		}
	}

	// Single uppercase letter followed by period (initials)
	if s[i-1] >= 'A' && s[i-1] <= 'Z' {
		if i < 2 || s[i-2] == ' ' || s[i-2] == '\n' {
			return true
		}
	}

	return false
}
