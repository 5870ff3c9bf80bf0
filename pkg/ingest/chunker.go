package ingest

import (
	"regexp"
	"strings"
)

// Default chunking parameters, in characters.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
)

var sentenceEnd = regexp.MustCompile(`[.!?]+(?:\s+|$)`)

// Chunker splits text into chunks of roughly Size characters on sentence
// boundaries, with Overlap characters of trailing context carried into the
// next chunk.
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker creates a chunker, substituting defaults for non-positive
// parameters.
func NewChunker(size, overlap int) Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}
	return Chunker{Size: size, Overlap: overlap}
}

// Split chunks one text. Sentences longer than Size become chunks of their
// own rather than being cut mid-sentence.
func (c Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	currentLen := 0

	for _, sentence := range sentences {
		if currentLen > 0 && currentLen+1+len(sentence) > c.Size {
			chunks = append(chunks, strings.Join(current, " "))
			current = carryOverlap(current, c.Overlap)
			currentLen = joinedLen(current)
		}
		current = append(current, sentence)
		if currentLen == 0 {
			currentLen = len(sentence)
		} else {
			currentLen += 1 + len(sentence)
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks
}

// splitSentences cuts text after terminal punctuation followed by
// whitespace.
func splitSentences(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		sentence := strings.TrimSpace(text[last:loc[1]])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		last = loc[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// carryOverlap returns the trailing sentences of a chunk totaling at most
// overlap characters.
func carryOverlap(sentences []string, overlap int) []string {
	if overlap <= 0 {
		return nil
	}

	total := 0
	start := len(sentences)
	for i := len(sentences) - 1; i >= 0; i-- {
		if total+len(sentences[i]) > overlap {
			break
		}
		total += len(sentences[i]) + 1
		start = i
	}

	carried := make([]string, len(sentences)-start)
	copy(carried, sentences[start:])
	return carried
}

func joinedLen(sentences []string) int {
	if len(sentences) == 0 {
		return 0
	}
	total := len(sentences) - 1
	for _, s := range sentences {
		total += len(s)
	}
	return total
}
