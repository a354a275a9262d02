package chunker

import (
	"strings"

	"filing-analyzer/internal/models"
	"filing-analyzer/internal/tokenizer"
)

// Normalize strips every line, drops empty lines and collapses whitespace
// runs to a single space.
func Normalize(raw string) string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(strings.Fields(strings.Join(lines, "\n")), " ")
}

// Split cuts normalized text into chunks on the ". " delimiter, filling each
// chunk greedily up to budget tokens. Every unit is re-emitted with the
// delimiter appended, so joining the chunks yields text + ". ".
//
// A unit that alone exceeds budget gets a chunk of its own and is never cut.
func Split(text string, budget int, counter tokenizer.Counter) []models.Chunk {
	if text == "" {
		return nil
	}

	var (
		chunks  []models.Chunk
		current strings.Builder
		tokens  int
	)
	emit := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, models.Chunk{
			Index:  len(chunks),
			Text:   current.String(),
			Tokens: tokens,
		})
		current.Reset()
		tokens = 0
	}

	for _, unit := range strings.Split(text, models.SentenceDelimiter) {
		piece := unit + models.SentenceDelimiter
		n := counter.Count(piece)
		if tokens+n > budget {
			emit()
		}
		current.WriteString(piece)
		tokens += n
	}
	emit()

	return chunks
}
