// Package rag assembles retrieved documents into a prompt and asks a model
// to answer from them.
package rag

import (
	"fmt"
	"strings"

	"github.com/markdave123-py/docrag/internal/models"
)

const (
	// TruncationBuffer is the slack kept free when the first document alone
	// overflows the budget.
	TruncationBuffer = 100
	truncationMarker = "... (truncated)"

	NoDocuments = "No relevant documents found."
	NoContent   = "No relevant document content could be extracted."
)

// AssembleContext concatenates one labelled section per result in rank
// order. It stops before the first section that would overflow maxLength,
// except when nothing has been added yet: then that document is cut to fit
// and marked as truncated. Lengths are counted in runes and the result never
// exceeds maxLength.
func AssembleContext(results []models.SearchResult, maxLength int) string {
	if len(results) == 0 {
		return NoDocuments
	}

	var (
		b    strings.Builder
		used int
	)
	for _, r := range results {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		name := r.Filename
		if name == "" {
			name = "unknown"
		}

		section := fmt.Sprintf("Document: %s\n\n%s\n\n", name, r.Text)
		n := runeLen(section)
		if used+n > maxLength {
			if used > 0 {
				break
			}
			section = truncatedSection(name, r.Text, maxLength)
			n = runeLen(section)
		}
		b.WriteString(section)
		used += n
	}

	if used == 0 {
		return NoContent
	}
	return b.String()
}

func truncatedSection(name, text string, maxLength int) string {
	head := fmt.Sprintf("Document: %s\n\n", name)
	tail := truncationMarker + "\n\n"
	avail := maxLength - TruncationBuffer - runeLen(head) - runeLen(tail)
	section := head + truncateRunes(text, avail) + tail
	if runeLen(section) <= maxLength {
		return section
	}

	// The header alone does not fit: shorten the name so the marker survives.
	room := maxLength - runeLen("Document: \n\n") - runeLen(tail)
	if room < 0 {
		return truncateRunes(tail, maxLength)
	}
	return fmt.Sprintf("Document: %s\n\n", truncateRunes(name, room)) + tail
}

func runeLen(s string) int { return len([]rune(s)) }

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
