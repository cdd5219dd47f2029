// Package prompt builds the generation request from retrieved chunks:
// whitespace normalization, greedy budgeted context assembly, and the
// system prompt plus single user turn handed to the generation backend.
// Everything in this package is a pure function of its inputs.
package prompt

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/rag-api-go/internal/rag"
)

// systemPrompt pins the assistant to the retrieved context so it refuses
// to answer from model memory when retrieval comes back empty or thin.
const systemPrompt = "You are a helpful support assistant called eHelp. " +
	"Answer ONLY using the provided context. " +
	"If the context is insufficient, say clearly that you do not have enough " +
	"information in the provided knowledge base. " +
	"Be factual and answer in no more than one paragraph. " +
	"Do not return Markdown, only plain concise English."

// noContextMarker replaces an empty assembled context in the user turn.
// The generation backend must see an explicit marker — not an empty
// string — so the system prompt's insufficient-information rule applies
// instead of the model hallucinating from silence.
const noContextMarker = "[No context retrieved]"

// normalizeWhitespace converts CRLF to LF, right-trims every line, and
// trims the result.
func normalizeWhitespace(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// BuildContext packs chunks into a prompt-ready context string under two
// independent budgets: at most maxChunks blocks and at most maxChars total
// bytes. Chunks are consumed from the head of the input in the order the
// store ranked them. Assembly terminates at the first block that would
// overflow the byte budget — the block is not truncated, and later smaller
// blocks are not considered. Returns "" when nothing fits.
func BuildContext(chunks []rag.Chunk, maxChunks, maxChars int) string {
	if maxChunks < 0 {
		maxChunks = 0
	}
	selected := chunks
	if maxChunks < len(selected) {
		selected = selected[:maxChunks]
	}

	var parts []string
	total := 0

	for i, chunk := range selected {
		block := fmt.Sprintf("[Context %d]\n%s\n", i+1, normalizeWhitespace(chunk.Text))
		if total+len(block) > maxChars {
			break
		}
		parts = append(parts, block)
		total += len(block)
	}

	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// BuildMessages renders the generation request for one question: the
// system prompt and a single user turn carrying the question and the
// assembled context. An empty context is rendered as the explicit
// no-context marker.
func BuildMessages(question string, chunks []rag.Chunk, maxChunks, maxChars int) (string, []*schema.Message) {
	context := BuildContext(chunks, maxChunks, maxChars)
	if context == "" {
		context = noContextMarker
	}

	userText := fmt.Sprintf(
		"User question:\n%s\n\nRetrieved context:\n%s\n\nWrite the answer for the user.",
		strings.TrimSpace(question),
		context,
	)

	return systemPrompt, []*schema.Message{schema.UserMessage(userText)}
}
