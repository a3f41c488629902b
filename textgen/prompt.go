package textgen

import (
	"strings"
)

// TranscriptPlaceholder is replaced with the transcript text in user prompt
// templates.
const TranscriptPlaceholder = "{transcription}"

// Default prompts used when the caller supplies none.
const (
	DefaultSystemPrompt = "You are an AI assistant."
	DefaultUserPrompt   = "Analyse the following transcript:\n" + TranscriptPlaceholder
)

// RenderPrompt substitutes text for every placeholder in template. A
// template without a placeholder gets the text appended on a new line.
func RenderPrompt(template, text string) string {
	if template == "" {
		template = DefaultUserPrompt
	}
	if !strings.Contains(template, TranscriptPlaceholder) {
		return template + "\n" + text
	}
	return strings.ReplaceAll(template, TranscriptPlaceholder, text)
}

// SplitChunks splits text on line boundaries into chunks of at most size
// characters. A single line longer than size becomes its own chunk.
func SplitChunks(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}

	var (
		chunks  []string
		current []string
		n       int
	)
	for _, line := range strings.Split(text, "\n") {
		if n+len(line) > size && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n"))
			current, n = nil, 0
		}
		current = append(current, line)
		n += len(line)
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}
	return chunks
}
