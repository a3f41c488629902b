// Package textgen defines the text-generation capability set used to analyse
// transcripts, plus prompt helpers.
//
// # Backends
//
//   - textgen/openai: OpenAI-compatible chat completions
//   - textgen/null: null object that returns empty text
package textgen
