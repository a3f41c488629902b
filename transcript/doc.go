// Package transcript holds the transcript representation shared by
// transcription providers, streaming sessions and the orchestrator.
package transcript
