// Package transcription defines the speech-to-text capability set and the
// registry backends plug into.
//
// # Backends
//
//   - transcription/whisper: OpenAI-compatible audio transcription endpoint
//   - transcription/mock: deterministic output for tests and demos, with a
//     streaming variant
//
// # Usage
//
//	reg := transcription.NewRegistry()
//	reg.RegisterFactory(whisper.ProviderName, whisper.Factory())
//	p, err := reg.Resolve(whisper.ProviderName, cfg)
//	result, err := p.Transcribe(ctx, transcription.Request{AudioPath: "call.mp3"})
package transcription
