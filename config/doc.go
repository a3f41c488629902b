// Package config loads automeet configuration.
//
// Values come from a YAML file, a .env file and the process environment.
// Environment variables map onto nested keys by splitting on underscores, so
// QUEUE_WORKERS sets queue.workers and PROVIDERS_WHISPER_API_KEY sets
// providers.whisper.api_key. OPENAI_API_KEY and ASSEMBLYAI_API_KEY are also
// read directly as provider credentials.
//
// Usage:
//
//	cfg, err := config.Load("automeet", config.WithConfigFile("config.yml"))
package config
