// Package server exposes the orchestrator over HTTP.
//
// The Gin engine is served through h2c so HTTP/2 clients can connect without
// TLS. Every request passes through panic recovery, request-ID assignment,
// request logging and a body size limit; the /v1 API group is additionally
// rate limited per client.
//
// Routes:
//
//	GET  /health              component health (503 when unhealthy)
//	GET  /version             build information
//	POST /v1/transcriptions   transcribe a file path or an uploaded file
//	GET  /v1/jobs             list asynchronous jobs
//	GET  /v1/jobs/:id         one job
//	POST /v1/analysis         analyse transcript text
//
// Errors are rendered from errors.AppError as {"error": {...}}.
package server
