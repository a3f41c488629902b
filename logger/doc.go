// Package logger provides structured logging for automeet using zerolog.
//
// Every long-lived part of the system (rate limiter registry, result cache,
// streaming sessions, work queue, orchestrator, HTTP server) takes a
// *Logger scoped with WithComponent so log lines can be filtered by the
// "component" field.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("workqueue")
//	log.Info("worker started", logger.Fields("worker", 3))
package logger
