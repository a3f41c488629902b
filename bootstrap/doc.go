// Package bootstrap assembles an automeet process from its configuration.
//
// New builds the logger, telemetry, rate limiters, result cache, providers
// and orchestrator. Run serves the HTTP API until a shutdown signal;
// RunTask runs a finite task, such as a CLI transcription, with the same
// wiring and no listener.
//
//	cfg, err := config.Load("automeet")
//	app, err := bootstrap.New(ctx, cfg)
//	err = app.Run(ctx)
package bootstrap
