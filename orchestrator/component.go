package orchestrator

import (
	"context"

	"github.com/kbukum/automeet/component"
)

var _ component.Component = (*Orchestrator)(nil)

// Name implements component.Component.
func (o *Orchestrator) Name() string { return "orchestrator" }

// Start launches the job workers and the cache sweeper.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.lifeMu.Lock()
	defer o.lifeMu.Unlock()

	if err := o.queue.Start(o.cfg.Workers); err != nil {
		return err
	}
	if c := o.deps.Cache; c != nil && o.cfg.SweepInterval > 0 {
		sweepCtx, cancel := context.WithCancel(context.Background())
		if err := c.StartSweeper(sweepCtx, o.cfg.SweepInterval); err != nil {
			cancel()
			_ = o.queue.Stop(ctx)
			return err
		}
		o.stopSweeper = cancel
	}
	return nil
}

// Stop drains queued jobs. If ctx ends first it returns CANCELLED and the
// workers finish the remaining jobs in the background.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.lifeMu.Lock()
	defer o.lifeMu.Unlock()

	if o.stopSweeper != nil {
		o.stopSweeper()
		o.stopSweeper = nil
	}
	if o.cfg.StopTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.StopTimeout)
		defer cancel()
	}
	return o.queue.Stop(ctx)
}

// Health reports queue and provider state.
func (o *Orchestrator) Health(ctx context.Context) component.Health {
	stats := o.queue.Stats()
	h := component.Health{
		Name:   o.Name(),
		Status: component.StatusHealthy,
		Details: map[string]any{
			"queue":       stats,
			"transcriber": o.deps.Transcriber.Name(),
			"limiters":    o.limiters.Names(),
		},
	}
	if o.deps.Cache != nil {
		h.Details["cache_entries"] = o.deps.Cache.Len()
	}

	open := o.openCircuits()
	if len(open) > 0 {
		h.Details["circuits"] = open
	}

	switch {
	case !stats.Running:
		h.Status = component.StatusUnhealthy
		h.Message = "job queue not running"
	case !o.deps.Transcriber.IsAvailable(ctx):
		h.Status = component.StatusDegraded
		h.Message = "transcription provider unavailable"
	case o.deps.Generator != nil && !o.deps.Generator.IsAvailable(ctx):
		h.Status = component.StatusDegraded
		h.Message = "text generation provider unavailable"
	case len(open) > 0:
		h.Status = component.StatusDegraded
		h.Message = "provider circuit open"
	}
	return h
}
