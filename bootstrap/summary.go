package bootstrap

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kbukum/automeet/component"
	"github.com/kbukum/automeet/logger"
)

// Summary describes a started application.
type Summary struct {
	Name       string
	Version    string
	Startup    time.Duration
	Providers  map[string]string
	Components []component.Health
	Routes     []string
	Limiters   []string
}

// Summary collects the current state for logging or display.
func (a *App) Summary(ctx context.Context, startup time.Duration) Summary {
	s := Summary{
		Name:    a.Name,
		Version: a.Version,
		Startup: startup,
		Providers: map[string]string{
			"transcription":   a.Cfg.Providers.Transcription,
			"text_generation": a.Cfg.Providers.TextGeneration,
			"streaming":       a.Cfg.Providers.Streaming,
		},
		Components: a.Components.HealthAll(ctx),
		Limiters:   a.Limiters.Names(),
	}
	if a.Server != nil {
		for _, r := range a.Server.Engine().Routes() {
			s.Routes = append(s.Routes, r.Method+" "+r.Path)
		}
		sort.Strings(s.Routes)
	}
	return s
}

// String renders the summary as an indented block.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s started in %s\n", s.Name, s.Version, s.Startup.Round(time.Millisecond))

	b.WriteString("providers:\n")
	for _, k := range []string{"transcription", "text_generation", "streaming"} {
		v := s.Providers[k]
		if v == "" {
			v = "-"
		}
		fmt.Fprintf(&b, "  %-16s %s\n", k, v)
	}

	b.WriteString("components:\n")
	for _, h := range s.Components {
		line := fmt.Sprintf("  %s %-16s %s", statusIcon(h.Status), h.Name, h.Status)
		if h.Message != "" {
			line += " (" + h.Message + ")"
		}
		b.WriteString(line + "\n")
	}

	if len(s.Routes) > 0 {
		b.WriteString("routes:\n")
		for _, r := range s.Routes {
			b.WriteString("  " + r + "\n")
		}
	}
	return b.String()
}

func statusIcon(s component.HealthStatus) string {
	switch s {
	case component.StatusHealthy:
		return "✓"
	case component.StatusDegraded:
		return "!"
	default:
		return "✗"
	}
}

func (a *App) logSummary(ctx context.Context, startup time.Duration) {
	s := a.Summary(ctx, startup)
	a.Logger.Info("application started", logger.Fields(
		"startup_ms", startup.Milliseconds(),
		"components", len(s.Components),
		"routes", len(s.Routes),
		"limiters", s.Limiters,
	))
	a.Logger.Debug(s.String())
}
