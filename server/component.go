package server

import (
	"context"

	"github.com/kbukum/automeet/component"
)

const componentName = "http-server"

var _ component.Component = (*Component)(nil)

// Component adapts a Server to the component lifecycle.
type Component struct {
	server *Server
}

// NewComponent returns a component.Component backed by s.
func NewComponent(s *Server) *Component {
	return &Component{server: s}
}

// Name returns the component name used for registration.
func (c *Component) Name() string { return componentName }

// Start starts the underlying HTTP server.
func (c *Component) Start(ctx context.Context) error {
	return c.server.Start(ctx)
}

// Stop gracefully shuts down the underlying HTTP server.
func (c *Component) Stop(ctx context.Context) error {
	return c.server.Stop(ctx)
}

// Health reports healthy once the server is listening.
func (c *Component) Health(context.Context) component.Health {
	c.server.mu.Lock()
	listening := c.server.listener != nil
	c.server.mu.Unlock()

	if !listening {
		return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: "not listening"}
	}
	return component.Health{
		Name:    componentName,
		Status:  component.StatusHealthy,
		Details: map[string]any{"addr": c.server.Addr()},
	}
}
