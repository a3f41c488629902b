package sse

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/automeet/component"
	"github.com/kbukum/automeet/errors"
)

var _ component.Component = (*Component)(nil)

// Component runs a Hub under the component lifecycle. A stopped hub cannot
// be restarted.
type Component struct {
	hub     *Hub
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewComponent wraps hub.
func NewComponent(hub *Hub) *Component {
	return &Component{hub: hub}
}

// Hub returns the wrapped hub.
func (c *Component) Hub() *Hub { return c.hub }

// Name implements component.Component.
func (c *Component) Name() string { return "sse" }

// Start launches the hub loop.
func (c *Component) Start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errors.Usage("sse hub already started")
	}
	c.started = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.hub.Run()
	}()
	return nil
}

// Stop closes every stream and waits for the loop to exit.
func (c *Component) Stop(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hub.Stop()
	c.wg.Wait()
	return nil
}

// Health reports the number of connected clients.
func (c *Component) Health(context.Context) component.Health {
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d clients connected", c.hub.ClientCount()),
	}
}
