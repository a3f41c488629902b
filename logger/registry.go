package logger

import (
	"sync"
)

// registry holds the named loggers Get hands out.
var registry = &loggerRegistry{
	loggers: make(map[string]*Logger),
}

type loggerRegistry struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
}

// Register makes l the logger Get returns for name.
func Register(name string, l *Logger) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.loggers[name] = l
}

// Get returns the logger registered for name, or the global logger tagged
// with name as its component.
func Get(name string) *Logger {
	registry.mu.RLock()
	l, ok := registry.loggers[name]
	registry.mu.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}

// RegisterComponents registers base tagged with each component name, at the
// level levels gives that name. Every key of levels is registered too.
func RegisterComponents(base *Logger, levels map[string]string, names ...string) {
	seen := make(map[string]bool, len(names)+len(levels))
	for _, name := range names {
		seen[name] = true
	}
	for name := range levels {
		seen[name] = true
	}
	for name := range seen {
		Register(name, base.WithComponent(name).WithLevel(levels[name]))
	}
}
