package provider

import "context"

// Provider is the base interface all providers must implement.
type Provider interface {
	// Name returns the provider's unique name.
	Name() string
	// IsAvailable checks if the provider is ready to handle requests.
	IsAvailable(ctx context.Context) bool
}

// Factory creates a provider instance from a settings map.
type Factory[T Provider] func(cfg map[string]any) (T, error)

// Closeable is implemented by providers holding resources that need
// explicit cleanup.
type Closeable interface {
	Close(ctx context.Context) error
}

// RequestResponse is a provider call taking one input and returning one
// output.
type RequestResponse[I, O any] interface {
	Provider
	Execute(ctx context.Context, input I) (O, error)
}

// Func wraps a plain function as a RequestResponse named name. available may
// be nil, in which case the provider always reports itself available.
func Func[I, O any](name string, available func(context.Context) bool, fn func(context.Context, I) (O, error)) RequestResponse[I, O] {
	return &funcRR[I, O]{name: name, available: available, fn: fn}
}

type funcRR[I, O any] struct {
	name      string
	available func(context.Context) bool
	fn        func(context.Context, I) (O, error)
}

func (f *funcRR[I, O]) Name() string { return f.name }

func (f *funcRR[I, O]) IsAvailable(ctx context.Context) bool {
	if f.available == nil {
		return true
	}
	return f.available(ctx)
}

func (f *funcRR[I, O]) Execute(ctx context.Context, input I) (O, error) {
	return f.fn(ctx, input)
}
