package protocol

import "context"

// Dispatcher hands a triggered run off for background execution and returns
// the new execution identifier immediately; it never blocks on the run
// itself.
type Dispatcher interface {
	Dispatch(ctx context.Context, graphID string, input map[string]any) (string, error)
}

// DispatcherFunc adapts a plain function to Dispatcher.
type DispatcherFunc func(ctx context.Context, graphID string, input map[string]any) (string, error)

func (f DispatcherFunc) Dispatch(ctx context.Context, graphID string, input map[string]any) (string, error) {
	return f(ctx, graphID, input)
}
