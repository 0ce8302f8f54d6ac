package otel

import "context"

type handleKey struct{}

// WithHandle stores h in ctx.
func WithHandle(ctx context.Context, h *Handle) context.Context {
	return context.WithValue(ctx, handleKey{}, h)
}

// From returns the handle stored in ctx, or Noop when there is none.
func From(ctx context.Context) *Handle {
	if h, ok := ctx.Value(handleKey{}).(*Handle); ok && h != nil {
		return h
	}
	return Noop()
}
