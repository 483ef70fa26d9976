package operator

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Metrics tracks per-connector message counts.
type Metrics struct {
	MessagesProcessed atomic.Int64
	Errors            atomic.Int64
}

// Context provides the execution environment for a source or sink.
type Context struct {
	// Go context for cancellation and shutdown.
	Ctx context.Context

	// Logger scoped to this connector.
	Logger *slog.Logger

	// Metrics for this connector instance.
	Metrics *Metrics

	// Name is the human-readable name of the connector.
	Name string
}

// NewContext creates a new connector context with defaults.
func NewContext(ctx context.Context, name string) *Context {
	return &Context{
		Ctx:     ctx,
		Logger:  slog.Default().With("connector", name),
		Metrics: &Metrics{},
		Name:    name,
	}
}

// Done returns the context's Done channel for shutdown signaling.
func (c *Context) Done() <-chan struct{} {
	return c.Ctx.Done()
}
