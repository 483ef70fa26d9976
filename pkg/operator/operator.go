// Package operator defines the source and sink interfaces that carry
// protocol messages into and out of the destination.
package operator

import (
	"context"

	"github.com/sandboxws/stagesync/pkg/protocol"
)

// Source produces protocol messages from an upstream connector.
// Sources run in their own goroutine and push messages to the output channel.
type Source interface {
	// Open initializes the source.
	Open(ctx *Context) error

	// Run starts producing messages to the output channel.
	// It should return when ctx.Done() is signaled, the input ends, or an error occurs.
	// The source MUST close the output channel when it stops.
	Run(ctx *Context, out chan<- protocol.Message) error

	// Close releases resources.
	Close() error
}

// Sink receives the state messages acknowledged after a checkpoint.
type Sink interface {
	// Open initializes the sink.
	Open(ctx *Context) error

	// WriteMessage emits one message downstream.
	WriteMessage(msg protocol.Message) error

	// Close flushes and releases resources.
	Close() error
}

// Committer is implemented by sources that can persist their read position.
// Commit is called after a state message has been acknowledged downstream and
// covers every message up to and including that state.
type Committer interface {
	Commit(ctx context.Context) error
}
