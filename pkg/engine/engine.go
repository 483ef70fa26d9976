// Package engine runs a sync: it routes protocol messages from a source into
// per-stream staging buffers and, at every state message, loads the staged
// files into the destination tables before acknowledging the state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/multierr"

	"github.com/sandboxws/stagesync/pkg/databend"
	"github.com/sandboxws/stagesync/pkg/metrics"
	"github.com/sandboxws/stagesync/pkg/operator"
	"github.com/sandboxws/stagesync/pkg/protocol"
	"github.com/sandboxws/stagesync/pkg/session"
	"github.com/sandboxws/stagesync/pkg/staging"
	"github.com/sandboxws/stagesync/pkg/stream"
)

const defaultChannelBuffer = 16

// streamState is the per-stream runtime state created at Setup.
type streamState struct {
	wc     stream.WriteContext
	mode   protocol.SyncMode
	buffer *staging.Buffer
}

// Engine executes one sync against a destination database.
type Engine struct {
	exec       session.Executor
	uploader   *staging.Uploader
	database   string
	bufferSize int64
	tmpDir     string
	alloc      memory.Allocator
	logger     *slog.Logger

	order   []stream.Key
	streams map[stream.Key]*streamState

	// Runtime state.
	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

// NewEngine creates an engine that issues statements through exec and
// uploads batch files with uploader.
func NewEngine(exec session.Executor, uploader *staging.Uploader, database string) *Engine {
	return &Engine{
		exec:       exec,
		uploader:   uploader,
		database:   database,
		bufferSize: staging.DefaultMaxSize,
		alloc:      memory.DefaultAllocator,
		streams:    make(map[stream.Key]*streamState),
		logger:     slog.Default().With("component", "engine", "database", database),
	}
}

// SetBufferSize sets the per-stream flush threshold in bytes.
func (e *Engine) SetBufferSize(n int64) {
	if n > 0 {
		e.bufferSize = n
	}
}

// SetTmpDir sets the parent directory for local batch files.
func (e *Engine) SetTmpDir(dir string) { e.tmpDir = dir }

// SetAllocator sets the Arrow allocator used by the staging buffers.
func (e *Engine) SetAllocator(alloc memory.Allocator) { e.alloc = alloc }

// Setup validates the catalog, creates the database, and creates a stage
// and buffer for every configured stream in catalog order.
func (e *Engine) Setup(ctx context.Context, catalog *protocol.ConfiguredCatalog) error {
	if len(e.order) > 0 {
		return fmt.Errorf("engine: setup called twice")
	}
	if err := ValidateCatalog(catalog); err != nil {
		return fmt.Errorf("engine: invalid catalog: %w", err)
	}
	if _, err := e.exec.Execute(ctx, databend.CreateDatabase(e.database)); err != nil {
		return fmt.Errorf("engine: setup: %w", err)
	}

	for _, cs := range catalog.Streams {
		wc := stream.NewWriteContext(cs.Stream.Name, cs.Stream.Namespace)
		if _, err := e.exec.Execute(ctx, databend.CreateStage(wc.Stage())); err != nil {
			return fmt.Errorf("engine: setup %s: %w", wc.Key(), err)
		}
		buf, err := staging.NewBuffer(wc, e.uploader, e.alloc, e.tmpDir)
		if err != nil {
			return fmt.Errorf("engine: setup: %w", err)
		}
		buf.SetMaxSize(e.bufferSize)

		e.order = append(e.order, wc.Key())
		e.streams[wc.Key()] = &streamState{wc: wc, mode: cs.DestinationSyncMode, buffer: buf}
		e.logger.Info("registered stream",
			"stream", wc.Key().String(), "mode", cs.DestinationSyncMode, "write_context", wc.String())
	}
	return nil
}

// Run consumes src until it ends, checkpointing at every state message and
// writing acknowledged states to sink. Records still buffered when the input
// ends are not loaded. The first error stops the sync and is returned without
// waiting for the source to notice.
func (e *Engine) Run(ctx context.Context, src operator.Source, sink operator.Sink) error {
	srcCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.mu.Lock()
	e.cancel = cancel
	if e.stopped {
		cancel()
	}
	e.mu.Unlock()

	sourceCtx := operator.NewContext(srcCtx, "source")
	if err := src.Open(sourceCtx); err != nil {
		return fmt.Errorf("engine: open source: %w", err)
	}
	defer src.Close()

	sinkCtx := operator.NewContext(ctx, "sink")
	if err := sink.Open(sinkCtx); err != nil {
		return fmt.Errorf("engine: open sink: %w", err)
	}
	defer sink.Close()

	msgs := make(chan protocol.Message, defaultChannelBuffer)
	srcErr := make(chan error, 1)
	go func() {
		srcErr <- src.Run(sourceCtx, msgs)
	}()

	if err := e.consume(ctx, msgs, src, sink); err != nil {
		cancel()
		// The source may be blocked on input; release it in the background.
		go func() {
			for range msgs {
			}
			<-srcErr
		}()
		return err
	}

	if err := <-srcErr; err != nil {
		return fmt.Errorf("engine: source: %w", err)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("engine: interrupted: %w", ctx.Err())
	}
	return nil
}

func (e *Engine) consume(ctx context.Context, msgs <-chan protocol.Message, src operator.Source, sink operator.Sink) error {
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := e.handle(ctx, msg, src, sink); err != nil {
				return err
			}
		case <-ctx.Done():
			return fmt.Errorf("engine: interrupted: %w", ctx.Err())
		}
	}
}

// Stop stops the source. Messages already read are still processed. A Stop
// before Run makes Run return once the source exits.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handle(ctx context.Context, msg protocol.Message, src operator.Source, sink operator.Sink) error {
	switch msg.Type {
	case protocol.TypeRecord:
		if msg.Record == nil {
			return nil
		}
		key := stream.NewKey(msg.Record.Stream, msg.Record.Namespace)
		st, ok := e.streams[key]
		if !ok {
			metrics.RecordsDropped.WithLabelValues(key.String()).Inc()
			e.logger.Warn("dropping record for stream not in catalog", "stream", key.String())
			return nil
		}
		return st.buffer.Add(ctx, msg.Record)

	case protocol.TypeState:
		if err := e.Checkpoint(ctx); err != nil {
			return err
		}
		if err := sink.WriteMessage(msg); err != nil {
			return fmt.Errorf("engine: emit state: %w", err)
		}
		// Input positions are only committed once the state is acknowledged.
		if c, ok := src.(operator.Committer); ok {
			if err := c.Commit(ctx); err != nil {
				return fmt.Errorf("engine: commit source position: %w", err)
			}
		}
		return nil

	default:
		e.logger.Debug("ignoring message", "type", msg.Type)
		return nil
	}
}

// Checkpoint flushes every stream and merges its staged files into the
// destination table, in registration order. An error leaves later streams
// untouched.
func (e *Engine) Checkpoint(ctx context.Context) error {
	start := time.Now()
	for _, key := range e.order {
		if err := e.checkpointStream(ctx, e.streams[key]); err != nil {
			return fmt.Errorf("engine: checkpoint %s: %w", key, err)
		}
	}
	metrics.Checkpoints.Inc()
	metrics.CheckpointLatency.Observe(time.Since(start).Seconds())
	e.logger.Info("checkpoint complete", "streams", len(e.order), "duration", time.Since(start))
	return nil
}

func (e *Engine) checkpointStream(ctx context.Context, st *streamState) error {
	wc := st.wc
	if !st.mode.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSyncMode, st.mode)
	}
	if err := st.buffer.Flush(ctx); err != nil {
		return err
	}

	stmts := []string{
		databend.CreateTable(e.database, wc.TmpTable()),
		databend.CreateTable(e.database, wc.DstTable()),
	}
	if len(st.buffer.UploadedFiles()) > 0 {
		stmts = append(stmts, databend.CopyInto(e.database, wc.TmpTable(), wc.Stage(), wc.StagePath(), st.buffer.UploadedFilesClause()))
	}
	stmts = append(stmts, databend.RemoveStage(wc.Stage(), wc.StagePath()))
	if err := e.execAll(ctx, stmts); err != nil {
		return err
	}

	st.buffer.Clear()

	// append_dedup loads like append; dedup is left to the reader.
	stmts = stmts[:0]
	if st.mode == protocol.SyncModeOverwrite {
		stmts = append(stmts, databend.TruncateTable(e.database, wc.DstTable()))
	}
	stmts = append(stmts,
		databend.InsertSelect(e.database, wc.TmpTable(), wc.DstTable()),
		databend.DropTable(e.database, wc.TmpTable()),
	)
	return e.execAll(ctx, stmts)
}

func (e *Engine) execAll(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := e.exec.Execute(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Streams returns the registered stream keys in registration order.
func (e *Engine) Streams() []stream.Key {
	return append([]stream.Key(nil), e.order...)
}

// WriteContext returns the write context registered for key.
func (e *Engine) WriteContext(key stream.Key) (stream.WriteContext, bool) {
	st, ok := e.streams[key]
	if !ok {
		return stream.WriteContext{}, false
	}
	return st.wc, true
}

// Close discards buffered rows and releases every buffer.
func (e *Engine) Close() error {
	var err error
	for _, key := range e.order {
		st := e.streams[key]
		st.buffer.Clear()
		err = multierr.Append(err, st.buffer.Close())
	}
	e.order = nil
	clear(e.streams)
	return err
}

// ErrUnknownSyncMode is returned for a destination sync mode the engine
// cannot write.
var ErrUnknownSyncMode = errors.New("unknown destination sync mode")
