package connectors

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sandboxws/stagesync/pkg/operator"
	"github.com/sandboxws/stagesync/pkg/protocol"
)

// maxLineSize bounds a single protocol line. Records larger than this fail
// the sync rather than being split.
const maxLineSize = 64 * 1024 * 1024

// LineSource reads newline-delimited protocol messages, by default from stdin.
type LineSource struct {
	reader io.Reader
}

// NewLineSource creates a LineSource over r. A nil reader means os.Stdin.
func NewLineSource(r io.Reader) *LineSource {
	if r == nil {
		r = os.Stdin
	}
	return &LineSource{reader: r}
}

func (l *LineSource) Open(_ *operator.Context) error { return nil }

func (l *LineSource) Run(ctx *operator.Context, out chan<- protocol.Message) error {
	defer close(out)

	// Reads block until input arrives, so they run apart from the send loop
	// to let cancellation through on idle input.
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(l.reader)
		scanner.Buffer(make([]byte, 0, 1024*1024), maxLineSize)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-stop:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		var line []byte
		select {
		case <-ctx.Done():
			return nil
		case next, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("line source: read: %w", err)
				}
				return nil
			}
			line = next
		}
		if len(line) == 0 {
			continue
		}

		msg, err := protocol.Decode(line)
		if err != nil {
			ctx.Metrics.Errors.Add(1)
			ctx.Logger.Warn("ignoring input that is not a protocol message", "error", err)
			continue
		}

		select {
		case out <- msg:
			ctx.Metrics.MessagesProcessed.Add(1)
		case <-ctx.Done():
			return nil
		}
	}
}

func (l *LineSource) Close() error { return nil }

// Console writes protocol messages as JSON lines, by default to stdout.
type Console struct {
	mu     sync.Mutex
	writer io.Writer
	count  int64
}

// NewConsole creates a Console sink.
func NewConsole() *Console {
	return &Console{writer: os.Stdout}
}

// SetWriter overrides the output writer (default: os.Stdout).
func (c *Console) SetWriter(w io.Writer) { c.writer = w }

func (c *Console) Open(_ *operator.Context) error { return nil }

func (c *Console) WriteMessage(msg protocol.Message) error {
	line, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("console: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.writer.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("console: write: %w", err)
	}
	c.count++
	return nil
}

// Count returns the number of messages written.
func (c *Console) Count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func (c *Console) Close() error { return nil }
