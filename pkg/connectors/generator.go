// Package connectors implements the sources and sinks that move protocol
// messages in and out of the destination.
package connectors

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/sandboxws/stagesync/pkg/operator"
	"github.com/sandboxws/stagesync/pkg/protocol"
)

const defaultStateEvery = 1000

// Generator produces synthetic RECORD messages round-robin across streams at
// a configurable rate, with a STATE message after every stateEvery records
// and once more at the end.
type Generator struct {
	streams       []string
	namespace     string
	rowsPerSecond int64
	maxRecords    int64
	stateEvery    int64
}

// NewGenerator creates a Generator source.
func NewGenerator(streams []string, namespace string, rowsPerSecond, maxRecords int64) *Generator {
	return &Generator{
		streams:       streams,
		namespace:     namespace,
		rowsPerSecond: rowsPerSecond,
		maxRecords:    maxRecords,
		stateEvery:    defaultStateEvery,
	}
}

// SetStateEvery sets how many records are emitted between STATE messages.
func (g *Generator) SetStateEvery(n int64) {
	if n > 0 {
		g.stateEvery = n
	}
}

func (g *Generator) Open(_ *operator.Context) error {
	if len(g.streams) == 0 {
		return fmt.Errorf("generator: no streams configured")
	}
	return nil
}

func (g *Generator) Run(ctx *operator.Context, out chan<- protocol.Message) error {
	defer close(out)

	rps := g.rowsPerSecond
	if rps <= 0 {
		rps = 1000
	}

	batchSize := int64(1024)
	if batchSize > rps {
		batchSize = rps
	}

	interval := time.Duration(float64(time.Second) * float64(batchSize) / float64(rps))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seq int64
	emit := func(msg protocol.Message) bool {
		select {
		case out <- msg:
			ctx.Metrics.MessagesProcessed.Add(1)
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for i := int64(0); i < batchSize; i++ {
				if g.maxRecords > 0 && seq >= g.maxRecords {
					emit(g.state(seq))
					return nil
				}
				msg, err := g.record(seq)
				if err != nil {
					return err
				}
				if !emit(msg) {
					return nil
				}
				seq++
				if seq%g.stateEvery == 0 && !emit(g.state(seq)) {
					return nil
				}
			}
		}
	}
}

func (g *Generator) Close() error { return nil }

func (g *Generator) record(seq int64) (protocol.Message, error) {
	stream := g.streams[seq%int64(len(g.streams))]
	data, err := json.Marshal(map[string]any{
		"id":    seq,
		"name":  fmt.Sprintf("%s_%d", stream, seq),
		"value": float64(seq) * 1.1,
		"flag":  seq%2 == 0,
	})
	if err != nil {
		return protocol.Message{}, fmt.Errorf("generator: encode record %d: %w", seq, err)
	}
	return protocol.NewRecordMessage(stream, g.namespace, data, time.Now()), nil
}

func (g *Generator) state(seq int64) protocol.Message {
	data, _ := json.Marshal(map[string]int64{"seq": seq})
	return protocol.NewStateMessage(data)
}
