package connectors

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/sandboxws/stagesync/pkg/operator"
	"github.com/sandboxws/stagesync/pkg/protocol"
)

// KafkaSource consumes protocol messages from a Kafka topic, one message per
// record value. With a consumer group, offsets are committed only through
// Commit, one acknowledged state at a time.
type KafkaSource struct {
	topic         string
	brokers       []string
	startOffset   string
	consumerGroup string
	client        *kgo.Client

	mu      sync.Mutex
	pending []*kgo.Record // state records emitted but not yet committed
}

// NewKafkaSource creates a Kafka source connector.
func NewKafkaSource(topic string, brokers []string, startOffset, consumerGroup string) *KafkaSource {
	return &KafkaSource{
		topic:         topic,
		brokers:       brokers,
		startOffset:   startOffset,
		consumerGroup: consumerGroup,
	}
}

func (k *KafkaSource) Open(_ *operator.Context) error {
	client, err := kgo.NewClient(k.options()...)
	if err != nil {
		return fmt.Errorf("kafka source: create client: %w", err)
	}
	k.client = client
	return nil
}

func (k *KafkaSource) options() []kgo.Opt {
	opts := []kgo.Opt{
		kgo.SeedBrokers(k.brokers...),
		kgo.ConsumeTopics(k.topic),
	}

	if k.consumerGroup != "" {
		opts = append(opts,
			kgo.ConsumerGroup(k.consumerGroup),
			kgo.DisableAutoCommit(),
		)
	}

	switch k.startOffset {
	case "latest-offset", "latest":
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()))
	default:
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()))
	}
	return opts
}

func (k *KafkaSource) Run(ctx *operator.Context, out chan<- protocol.Message) error {
	defer close(out)
	if k.client == nil {
		return fmt.Errorf("kafka source: not open")
	}

	for {
		fetches := k.client.PollFetches(ctx.Ctx)
		if fetches.IsClientClosed() || errors.Is(ctx.Ctx.Err(), context.Canceled) {
			return nil
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, e := range errs {
				if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
					return nil
				}
				ctx.Metrics.Errors.Add(1)
				ctx.Logger.Error("kafka fetch error", "topic", e.Topic, "partition", e.Partition, "error", e.Err)
			}
			continue
		}

		iter := fetches.RecordIter()
		for !iter.Done() {
			rec := iter.Next()
			msg, err := protocol.Decode(rec.Value)
			if err != nil {
				ctx.Metrics.Errors.Add(1)
				ctx.Logger.Warn("ignoring kafka record that is not a protocol message",
					"partition", rec.Partition, "offset", rec.Offset, "error", err)
				continue
			}
			if msg.Type == protocol.TypeState {
				k.track(rec)
			}
			select {
			case out <- msg:
				ctx.Metrics.MessagesProcessed.Add(1)
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (k *KafkaSource) track(rec *kgo.Record) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pending = append(k.pending, rec)
}

// nextCommit pops the oldest state record awaiting commit.
func (k *KafkaSource) nextCommit() *kgo.Record {
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.pending) == 0 {
		return nil
	}
	rec := k.pending[0]
	k.pending = k.pending[1:]
	return rec
}

// Commit commits the offset just past the oldest state record not yet
// committed. Records read after that state stay uncommitted until their own
// state is acknowledged.
func (k *KafkaSource) Commit(ctx context.Context) error {
	rec := k.nextCommit()
	if rec == nil || k.consumerGroup == "" || k.client == nil {
		return nil
	}
	if err := k.client.CommitRecords(ctx, rec); err != nil {
		return fmt.Errorf("kafka source: commit %s/%d@%d: %w", rec.Topic, rec.Partition, rec.Offset, err)
	}
	return nil
}

func (k *KafkaSource) Close() error {
	if k.client != nil {
		k.client.Close()
	}
	return nil
}
