package connectors

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/sandboxws/stagesync/pkg/operator"
	"github.com/sandboxws/stagesync/pkg/protocol"
)

// KafkaSink produces protocol messages to a Kafka topic. Each message is
// produced synchronously so an acknowledged state is durable before the
// next checkpoint starts.
type KafkaSink struct {
	topic   string
	brokers []string
	client  *kgo.Client
}

// NewKafkaSink creates a Kafka sink connector.
func NewKafkaSink(topic string, brokers []string) *KafkaSink {
	return &KafkaSink{
		topic:   topic,
		brokers: brokers,
	}
}

func (k *KafkaSink) Open(_ *operator.Context) error {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(k.brokers...),
		kgo.DefaultProduceTopic(k.topic),
	)
	if err != nil {
		return fmt.Errorf("kafka sink: create client: %w", err)
	}
	k.client = client
	return nil
}

func (k *KafkaSink) WriteMessage(msg protocol.Message) error {
	value, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("kafka sink: %w", err)
	}
	rec := &kgo.Record{Key: []byte(msg.Type), Value: value}
	if err := k.client.ProduceSync(context.Background(), rec).FirstErr(); err != nil {
		return fmt.Errorf("kafka sink: produce: %w", err)
	}
	return nil
}

func (k *KafkaSink) Close() error {
	if k.client != nil {
		k.client.Close()
	}
	return nil
}
