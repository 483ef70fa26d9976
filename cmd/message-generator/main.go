// Command message-generator produces synthetic protocol messages for load
// testing the destination, either as JSON lines on stdout or to a Kafka
// topic at a configurable record rate.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/sandboxws/stagesync/pkg/connectors"
	"github.com/sandboxws/stagesync/pkg/operator"
	"github.com/sandboxws/stagesync/pkg/protocol"
)

func main() {
	streams := flag.String("streams", "orders,users", "Comma-separated stream names")
	namespace := flag.String("namespace", "", "Stream namespace")
	rate := flag.Int64("rate", 10000, "Records per second")
	maxRecords := flag.Int64("max", 0, "Records to produce (0=infinite)")
	stateEvery := flag.Int64("state-every", 1000, "Records between state messages")
	brokers := flag.String("brokers", "", "Kafka bootstrap servers (empty writes to stdout)")
	topic := flag.String("topic", "stagesync-input", "Kafka topic to produce to")
	duration := flag.Duration("duration", 0, "Duration to run (0=infinite)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down generator...")
		cancel()
	}()

	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	write := writeStdout()
	if *brokers != "" {
		client, err := kgo.NewClient(
			kgo.SeedBrokers(strings.Split(*brokers, ",")...),
			kgo.DefaultProduceTopic(*topic),
			kgo.ProducerBatchMaxBytes(1024*1024),
			kgo.MaxBufferedRecords(100_000),
			kgo.ProducerLinger(10*time.Millisecond),
		)
		if err != nil {
			slog.Error("failed to create Kafka client", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := client.Flush(context.Background()); err != nil {
				slog.Warn("flush error", "error", err)
			}
			client.Close()
		}()
		write = writeKafka(ctx, client)
	}

	gen := connectors.NewGenerator(strings.Split(*streams, ","), *namespace, *rate, *maxRecords)
	gen.SetStateEvery(*stateEvery)
	opCtx := operator.NewContext(ctx, "generator")
	if err := gen.Open(opCtx); err != nil {
		slog.Error("failed to open generator", "error", err)
		os.Exit(1)
	}
	defer gen.Close()

	out := make(chan protocol.Message, 1024)
	done := make(chan error, 1)
	go func() {
		done <- gen.Run(opCtx, out)
	}()

	var totalSent atomic.Int64

	// Report throughput every second.
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		var lastCount int64
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				current := totalSent.Load()
				slog.Info("generator throughput", "messages/sec", current-lastCount, "total", current)
				lastCount = current
			}
		}
	}()

	for msg := range out {
		if err := write(msg); err != nil {
			slog.Error("write failed", "error", err)
			cancel()
			continue
		}
		totalSent.Add(1)
	}
	if err := <-done; err != nil {
		slog.Error("generator failed", "error", err)
		os.Exit(1)
	}
	slog.Info("generator stopped", "total_messages", totalSent.Load())
}

var orderingKey = []byte("stagesync")

func writeStdout() func(protocol.Message) error {
	console := connectors.NewConsole()
	return console.WriteMessage
}

func writeKafka(ctx context.Context, client *kgo.Client) func(protocol.Message) error {
	return func(msg protocol.Message) error {
		value, err := protocol.Encode(msg)
		if err != nil {
			return err
		}
		// One key keeps records and states on one partition, in order.
		client.Produce(ctx, &kgo.Record{Key: orderingKey, Value: value}, func(_ *kgo.Record, err error) {
			if err != nil {
				slog.Warn("produce failed", "error", err)
			}
		})
		return nil
	}
}
