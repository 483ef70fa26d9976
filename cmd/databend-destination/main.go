// Command databend-destination loads protocol messages into Databend.
//
// Usage:
//
//	databend-destination spec
//	databend-destination check --config config.yaml
//	databend-destination write --config config.yaml --catalog catalog.json
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/sandboxws/stagesync/pkg/config"
	"github.com/sandboxws/stagesync/pkg/connectors"
	"github.com/sandboxws/stagesync/pkg/engine"
	"github.com/sandboxws/stagesync/pkg/metrics"
	"github.com/sandboxws/stagesync/pkg/operator"
	"github.com/sandboxws/stagesync/pkg/protocol"
	"github.com/sandboxws/stagesync/pkg/session"
	"github.com/sandboxws/stagesync/pkg/staging"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: databend-destination <spec|check|write> [flags]\n")
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "spec":
		err = emit(specMessage())
	case "check":
		err = runCheck(os.Args[2:])
	case "write":
		err = runWrite(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
	if err != nil {
		slog.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

// emit writes a single protocol message to stdout.
func emit(msg protocol.Message) error {
	return connectors.NewConsole().WriteMessage(msg)
}

// loadConfig reads the config file and installs the JSON log handler on
// stderr; stdout carries protocol messages only.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return cfg, nil
}

func runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to the destination config file")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return emit(protocol.Message{
			Type:             protocol.TypeConnectionStatus,
			ConnectionStatus: &protocol.ConnectionStatus{Status: protocol.StatusFailed, Message: err.Error()},
		})
	}

	sess := session.New(session.DriverName, cfg.DSN(), cfg.StatementTimeout())
	defer sess.Close()

	status := engine.Check(context.Background(), sess, cfg.Database)
	return emit(protocol.Message{Type: protocol.TypeConnectionStatus, ConnectionStatus: &status})
}

func runWrite(args []string) error {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to the destination config file")
	catalogPath := fs.String("catalog", "", "Path to the configured catalog")
	shutdownTimeout := fs.Duration("shutdown-timeout", 30*time.Second, "Time allowed for in-flight work after a shutdown signal")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *catalogPath == "" {
		return fmt.Errorf("--catalog is required")
	}
	catalog, err := protocol.LoadCatalog(*catalogPath)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		srv := metrics.ServeMetrics(cfg.MetricsAddr)
		defer srv.Close()
		slog.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	sess := session.New(session.DriverName, cfg.DSN(), cfg.StatementTimeout())
	defer sess.Close()

	uploader := staging.NewUploader(sess, &http.Client{}, cfg.UploadTimeout())
	eng := engine.NewEngine(sess, uploader, cfg.Database)
	eng.SetBufferSize(cfg.BufferSizeBytes)
	eng.SetTmpDir(cfg.TmpDir)
	defer eng.Close()

	ctx := context.Background()
	if err := eng.Setup(ctx, catalog); err != nil {
		return err
	}

	src, sink := transport(cfg)
	slog.Info("starting sync",
		"database", cfg.Database,
		"streams", len(catalog.Streams),
		"buffer_size_bytes", cfg.BufferSizeBytes,
	)
	return engine.RunWithGracefulShutdown(ctx, eng, src, sink, *shutdownTimeout)
}

// transport picks Kafka for input and state output when configured, and
// stdin/stdout otherwise.
func transport(cfg *config.Config) (operator.Source, operator.Sink) {
	var src operator.Source = connectors.NewLineSource(os.Stdin)
	if cfg.Kafka.InputTopic != "" {
		src = connectors.NewKafkaSource(cfg.Kafka.InputTopic, cfg.Kafka.Brokers, cfg.Kafka.StartOffset, cfg.Kafka.ConsumerGroup)
	}
	var sink operator.Sink = connectors.NewConsole()
	if cfg.Kafka.StateTopic != "" {
		sink = connectors.NewKafkaSink(cfg.Kafka.StateTopic, cfg.Kafka.Brokers)
	}
	return src, sink
}
