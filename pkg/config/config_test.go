package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("host: databend.local\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != DefaultPort || cfg.Database != DefaultDatabase || cfg.Username != DefaultUsername {
		t.Errorf("unexpected connection defaults: %+v", cfg)
	}
	if cfg.BufferSizeBytes != 128*1024*1024 {
		t.Errorf("expected 128 MiB buffer, got %d", cfg.BufferSizeBytes)
	}
	if cfg.StatementTimeout() != 5*time.Minute || cfg.UploadTimeout() != 10*time.Minute {
		t.Errorf("unexpected timeouts: %v %v", cfg.StatementTimeout(), cfg.UploadTimeout())
	}
	if lvl, _ := cfg.Level(); lvl != slog.LevelInfo {
		t.Errorf("expected info level, got %v", lvl)
	}
}

func TestParseAcceptsJSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"host": "db", "port": 8000, "database": "sync", "username": "u", "password": "p", "tls": true}`))
	if err != nil {
		t.Fatal(err)
	}
	dsn := cfg.DSN()
	for _, want := range []string{"u:p@tcp(db:8000)/sync", "tls=true"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("expected DSN %q to contain %q", dsn, want)
		}
	}
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing host", "port: 1\n", "host is required"},
		{"bad port", "host: h\nport: 70000\n", "port must be"},
		{"bad level", "host: h\nlog_level: loud\n", "log_level"},
		{"kafka without brokers", "host: h\nkafka:\n  input_topic: in\n", "requires kafka.brokers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in error, got %v", tt.want, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "host: h\nkafka:\n  brokers: [\"k1:9092\", \"k2:9092\"]\n  input_topic: in\n  state_topic: out\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.StateTopic != "out" {
		t.Errorf("unexpected kafka config: %+v", cfg.Kafka)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
