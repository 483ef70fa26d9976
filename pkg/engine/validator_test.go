package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sandboxws/stagesync/pkg/databend"
	"github.com/sandboxws/stagesync/pkg/protocol"
)

func TestValidateCatalog(t *testing.T) {
	tests := []struct {
		name    string
		catalog *protocol.ConfiguredCatalog
		wantErr string
	}{
		{name: "nil", catalog: nil, wantErr: "at least one stream"},
		{name: "empty", catalog: &protocol.ConfiguredCatalog{}, wantErr: "at least one stream"},
		{
			name: "valid",
			catalog: &protocol.ConfiguredCatalog{Streams: []protocol.ConfiguredStream{
				configured("orders", "public", protocol.SyncModeOverwrite),
				configured("customers", "sales", protocol.SyncModeAppend),
				configured("users", "", protocol.SyncModeAppendDedup),
			}},
		},
		{
			name: "same name in two namespaces",
			catalog: &protocol.ConfiguredCatalog{Streams: []protocol.ConfiguredStream{
				configured("orders", "public", protocol.SyncModeOverwrite),
				configured("orders", "sales", protocol.SyncModeOverwrite),
			}},
			wantErr: `same table "_raw_orders"`,
		},
		{
			name: "missing name",
			catalog: &protocol.ConfiguredCatalog{Streams: []protocol.ConfiguredStream{
				configured("", "public", protocol.SyncModeAppend),
			}},
			wantErr: "name is required",
		},
		{
			name: "duplicate after default namespace",
			catalog: &protocol.ConfiguredCatalog{Streams: []protocol.ConfiguredStream{
				configured("orders", "", protocol.SyncModeAppend),
				configured("orders", "default", protocol.SyncModeAppend),
			}},
			wantErr: "duplicate stream orders:default",
		},
		{
			name: "sanitized collision",
			catalog: &protocol.ConfiguredCatalog{Streams: []protocol.ConfiguredStream{
				configured("order-items", "", protocol.SyncModeAppend),
				configured("order_items", "", protocol.SyncModeAppend),
			}},
			wantErr: "same stage",
		},
		{
			name: "unknown mode",
			catalog: &protocol.ConfiguredCatalog{Streams: []protocol.ConfiguredStream{
				configured("orders", "", "upsert"),
			}},
			wantErr: "unknown destination sync mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCatalog(tt.catalog)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateCatalogUnknownModeSentinel(t *testing.T) {
	err := ValidateCatalog(&protocol.ConfiguredCatalog{Streams: []protocol.ConfiguredStream{
		configured("orders", "", "upsert"),
	}})
	if !errors.Is(err, ErrUnknownSyncMode) {
		t.Fatalf("expected ErrUnknownSyncMode, got %v", err)
	}
}

func TestCheckSucceeds(t *testing.T) {
	exec := &recordingExec{}
	status := Check(context.Background(), exec, testDB)
	if status.Status != protocol.StatusSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s (%s)", status.Status, status.Message)
	}
	assertStatements(t, exec.statements, []string{
		databend.CreateDatabase(testDB),
		databend.CreateTable(testDB, "_tmp_connection_check"),
		databend.DropTable(testDB, "_tmp_connection_check"),
		databend.CreateStage("_tmp_connection_check"),
		databend.DropStage("_tmp_connection_check"),
	})
}

func TestCheckReportsFailure(t *testing.T) {
	exec := &recordingExec{failOn: "CREATE STAGE"}
	status := Check(context.Background(), exec, testDB)
	if status.Status != protocol.StatusFailed {
		t.Fatalf("expected FAILED, got %s", status.Status)
	}
	if !strings.Contains(status.Message, "boom") {
		t.Fatalf("expected failure message, got %q", status.Message)
	}
	if n := exec.count("DROP STAGE"); n != 0 {
		t.Fatal("expected check to stop at the first failure")
	}
}
