package protocol

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// SyncMode is the destination write mode for a stream.
type SyncMode string

const (
	SyncModeAppend      SyncMode = "append"
	SyncModeOverwrite   SyncMode = "overwrite"
	SyncModeAppendDedup SyncMode = "append_dedup"
)

// Valid reports whether m is a known destination sync mode.
func (m SyncMode) Valid() bool {
	switch m {
	case SyncModeAppend, SyncModeOverwrite, SyncModeAppendDedup:
		return true
	}
	return false
}

// Stream describes a source stream.
type Stream struct {
	Name       string          `json:"name"`
	Namespace  string          `json:"namespace,omitempty"`
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// ConfiguredStream is a stream selected for sync with its write mode.
type ConfiguredStream struct {
	Stream              Stream   `json:"stream"`
	SyncMode            string   `json:"sync_mode,omitempty"`
	DestinationSyncMode SyncMode `json:"destination_sync_mode"`
}

// ConfiguredCatalog lists every stream of a sync in registration order.
type ConfiguredCatalog struct {
	Streams []ConfiguredStream `json:"streams"`
}

// LoadCatalog reads a configured catalog from a JSON file.
func LoadCatalog(path string) (*ConfiguredCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file %s: %w", path, err)
	}
	return DecodeCatalog(data)
}

// DecodeCatalog parses a configured catalog from bytes.
func DecodeCatalog(data []byte) (*ConfiguredCatalog, error) {
	cat := &ConfiguredCatalog{}
	if err := json.Unmarshal(data, cat); err != nil {
		return nil, fmt.Errorf("unmarshal configured catalog: %w", err)
	}
	return cat, nil
}
