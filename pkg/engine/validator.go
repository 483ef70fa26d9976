package engine

import (
	"fmt"

	"github.com/sandboxws/stagesync/pkg/protocol"
	"github.com/sandboxws/stagesync/pkg/stream"
)

// ValidateCatalog checks the configured catalog for structural integrity.
func ValidateCatalog(catalog *protocol.ConfiguredCatalog) error {
	if catalog == nil || len(catalog.Streams) == 0 {
		return fmt.Errorf("catalog must contain at least one stream")
	}

	seen := make(map[stream.Key]int, len(catalog.Streams))
	for i, cs := range catalog.Streams {
		if cs.Stream.Name == "" {
			return fmt.Errorf("streams[%d]: name is required", i)
		}
		key := stream.NewKey(cs.Stream.Name, cs.Stream.Namespace)
		if prev, exists := seen[key]; exists {
			return fmt.Errorf("streams[%d]: duplicate stream %s (also streams[%d])", i, key, prev)
		}
		seen[key] = i

		if !cs.DestinationSyncMode.Valid() {
			return fmt.Errorf("streams[%d] (%s): %w: %q", i, key, ErrUnknownSyncMode, cs.DestinationSyncMode)
		}
	}

	// Distinct keys can still collide once sanitized into object names. Raw
	// tables are named by stream alone, so namespaces do not separate them.
	stages := make(map[string]stream.Key, len(catalog.Streams))
	tables := make(map[string]stream.Key, len(catalog.Streams))
	for _, cs := range catalog.Streams {
		key := stream.NewKey(cs.Stream.Name, cs.Stream.Namespace)
		wc := stream.WriteContext{StreamName: key.Name, StreamNamespace: key.Namespace}
		if other, exists := stages[wc.Stage()]; exists {
			return fmt.Errorf("streams %s and %s map to the same stage %q", other, key, wc.Stage())
		}
		stages[wc.Stage()] = key
		if other, exists := tables[wc.DstTable()]; exists {
			return fmt.Errorf("streams %s and %s map to the same table %q", other, key, wc.DstTable())
		}
		tables[wc.DstTable()] = key
	}
	return nil
}
