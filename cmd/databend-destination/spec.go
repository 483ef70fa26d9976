package main

import (
	"github.com/sandboxws/stagesync/pkg/protocol"
)

const documentationURL = "https://docs.databend.com/guides/"

// connectionSpecification is the JSON schema of the config file accepted by
// check and write.
const connectionSpecification = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Databend Destination Spec",
  "type": "object",
  "required": ["host", "username", "database"],
  "additionalProperties": true,
  "properties": {
    "host": {"title": "Host", "type": "string", "order": 0},
    "port": {"title": "Port", "type": "integer", "default": 3307, "minimum": 0, "maximum": 65536, "order": 1},
    "database": {"title": "DB Name", "type": "string", "default": "default", "order": 2},
    "username": {"title": "User", "type": "string", "default": "root", "order": 3},
    "password": {"title": "Password", "type": "string", "airbyte_secret": true, "order": 4},
    "tls": {"title": "TLS", "type": "boolean", "default": false, "order": 5},
    "buffer_size_bytes": {"title": "Buffer size in bytes", "type": "integer", "default": 134217728, "order": 6}
  }
}`

func specMessage() protocol.Message {
	return protocol.Message{
		Type: protocol.TypeSpec,
		Spec: &protocol.Spec{
			DocumentationURL:    documentationURL,
			SupportsIncremental: true,
			SupportedSyncModes: []protocol.SyncMode{
				protocol.SyncModeOverwrite,
				protocol.SyncModeAppend,
				protocol.SyncModeAppendDedup,
			},
			ConnectionSpecification: []byte(connectionSpecification),
		},
	}
}
