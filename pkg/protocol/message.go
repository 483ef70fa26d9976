// Package protocol defines the Airbyte-style messages exchanged with the
// upstream source and the downstream state consumer.
package protocol

import (
	"time"

	"github.com/goccy/go-json"
)

// Type identifies the kind of a Message.
type Type string

const (
	TypeRecord           Type = "RECORD"
	TypeState            Type = "STATE"
	TypeLog              Type = "LOG"
	TypeTrace            Type = "TRACE"
	TypeSpec             Type = "SPEC"
	TypeConnectionStatus Type = "CONNECTION_STATUS"
)

// Message is one line of the protocol stream.
type Message struct {
	Type             Type              `json:"type"`
	Record           *Record           `json:"record,omitempty"`
	State            *State            `json:"state,omitempty"`
	Log              *Log              `json:"log,omitempty"`
	Spec             *Spec             `json:"spec,omitempty"`
	ConnectionStatus *ConnectionStatus `json:"connectionStatus,omitempty"`

	// Raw holds the undecoded line so state messages can be echoed unchanged.
	Raw []byte `json:"-"`
}

// Record is a single data row for a stream.
type Record struct {
	Stream    string          `json:"stream"`
	Namespace string          `json:"namespace,omitempty"`
	Data      json.RawMessage `json:"data"`
	EmittedAt int64           `json:"emitted_at"` // milliseconds since epoch
}

// EmittedTime returns EmittedAt as a UTC time.
func (r *Record) EmittedTime() time.Time {
	return time.UnixMilli(r.EmittedAt).UTC()
}

// State is an opaque checkpoint token.
type State struct {
	Type   string          `json:"type,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Stream json.RawMessage `json:"stream,omitempty"`
	Global json.RawMessage `json:"global,omitempty"`
}

// Log is a log line carried on the protocol stream.
type Log struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Spec describes the connector's configuration surface.
type Spec struct {
	DocumentationURL        string          `json:"documentationUrl,omitempty"`
	SupportsIncremental     bool            `json:"supportsIncremental"`
	SupportedSyncModes      []SyncMode      `json:"supported_destination_sync_modes"`
	ConnectionSpecification json.RawMessage `json:"connectionSpecification"`
}

// Status is the outcome of a connection check.
type Status string

const (
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// ConnectionStatus reports the result of a connection check.
type ConnectionStatus struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewRecordMessage wraps a record in a Message.
func NewRecordMessage(stream, namespace string, data json.RawMessage, emittedAt time.Time) Message {
	return Message{
		Type: TypeRecord,
		Record: &Record{
			Stream:    stream,
			Namespace: namespace,
			Data:      data,
			EmittedAt: emittedAt.UnixMilli(),
		},
	}
}

// NewStateMessage wraps opaque state data in a Message.
func NewStateMessage(data json.RawMessage) Message {
	return Message{Type: TypeState, State: &State{Data: data}}
}
