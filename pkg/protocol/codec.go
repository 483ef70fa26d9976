package protocol

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Decode parses a single protocol line. The returned message keeps a copy
// of line in Raw.
func Decode(line []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	switch msg.Type {
	case TypeRecord:
		if msg.Record == nil {
			return Message{}, fmt.Errorf("decode message: RECORD without record body")
		}
	case TypeState:
		if msg.State == nil {
			return Message{}, fmt.Errorf("decode message: STATE without state body")
		}
	}
	msg.Raw = append([]byte(nil), line...)
	return msg, nil
}

// Encode renders msg as a single line without the trailing newline.
// Messages that arrived with Raw set are returned verbatim.
func Encode(msg Message) ([]byte, error) {
	if len(msg.Raw) > 0 {
		return bytes.TrimRight(msg.Raw, "\r\n"), nil
	}
	out, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return out, nil
}
