package inspect

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Format is the wire encoding of feed events.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat maps a name to a Format. The empty string is JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatMsgpack:
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// encode returns the websocket message type and payload for ev.
func (f Format) encode(ev Event) (int, []byte, error) {
	switch f {
	case FormatMsgpack:
		b, err := msgpack.Marshal(ev)
		return websocket.BinaryMessage, b, err
	default:
		b, err := json.Marshal(ev)
		return websocket.TextMessage, b, err
	}
}

// DecodeEvent decodes a feed frame produced in format f.
func DecodeEvent(f Format, data []byte) (Event, error) {
	var ev Event
	var err error
	switch f {
	case FormatMsgpack:
		err = msgpack.Unmarshal(data, &ev)
	default:
		err = json.Unmarshal(data, &ev)
	}
	if err != nil {
		return Event{}, fmt.Errorf("inspect: decode event: %w", err)
	}
	return ev, nil
}
