package transport

import "encoding/json"

// Frame is the JSON envelope exchanged with the game server. Inbound push
// events carry no ID; requests carry a fresh ID that the server echoes on
// the matching ack frame.
type Frame struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EventAck is the event name of request acknowledgements.
const EventAck = "ack"

type WebSocketState int

const (
	WSStateDisconnected WebSocketState = iota
	WSStateConnecting
	WSStateConnected
	WSStateReconnecting
	WSStateFailed
	WSStateClosed
)

func (s WebSocketState) String() string {
	switch s {
	case WSStateDisconnected:
		return "disconnected"
	case WSStateConnecting:
		return "connecting"
	case WSStateConnected:
		return "connected"
	case WSStateReconnecting:
		return "reconnecting"
	case WSStateFailed:
		return "failed"
	case WSStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// HeaderProvider supplies handshake and request headers.
type HeaderProvider func() map[string]string

type staticErr string

func (e staticErr) Error() string { return string(e) }

var (
	ErrNotConnected = staticErr("ws not connected")
	ErrClosed       = staticErr("transport closed")
	ErrUnavailable  = staticErr("egress not available")
)
