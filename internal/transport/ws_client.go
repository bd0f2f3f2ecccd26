package transport

import (
	"context"
	"encoding/json"
)

type FrameCallback func(frame *Frame)

type StateCallback func(state WebSocketState)

// PushClient is the push channel the client reads server events from.
type PushClient interface {
	Connect(ctx context.Context) error
	OnFrame(cb FrameCallback) int
	RemoveFrameCallback(id int)
	OnStateChange(cb StateCallback) int
	RemoveStateCallback(id int)
	Request(ctx context.Context, event string, args ...any) (json.RawMessage, error)
	State() WebSocketState
	Close(ctx context.Context) error
}
