// Package cdp is a small Chrome DevTools Protocol client used to drive a
// single page target.
package cdp

import (
	"context"

	"github.com/coder/websocket"
)

// Conn is the WebSocket surface the client needs.
// Tests substitute scripted connections.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}
