package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/butembo/butembochat/pkg/protocol"
	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

// FrameConn is a message-oriented transport carrying one frame per message
type FrameConn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// DialFunc opens a FrameConn to url. The context bounds the handshake.
type DialFunc func(ctx context.Context, url string) (FrameConn, error)

// WebSocketConn adapts a gorilla WebSocket connection to FrameConn.
// Frames travel as text messages.
type WebSocketConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	closed  bool
	closeMu sync.Mutex
}

// DialWebSocket connects to a WebSocket server at url
func DialWebSocket(ctx context.Context, url string) (FrameConn, error) {
	dialer := &websocket.Dialer{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.HandshakeTimeout = time.Until(deadline)
	}

	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		// Improve error message for common TLS/handshake issues
		if errors.Is(err, websocket.ErrBadHandshake) {
			if strings.HasPrefix(url, "wss://") {
				return nil, fmt.Errorf("TLS handshake failed - server may not support WSS (try ws:// instead): %w", err)
			}
			return nil, fmt.Errorf("handshake failed - server may require WSS/TLS (try wss:// instead): %w", err)
		}
		return nil, err
	}
	ws.SetReadLimit(protocol.MaxFrameSize)

	return &WebSocketConn{ws: ws}, nil
}

// ReadMessage returns the next text or binary message
func (c *WebSocketConn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

// WriteMessage sends data as a single text message
func (c *WebSocketConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.closeMu.Lock()
	closed := c.closed
	c.closeMu.Unlock()
	if closed {
		return ErrConnectionClosed
	}

	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame when possible and closes the socket
func (c *WebSocketConn) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	return c.ws.Close()
}

// isNormalClose reports whether err is an orderly close from the peer
func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
