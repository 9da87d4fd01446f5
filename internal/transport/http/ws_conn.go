package http

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/heartline-app/relay-server/internal/relay"
)

const (
	outboundBuffer = 32
	flushTimeout   = 5 * time.Second
)

// wsConn adapts a WebSocket connection to relay.Conn. Outbound frames go
// through a buffered channel drained by the handler's write loop; Send never
// blocks and frames to a slow or closed connection are dropped. Close only
// records the reason and signals the write loop, which flushes queued frames
// before completing the close handshake, so a Close under the registry lock
// never blocks and a notice enqueued just before eviction is still delivered.
type wsConn struct {
	id     string
	ws     *websocket.Conn
	frames chan string

	closeOnce   sync.Once
	closed      chan struct{}
	closeReason string
}

func newWSConn(id string, ws *websocket.Conn) *wsConn {
	return &wsConn{
		id:     id,
		ws:     ws,
		frames: make(chan string, outboundBuffer),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) ID() string {
	return c.id
}

func (c *wsConn) Send(frame string) {
	select {
	case <-c.closed:
		return
	default:
	}
	select {
	case c.frames <- frame:
	default:
		// Slow consumer; drop.
	}
}

func (c *wsConn) Close(reason string) {
	c.closeOnce.Do(func() {
		c.closeReason = reason
		close(c.closed)
	})
}

func (c *wsConn) Open() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

// closeStatus maps the recorded close reason onto a WebSocket status code.
// Only eviction is a policy violation; everything else closes normally.
func (c *wsConn) closeStatus() websocket.StatusCode {
	if c.closeReason == relay.CloseReasonEvicted {
		return websocket.StatusPolicyViolation
	}
	return websocket.StatusNormalClosure
}

// writeFrames drains the outbound channel onto the socket until the
// connection or context ends. When Close has been signaled it flushes the
// remaining queued frames and performs the close handshake.
func (c *wsConn) writeFrames(ctx context.Context) error {
	for {
		select {
		case frame := <-c.frames:
			if err := c.ws.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
				return err
			}
		case <-c.closed:
			return c.shutdown(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *wsConn) shutdown(ctx context.Context) error {
	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	for {
		select {
		case frame := <-c.frames:
			if err := c.ws.Write(flushCtx, websocket.MessageText, []byte(frame)); err != nil {
				return err
			}
		default:
			return c.ws.Close(c.closeStatus(), c.closeReason)
		}
	}
}
