package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/heartline-app/relay-server/internal/relay"
)

// WSHandler upgrades HTTP connections and bridges them to the relay engine.
type WSHandler struct {
	engine *relay.Engine
	log    *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(engine *relay.Engine, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{engine: engine, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer ws.Close(websocket.StatusInternalError, "internal error")

	conn := newWSConn(uuid.NewString(), ws)
	session := h.engine.Open(conn)
	defer h.engine.Close(session)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readFrames(ctx, ws, session)
	}()
	go func() {
		errCh <- conn.writeFrames(ctx)
	}()

	err = <-errCh
	conn.Close("closing")
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", conn.ID()).Msg("ws connection closed with error")
		}
	}

	ws.Close(status, reason)
}

// readFrames pumps inbound text frames into the engine. Frames for one
// connection are processed in arrival order; a store call in a handler blocks
// only this connection's loop.
func (h *WSHandler) readFrames(ctx context.Context, ws *websocket.Conn, session *relay.Session) error {
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		h.engine.Handle(ctx, session, string(data))
	}
}
