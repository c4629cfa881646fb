package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/coastermelt/internal/logging"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum request size allowed from peer
	maxMessageSize = 8192
)

// serveConn reads requests until the peer goes away. Each request is
// executed against the device and answered before the next one is read.
func (s *Server) serveConn(ctx context.Context, conn *websocket.Conn, remoteAddr string) error {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.keepAlive(ctx, conn, remoteAddr)

	messageNum := 0
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("Connection closed by client", zap.String("remote_addr", remoteAddr))
				return nil
			}
			return err
		}
		messageNum++
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if messageType != websocket.TextMessage {
			s.logger.Warn("Ignoring non-text message",
				zap.String("remote_addr", remoteAddr),
				zap.Int("message_num", messageNum),
			)
			continue
		}
		logging.LogBridgeMessage(s.logger, remoteAddr, "received", payload)

		resp := s.dispatch(ctx, payload)

		out, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		logging.LogBridgeMessage(s.logger, remoteAddr, "sent", out)

		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			return err
		}
	}
}

// dispatch decodes one request and runs it against the device.
func (s *Server) dispatch(ctx context.Context, payload []byte) *Response {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return &Response{Error: "malformed request: " + err.Error()}
	}
	resp := &Response{ID: req.ID}
	if err := req.Validate(); err != nil {
		resp.Error = err.Error()
		return resp
	}

	var err error
	switch req.Op {
	case OpPoke:
		err = s.device.Poke(ctx, req.Address, req.Word)
	case OpBlx:
		resp.Word, err = s.device.Blx(ctx, req.Address, req.Arg)
	case OpRead:
		resp.Data, err = s.device.ReadBlock(ctx, req.Address, req.Size)
	}
	if err != nil {
		s.logger.Warn("Device operation failed",
			zap.String("request", req.String()),
			zap.Error(err),
		)
		resp.Error = err.Error()
		resp.Word, resp.Data = 0, nil
	}
	return resp
}

// keepAlive pings the peer until ctx is done. WriteControl may run
// concurrently with the request loop's writes.
func (s *Server) keepAlive(ctx context.Context, conn *websocket.Conn, remoteAddr string) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				s.logger.Debug("Ping failed",
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
				return
			}
		}
	}
}
