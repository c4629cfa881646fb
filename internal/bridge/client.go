package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/coastermelt/internal/logging"
	"github.com/muurk/coastermelt/internal/target"
	"go.uber.org/zap"
)

// ErrClosed is returned by operations on a closed Client.
var ErrClosed = errors.New("bridge client closed")

// Client is a target.Device reached through a bridge Server. Operations
// are serialised: each request waits for its response before the next is
// sent, so pokes reach the device in call order.
type Client struct {
	url    string
	conn   *websocket.Conn
	logger *zap.Logger

	mu     sync.Mutex
	nextID uint64
	broken error

	responses chan []byte
	readErr   error
	done      chan struct{}
	closeOnce sync.Once
}

var _ target.Device = (*Client)(nil)

// Dial connects to a bridge endpoint such as ws://pi.local:8765/target.
func Dial(ctx context.Context, url string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bridge at %s: %w", url, err)
	}
	logging.LogConnection(logger, url, "bridge_connected")

	c := &Client{
		url:       url,
		conn:      conn,
		logger:    logger,
		responses: make(chan []byte, 1),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// readLoop keeps reading so control frames (pings) are answered while the
// client is idle.
func (c *Client) readLoop() {
	defer close(c.responses)
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.readErr = err
			return
		}
		select {
		case c.responses <- payload:
		case <-c.done:
			return
		}
	}
}

// Close ends the connection. Pending operations fail.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = c.conn.Close()
		logging.LogConnection(c.logger, c.url, "bridge_closed")
	})
	return err
}

// Poke implements target.Target.
func (c *Client) Poke(ctx context.Context, address, word uint32) error {
	_, err := c.roundTrip(ctx, &Request{Op: OpPoke, Address: address, Word: word})
	return err
}

// Blx implements target.Target.
func (c *Client) Blx(ctx context.Context, address, arg uint32) (uint32, error) {
	resp, err := c.roundTrip(ctx, &Request{Op: OpBlx, Address: address, Arg: arg})
	if err != nil {
		return 0, err
	}
	return resp.Word, nil
}

// ReadBlock implements target.Reader.
func (c *Client) ReadBlock(ctx context.Context, address uint32, size int) ([]byte, error) {
	req := &Request{Op: OpRead, Address: address, Size: size}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != size {
		return nil, &ProtocolError{Details: fmt.Sprintf("read 0x%08x returned %d bytes, want %d", address, len(resp.Data), size)}
	}
	return resp.Data, nil
}

func (c *Client) roundTrip(ctx context.Context, req *Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken != nil {
		return nil, c.broken
	}
	select {
	case <-c.done:
		return nil, ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.nextID++
	req.ID = c.nextID

	out, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	logging.LogBridgeMessage(c.logger, c.url, "sent", out)

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return nil, c.fail(err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, out); err != nil {
		return nil, c.fail(fmt.Errorf("bridge write %s: %w", req, err))
	}

	var payload []byte
	select {
	case p, ok := <-c.responses:
		if !ok {
			if c.readErr != nil {
				return nil, c.fail(fmt.Errorf("bridge read %s: %w", req, c.readErr))
			}
			return nil, c.fail(ErrClosed)
		}
		payload = p
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		// The response is still in flight; later IDs would never line up.
		return nil, c.fail(ctx.Err())
	}
	logging.LogBridgeMessage(c.logger, c.url, "received", payload)

	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, c.fail(&ProtocolError{Details: "malformed response", Err: err})
	}
	if resp.ID != req.ID {
		return nil, c.fail(&ProtocolError{Details: fmt.Sprintf("response id %d for request %s", resp.ID, req)})
	}
	if resp.Error != "" {
		return nil, &RemoteError{Op: req.Op, Address: req.Address, Message: resp.Error}
	}
	return &resp, nil
}

// fail marks the client unusable. Called with mu held.
func (c *Client) fail(err error) error {
	c.broken = err
	c.logger.Warn("Bridge client failed", zap.String("url", c.url), zap.Error(err))
	return err
}
