package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/muurk/coastermelt/internal/image"
	"github.com/muurk/coastermelt/internal/target"
	"github.com/muurk/coastermelt/internal/target/sim"
	"go.uber.org/zap"
)

// startBridge serves device on an httptest server and returns its
// websocket URL.
func startBridge(t *testing.T, device target.Device) (*Server, string) {
	t.Helper()
	srv := New(Config{}, device, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http") + DefaultPath
}

func dial(t *testing.T, url string) *Client {
	t.Helper()
	c, err := Dial(context.Background(), url, zap.NewNop())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_PokeAndBlx(t *testing.T) {
	dev := sim.New(nil)
	_, url := startBridge(t, dev)
	c := dial(t, url)
	ctx := context.Background()

	// movs r0, #5 ; bx lr
	if err := c.Poke(ctx, 0x1000, 0x47702005); err != nil {
		t.Fatalf("Poke() error = %v", err)
	}
	if dev.Word(0x1000) != 0x47702005 {
		t.Fatalf("device word = 0x%08x", dev.Word(0x1000))
	}

	got, err := c.Blx(ctx, 0x1001, 99)
	if err != nil {
		t.Fatalf("Blx() error = %v", err)
	}
	if got != 5 {
		t.Errorf("Blx() = %d, want 5", got)
	}
	if diff := cmp.Diff([]sim.Call{{Address: 0x1001, Arg: 99}}, dev.Calls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_ReadBlock(t *testing.T) {
	dev := sim.New(nil)
	dev.Load(0x2000, 0x04030201, 0x08070605)
	_, url := startBridge(t, dev)
	c := dial(t, url)

	got, err := c.ReadBlock(context.Background(), 0x2002, 4)
	if err != nil {
		t.Fatalf("ReadBlock() error = %v", err)
	}
	if !bytes.Equal(got, []byte{3, 4, 5, 6}) {
		t.Errorf("ReadBlock() = % x", got)
	}

	if _, err := c.ReadBlock(context.Background(), 0x2000, maxReadSize+1); err == nil {
		t.Error("ReadBlock() accepted an oversized read")
	}
}

func TestClient_ImageWriteKeepsOrder(t *testing.T) {
	dev := sim.New(nil)
	_, url := startBridge(t, dev)
	c := dial(t, url)

	words := []uint32{0x46c046c0, 0x46c046c0, 0x46c046c0, 0x46c04770}
	if err := image.Write(context.Background(), c, 0x1fffda0, words); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	want := []sim.Call{
		{Address: 0x1fffda0, Arg: 0x46c046c0},
		{Address: 0x1fffda4, Arg: 0x46c046c0},
		{Address: 0x1fffda8, Arg: 0x46c046c0},
		{Address: 0x1fffdac, Arg: 0x46c04770},
	}
	if diff := cmp.Diff(want, dev.Pokes()); diff != "" {
		t.Errorf("pokes mismatch (-want +got):\n%s", diff)
	}

	got, err := c.Blx(context.Background(), 0x1fffda1, 1234)
	if err != nil {
		t.Fatalf("Blx() error = %v", err)
	}
	if got != 1234 {
		t.Errorf("nop sled returned %d, want 1234", got)
	}
}

func TestClient_RemoteError(t *testing.T) {
	dev := sim.New(nil)
	_, url := startBridge(t, dev)
	c := dial(t, url)

	_, err := c.Blx(context.Background(), 0x1000, 0)

	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %T: %v", err, err)
	}
	if remote.Op != OpBlx || remote.Address != 0x1000 {
		t.Errorf("unexpected RemoteError: %+v", remote)
	}
	if !strings.Contains(remote.Message, "not simulated") {
		t.Errorf("message = %q", remote.Message)
	}

	// A device error leaves the connection usable.
	if err := c.Poke(context.Background(), 0x1000, 1); err != nil {
		t.Errorf("Poke() after remote error: %v", err)
	}
}

func TestServer_RejectsBadRequests(t *testing.T) {
	_, url := startBridge(t, sim.New(nil))

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	tests := []struct {
		name    string
		request string
		wantID  uint64
		wantErr string
	}{
		{"unknown op", `{"id":7,"op":"jump","address":4096}`, 7, "unknown op"},
		{"missing op", `{"id":8}`, 8, "missing op"},
		{"negative size", `{"id":9,"op":"read","address":0,"size":-1}`, 9, "out of range"},
		{"not json", `poke 0x1000`, 0, "malformed request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.request)); err != nil {
				t.Fatalf("WriteMessage() error = %v", err)
			}
			_, payload, err := conn.ReadMessage()
			if err != nil {
				t.Fatalf("ReadMessage() error = %v", err)
			}
			var resp Response
			if err := json.Unmarshal(payload, &resp); err != nil {
				t.Fatalf("bad response %q: %v", payload, err)
			}
			if resp.ID != tt.wantID || !strings.Contains(resp.Error, tt.wantErr) {
				t.Errorf("response = %+v, want id %d and error containing %q", resp, tt.wantID, tt.wantErr)
			}
		})
	}
}

// blockingDevice holds every Blx until release is closed.
type blockingDevice struct {
	*sim.Device
	release chan struct{}
}

func (b *blockingDevice) Blx(ctx context.Context, address, arg uint32) (uint32, error) {
	<-b.release
	return 0, nil
}

func TestClient_ContextDeadline(t *testing.T) {
	dev := &blockingDevice{Device: sim.New(nil), release: make(chan struct{})}
	_, url := startBridge(t, dev)
	c := dial(t, url)
	t.Cleanup(func() { close(dev.release) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.Blx(ctx, 0x1001, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}

	// The abandoned response would desynchronise later requests.
	if err := c.Poke(context.Background(), 0x1000, 0); err == nil {
		t.Error("client still usable after an abandoned request")
	}
}

func TestClient_Closed(t *testing.T) {
	_, url := startBridge(t, sim.New(nil))
	c := dial(t, url)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Poke(context.Background(), 0x1000, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestServer_ShutdownClosesConnections(t *testing.T) {
	srv, url := startBridge(t, sim.New(nil))
	c := dial(t, url)

	if err := c.Poke(context.Background(), 0x1000, 0); err != nil {
		t.Fatalf("Poke() error = %v", err)
	}
	if n := srv.ActiveConnections(); n != 1 {
		t.Fatalf("ActiveConnections() = %d, want 1", n)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if n := srv.ActiveConnections(); n != 0 {
		t.Errorf("ActiveConnections() after shutdown = %d", n)
	}
	if err := c.Poke(context.Background(), 0x1000, 0); err == nil {
		t.Error("Poke() succeeded after server shutdown")
	}
}
