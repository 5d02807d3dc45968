package hub

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/teslashibe/go-webcam/pkg/encoder"
	"github.com/teslashibe/go-webcam/pkg/framecache"
)

type written struct {
	kind int
	data []byte
}

// fakeConn records writes and serves queued inbound messages until closed.
type fakeConn struct {
	inbound   chan written
	writes    chan written
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan written, 8),
		writes:  make(chan written, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case m := <-f.inbound:
		return m.kind, m.data, nil
	case <-f.closed:
		return 0, nil, errors.New("closed")
	}
}

func (f *fakeConn) WriteMessage(kind int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("closed")
	default:
	}
	f.writes <- written{kind: kind, data: data}
	return nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) next(t *testing.T) written {
	t.Helper()
	select {
	case w := <-f.writes:
		return w
	case <-time.After(time.Second):
		t.Fatal("no message written")
		return written{}
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test", quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h, cancel
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHub_Broadcast(t *testing.T) {
	h, _ := startHub(t)

	a, b := newFakeConn(), newFakeConn()
	go NewClient(h, a).Run()
	go NewClient(h, b).Run()
	waitClients(t, h, 2)

	h.BroadcastBinary([]byte{0xFF, 0xD8})
	h.Broadcast(Text([]byte(`{"type":"status"}`)))

	for _, conn := range []*fakeConn{a, b} {
		w := conn.next(t)
		if w.kind != websocket.BinaryMessage || len(w.data) != 2 {
			t.Errorf("first write = %+v, want binary frame", w)
		}
		w = conn.next(t)
		if w.kind != websocket.TextMessage || string(w.data) != `{"type":"status"}` {
			t.Errorf("second write = %+v, want JSON text", w)
		}
	}
}

func TestHub_HandleMessages(t *testing.T) {
	h := New("test", quietLogger())
	h.HandleMessages(func(data []byte) (Message, bool) {
		if string(data) != "ping" {
			return Message{}, false
		}
		return Text([]byte("pong")), true
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)

	asker, bystander := newFakeConn(), newFakeConn()
	go NewClient(h, asker).Run()
	go NewClient(h, bystander).Run()
	waitClients(t, h, 2)

	asker.inbound <- written{kind: websocket.BinaryMessage, data: []byte("ping")}
	asker.inbound <- written{kind: websocket.TextMessage, data: []byte("hello")}
	asker.inbound <- written{kind: websocket.TextMessage, data: []byte("ping")}

	w := asker.next(t)
	if w.kind != websocket.TextMessage || string(w.data) != "pong" {
		t.Errorf("reply = %+v, want text pong", w)
	}

	select {
	case w := <-asker.writes:
		t.Errorf("unexpected extra reply %+v", w)
	case w := <-bystander.writes:
		t.Errorf("reply leaked to another client: %+v", w)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	h, _ := startHub(t)

	conn := newFakeConn()
	done := make(chan struct{})
	go func() {
		NewClient(h, conn).Run()
		close(done)
	}()
	waitClients(t, h, 1)

	conn.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("client Run did not return after close")
	}
	waitClients(t, h, 0)
}

func TestHub_StopClosesClients(t *testing.T) {
	h, cancel := startHub(t)

	conn := newFakeConn()
	go NewClient(h, conn).Run()
	waitClients(t, h, 1)

	cancel()

	w := conn.next(t)
	if w.kind != websocket.CloseMessage {
		t.Errorf("write after stop = %+v, want close frame", w)
	}
	select {
	case <-conn.closed:
	case <-time.After(time.Second):
		t.Fatal("connection not closed after hub stop")
	}

	if c := NewClient(h, newFakeConn()); c != nil {
		t.Error("NewClient on stopped hub should return nil")
	}
}

func TestHub_BroadcastDropsWhenQueueFull(t *testing.T) {
	// Hub not running: nothing drains the queue.
	h := New("idle", quietLogger())
	for i := 0; i < cap(h.broadcast)+5; i++ {
		h.BroadcastBinary([]byte{byte(i)})
	}
	if h.Dropped() != 5 {
		t.Errorf("Dropped() = %d, want 5", h.Dropped())
	}
}

func TestHub_StreamFrames(t *testing.T) {
	h, _ := startHub(t)
	cache := framecache.New[*encoder.Image]()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.StreamFrames(ctx, cache)

	conn := newFakeConn()
	go NewClient(h, conn).Run()
	waitClients(t, h, 1)

	// StreamFrames subscribes asynchronously; keep writing until a frame
	// reaches the client.
	want := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	deadline := time.After(time.Second)
	for {
		img := encoder.NewImage(want, 2, 2, time.Now())
		cache.Write(img, img.CapturedAt)

		select {
		case w := <-conn.writes:
			if w.kind != websocket.BinaryMessage || string(w.data) != string(want) {
				t.Errorf("streamed = %+v, want image bytes", w)
			}
			return
		case <-deadline:
			t.Fatal("no frame streamed")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
