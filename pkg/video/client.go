// Package video is a client for a running camserve instance: it follows the
// binary frame stream, the JSON event stream, and fetches single images.
package video

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-webcam/internal/httpc"
	"github.com/teslashibe/go-webcam/pkg/protocol"
)

var (
	// ErrNoFrame is returned by GetFrame before the first frame arrives.
	ErrNoFrame = errors.New("video: no frame available")

	// ErrAlreadyConnected is returned by a second Connect.
	ErrAlreadyConnected = errors.New("video: already connected")
)

// Client connects to camserve's /ws/camera stream.
type Client struct {
	baseURL string
	dialer  websocket.Dialer

	wsMu       sync.Mutex
	ws         *websocket.Conn
	connecting bool

	// Latest frame
	latestFrame []byte
	frameMutex  sync.RWMutex
	frameReady  chan struct{}
	frames      atomic.Int64

	done   chan struct{}
	closed atomic.Bool
	err    error
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://localhost:3030".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		dialer: websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		frameReady: make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// wsURL converts the base URL to a websocket URL for path.
func (c *Client) wsURL(path string) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("video: unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// Connect opens the frame stream and starts reading in the background.
// A client streams once; later calls return ErrAlreadyConnected.
func (c *Client) Connect(ctx context.Context) error {
	target, err := c.wsURL("/ws/camera")
	if err != nil {
		return err
	}

	c.wsMu.Lock()
	if c.ws != nil || c.connecting {
		c.wsMu.Unlock()
		return ErrAlreadyConnected
	}
	c.connecting = true
	c.wsMu.Unlock()

	ws, _, err := c.dialer.DialContext(ctx, target, nil)

	c.wsMu.Lock()
	c.connecting = false
	if err != nil {
		c.wsMu.Unlock()
		return fmt.Errorf("connect %s: %w", target, err)
	}
	c.ws = ws
	c.wsMu.Unlock()

	go c.readFrames(ws)
	return nil
}

func (c *Client) readFrames(ws *websocket.Conn) {
	defer close(c.done)
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.err = err
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}

		c.frameMutex.Lock()
		c.latestFrame = data
		c.frameMutex.Unlock()
		c.frames.Add(1)

		select {
		case c.frameReady <- struct{}{}:
		default:
		}
	}
}

// GetFrame returns the latest video frame as JPEG bytes
func (c *Client) GetFrame() ([]byte, error) {
	c.frameMutex.RLock()
	defer c.frameMutex.RUnlock()

	if c.latestFrame == nil {
		return nil, ErrNoFrame
	}

	frame := make([]byte, len(c.latestFrame))
	copy(frame, c.latestFrame)
	return frame, nil
}

// WaitForFrame blocks until a frame newer than the last call arrives.
func (c *Client) WaitForFrame(ctx context.Context) ([]byte, error) {
	select {
	case <-c.frameReady:
		return c.GetFrame()
	case <-c.done:
		if c.err != nil {
			return nil, fmt.Errorf("stream closed: %w", c.err)
		}
		return nil, errors.New("video: stream closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// FrameCount returns how many frames were received.
func (c *Client) FrameCount() int64 {
	return c.frames.Load()
}

// Done is closed when the stream ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the stream.
func (c *Client) Close() error {
	c.closed.Store(true)
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	if c.ws == nil {
		return nil
	}
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.ws.Close()
}

// Events connects to /ws/events and calls fn for each message until ctx
// is cancelled or the connection fails.
func (c *Client) Events(ctx context.Context, fn func(*protocol.Message)) error {
	target, err := c.wsURL("/ws/events")
	if err != nil {
		return err
	}
	ws, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", target, err)
	}
	defer ws.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ws.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			continue
		}
		fn(msg)
	}
}

// Ping sends a ping on /ws/events and returns the round-trip time once the
// matching pong arrives. Other events received meanwhile are skipped.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	target, err := c.wsURL("/ws/events")
	if err != nil {
		return 0, err
	}
	ws, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return 0, fmt.Errorf("connect %s: %w", target, err)
	}
	defer ws.Close()

	if deadline, ok := ctx.Deadline(); ok {
		ws.SetReadDeadline(deadline)
	}

	id := fmt.Sprintf("ping-%d", time.Now().UnixNano())
	ping, err := protocol.NewPingMessage(id)
	if err != nil {
		return 0, err
	}
	data, err := ping.Bytes()
	if err != nil {
		return 0, err
	}
	start := time.Now()
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return 0, err
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return 0, err
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil || msg.Type != protocol.TypePong {
			continue
		}
		pong, err := msg.GetPongData()
		if err != nil || pong.ID != id {
			continue
		}
		return time.Since(start), nil
	}
}

// FetchImage returns the JPEG served at path ("/image" or "/capture.jpg").
func (c *Client) FetchImage(ctx context.Context, path string) ([]byte, error) {
	body, contentType, err := httpc.GetBytes(ctx, c.baseURL+path)
	if err != nil {
		return nil, err
	}
	if contentType != "image/jpeg" {
		return nil, fmt.Errorf("video: %s returned %q, want image/jpeg", path, contentType)
	}
	return body, nil
}
