// Package web serves the latest camera frame over HTTP and websockets.
package web

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-webcam/pkg/encoder"
	"github.com/teslashibe/go-webcam/pkg/hub"
	"github.com/teslashibe/go-webcam/pkg/pipeline"
	"github.com/teslashibe/go-webcam/pkg/protocol"
)

// Trigger is implemented by pull producers.
type Trigger interface {
	Trigger(ctx context.Context) (*encoder.Image, error)
}

// MotionProbe checks a JPEG frame for presence.
type MotionProbe interface {
	Detect(jpeg []byte) (bool, error)
}

// Config holds server settings.
type Config struct {
	// Addr is the fiber listen address, e.g. ":3030".
	Addr string

	// StatusInterval is how often /ws/events receives a status message.
	StatusInterval time.Duration

	// InlineFrames embeds JPEG data in /ws/events frame messages.
	InlineFrames bool
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           ":3030",
		StatusInterval: 2 * time.Second,
	}
}

// Server is the camera HTTP server.
type Server struct {
	app      *fiber.App
	cfg      Config
	logger   *slog.Logger
	started  time.Time
	producer pipeline.Producer
	trigger  Trigger // nil in push mode

	probe      MotionProbe
	cameraInfo interface{}

	// Hubs for websocket broadcast
	cameraHub *hub.Hub
	eventHub  *hub.Hub
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMotionProbe enables /api/motion.
func WithMotionProbe(p MotionProbe) Option {
	return func(s *Server) {
		s.probe = p
	}
}

// WithCameraInfo sets what /api/config reports.
func WithCameraInfo(v interface{}) Option {
	return func(s *Server) {
		s.cameraInfo = v
	}
}

// NewServer creates a server for producer. Producers that implement
// Trigger get the pull routes; all others get the push routes.
func NewServer(cfg Config, producer pipeline.Producer, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   slog.Default(),
		started:  time.Now(),
		producer: producer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if t, ok := producer.(Trigger); ok {
		s.trigger = t
	}
	if s.cfg.StatusInterval <= 0 {
		s.cfg.StatusInterval = DefaultConfig().StatusInterval
	}
	s.cameraHub = hub.New("camera", s.logger)
	s.eventHub = hub.New("events", s.logger)
	s.eventHub.HandleMessages(s.answerPing)

	app := fiber.New(fiber.Config{
		AppName:               "camserve",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	if s.trigger != nil {
		app.Get("/", s.handleIndex("/capture.jpg"))
		app.Get("/capture", s.handleCapturePage)
		app.Get("/capture.jpg", s.handleCaptureImage)
	} else {
		app.Get("/", s.handleIndex("/image"))
		app.Get("/video", s.handleImage)
	}
	app.Get("/image", s.handleImage)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/config", s.handleConfig)
	api.Get("/motion", s.handleMotion)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/camera", websocket.New(s.serveHub(s.cameraHub)))
	app.Get("/ws/events", websocket.New(s.serveHub(s.eventHub)))

	s.app = app
	return s
}

// App returns the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the hubs, the event publisher and the listener, and blocks
// until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.cameraHub.Run(ctx) })
	g.Go(func() error { return s.eventHub.Run(ctx) })
	g.Go(func() error { return s.cameraHub.StreamFrames(ctx, s.producer.Cache()) })
	g.Go(func() error { return s.publishEvents(ctx) })

	g.Go(func() error {
		<-ctx.Done()
		return s.app.ShutdownWithTimeout(5 * time.Second)
	})
	g.Go(func() error {
		s.logger.Info("http server listening", "addr", s.cfg.Addr, "mode", s.producer.Status().Mode)
		if err := s.app.Listen(s.cfg.Addr); err != nil {
			return err
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// PublishError sends a capture_error event to /ws/events clients.
func (s *Server) PublishError(err error) {
	msg, merr := protocol.NewCaptureErrorMessage(err)
	if merr != nil {
		return
	}
	s.publish(msg)
}

func (s *Server) publish(msg *protocol.Message) {
	if s.eventHub.ClientCount() == 0 {
		return
	}
	data, err := msg.Bytes()
	if err != nil {
		s.logger.Warn("encode event", "type", msg.Type, "error", err)
		return
	}
	s.eventHub.Broadcast(hub.Text(data))
}

// publishEvents sends a frame event per cached image and a periodic
// status event.
func (s *Server) publishEvents(ctx context.Context) error {
	cache := s.producer.Cache()
	updates, cancel := cache.Subscribe()
	defer cancel()

	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-updates:
			e, ok := cache.Entry()
			if !ok {
				continue
			}
			msg, err := protocol.NewFrameMessage(e.Value, e.Seq, s.cfg.InlineFrames)
			if err != nil {
				continue
			}
			s.publish(msg)

		case <-ticker.C:
			msg, err := protocol.NewStatusMessage(s.producer.Status(), s.cameraHub.ClientCount())
			if err != nil {
				continue
			}
			s.publish(msg)
		}
	}
}

func (s *Server) serveHub(h *hub.Hub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		client := hub.NewClient(h, c)
		if client == nil {
			c.Close()
			return
		}
		client.Run()
	}
}

// answerPing replies to a ping event with a pong. Anything else is ignored.
func (s *Server) answerPing(data []byte) (hub.Message, bool) {
	msg, err := protocol.ParseMessage(data)
	if err != nil || msg.Type != protocol.TypePing {
		return hub.Message{}, false
	}
	ping, err := msg.GetPingData()
	if err != nil {
		return hub.Message{}, false
	}
	pong, err := protocol.NewPongMessage(*ping)
	if err != nil {
		return hub.Message{}, false
	}
	out, err := pong.Bytes()
	if err != nil {
		return hub.Message{}, false
	}
	return hub.Text(out), true
}
