package camserve

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-webcam/pkg/camera"
	"github.com/teslashibe/go-webcam/pkg/encoder"
	"github.com/teslashibe/go-webcam/pkg/motion"
	"github.com/teslashibe/go-webcam/pkg/pipeline"
	"github.com/teslashibe/go-webcam/pkg/web"
)

// App owns the producer, the HTTP server and the optional MJPEG stream.
type App struct {
	config Config
	logger *slog.Logger

	loop     *pipeline.Loop     // push
	onDemand *pipeline.OnDemand // pull
	producer pipeline.Producer

	server *web.Server
	mjpeg  *web.MJPEGServer
}

// New creates an application with the given configuration.
func New(cfg Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		config: cfg,
		logger: logger,
	}, nil
}

// Init builds the pipeline and servers. No device is opened here; the
// producer opens it on first use.
func (a *App) Init() error {
	cam := a.config.Camera
	stage := pipeline.NewStage(pipeline.NewCache(), encoder.NewJPEGEncoder(cam.Quality), cam.Format(), cam.Overflow())
	opener := pipeline.DeviceOpener(cam.CaptureConfig(), cam.Format(), a.logger.With("component", "capture"))

	opts := []pipeline.Option{
		pipeline.WithLogger(a.logger.With("component", "pipeline")),
		pipeline.WithErrorHandler(a.publishError),
	}

	switch cam.Mode {
	case camera.ModePull:
		a.onDemand = pipeline.NewOnDemand(stage, opener, opts...)
		a.producer = a.onDemand
	default:
		opts = append(opts, pipeline.WithPeriod(cam.Period), pipeline.WithReopenAfter(cam.ReopenAfter))
		a.loop = pipeline.NewLoop(stage, opener, opts...)
		a.producer = a.loop
	}

	webOpts := []web.Option{
		web.WithLogger(a.logger.With("component", "web")),
		web.WithCameraInfo(map[string]interface{}{
			"preset":       a.config.Preset,
			"camera":       cam,
			"capabilities": camera.Capabilities(),
		}),
	}
	if a.config.Motion {
		webOpts = append(webOpts, web.WithMotionProbe(motion.NewGrayProbe()))
	}

	webCfg := web.DefaultConfig()
	webCfg.Addr = a.config.Addr
	webCfg.InlineFrames = a.config.InlineFrames
	a.server = web.NewServer(webCfg, a.producer, webOpts...)

	if a.config.MJPEGAddr != "" {
		a.mjpeg = web.NewMJPEGServer(a.config.MJPEGAddr, a.producer.Cache(), a.logger.With("component", "mjpeg"))
	}

	a.logger.Info("camserve initialised",
		"mode", cam.Mode,
		"device", cam.Device,
		"format", cam.Format().String(),
		"conversion", cam.Conversion,
	)
	return nil
}

func (a *App) publishError(err error) {
	if a.server != nil {
		a.server.PublishError(err)
	}
}

// Run starts the producer and servers and blocks until ctx is cancelled
// or a server fails.
func (a *App) Run(ctx context.Context) error {
	if a.producer == nil {
		return errors.New("camserve: Run called before Init")
	}

	g, ctx := errgroup.WithContext(ctx)
	if a.loop != nil {
		g.Go(func() error { return a.loop.Run(ctx) })
	}
	g.Go(func() error { return a.server.Run(ctx) })
	if a.mjpeg != nil {
		g.Go(func() error { return a.mjpeg.Run(ctx) })
	}
	return g.Wait()
}

// Shutdown releases the device held by a pull producer. The push loop
// releases its device when Run returns.
func (a *App) Shutdown() {
	if a.onDemand != nil {
		if err := a.onDemand.Close(); err != nil {
			a.logger.Warn("close producer", "error", err)
		}
	}
}

// Producer returns the active producer.
func (a *App) Producer() pipeline.Producer {
	return a.producer
}

// Server returns the HTTP server.
func (a *App) Server() *web.Server {
	return a.server
}
