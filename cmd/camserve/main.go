// camserve - serve the latest webcam frame over HTTP
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-webcam/internal/log"
	"github.com/teslashibe/go-webcam/pkg/camera"
	"github.com/teslashibe/go-webcam/pkg/camserve"
	"github.com/teslashibe/go-webcam/pkg/capture"
)

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(2)
	}

	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	log.Init(level)

	app, err := camserve.New(cfg, log.Component("camserve"))
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	if err := app.Init(); err != nil {
		log.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer app.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
		app.Shutdown()
		os.Exit(1)
	}
	log.Info("camserve stopped")
}

// parseFlags builds the configuration: preset, then config file, then
// environment, then explicit flags.
func parseFlags() (camserve.Config, error) {
	cfg := camserve.DefaultConfig()

	configFile := flag.String("config", "", "YAML camera config file")
	preset := flag.String("preset", camera.PresetDefault, "Camera preset: default, qvga, 720p, ondemand, mock")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	device := flag.String("device", "", "Capture device (overrides CAMERA_DEVICE env var)")
	backend := flag.String("backend", "", "Capture backend: auto, v4l2, mock")
	port := flag.String("port", "", "HTTP port (overrides CAMSERVE_PORT env var)")
	mode := flag.String("mode", "", "Producer mode: push or pull")
	period := flag.Duration("period", 0, "Push loop capture period (e.g. 100ms)")
	quality := flag.Int("quality", 0, "JPEG quality 1-100")
	overflow := flag.String("overflow", "", "Out-of-range RGB handling: saturate or wrap")
	mjpegAddr := flag.String("mjpeg-addr", "", "Serve an MJPEG stream on this address (push mode)")
	noMotion := flag.Bool("no-motion", false, "Disable the /api/motion probe")
	inline := flag.Bool("inline-frames", false, "Embed JPEG data in /ws/events frame messages")
	listPresets := flag.Bool("list-presets", false, "Print camera presets and exit")
	flag.Parse()

	if *listPresets {
		for _, name := range camera.PresetNames() {
			p := camera.GetPreset(name)
			fmt.Printf("%-10s %s %s\n", name, p.Format(), p.Mode)
		}
		os.Exit(0)
	}

	p := camera.GetPreset(*preset)
	if p == nil {
		return cfg, fmt.Errorf("unknown preset %q", *preset)
	}
	cfg.Preset = *preset
	cfg.Camera = *p

	if *configFile != "" {
		cam, err := camera.LoadFile(*configFile, cfg.Camera)
		if err != nil {
			return cfg, err
		}
		cfg.Camera = cam
	}

	cfg.LoadEnvConfig()

	cfg.Debug = *debug
	if *device != "" {
		cfg.Camera.Device = *device
	}
	if *backend != "" {
		cfg.Camera.Backend = capture.Backend(*backend)
	}
	if *port != "" {
		cfg.Addr = ":" + *port
	}
	if *mode != "" {
		cfg.Camera.Mode = camera.Mode(*mode)
	}
	if *period > 0 {
		cfg.Camera.Period = *period
	}
	if *quality > 0 {
		cfg.Camera.Quality = *quality
	}
	if *overflow != "" {
		cfg.Camera.Conversion = *overflow
	}
	if *mjpegAddr != "" {
		cfg.MJPEGAddr = *mjpegAddr
	}
	if *noMotion {
		cfg.Motion = false
	}
	cfg.InlineFrames = *inline
	return cfg, nil
}
