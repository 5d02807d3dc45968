// camsnap - capture one frame to a JPEG file
//
// Reads straight from the device, or with -url from a running camserve.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/teslashibe/go-webcam/internal/config"
	"github.com/teslashibe/go-webcam/internal/log"
	"github.com/teslashibe/go-webcam/pkg/camera"
	"github.com/teslashibe/go-webcam/pkg/capture"
	"github.com/teslashibe/go-webcam/pkg/encoder"
	"github.com/teslashibe/go-webcam/pkg/pipeline"
	"github.com/teslashibe/go-webcam/pkg/video"
)

func main() {
	out := flag.String("o", "snapshot.jpg", "Output file")
	device := flag.String("device", config.CameraDevice(config.DefaultDevice), "Capture device")
	backend := flag.String("backend", string(capture.BackendAuto), "Capture backend: auto, v4l2, mock")
	preset := flag.String("preset", camera.PresetDefault, "Camera preset")
	quality := flag.Int("quality", 0, "JPEG quality 1-100")
	overflow := flag.String("overflow", "", "Out-of-range RGB handling: saturate or wrap")
	skip := flag.Int("skip", 3, "Frames to discard while the sensor settles")
	serverURL := flag.String("url", "", "Fetch from a camserve instance instead, e.g. http://localhost:3030")
	pull := flag.Bool("trigger", false, "With -url, trigger a fresh capture (/capture.jpg) instead of /image")
	timeout := flag.Duration("timeout", 10*time.Second, "Overall timeout")
	flag.Parse()

	log.Init(config.LogLevel())

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var (
		data []byte
		err  error
	)
	if *serverURL != "" {
		path := "/image"
		if *pull {
			path = "/capture.jpg"
		}
		data, err = video.NewClient(*serverURL).FetchImage(ctx, path)
	} else {
		cfg := camera.GetPreset(*preset)
		if cfg == nil {
			fmt.Fprintf(os.Stderr, "❌ unknown preset %q\n", *preset)
			os.Exit(2)
		}
		cfg.Device = *device
		cfg.Backend = capture.Backend(*backend)
		if *quality > 0 {
			cfg.Quality = *quality
		}
		if *overflow != "" {
			cfg.Conversion = *overflow
		}
		if errs := cfg.Validate(); len(errs) > 0 {
			fmt.Fprintf(os.Stderr, "❌ invalid config: %v\n", errs)
			os.Exit(2)
		}
		data, err = snapshot(ctx, cfg, *skip)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ capture failed: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "❌ write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("💾 Saved %s (%d bytes)\n", *out, len(data))
}

// snapshot opens the device, discards skip frames and encodes the next one.
func snapshot(ctx context.Context, cfg *camera.Config, skip int) ([]byte, error) {
	src, err := capture.OpenConfigured(cfg.CaptureConfig(), cfg.Format(), log.Component("capture"))
	if err != nil {
		return nil, err
	}
	defer src.Close()

	for i := 0; i < skip; i++ {
		if _, err := src.CaptureOne(ctx); err != nil {
			return nil, err
		}
	}

	stage := pipeline.NewStage(pipeline.NewCache(), encoder.NewJPEGEncoder(cfg.Quality), cfg.Format(), cfg.Overflow())
	img, err := stage.Process(ctx, src)
	if err != nil {
		return nil, err
	}
	return img.Bytes(), nil
}
