package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hybridgroup/mjpeg"

	"github.com/teslashibe/go-webcam/pkg/pipeline"
)

// MJPEGServer streams the cache as multipart/x-mixed-replace on its own
// listener. The stream handler never returns while a client is connected,
// which fasthttp cannot serve, so it runs on net/http.
type MJPEGServer struct {
	stream *mjpeg.Stream
	cache  *pipeline.Cache
	srv    *http.Server
	logger *slog.Logger
}

// NewMJPEGServer creates a stream server for cache on addr.
func NewMJPEGServer(addr string, cache *pipeline.Cache, logger *slog.Logger) *MJPEGServer {
	if logger == nil {
		logger = slog.Default()
	}
	stream := mjpeg.NewStream()

	mux := http.NewServeMux()
	mux.Handle("/", stream)

	return &MJPEGServer{
		stream: stream,
		cache:  cache,
		logger: logger,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the stream handler.
func (m *MJPEGServer) Handler() http.Handler {
	return m.stream
}

// Run feeds cached frames into the stream and serves it until ctx is
// cancelled.
func (m *MJPEGServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		m.logger.Info("mjpeg stream listening", "addr", m.srv.Addr)
		if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	updates, cancel := m.cache.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			// Stream handlers block until the client goes away; don't wait for them.
			if err := m.srv.Shutdown(shutdownCtx); err != nil {
				m.srv.Close()
			}
			return nil

		case err, ok := <-errCh:
			if ok {
				return err
			}
			return nil

		case <-updates:
			if img, ok := m.cache.Read(); ok {
				m.stream.UpdateJPEG(img.Bytes())
			}
		}
	}
}
