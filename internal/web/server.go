package web

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/cjeanneret/ThermoGo/internal/debug"
	"github.com/cjeanneret/ThermoGo/internal/gallery"
	"github.com/cjeanneret/ThermoGo/internal/logic/capture"
	"github.com/cjeanneret/ThermoGo/internal/logic/feed"
	"github.com/cjeanneret/ThermoGo/internal/logic/render"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
}

// NewServer creates a server for addr. It does not subscribe to station
// events; see Attach.
func NewServer(addr string, st Station, broadcaster *StatusBroadcaster, frames *FrameHub, formDefaults FormConfig, img render.ImageOptions) (*Server, error) {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, err
	}
	return &Server{
		addr:     addr,
		handlers: NewHandlers(st, broadcaster, frames, formDefaults, img, subFS),
	}, nil
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	h := s.handlers
	mux := http.NewServeMux()

	mux.HandleFunc("GET /config", h.HandleConfig)
	mux.HandleFunc("GET /state", h.HandleState)
	mux.HandleFunc("POST /sensor", h.HandleSensor)
	mux.HandleFunc("PUT /calibration", h.HandleCalibration)
	mux.HandleFunc("PUT /capture-config", h.HandleCaptureConfig)
	mux.HandleFunc("POST /capture", h.HandleCapture)
	mux.HandleFunc("POST /burst", h.HandleStartBurst)
	mux.HandleFunc("DELETE /burst", h.HandleStopBurst)
	mux.HandleFunc("GET /frame.png", h.HandleFramePNG)
	mux.HandleFunc("GET /gallery", h.HandleGallery)
	mux.HandleFunc("GET /gallery/{file}", h.HandleGalleryImage)
	mux.HandleFunc("GET /status/stream", h.HandleStatusStream)
	mux.Handle("GET /frames/ws", h.Frames)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(h.staticFS))))
	mux.HandleFunc("GET /{$}", h.ServeIndex) // exact match for root only

	return mux
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Mux()}
	errCh := make(chan error, 1)
	go func() {
		debug.Info("Web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Events is the listener side of station.Station.
type Events interface {
	OnSurface(func(render.Surface))
	OnProgress(func(capture.Progress))
	OnStatus(func(feed.Status))
	OnState(func(capture.State))
	OnCapture(func(gallery.Entry))
}

// Attach forwards station events to the status stream and the frame hub.
// Both publishers are non-blocking, which the station listeners require.
func Attach(ev Events, b *StatusBroadcaster, frames *FrameHub) {
	ev.OnSurface(frames.Publish)
	ev.OnProgress(func(p capture.Progress) {
		b.Publish(EventProgress, map[string]any{
			"taken":   p.Taken,
			"target":  p.Target,
			"percent": p.Percent(),
			"label":   p.Label(),
		})
	})
	ev.OnStatus(func(s feed.Status) {
		b.Publish(EventStatus, s.String())
	})
	ev.OnState(func(s capture.State) {
		b.Publish(EventState, s.String())
	})
	ev.OnCapture(func(e gallery.Entry) {
		b.Publish(EventCapture, newGalleryItem(e))
	})
}
