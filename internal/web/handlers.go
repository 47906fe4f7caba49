package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cjeanneret/ThermoGo/internal/debug"
	"github.com/cjeanneret/ThermoGo/internal/gallery"
	"github.com/cjeanneret/ThermoGo/internal/logic/calibration"
	"github.com/cjeanneret/ThermoGo/internal/logic/capture"
	"github.com/cjeanneret/ThermoGo/internal/logic/render"
	"github.com/cjeanneret/ThermoGo/internal/logic/source"
	"github.com/cjeanneret/ThermoGo/internal/station"
)

// Station is the part of station.Station the handlers drive.
type Station interface {
	SensorOn()
	SensorOff()
	SetRange(min, max float64) error
	CaptureConfig() capture.Config
	SetCaptureConfig(capture.Config) error
	CaptureSingle() (capture.Image, error)
	StartBurst() error
	StartBurstWith(capture.Config) error
	StopBurst()
	Surface() (render.Surface, bool)
	Snapshot() station.Snapshot
	Gallery() *gallery.Gallery
}

// FormConfig holds the defaults shown by the control panel (from config).
type FormConfig struct {
	MinTemp         float64 `json:"min_temp"`
	MaxTemp         float64 `json:"max_temp"`
	IntervalMs      int     `json:"interval_ms"`
	MaxFrames       int     `json:"max_frames"`
	FrameIntervalMs int     `json:"frame_interval_ms"`
}

// SensorRequest is the body of POST /sensor.
type SensorRequest struct {
	On bool `json:"on"`
}

// CaptureSettings is the body of PUT /capture-config and the optional body
// of POST /burst.
type CaptureSettings struct {
	IntervalMs int `json:"interval_ms"`
	MaxFrames  int `json:"max_frames"`
}

// ValidateCaptureSettings checks the slider values.
func ValidateCaptureSettings(c CaptureSettings) error {
	if c.IntervalMs <= 0 {
		return fmt.Errorf("interval_ms must be > 0, got %d", c.IntervalMs)
	}
	if c.MaxFrames <= 0 {
		return fmt.Errorf("max_frames must be > 0, got %d", c.MaxFrames)
	}
	return nil
}

// ValidateRange checks a calibration body. Only non-finite values are
// refused; min == max is allowed.
func ValidateRange(r calibration.Range) error {
	for name, v := range map[string]float64{"min": r.Min, "max": r.Max} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a finite number", name)
		}
	}
	return nil
}

// GalleryItem is one entry of GET /gallery.
type GalleryItem struct {
	ID    string       `json:"id"`
	Seq   int          `json:"seq"`
	Time  time.Time    `json:"t"`
	Kind  capture.Kind `json:"kind"`
	Index int          `json:"index"`
	Total int          `json:"total"`
	URL   string       `json:"url"`
}

func newGalleryItem(e gallery.Entry) GalleryItem {
	return GalleryItem{
		ID:    e.ID,
		Seq:   e.Seq,
		Time:  e.Time,
		Kind:  e.Kind,
		Index: e.Index,
		Total: e.Total,
		URL:   "/gallery/" + e.ID + ".png",
	}
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Station      Station
	Broadcaster  *StatusBroadcaster
	Frames       *FrameHub
	FormDefaults FormConfig
	Image        render.ImageOptions
	staticFS     fs.FS
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(st Station, broadcaster *StatusBroadcaster, frames *FrameHub, formDefaults FormConfig, img render.ImageOptions, staticFS fs.FS) *Handlers {
	return &Handlers{
		Station:      st,
		Broadcaster:  broadcaster,
		Frames:       frames,
		FormDefaults: formDefaults,
		Image:        img,
		staticFS:     staticFS,
	}
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleConfig returns the form default values (from config) as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.FormDefaults)
}

// HandleState returns a station snapshot.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Station.Snapshot())
}

// HandleSensor handles POST /sensor {"on":bool}.
func (h *Handlers) HandleSensor(w http.ResponseWriter, r *http.Request) {
	var req SensorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.On {
		h.Station.SensorOn()
		h.Broadcaster.BroadcastMsg("Sensor on")
	} else {
		h.Station.SensorOff()
		h.Broadcaster.BroadcastMsg("Sensor off")
	}
	writeJSON(w, http.StatusOK, h.Station.Snapshot())
}

// HandleCalibration handles PUT /calibration {"min","max"}.
func (h *Handlers) HandleCalibration(w http.ResponseWriter, r *http.Request) {
	var req calibration.Range
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := ValidateRange(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.Station.SetRange(req.Min, req.Max); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Station.Snapshot())
}

// HandleCaptureConfig handles PUT /capture-config.
func (h *Handlers) HandleCaptureConfig(w http.ResponseWriter, r *http.Request) {
	var req CaptureSettings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := h.applyCaptureSettings(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.Station.Snapshot())
}

func (h *Handlers) applyCaptureSettings(c CaptureSettings) error {
	if err := ValidateCaptureSettings(c); err != nil {
		return err
	}
	return h.Station.SetCaptureConfig(c.config())
}

func (c CaptureSettings) config() capture.Config {
	return capture.Config{
		Interval:  time.Duration(c.IntervalMs) * time.Millisecond,
		MaxFrames: c.MaxFrames,
	}
}

// HandleCapture handles POST /capture (single picture).
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	img, err := h.Station.CaptureSingle()
	if err != nil {
		writeError(w, err)
		return
	}
	e, ok := h.Station.Gallery().Get(img.ID)
	if !ok {
		// Already evicted by a tiny gallery limit.
		e = gallery.Entry{Image: img}
	}
	writeJSON(w, http.StatusCreated, newGalleryItem(e))
}

// HandleStartBurst handles POST /burst. An optional JSON body replaces the
// capture settings, but only when the burst actually starts.
func (h *Handlers) HandleStartBurst(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	start := h.Station.StartBurst
	if len(bytes.TrimSpace(body)) > 0 {
		var req CaptureSettings
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		if err := ValidateCaptureSettings(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cfg := req.config()
		start = func() error { return h.Station.StartBurstWith(cfg) }
	}
	if err := start(); err != nil {
		writeError(w, err)
		return
	}
	h.Broadcaster.BroadcastMsg("Burst started")
	writeJSON(w, http.StatusAccepted, h.Station.Snapshot())
}

// HandleStopBurst handles DELETE /burst.
func (h *Handlers) HandleStopBurst(w http.ResponseWriter, r *http.Request) {
	h.Station.StopBurst()
	writeJSON(w, http.StatusOK, h.Station.Snapshot())
}

// HandleFramePNG serves the current display as PNG.
func (h *Handlers) HandleFramePNG(w http.ResponseWriter, r *http.Request) {
	s, ok := h.Station.Surface()
	if !ok {
		http.Error(w, "no frame yet", http.StatusNotFound)
		return
	}
	h.writePNG(w, s)
}

// HandleGallery lists captured images, oldest first.
func (h *Handlers) HandleGallery(w http.ResponseWriter, r *http.Request) {
	entries := h.Station.Gallery().List()
	items := make([]GalleryItem, len(entries))
	for i, e := range entries {
		items[i] = newGalleryItem(e)
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleGalleryImage serves GET /gallery/{file} where file is "<id>.png".
func (h *Handlers) HandleGalleryImage(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	id, ok := strings.CutSuffix(file, ".png")
	if !ok || id == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	e, ok := h.Station.Gallery().Get(id)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	h.writePNG(w, e.Surface)
}

func (h *Handlers) writePNG(w http.ResponseWriter, s render.Surface) {
	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, s, h.Image); err != nil {
		debug.Error(err)
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, capture.ErrInvalidOperation):
		code = http.StatusConflict
	case errors.Is(err, calibration.ErrNonFinite):
		code = http.StatusBadRequest
	case errors.Is(err, source.ErrSensorUnavailable):
		code = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.Error(fmt.Errorf("encode response: %w", err))
	}
}
