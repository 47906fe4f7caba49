package web

import (
	"bytes"
	"encoding/json"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/cjeanneret/ThermoGo/internal/clock/clocktest"
	"github.com/cjeanneret/ThermoGo/internal/logic/calibration"
	"github.com/cjeanneret/ThermoGo/internal/logic/capture"
	"github.com/cjeanneret/ThermoGo/internal/logic/render"
	"github.com/cjeanneret/ThermoGo/internal/logic/source"
	"github.com/cjeanneret/ThermoGo/internal/station"
	"github.com/cjeanneret/ThermoGo/internal/thermal"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	clk *clocktest.Manual
	st  *station.Station
	h   *Handlers
	mux http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	var vals [thermal.Cells]float64
	for i := range vals {
		vals[i] = 26 + float64(i)*0.1
	}
	clk := clocktest.NewManual(epoch)
	st := station.New(station.Options{
		Source:        source.NewReplay(thermal.FromArray(vals, epoch)),
		Clock:         clk,
		FrameInterval: 500 * time.Millisecond,
		Range:         calibration.Range{Min: 26, Max: 32},
		Capture:       capture.Config{Interval: time.Second, MaxFrames: 3},
	})
	staticFS := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html>test</html>")},
	}
	h := NewHandlers(st, NewStatusBroadcaster(), NewFrameHub(),
		FormConfig{MinTemp: 26, MaxTemp: 32, IntervalMs: 1000, MaxFrames: 3, FrameIntervalMs: 500},
		render.ImageOptions{CellPx: 4},
		staticFS,
	)
	return &testEnv{clk: clk, st: st, h: h, mux: (&Server{handlers: h}).Mux()}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) station.Snapshot {
	t.Helper()
	var s station.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode snapshot: %v (body %q)", err, w.Body.String())
	}
	return s
}

// ---------- validation ----------

func TestValidateCaptureSettings(t *testing.T) {
	cases := []struct {
		name string
		c    CaptureSettings
		ok   bool
	}{
		{"valid", CaptureSettings{1000, 10}, true},
		{"min", CaptureSettings{1, 1}, true},
		{"zero_interval", CaptureSettings{0, 10}, false},
		{"negative_interval", CaptureSettings{-5, 10}, false},
		{"zero_frames", CaptureSettings{1000, 0}, false},
		{"negative_frames", CaptureSettings{1000, -1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCaptureSettings(tc.c)
			if tc.ok && err != nil {
				t.Errorf("expected valid, got: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestValidateRange(t *testing.T) {
	cases := []struct {
		name string
		r    calibration.Range
		ok   bool
	}{
		{"normal", calibration.Range{Min: 26, Max: 32}, true},
		{"degenerate", calibration.Range{Min: 30, Max: 30}, true},
		{"inverted", calibration.Range{Min: 32, Max: 26}, true},
		{"nan", calibration.Range{Min: math.NaN(), Max: 32}, false},
		{"inf", calibration.Range{Min: 26, Max: math.Inf(1)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRange(tc.r)
			if tc.ok != (err == nil) {
				t.Errorf("ValidateRange(%v) = %v", tc.r, err)
			}
		})
	}
}

// ---------- sensor ----------

func TestHandleSensor_OnOff(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodPost, "/sensor", `{"on":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	s := decodeSnapshot(t, w)
	if !s.SensorOn || s.Status != "online" || s.Stats == nil {
		t.Errorf("snapshot = %+v", s)
	}

	w = e.do(http.MethodPost, "/sensor", `{"on":false}`)
	if s := decodeSnapshot(t, w); s.SensorOn || s.Status != "off" {
		t.Errorf("snapshot after off = %+v", s)
	}
}

func TestHandleSensor_InvalidJSON(t *testing.T) {
	e := newTestEnv(t)
	if w := e.do(http.MethodPost, "/sensor", `{bad`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ---------- calibration ----------

func TestHandleCalibration(t *testing.T) {
	e := newTestEnv(t)
	e.do(http.MethodPost, "/sensor", `{"on":true}`)
	w := e.do(http.MethodPut, "/calibration", `{"min":20,"max":40}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if s := decodeSnapshot(t, w); s.Range != (calibration.Range{Min: 20, Max: 40}) {
		t.Errorf("range = %v", s.Range)
	}
	surf, _ := e.st.Surface()
	if surf.Range.Min != 20 {
		t.Error("surface should be re-rendered with the new range")
	}
}

func TestHandleCalibration_DegenerateAccepted(t *testing.T) {
	e := newTestEnv(t)
	if w := e.do(http.MethodPut, "/calibration", `{"min":30,"max":30}`); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestHandleCalibration_Invalid(t *testing.T) {
	e := newTestEnv(t)
	for _, body := range []string{`{"min":"x"}`, `not json`, `{"min":1e400,"max":2}`} {
		if w := e.do(http.MethodPut, "/calibration", body); w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, w.Code)
		}
	}
}

// ---------- capture ----------

func TestHandleCapture_SensorOffConflict(t *testing.T) {
	e := newTestEnv(t)
	if w := e.do(http.MethodPost, "/capture", ""); w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestHandleCapture_Created(t *testing.T) {
	e := newTestEnv(t)
	e.do(http.MethodPost, "/sensor", `{"on":true}`)
	w := e.do(http.MethodPost, "/capture", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var item GalleryItem
	if err := json.Unmarshal(w.Body.Bytes(), &item); err != nil {
		t.Fatal(err)
	}
	if item.Kind != capture.KindSingle || item.URL != "/gallery/"+item.ID+".png" {
		t.Errorf("item = %+v", item)
	}

	img := e.do(http.MethodGet, item.URL, "")
	if img.Code != http.StatusOK || img.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("image: status = %d type = %q", img.Code, img.Header().Get("Content-Type"))
	}
	if _, err := png.Decode(bytes.NewReader(img.Body.Bytes())); err != nil {
		t.Errorf("png.Decode: %v", err)
	}
}

func TestHandleBurst_Lifecycle(t *testing.T) {
	e := newTestEnv(t)
	e.do(http.MethodPost, "/sensor", `{"on":true}`)

	w := e.do(http.MethodPost, "/burst", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("start: status = %d: %s", w.Code, w.Body.String())
	}
	if s := decodeSnapshot(t, w); s.State != "burst" || s.Progress.Taken != 1 {
		t.Errorf("snapshot = %+v", s)
	}

	if w := e.do(http.MethodPost, "/burst", ""); w.Code != http.StatusConflict {
		t.Errorf("second start: status = %d, want 409", w.Code)
	}

	w = e.do(http.MethodDelete, "/burst", "")
	if s := decodeSnapshot(t, w); s.State != "idle" {
		t.Errorf("after stop state = %q", s.State)
	}
	e.clk.Advance(time.Minute)
	if n := e.st.Gallery().Len(); n != 1 {
		t.Errorf("gallery = %d, want 1", n)
	}
}

func TestHandleBurst_RejectedBodyKeepsConfig(t *testing.T) {
	cases := []struct {
		name     string
		sensorOn bool
		running  bool
		body     string
		code     int
	}{
		{"sensor_off", false, false, `{"interval_ms":200,"max_frames":7}`, http.StatusConflict},
		{"already_running", true, true, `{"interval_ms":200,"max_frames":7}`, http.StatusConflict},
		{"invalid_settings", true, false, `{"interval_ms":0,"max_frames":7}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv(t)
			if tc.sensorOn {
				e.do(http.MethodPost, "/sensor", `{"on":true}`)
			}
			if tc.running {
				if w := e.do(http.MethodPost, "/burst", ""); w.Code != http.StatusAccepted {
					t.Fatalf("first start: status = %d", w.Code)
				}
			}
			if w := e.do(http.MethodPost, "/burst", tc.body); w.Code != tc.code {
				t.Fatalf("status = %d, want %d: %s", w.Code, tc.code, w.Body.String())
			}
			want := capture.Config{Interval: time.Second, MaxFrames: 3}
			if c := e.st.CaptureConfig(); c != want {
				t.Errorf("capture config = %+v, want %+v", c, want)
			}
		})
	}
}

func TestHandleBurst_BodyOverrides(t *testing.T) {
	e := newTestEnv(t)
	e.do(http.MethodPost, "/sensor", `{"on":true}`)
	w := e.do(http.MethodPost, "/burst", `{"interval_ms":200,"max_frames":2}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	e.clk.Advance(200 * time.Millisecond)
	if n := e.st.Gallery().Len(); n != 2 {
		t.Errorf("gallery = %d, want 2", n)
	}
	if c := e.st.CaptureConfig(); c.MaxFrames != 2 || c.Interval != 200*time.Millisecond {
		t.Errorf("capture config = %+v", c)
	}
}

func TestHandleBurst_BadBody(t *testing.T) {
	e := newTestEnv(t)
	e.do(http.MethodPost, "/sensor", `{"on":true}`)
	if w := e.do(http.MethodPost, "/burst", `{"interval_ms":0,"max_frames":2}`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if w := e.do(http.MethodPost, "/burst", `{oops`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleCaptureConfig(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodPut, "/capture-config", `{"interval_ms":2500,"max_frames":7}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if s := decodeSnapshot(t, w); s.Capture.IntervalMs != 2500 || s.Capture.MaxFrames != 7 {
		t.Errorf("capture = %+v", s.Capture)
	}
	if w := e.do(http.MethodPut, "/capture-config", `{"interval_ms":100,"max_frames":0}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid: status = %d, want 400", w.Code)
	}
}

// ---------- images & gallery ----------

func TestHandleFramePNG(t *testing.T) {
	e := newTestEnv(t)
	if w := e.do(http.MethodGet, "/frame.png", ""); w.Code != http.StatusNotFound {
		t.Errorf("before any frame: status = %d, want 404", w.Code)
	}
	e.do(http.MethodPost, "/sensor", `{"on":true}`)
	w := e.do(http.MethodGet, "/frame.png", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 32 {
		t.Errorf("width = %d, want 8 cells x 4px", img.Bounds().Dx())
	}
}

func TestHandleGallery_Order(t *testing.T) {
	e := newTestEnv(t)
	e.do(http.MethodPost, "/sensor", `{"on":true}`)
	e.do(http.MethodPost, "/burst", "")
	e.clk.Advance(5 * time.Second)

	w := e.do(http.MethodGet, "/gallery", "")
	var items []GalleryItem
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	for i, it := range items {
		if it.Index != i+1 || it.Total != 3 || it.Seq != i+1 {
			t.Errorf("item %d = %+v", i, it)
		}
	}
}

func TestHandleGalleryImage_NotFound(t *testing.T) {
	e := newTestEnv(t)
	for _, p := range []string{"/gallery/nope.png", "/gallery/nope", "/gallery/.png"} {
		if w := e.do(http.MethodGet, p, ""); w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", p, w.Code)
		}
	}
}

// ---------- misc ----------

func TestHandleConfig(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodGet, "/config", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var cfg FormConfig
	if err := json.NewDecoder(w.Body).Decode(&cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.MinTemp != 26 || cfg.MaxTemp != 32 || cfg.MaxFrames != 3 {
		t.Errorf("config = %+v", cfg)
	}
}

func TestServeIndex(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodGet, "/", "")

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/html; charset=utf-8", ct)
	}
	if !strings.Contains(w.Body.String(), "<html>") {
		t.Error("body should contain HTML content")
	}
}

func TestEmbeddedIndex(t *testing.T) {
	data, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		t.Fatalf("embedded index: %v", err)
	}
	if !strings.Contains(string(data), "<html") {
		t.Error("embedded index should be HTML")
	}
}

func TestMux_MethodNotAllowed(t *testing.T) {
	e := newTestEnv(t)
	if w := e.do(http.MethodGet, "/capture", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /capture: status = %d, want 405", w.Code)
	}
}
