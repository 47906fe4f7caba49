package station

import (
	"github.com/cjeanneret/ThermoGo/internal/logic/calibration"
	"github.com/cjeanneret/ThermoGo/internal/logic/capture"
	"github.com/cjeanneret/ThermoGo/internal/logic/render"
)

// CaptureSettings is the JSON form of capture.Config.
type CaptureSettings struct {
	IntervalMs int `json:"interval_ms"`
	MaxFrames  int `json:"max_frames"`
}

// Snapshot is a consistent view of the station for UIs.
type Snapshot struct {
	SensorOn bool              `json:"sensor_on"`
	Status   string            `json:"status"`
	Range    calibration.Range `json:"range"`
	Capture  CaptureSettings   `json:"capture"`
	State    string            `json:"state"`
	Progress capture.Progress  `json:"progress"` // running burst, or the last one
	Label    string            `json:"label,omitempty"`
	Stats    *render.Stats     `json:"stats,omitempty"`
	Gallery  int               `json:"gallery"`  // images held
	Captured int               `json:"captured"` // images ever captured

	FrameIntervalMs int `json:"frame_interval_ms"`
}

// Snapshot returns the current state in one lock.
func (st *Station) Snapshot() Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := Snapshot{
		SensorOn: st.feed.IsOn(),
		Status:   st.feed.Status().String(),
		Range:    st.cal.Range(),
		Capture: CaptureSettings{
			IntervalMs: int(st.captureCfg.Interval.Milliseconds()),
			MaxFrames:  st.captureCfg.MaxFrames,
		},
		State:    st.ctrl.State().String(),
		Progress: st.progress,
		Gallery:  st.gallery.Len(),
		Captured: st.gallery.Total(),

		FrameIntervalMs: int(st.feed.Interval().Milliseconds()),
	}
	if p, ok := st.ctrl.Progress(); ok {
		s.Progress = p
	}
	if s.Progress.Target > 0 {
		s.Label = s.Progress.Label()
	}
	if st.hasSurface && st.surface.Frame != nil {
		stats := render.FrameStats(st.surface.Frame)
		s.Stats = &stats
	}
	return s
}
