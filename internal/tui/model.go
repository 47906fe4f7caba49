// Package tui is the terminal control panel: live grid, sensor toggle,
// calibration, single capture and bursts.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cjeanneret/ThermoGo/internal/logic/capture"
	"github.com/cjeanneret/ThermoGo/internal/logic/render"
	"github.com/cjeanneret/ThermoGo/internal/station"
)

// Step is how far one +/- key press moves the calibration range.
const Step = 0.5

const refresh = 100 * time.Millisecond

// Station is the part of station.Station the panel drives.
type Station interface {
	SensorOn()
	SensorOff()
	SetRange(min, max float64) error
	CaptureSingle() (capture.Image, error)
	StartBurst() error
	StopBurst()
	Surface() (render.Surface, bool)
	Snapshot() station.Snapshot
}

type model struct {
	st Station

	snap    station.Snapshot
	surface render.Surface
	hasSurf bool
	values  bool
	msg     string

	width  int
	height int
}

// New returns the bubbletea model for st.
func New(st Station) tea.Model {
	m := model{st: st, values: true, width: 80, height: 24}
	return m.refresh()
}

// Run starts the panel and blocks until the operator quits.
func Run(st Station) error {
	_, err := tea.NewProgram(New(st), tea.WithAltScreen()).Run()
	return err
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd { return tick() }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		return m.refresh(), tick()
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "o":
		if m.snap.SensorOn {
			m.st.SensorOff()
			m.msg = "sensor off"
		} else {
			m.st.SensorOn()
			m.msg = "sensor on"
		}
	case " ", "c":
		if img, err := m.st.CaptureSingle(); err != nil {
			m.msg = err.Error()
		} else {
			m.msg = "captured " + img.ID
		}
	case "b":
		if err := m.st.StartBurst(); err != nil {
			m.msg = err.Error()
		} else {
			m.msg = "burst started"
		}
	case "s":
		m.st.StopBurst()
		m.msg = "burst stopped"
	case "+", "=":
		m.shift(Step)
	case "-", "_":
		m.shift(-Step)
	case "v":
		m.values = !m.values
	}
	return m.refresh(), nil
}

func (m *model) shift(d float64) {
	r := m.snap.Range
	if err := m.st.SetRange(r.Min+d, r.Max+d); err != nil {
		m.msg = err.Error()
		return
	}
	m.msg = fmt.Sprintf("range %.1f°C - %.1f°C", r.Min+d, r.Max+d)
}

func (m model) refresh() model {
	m.snap = m.st.Snapshot()
	m.surface, m.hasSurf = m.st.Surface()
	return m
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(title.Render("ThermoGo"))
	b.WriteString("  ")
	if m.snap.Status == "online" {
		b.WriteString(online.Render("● " + m.snap.Status))
	} else {
		b.WriteString(offline.Render("● " + m.snap.Status))
	}
	b.WriteString("\n\n")

	if m.hasSurf {
		b.WriteString(panel.Render(Grid(m.surface, m.values)))
		b.WriteString("\n")
		b.WriteString(Legend(m.surface))
		if m.snap.Stats != nil {
			b.WriteString(dim.Render(fmt.Sprintf("   min %.1f  max %.1f  mean %.1f",
				m.snap.Stats.Min, m.snap.Stats.Max, m.snap.Stats.Mean)))
		}
	} else {
		b.WriteString(dim.Render("no thermal feed"))
	}
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("burst: %d pictures every %dms   state: %s",
		m.snap.Capture.MaxFrames, m.snap.Capture.IntervalMs, m.snap.State))
	if m.snap.Label != "" {
		b.WriteString("\n" + progressBar(m.snap.Progress.Percent(), 30) + " " + m.snap.Label)
	}
	b.WriteString(fmt.Sprintf("\ngallery: %d image(s)\n", m.snap.Gallery))
	if m.msg != "" {
		b.WriteString(dim.Render(m.msg) + "\n")
	}
	b.WriteString("\n")
	b.WriteString(hint.Render("o sensor · space capture · b burst · s stop · +/- range · v values · q quit"))
	return b.String()
}

func progressBar(percent float64, width int) string {
	n := int(percent / 100 * float64(width))
	if n > width {
		n = width
	}
	if n < 0 {
		n = 0
	}
	return "[" + strings.Repeat("█", n) + strings.Repeat("░", width-n) + "]"
}
