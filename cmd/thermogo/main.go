package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cjeanneret/ThermoGo/internal/config"
	"github.com/cjeanneret/ThermoGo/internal/debug"
	"github.com/cjeanneret/ThermoGo/internal/gallery"
	"github.com/cjeanneret/ThermoGo/internal/hw/amg88xx"
	"github.com/cjeanneret/ThermoGo/internal/hw/gpio"
	"github.com/cjeanneret/ThermoGo/internal/hw/statusled"
	"github.com/cjeanneret/ThermoGo/internal/logic/calibration"
	"github.com/cjeanneret/ThermoGo/internal/logic/capture"
	"github.com/cjeanneret/ThermoGo/internal/logic/source"
	"github.com/cjeanneret/ThermoGo/internal/station"
)

var defaultConfigPath = filepath.Join("configs", "default.yaml")

// options holds the persistent flags.
type options struct {
	cfgPath    string
	debug      int
	minTemp    float64
	maxTemp    float64
	intervalMs int
	maxFrames  int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "thermogo",
		Short:        "8x8 thermal camera station",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.cfgPath, "config", defaultConfigPath, "path to config file")
	pf.IntVar(&opts.debug, "debug", -1, "debug level 0-4 (default: from config)")
	pf.Float64Var(&opts.minTemp, "min-temp", 0, "override calibration minimum (°C)")
	pf.Float64Var(&opts.maxTemp, "max-temp", 0, "override calibration maximum (°C)")
	pf.IntVar(&opts.intervalMs, "interval-ms", 0, "override burst interval in ms")
	pf.IntVar(&opts.maxFrames, "max-frames", 0, "override pictures per burst")

	root.AddCommand(
		newServeCmd(opts),
		newTUICmd(opts),
		newWatchCmd(opts),
		newTrendCmd(opts),
		newRenderCmd(opts),
		newBurstCmd(opts),
	)
	return root
}

// loadConfig reads the config file, applies CLI overrides and initializes
// the debug system. A missing default config file falls back to built-in
// defaults; an explicit --config must exist.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	if err := config.ValidateConfigPath(opts.cfgPath); err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.cfgPath)
	if err != nil {
		if cmd.Flags().Changed("config") || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = config.Default()
	}

	ov := overrides{IntervalMs: opts.intervalMs, MaxFrames: opts.maxFrames}
	if cmd.Flags().Changed("min-temp") {
		ov.MinTemp = &opts.minTemp
	}
	if cmd.Flags().Changed("max-temp") {
		ov.MaxTemp = &opts.maxTemp
	}
	if err := validateCLIOverrides(ov); err != nil {
		return nil, fmt.Errorf("invalid CLI override: %w", err)
	}
	applyOverrides(cfg, ov)
	if opts.debug >= 0 {
		cfg.Defaults.DebugLevel = opts.debug
	}

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", opts.cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.PrintStruct("Sensor config", cfg.Sensor)
	return cfg, nil
}

// overrides holds CLI values that replace config entries. Zero ints and nil
// pointers mean "use config".
type overrides struct {
	MinTemp    *float64
	MaxTemp    *float64
	IntervalMs int
	MaxFrames  int
}

func validateCLIOverrides(o overrides) error {
	for name, v := range map[string]*float64{"min-temp": o.MinTemp, "max-temp": o.MaxTemp} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return fmt.Errorf("%s must be finite, got %g", name, *v)
		}
	}
	if o.IntervalMs < 0 {
		return fmt.Errorf("interval-ms must be > 0, got %d", o.IntervalMs)
	}
	if o.MaxFrames < 0 {
		return fmt.Errorf("max-frames must be > 0, got %d", o.MaxFrames)
	}
	return nil
}

func applyOverrides(cfg *config.Config, o overrides) {
	if o.MinTemp != nil {
		cfg.Calibration.MinTemp = *o.MinTemp
	}
	if o.MaxTemp != nil {
		cfg.Calibration.MaxTemp = *o.MaxTemp
	}
	if o.IntervalMs > 0 {
		cfg.Capture.IntervalMs = o.IntervalMs
	}
	if o.MaxFrames > 0 {
		cfg.Capture.MaxFrames = o.MaxFrames
	}
}

// newSourceFromConfig selects the frame source. The returned closer releases
// hardware and is never nil.
func newSourceFromConfig(cfg *config.Config) (source.Source, io.Closer, error) {
	switch cfg.Sensor.Backend {
	case config.BackendSynthetic:
		seed := cfg.Sensor.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		debug.Value("Synthetic seed", seed)
		return source.NewSeededSynthetic(seed), nopCloser{}, nil
	case config.BackendAMG88xx:
		board, err := amg88xx.Open(cfg.Sensor.I2CBus, uint16(cfg.Sensor.I2CAddr))
		if err != nil {
			return nil, nil, err
		}
		return source.NewSensor(board), board, nil
	default:
		return nil, nil, fmt.Errorf("unsupported sensor backend: %s", cfg.Sensor.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// rig is a station with the hardware it owns.
type rig struct {
	st      *station.Station
	closers []io.Closer
}

func (r *rig) Close() {
	r.st.Close()
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			debug.Error(err)
		}
	}
}

// newRig builds the station from cfg: frame source, optional status LED and
// gallery.
func newRig(cfg *config.Config) (*rig, error) {
	r := &rig{}
	debug.Step(1, "Opening frame source")
	src, closer, err := newSourceFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init sensor: %w", err)
	}
	r.closers = append(r.closers, closer)

	var led station.Indicator
	if cfg.StatusLED.Pin > 0 {
		debug.Step(2, "Initializing status LED")
		drv, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
		if err != nil {
			closer.Close()
			return nil, fmt.Errorf("init GPIO: %w", err)
		}
		r.closers = append(r.closers, drv)
		l, err := statusled.New(drv, cfg.StatusLED.Pin)
		if err != nil {
			r.closeAll()
			return nil, err
		}
		led = l
	}

	debug.Step(3, "Starting station")
	r.st = station.New(station.Options{
		Source:        src,
		FrameInterval: cfg.FrameInterval(),
		Range:         calibration.Range{Min: cfg.Calibration.MinTemp, Max: cfg.Calibration.MaxTemp},
		Capture:       capture.Config{Interval: cfg.CaptureInterval(), MaxFrames: cfg.Capture.MaxFrames},
		Gallery:       gallery.New(cfg.Gallery.Limit),
		Indicator:     led,
	})
	return r, nil
}

func (r *rig) closeAll() {
	for _, c := range r.closers {
		c.Close()
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
