package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/cjeanneret/ThermoGo/internal/config"
	"github.com/cjeanneret/ThermoGo/internal/debug"
	"github.com/cjeanneret/ThermoGo/internal/logic/calibration"
	"github.com/cjeanneret/ThermoGo/internal/logic/capture"
	"github.com/cjeanneret/ThermoGo/internal/logic/render"
	"github.com/cjeanneret/ThermoGo/internal/logic/source"
	"github.com/cjeanneret/ThermoGo/internal/station"
	"github.com/cjeanneret/ThermoGo/internal/tui"
	"github.com/cjeanneret/ThermoGo/internal/web"
)

func newServeCmd(opts *options) *cobra.Command {
	var port int
	var sensorOn bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web control panel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if port == 0 {
				port = cfg.Defaults.WebPort
			}
			if port < 0 || port > 65535 {
				return fmt.Errorf("port must be 1-65535, got %d", port)
			}

			broadcaster := web.NewStatusBroadcaster()
			debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

			r, err := newRig(cfg)
			if err != nil {
				return err
			}
			defer r.Close()

			frames := web.NewFrameHub()
			web.Attach(r.st, broadcaster, frames)
			if sensorOn {
				r.st.SensorOn()
			}

			srv, err := web.NewServer(fmt.Sprintf(":%d", port), r.st, broadcaster, frames,
				formDefaults(cfg), imageOptions(cfg))
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return srv.Run(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default: defaults.web_port)")
	cmd.Flags().BoolVar(&sensorOn, "sensor-on", false, "start the sensor immediately")
	return cmd
}

func formDefaults(cfg *config.Config) web.FormConfig {
	return web.FormConfig{
		MinTemp:         cfg.Calibration.MinTemp,
		MaxTemp:         cfg.Calibration.MaxTemp,
		IntervalMs:      cfg.Capture.IntervalMs,
		MaxFrames:       cfg.Capture.MaxFrames,
		FrameIntervalMs: cfg.Sensor.FrameIntervalMs,
	}
}

func imageOptions(cfg *config.Config) render.ImageOptions {
	return render.ImageOptions{CellPx: cfg.Render.CellPx, Overlay: cfg.Render.Overlay}
}

func newTUICmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Interactive terminal control panel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			r, err := newRig(cfg)
			if err != nil {
				return err
			}
			defer r.Close()
			// Log lines would tear the alternate screen.
			debug.SetOutput(io.Discard)
			defer debug.SetOutput(os.Stdout)
			return tui.Run(r.st)
		},
	}
}

func newWatchCmd(opts *options) *cobra.Command {
	var count int
	var values bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print live frames as a coloured grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			r, err := newRig(cfg)
			if err != nil {
				return err
			}
			defer r.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			out := cmd.OutOrStdout()
			return collect(ctx, r.st, count, func(s render.Surface) {
				st := render.FrameStats(s.Frame)
				fmt.Fprintf(out, "%s\n%s  min %.1f max %.1f mean %.1f\n\n",
					tui.Grid(s, values), tui.Legend(s), st.Min, st.Max, st.Mean)
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "stop after n frames (0 = until interrupted)")
	cmd.Flags().BoolVar(&values, "values", true, "print the reading in each cell")
	return cmd
}

func newTrendCmd(opts *options) *cobra.Command {
	var samples int
	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Plot mean and max temperature over a number of frames",
		RunE: func(cmd *cobra.Command, args []string) error {
			if samples < 2 {
				return fmt.Errorf("samples must be >= 2, got %d", samples)
			}
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			r, err := newRig(cfg)
			if err != nil {
				return err
			}
			defer r.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			var means, maxs []float64
			err = collect(ctx, r.st, samples, func(s render.Surface) {
				st := render.FrameStats(s.Frame)
				means = append(means, st.Mean)
				maxs = append(maxs, st.Max)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			if len(means) < 2 {
				return errors.New("not enough frames to plot")
			}
			fmt.Fprintln(cmd.OutOrStdout(), plotTrend(means, maxs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&samples, "samples", "n", 40, "frames to sample")
	return cmd
}

func plotTrend(means, maxs []float64) string {
	return asciigraph.PlotMany([][]float64{means, maxs},
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Precision(1),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red),
		asciigraph.Caption(fmt.Sprintf("mean (blue) / max (red) °C over %d frames", len(means))),
	)
}

// collect turns the sensor on and calls fn for each rendered surface until n
// surfaces were seen (n <= 0: until ctx ends). fn runs on the caller's
// goroutine.
func collect(ctx context.Context, st *station.Station, n int, fn func(render.Surface)) error {
	ch := make(chan render.Surface, 8)
	st.OnSurface(func(s render.Surface) {
		select {
		case ch <- s:
		default:
		}
	})
	st.SensorOn()
	defer st.SensorOff()

	for seen := 0; n <= 0 || seen < n; seen++ {
		select {
		case s := <-ch:
			debug.Live("Frame %d", seen+1)
			fn(s)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func newRenderCmd(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Read one frame and write it as PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			src, closer, err := newSourceFromConfig(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()
			return renderOnce(cmd.Context(), src, cfg, out)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "frame.png", "output file")
	return cmd
}

func renderOnce(ctx context.Context, src source.Source, cfg *config.Config, out string) error {
	now := time.Now()
	f, err := src.Next(ctx, source.Tick{Time: now})
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	s := render.Render(f, calibration.Range{Min: cfg.Calibration.MinTemp, Max: cfg.Calibration.MaxTemp})
	if err := writePNG(out, s, imageOptions(cfg)); err != nil {
		return err
	}
	st := render.FrameStats(f)
	debug.Info("Wrote %s (min %.1f max %.1f mean %.1f)", out, st.Min, st.Max, st.Mean)
	return nil
}

func writePNG(path string, s render.Surface, opts render.ImageOptions) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := render.EncodePNG(file, s, opts); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func newBurstCmd(opts *options) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "burst",
		Short: "Run one burst headless and export the pictures as PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			r, err := newRig(cfg)
			if err != nil {
				return err
			}
			defer r.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			if err := runBurst(ctx, r.st); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			n, err := exportGallery(r.st, dir, imageOptions(cfg))
			if err != nil {
				return err
			}
			debug.Summary(fmt.Sprintf("Burst exported: %d picture(s)", n))
			fmt.Fprintf(cmd.OutOrStdout(), "%d picture(s) written to %s\n", n, dir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "captures", "output directory")
	return cmd
}

// runBurst starts the sensor, runs one burst with the station's capture
// config and waits until it completes or ctx ends.
func runBurst(ctx context.Context, st *station.Station) error {
	idle := make(chan struct{}, 1)
	st.OnState(func(s capture.State) {
		if s == capture.Idle {
			select {
			case idle <- struct{}{}:
			default:
			}
		}
	})
	st.OnProgress(func(p capture.Progress) {
		debug.Info("%s (%.0f%%)", p.Label(), p.Percent())
	})

	st.SensorOn()
	defer st.SensorOff()
	if err := st.StartBurst(); err != nil {
		return err
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		st.StopBurst()
		return ctx.Err()
	}
}

// exportGallery writes every gallery entry as <seq>-<id>.png.
func exportGallery(st *station.Station, dir string, opts render.ImageOptions) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", dir, err)
	}
	entries := st.Gallery().List()
	for _, e := range entries {
		name := filepath.Join(dir, fmt.Sprintf("%03d-%s.png", e.Seq, e.ID))
		if err := writePNG(name, e.Surface, opts); err != nil {
			return 0, err
		}
		debug.Verbose("Exported %s", name)
	}
	return len(entries), nil
}
