package monitor

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/lanefeatures/internal/monitoring"
	"github.com/banshee-data/lanefeatures/internal/pipeline"
)

var (
	rawColor      = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	smoothedColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
)

// ErrNoResults is returned when there is nothing to draw.
var ErrNoResults = errors.New("no results to plot")

// PlotSeries writes lateral_distance.png and curvature.png into dir, each
// showing the raw and smoothed value against seconds since the first result.
// It returns the paths written.
func PlotSeries(results []pipeline.Result, dir string) ([]string, error) {
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	s := buildSeries(results)
	charts := []struct {
		file, title, unit string
		raw, smoothed     []point
	}{
		{"lateral_distance.png", "Lateral distance to nearest boundary", "Distance (m)", s.lateral, s.smoothedLateral},
		{"curvature.png", "Road curvature factor", "Curvature (1/m)", s.curvature, s.smoothedCurvature},
	}

	var written []string
	for _, c := range charts {
		p := plot.New()
		p.Title.Text = fmt.Sprintf("%s (%d frames)", c.title, len(results))
		p.X.Label.Text = "Time (s)"
		p.Y.Label.Text = c.unit
		p.Add(plotter.NewGrid())

		if err := addLine(p, "raw", c.raw, rawColor); err != nil {
			return written, err
		}
		if err := addLine(p, "smoothed", c.smoothed, smoothedColor); err != nil {
			return written, err
		}
		p.Legend.Top = true
		p.Legend.Left = false
		p.Legend.XOffs = -10
		p.Legend.YOffs = -10

		path := filepath.Join(dir, c.file)
		if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
			return written, fmt.Errorf("failed to save %s: %w", path, err)
		}
		written = append(written, path)
	}

	monitoring.Logf("Wrote %d plots for %d frames to %s", len(written), len(results), dir)
	return written, nil
}

// addLine adds the accepted samples of pts as one line. A series with no
// accepted samples is left out of the plot and the legend.
func addLine(p *plot.Plot, name string, pts []point, c color.Color) error {
	xys := make(plotter.XYs, 0, len(pts))
	for _, pt := range pts {
		if pt.ok {
			xys = append(xys, plotter.XY{X: pt.t, Y: pt.v})
		}
	}
	if len(xys) == 0 {
		return nil
	}

	line, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("failed to build %s line: %w", name, err)
	}
	line.Color = c
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add(name, line)
	return nil
}
