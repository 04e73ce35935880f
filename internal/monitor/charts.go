package monitor

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/lanefeatures/internal/pipeline"
)

// RenderHTML writes a page with one line chart per feature, raw and smoothed
// overlaid. Rejected frames show as gaps.
func RenderHTML(w io.Writer, results []pipeline.Result) error {
	s := buildSeries(results)

	xAxis := make([]string, len(results))
	for i, pt := range s.lateral {
		xAxis[i] = strconv.FormatFloat(pt.t, 'f', 2, 64)
	}

	subtitle := fmt.Sprintf("%d frames", len(results))
	if len(results) > 0 {
		subtitle = fmt.Sprintf("session=%s frames=%d", results[0].SessionID, len(results))
	}

	page := components.NewPage()
	page.PageTitle = "Lane features"
	page.AddCharts(
		lineChart("Lateral distance to nearest boundary", subtitle, "m", xAxis, s.lateral, s.smoothedLateral),
		lineChart("Road curvature factor", subtitle, "1/m", xAxis, s.curvature, s.smoothedCurvature),
	)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render chart page: %w", err)
	}
	return nil
}

func lineChart(title, subtitle, unit string, xAxis []string, raw, smoothed []point) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: unit}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(xAxis).
		AddSeries("raw", lineData(raw)).
		AddSeries("smoothed", lineData(smoothed))
	return line
}

// lineData maps rejected samples to "-", which echarts draws as a gap.
func lineData(pts []point) []opts.LineData {
	out := make([]opts.LineData, len(pts))
	for i, pt := range pts {
		if pt.ok {
			out[i] = opts.LineData{Value: pt.v}
		} else {
			out[i] = opts.LineData{Value: "-"}
		}
	}
	return out
}
