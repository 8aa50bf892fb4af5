package chart

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"patterndraw/pkg/model"
)

// Render writes a standalone HTML page with the candles and the overlay line
func Render(w io.Writer, title string, candles []model.Candle, overlay []SeriesPoint) error {
	if len(candles) == 0 {
		return fmt.Errorf("render %s: no candles", title)
	}

	byTime := make(map[int64]float64, len(overlay))
	for _, p := range overlay {
		byTime[p.Time] = p.Value
	}

	dates := make([]string, len(candles))
	bars := make([]opts.KlineData, len(candles))
	line := make([]opts.LineData, len(candles))
	for i, c := range candles {
		dates[i] = c.At().Format("2006-01-02")
		// echarts order: open, close, low, high
		bars[i] = opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}}
		if v, ok := byTime[c.Time]; ok {
			line[i] = opts.LineData{Value: v}
		} else {
			line[i] = opts.LineData{Value: "-"}
		}
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside", Start: 0, End: 100}),
	)
	kline.SetXAxis(dates).AddSeries("candles", bars)

	pattern := charts.NewLine()
	pattern.SetXAxis(dates).AddSeries("pattern", line,
		charts.WithLineChartOpts(opts.LineChart{ConnectNulls: opts.Bool(true)}),
	)
	kline.Overlap(pattern)

	return kline.Render(w)
}
