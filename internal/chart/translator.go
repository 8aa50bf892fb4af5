package chart

import "patterndraw/pkg/model"

// Point is a domain coordinate on a price chart
type Point struct {
	Time  int64   `json:"time"`
	Price float64 `json:"price"`
}

// SeriesPoint is one point of a line series drawn over the candles
type SeriesPoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// ClickEvent is a click position in pixel space, relative to the plot area
type ClickEvent struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ClickFunc receives clicks delivered by a chart surface
type ClickFunc func(ev ClickEvent)

// OverlaySink accepts the line series connecting captured points
type OverlaySink interface {
	SetOverlaySeries(points []SeriesPoint)
}

// Translator is what the capture and range components need from a charting surface
type Translator interface {
	OverlaySink

	// PixelYToPrice converts a vertical pixel position into a price
	PixelYToPrice(y float64) (float64, bool)

	// ClickToTimeAndPrice resolves a click into the bar time under it and the price at its height.
	// It returns false when the click does not land on the plotted series.
	ClickToTimeAndPrice(ev ClickEvent) (Point, bool)

	// SetCandles replaces the candle series
	SetCandles(candles []model.Candle)
}
