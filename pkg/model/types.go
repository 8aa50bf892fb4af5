package model

import "time"

// Candle represents a single candlestick (OHLCV data).
// Time is the bar time in unix seconds, the ordering key used by the chart surface.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// At returns the bar time as a UTC time.Time
func (c Candle) At() time.Time {
	return time.Unix(c.Time, 0).UTC()
}

// Stock represents basic stock information
type Stock struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"` // BIST
}

// CandleSeries is a symbol's candles for one interval/period request
type CandleSeries struct {
	Symbol   string   `json:"symbol"`
	Interval string   `json:"interval"`
	Period   string   `json:"period"`
	Candles  []Candle `json:"candles"`
}

// PeakTrough is a dip/tepe point reported by the analysis service for a matched window
type PeakTrough struct {
	PointType        string   `json:"point_type"` // "dip" or "tepe"
	PointNumber      int      `json:"point_number"`
	Date             string   `json:"date"`
	Price            float64  `json:"price"`
	PercentageChange *float64 `json:"percentage_change,omitempty"`
}

// SimilarResult is one entry of a pattern search result list
type SimilarResult struct {
	Symbol             string       `json:"symbol"`
	SimilarityScore    float64      `json:"similarity_score"`
	Correlation        float64      `json:"correlation"`
	StartDate          string       `json:"start_date"`
	EndDate            string       `json:"end_date"`
	PeaksTroughs       []PeakTrough `json:"peaks_troughs"`
	CurrentPrice       float64      `json:"current_price"`
	PriceChangePercent float64      `json:"price_change_percent"`
	MatchType          string       `json:"match_type,omitempty"` // "full" or "partial"
	PatternProgress    *float64     `json:"pattern_progress,omitempty"`
	AfterPattern1M     *float64     `json:"after_pattern_1m,omitempty"`
	AfterPattern3M     *float64     `json:"after_pattern_3m,omitempty"`
	PatternEndPrice    *float64     `json:"pattern_end_price,omitempty"`
}
