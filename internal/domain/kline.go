package domain

import "time"

// Kline represents a single candlestick data point.
type Kline struct {
	OpenTime  time.Time // Start of the bar interval
	CloseTime time.Time // End of the bar interval (series index)
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Series is a time-indexed OHLCV table for one symbol and timeframe. Bars are
// ordered ascending and indexed by their close timestamp.
type Series struct {
	Symbol    string
	Timeframe Timeframe
	Klines    []Kline
}

// IsEmpty reports whether the series holds no bars. An empty series is a
// valid result, not an error.
func (s Series) IsEmpty() bool {
	return len(s.Klines) == 0
}

// Len returns the number of bars in the series.
func (s Series) Len() int {
	return len(s.Klines)
}

// Last returns the most recent bar, or false if the series is empty.
func (s Series) Last() (Kline, bool) {
	if len(s.Klines) == 0 {
		return Kline{}, false
	}
	return s.Klines[len(s.Klines)-1], true
}
