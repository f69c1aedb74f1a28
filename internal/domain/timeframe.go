package domain

import "time"

// Timeframe identifies the bucket duration of an OHLCV bar, using the
// broker's conventional names (M1 = 1 minute, H4 = 4 hours, ...).
type Timeframe string

const (
	M1  Timeframe = "M1"
	M5  Timeframe = "M5"
	M15 Timeframe = "M15"
	M30 Timeframe = "M30"
	H1  Timeframe = "H1"
	H4  Timeframe = "H4"
	D1  Timeframe = "D1"
	W1  Timeframe = "W1"
	MN1 Timeframe = "MN1"
)

// timeframeDurations maps the fixed-duration timeframes. W1 and MN1 are
// fetchable from the terminal but have no fixed duration usable for
// deterministic resampling.
var timeframeDurations = map[Timeframe]time.Duration{
	M1:  time.Minute,
	M5:  5 * time.Minute,
	M15: 15 * time.Minute,
	M30: 30 * time.Minute,
	H1:  time.Hour,
	H4:  4 * time.Hour,
	D1:  24 * time.Hour,
}

// IsValid reports whether the timeframe is on the terminal allow-list.
func (tf Timeframe) IsValid() bool {
	switch tf {
	case M1, M5, M15, M30, H1, H4, D1, W1, MN1:
		return true
	}
	return false
}

// Duration returns the bar duration and whether the timeframe has a fixed
// duration (false for W1/MN1 and unknown values).
func (tf Timeframe) Duration() (time.Duration, bool) {
	d, ok := timeframeDurations[tf]
	return d, ok
}

// DerivableFrom reports whether bars of this timeframe can be produced by
// downsampling bars of the base timeframe: both must have fixed durations and
// this duration must be a strictly coarser multiple of the base.
func (tf Timeframe) DerivableFrom(base Timeframe) bool {
	d, ok := tf.Duration()
	if !ok {
		return false
	}
	bd, ok := base.Duration()
	if !ok {
		return false
	}
	return d > bd && d%bd == 0
}
