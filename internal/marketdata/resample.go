package marketdata

import (
	"fmt"
	"time"

	"multiStratBot/internal/domain"
	"multiStratBot/internal/ports"
)

func timeFromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// Resample derives a coarser series from a finer one by aggregating source
// bars into non-overlapping buckets aligned to the Unix epoch. Within each
// bucket: open is the first bar's open, high the maximum, low the minimum,
// close the last bar's close, volume the sum. Source bars must be in
// ascending order. A trailing partial bucket is kept; re-resampling it later
// with more source bars yields the same result as resampling once.
func Resample(src domain.Series, target domain.Timeframe) (domain.Series, error) {
	if !target.DerivableFrom(src.Timeframe) {
		return domain.Series{}, fmt.Errorf("cannot derive %s bars from %s bars: %w", target, src.Timeframe, ports.ErrData)
	}

	out := domain.Series{Symbol: src.Symbol, Timeframe: target}
	if src.IsEmpty() {
		return out, nil
	}

	targetDur, _ := target.Duration()
	sec := int64(targetDur.Seconds())

	var cur *domain.Kline
	var curBucket int64
	for _, k := range src.Klines {
		bucket := k.OpenTime.Unix() - k.OpenTime.Unix()%sec
		if cur == nil || bucket != curBucket {
			if cur != nil {
				out.Klines = append(out.Klines, *cur)
			}
			start := timeFromUnix(bucket)
			cur = &domain.Kline{
				OpenTime:  start,
				CloseTime: start.Add(targetDur),
				Open:      k.Open,
				High:      k.High,
				Low:       k.Low,
				Close:     k.Close,
				Volume:    k.Volume,
			}
			curBucket = bucket
			continue
		}
		if k.High > cur.High {
			cur.High = k.High
		}
		if k.Low < cur.Low {
			cur.Low = k.Low
		}
		cur.Close = k.Close
		cur.Volume += k.Volume
	}
	out.Klines = append(out.Klines, *cur)
	return out, nil
}
