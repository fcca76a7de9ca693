package monitor

import "sync/atomic"

// Watermark is the time (ms since epoch) at or before which ownership
// changes are treated as processed. Only the Monitor advances it, between
// cycles; readers may load it at any time.
type Watermark struct {
	value atomic.Int64
}

// NewWatermark returns a watermark starting at ms.
func NewWatermark(ms int64) *Watermark {
	w := &Watermark{}
	w.value.Store(ms)
	return w
}

// Value returns the current watermark.
func (w *Watermark) Value() int64 {
	return w.value.Load()
}

// Advance moves the watermark to the earliest of the observed change times.
// It never moves backward and is unchanged when nothing was observed.
// Reports whether the value moved.
func (w *Watermark) Advance(observed []int64) bool {
	if len(observed) == 0 {
		return false
	}
	earliest := observed[0]
	for _, ts := range observed[1:] {
		if ts < earliest {
			earliest = ts
		}
	}
	if earliest <= w.value.Load() {
		return false
	}
	w.value.Store(earliest)
	return true
}
