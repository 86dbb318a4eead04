package audio

import (
	"math"
	"sync/atomic"
)

// levelMeter keeps the RMS of the most recent capture buffer.
type levelMeter struct {
	bits atomic.Uint64
}

func (m *levelMeter) update(buf []float32) {
	m.bits.Store(math.Float64bits(RMS(buf)))
}

func (m *levelMeter) reset() {
	m.bits.Store(0)
}

func (m *levelMeter) level() float64 {
	return math.Float64frombits(m.bits.Load())
}

// RMS returns the root mean square of buf, 0..1 for normalized samples.
func RMS(buf []float32) float64 {
	if len(buf) == 0 {
		return 0
	}
	var sum float64
	for _, s := range buf {
		sum += float64(s) * float64(s)
	}
	return math.Min(1, math.Sqrt(sum/float64(len(buf))))
}
