package stream

// HistogramBins is the number of amplitude bins per component. Each bin
// spans 256 sample values.
const HistogramBins = 256

// Histogram counts I and Q sample amplitudes. It is written by the callback
// goroutine only and must be read after streaming stopped.
type Histogram struct {
	I [HistogramBins]uint64
	Q [HistogramBins]uint64
}

// Bin returns the histogram bin of a sample value.
func Bin(v int16) int {
	return int(v>>8) + HistogramBins/2
}

// BinRange returns the lowest and highest sample value counted in bin b.
func BinRange(b int) (lo, hi int16) {
	lo = int16((b - HistogramBins/2) << 8)
	return lo, lo + 255
}

// Add counts a block of samples.
func (h *Histogram) Add(xi, xq []int16) {
	for _, v := range xi {
		h.I[Bin(v)]++
	}
	for _, v := range xq {
		h.Q[Bin(v)]++
	}
}

// Total returns the number of I samples counted, which equals the number
// of Q samples.
func (h *Histogram) Total() uint64 {
	var n uint64
	for _, c := range h.I {
		n += c
	}
	return n
}

// Peak returns the largest bin count over both components.
func (h *Histogram) Peak() uint64 {
	var peak uint64
	for b := 0; b < HistogramBins; b++ {
		peak = max(peak, h.I[b], h.Q[b])
	}
	return peak
}
