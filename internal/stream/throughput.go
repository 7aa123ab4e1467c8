package stream

import (
	"strconv"
	"strings"
	"time"
)

// SampleRatePlaceholder is replaced in output paths by the measured sample
// rate in kHz.
const SampleRatePlaceholder = "SAMPLERATE"

// Throughput returns the sample rate estimated from the number of samples
// delivered between the earliest and the latest callback. It returns 0 when
// the interval is empty.
func Throughput(total uint64, earliest, latest time.Time) float64 {
	elapsed := latest.Sub(earliest).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(total) / elapsed
}

// RoundKHz rounds a rate in samples per second to the nearest kHz.
func RoundKHz(rate float64) int {
	return int(rate/1000.0 + 0.5)
}

// ExpandSampleRate replaces the first SampleRatePlaceholder in path with the
// rate in kHz. It reports whether the path contained the placeholder.
func ExpandSampleRate(path string, kHz int) (string, bool) {
	if !strings.Contains(path, SampleRatePlaceholder) {
		return path, false
	}
	return strings.Replace(path, SampleRatePlaceholder, strconv.Itoa(kHz), 1), true
}
