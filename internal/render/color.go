package render

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/roman-kulish/rsp-tools/internal/stream"
)

const (
	hueStart = 236.0
	hueEnd   = 0.0
)

var (
	backgroundColor = color.Black
	axisColor       = color.Gray{Y: 0x80}
)

// binColor maps the distance of an amplitude bin from zero to a hue, blue
// for small amplitudes to red for full scale.
func binColor(bin int) color.Color {
	center := float64(stream.HistogramBins-1) / 2
	distance := math.Abs(float64(bin)-center) / center

	hue := hueStart - distance*(hueStart-hueEnd)
	hue = math.Min(math.Max(hue, hueEnd), hueStart)

	return colorful.Hsv(hue, 1, 0.90)
}

// barHeight scales a bin count logarithmically to at most maxHeight pixels.
func barHeight(count, peak uint64, maxHeight int) int {
	if count == 0 || peak == 0 {
		return 0
	}

	h := math.Log1p(float64(count)) / math.Log1p(float64(peak)) * float64(maxHeight)
	return max(1, int(math.Round(h)))
}
