// Package render draws the amplitude histogram of a recording as a PNG.
package render

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"

	"github.com/roman-kulish/rsp-tools/internal/stream"
)

const (
	defaultPanelHeight = 200
	defaultBinWidth    = 2

	// Border sizes in pixels
	topBorder    = 30
	leftBorder   = 40
	rightBorder  = 40
	panelGap     = 50
	bottomBorder = 110
)

// Info is the run metadata printed under the histogram.
type Info struct {
	Serial     string
	Frequency  float64
	SampleRate float64
	IMin, IMax int16
	QMin, QMax int16
}

// Config holds the size options of the histogram image.
type Config struct {
	PanelHeight int // Height of each of the I and Q panels in pixels
	BinWidth    int // Width of one amplitude bin in pixels
}

type layout struct {
	left        int
	binWidth    int
	panelHeight int
	width       int
	height      int
}

func newLayout(c Config) layout {
	l := layout{
		left:        leftBorder,
		binWidth:    c.BinWidth,
		panelHeight: c.PanelHeight,
	}
	l.width = leftBorder + stream.HistogramBins*l.binWidth + rightBorder
	l.height = topBorder + 2*l.panelHeight + 2*panelGap + bottomBorder - panelGap
	return l
}

// panelTop returns the top edge of panel i (0 is I, 1 is Q). Panel 2 is the
// area below the last panel.
func (l layout) panelTop(i int) int {
	return topBorder + i*(l.panelHeight+panelGap)
}

// HistogramRenderer renders stream.Histogram values
type HistogramRenderer struct {
	layout    layout
	annotator *annotator
}

// NewHistogramRenderer creates a renderer. Zero config values select the
// defaults.
func NewHistogramRenderer(config Config) (*HistogramRenderer, error) {
	if config.PanelHeight <= 0 {
		config.PanelHeight = defaultPanelHeight
	}
	if config.BinWidth <= 0 {
		config.BinWidth = defaultBinWidth
	}

	a, err := newAnnotator()
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}

	return &HistogramRenderer{layout: newLayout(config), annotator: a}, nil
}

// Render draws the I and Q histograms, one panel each, with logarithmic bar
// heights scaled to the largest bin of both.
func (r *HistogramRenderer) Render(h *stream.Histogram, info Info) (*image.RGBA, error) {
	l := r.layout

	img := image.NewRGBA(image.Rect(0, 0, l.width, l.height))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	peak := h.Peak()
	for panel, counts := range [][stream.HistogramBins]uint64{h.I, h.Q} {
		top := l.panelTop(panel)
		base := top + l.panelHeight

		for b, count := range counts {
			bh := barHeight(count, peak, l.panelHeight)
			if bh == 0 {
				continue
			}

			x0 := l.left + b*l.binWidth
			bar := image.Rect(x0, base-bh, x0+l.binWidth, base)
			draw.Draw(img, bar, image.NewUniform(binColor(b)), image.Point{}, draw.Src)
		}

		// axis line
		for x := l.left; x < l.left+stream.HistogramBins*l.binWidth; x++ {
			img.Set(x, base, axisColor)
		}
	}

	if err := r.annotator.annotate(img, l, h, info); err != nil {
		return nil, fmt.Errorf("annotating histogram: %w", err)
	}

	return img, nil
}

// WritePNG renders the histogram and encodes it as PNG to w.
func (r *HistogramRenderer) WritePNG(w io.Writer, h *stream.Histogram, info Info) error {
	img, err := r.Render(h, info)
	if err != nil {
		return err
	}

	if err = png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}
