package render

import (
	"fmt"
	"image"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/roman-kulish/rsp-tools/internal/stream"
)

const (
	dpi      float64 = 72
	hinting  string  = "full"
	size     float64 = 12
	spacing  float64 = 1.3
	tickSize         = 5
)

type annotator struct {
	context *freetype.Context
}

func newAnnotator() (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	context := freetype.NewContext()
	context.SetDPI(dpi)
	context.SetFont(parsedFont)
	context.SetFontSize(size)
	context.SetSrc(image.White)

	switch hinting {
	case "full":
		context.SetHinting(font.HintingFull)
	default:
		context.SetHinting(font.HintingNone)
	}

	return &annotator{context: context}, nil
}

func (a *annotator) annotate(img *image.RGBA, l layout, h *stream.Histogram, info Info) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, layout, *stream.Histogram, Info) error
	}{
		{"drawing panel labels", a.drawPanelLabels},
		{"drawing X scale", a.drawXScale},
		{"drawing info", a.drawInfo},
	}
	for _, op := range ops {
		if err := op.fn(img, l, h, info); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

func (a *annotator) drawPanelLabels(img *image.RGBA, l layout, _ *stream.Histogram, info Info) error {
	labels := []string{
		fmt.Sprintf("I  [%d, %d]", info.IMin, info.IMax),
		fmt.Sprintf("Q  [%d, %d]", info.QMin, info.QMax),
	}

	for panel, label := range labels {
		pt := freetype.Pt(l.left, l.panelTop(panel)-6)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return err
		}
	}

	return nil
}

func (a *annotator) drawXScale(img *image.RGBA, l layout, _ *stream.Histogram, _ Info) error {
	bins := []int{0, stream.HistogramBins / 4, stream.HistogramBins / 2, 3 * stream.HistogramBins / 4, stream.HistogramBins - 1}

	for panel := 0; panel < 2; panel++ {
		base := l.panelTop(panel) + l.panelHeight

		for _, b := range bins {
			px := l.left + b*l.binWidth

			// draw a tick under the bin
			for i := 0; i < tickSize; i++ {
				img.Set(px, base+i, axisColor)
			}

			lo, hi := stream.BinRange(b)
			v := lo
			if b == stream.HistogramBins-1 {
				v = hi
			}

			// draw the text, centred roughly on the tick
			str := humanize.Comma(int64(v))
			pt := freetype.Pt(px-len(str)*3, base+tickSize+int(size))
			if _, err := a.context.DrawString(str, pt); err != nil {
				return err
			}
		}
	}

	return nil
}

func (a *annotator) drawInfo(img *image.RGBA, l layout, h *stream.Histogram, info Info) error {
	total := h.Total()

	var clipped float64
	if total > 0 {
		edges := h.I[0] + h.I[stream.HistogramBins-1] + h.Q[0] + h.Q[stream.HistogramBins-1]
		clipped = float64(edges) / float64(2*total) * 100
	}

	lines := []string{
		fmt.Sprintf("Samples: %s", humanize.Comma(int64(total))),
		fmt.Sprintf("Sample rate: %s", humanize.SIWithDigits(info.SampleRate, 3, "S/s")),
		fmt.Sprintf("Full scale bins: %.4f%%", clipped),
	}
	if info.Frequency > 0 {
		lines = append(lines, fmt.Sprintf("Frequency: %s", humanize.SIWithDigits(info.Frequency, 6, "Hz")))
	}
	if info.Serial != "" {
		lines = append(lines, "Device: "+info.Serial)
	}

	// positioning
	top := l.panelTop(2) + int(size)

	// drawing
	pt := freetype.Pt(l.left, top)
	for _, s := range lines {
		if _, err := a.context.DrawString(s, pt); err != nil {
			return err
		}
		pt.Y += a.context.PointToFixed(size * spacing)
	}

	return nil
}
