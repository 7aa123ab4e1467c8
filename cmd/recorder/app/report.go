package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/rsp-tools/internal/measurement"
	"github.com/roman-kulish/rsp-tools/internal/render"
	"github.com/roman-kulish/rsp-tools/internal/sdr/sdrplay"
	"github.com/roman-kulish/rsp-tools/internal/stream"
)

// report logs the outcome of the streaming phase, renames the output file
// after the measured sample rate and writes the histogram. Only a failure to
// write the histogram is returned; the summary is returned in any case.
func report(c *consumer, config *RecordingConfig, device sdrplay.Device, frequency float64, logger *slog.Logger) (*measurement.Recording, error) {
	if c.timeDiff != nil {
		return reportTimeDiff(c.timeDiff, logger), nil
	}

	snap := c.stats.Snapshot()
	rate := snap.SampleRate()
	kHz := stream.RoundKHz(rate)

	attrs := []any{
		slog.Uint64("total_samples", snap.TotalSamples),
		slog.String("actual_sample_rate", fmt.Sprintf("%.0f", rate)),
		slog.Int("rounded_sample_rate_kHz", kHz),
	}
	if config.Output != "" {
		attrs = append(attrs, slog.String("written", humanize.IBytes(snap.BytesWritten)))
	}
	logger.Info("recording done", attrs...)
	logger.Info("sample range",
		slog.String("I_range", fmt.Sprintf("[%d,%d]", snap.IMin, snap.IMax)),
		slog.String("Q_range", fmt.Sprintf("[%d,%d]", snap.QMin, snap.QMax)),
	)
	if snap.DropEvents > 0 || snap.WriteErrors > 0 {
		logger.Warn("data loss",
			slog.Uint64("dropped_samples", snap.DroppedSamples),
			slog.Uint64("drop_events", snap.DropEvents),
			slog.Uint64("write_errors", snap.WriteErrors),
		)
	}

	recording := measurement.Recording{
		Mode:           measurement.ModeRecord,
		Path:           config.Output,
		StartTime:      snap.Earliest,
		EndTime:        snap.Latest,
		TotalSamples:   snap.TotalSamples,
		SampleRate:     rate,
		RoundedKHz:     kHz,
		DroppedSamples: snap.DroppedSamples,
		DropEvents:     snap.DropEvents,
		WriteErrors:    snap.WriteErrors,
		IMin:           snap.IMin,
		IMax:           snap.IMax,
		QMin:           snap.QMin,
		QMax:           snap.QMax,
	}

	if config.Output != "" {
		recording.Path = renameOutput(config.Output, rate, logger)
	}

	if c.histogram != nil {
		info := render.Info{
			Serial:     device.SerialNumber,
			Frequency:  frequency,
			SampleRate: rate,
			IMin:       snap.IMin,
			IMax:       snap.IMax,
			QMin:       snap.QMin,
			QMax:       snap.QMax,
		}
		if err := writeHistogram(config.Histogram, c.histogram, info); err != nil {
			return &recording, fmt.Errorf("writing histogram: %w", err)
		}
		logger.Info("histogram written", slog.String("path", config.Histogram))
	}

	return &recording, nil
}

func reportTimeDiff(td *stream.TimeDiff, logger *slog.Logger) *measurement.Recording {
	logger.Info("time difference measurement done",
		slog.Uint64("callbacks", td.Callbacks()),
		slog.Uint64("gaps", td.Gaps()),
		slog.Duration("max_gap", td.MaxGap()),
	)

	return &measurement.Recording{
		Mode:         measurement.ModeTimeDiff,
		CallbackGaps: td.Gaps(),
		MaxGap:       td.MaxGap(),
	}
}

// renameOutput replaces the sample rate placeholder in path and renames the
// file. It returns the path the file ends up at. Failures are logged only.
func renameOutput(path string, rate float64, logger *slog.Logger) string {
	newPath, ok := stream.ExpandSampleRate(path, stream.RoundKHz(rate))
	if !ok {
		return path
	}

	if rate <= 0 {
		logger.Warn("sample rate unknown, output file not renamed", slog.String("path", path))
		return path
	}

	if err := os.Rename(path, newPath); err != nil {
		logger.Error("rename failed",
			slog.String("from", path),
			slog.String("to", newPath),
			slog.String("error", err.Error()),
		)
		return path
	}

	return newPath
}

func writeHistogram(path string, h *stream.Histogram, info render.Info) (err error) {
	r, err := render.NewHistogramRenderer(render.Config{})
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return r.WritePNG(f, h, info)
}
