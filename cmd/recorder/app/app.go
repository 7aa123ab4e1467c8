package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/roman-kulish/rsp-tools/internal/measurement"
	"github.com/roman-kulish/rsp-tools/internal/sdr"
	"github.com/roman-kulish/rsp-tools/internal/sdr/sdrplay"
	"github.com/roman-kulish/rsp-tools/internal/storage"
	"github.com/roman-kulish/rsp-tools/internal/stream"
)

// consumer is the stream handler selected for a run.
type consumer struct {
	handler   sdrplay.StreamHandler
	stats     *stream.Stats
	histogram *stream.Histogram
	timeDiff  *stream.TimeDiff
	output    *os.File
}

// Run opens and configures the device, verifies the configuration and
// streams for the configured duration or until ctx is cancelled. The run is
// reported once the stream stopped. Every acquired resource is released
// before Run returns.
func Run(ctx context.Context, config *Config, api sdrplay.API, logger *slog.Logger) (err error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger
	}

	session, err := sdr.Open(api, config.Device.Serial, sdr.WithSessionLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, session.Close())
	}()

	steps := []struct {
		msg string
		fn  func() error
	}{
		{"enabling debug log", func() error {
			if !config.Recording.Debug {
				return nil
			}
			return session.EnableDebug()
		}},
		{"configuring device", func() error { return session.Configure(&config.Device) }},
		{"verifying configuration", func() error { return session.Verify(&config.Device) }},
	}
	for _, step := range steps {
		if err = step.fn(); err != nil {
			return fmt.Errorf("%s: %w", step.msg, err)
		}
	}

	status := measurement.StatusFailed
	var recording *measurement.Recording

	if config.Recording.Journal != "" {
		var store storage.Store
		var sessionID int64
		if store, sessionID, err = openJournal(ctx, config.Recording.Journal, session.Device(), config); err != nil {
			return err
		}
		defer func() {
			// The session is finished even when ctx is cancelled.
			jerr := closeJournal(context.WithoutCancel(ctx), store, sessionID, status, recording, logger)
			err = errors.Join(err, jerr)
		}()
	}

	c, err := newConsumer(&config.Recording, logger)
	if err != nil {
		return err
	}

	if status, err = record(ctx, session, c, config.Recording, logger); err != nil {
		return err
	}

	if recording, err = report(c, &config.Recording, session.Device(), config.Device.Frequency, logger); err != nil {
		status = measurement.StatusFailed
	}

	return err
}

func newConsumer(config *RecordingConfig, logger *slog.Logger) (*consumer, error) {
	if config.TimeDiff {
		td := stream.NewTimeDiff(config.TimeDiffThreshold, stream.WithTimeDiffLogger(logger))
		return &consumer{handler: td, timeDiff: td}, nil
	}

	c := consumer{stats: stream.NewStats()}
	options := []func(*stream.Recorder){stream.WithRecorderLogger(logger)}

	if config.Histogram != "" {
		c.histogram = &stream.Histogram{}
		options = append(options, stream.WithHistogram(c.histogram))
	}

	var w io.Writer
	if config.Output != "" {
		f, err := os.OpenFile(config.Output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening output file: %w", err)
		}
		c.output, w = f, f
	}

	c.handler = stream.NewRecorder(w, c.stats, options...)
	return &c, nil
}

// record runs the streaming phase. The output file is closed before it
// returns, on every path.
func record(ctx context.Context, session *sdr.Session, c *consumer, config RecordingConfig, logger *slog.Logger) (status string, err error) {
	defer func() {
		if c.output == nil {
			return
		}
		if cerr := c.output.Close(); cerr != nil {
			logger.Error("closing output file failed", slog.String("path", c.output.Name()), slog.String("error", cerr.Error()))
		}
	}()

	cb := sdrplay.Callbacks{
		StreamA: c.handler,
		Event:   stream.NewEventLogger(logger),
	}
	if err = session.Start(&cb); err != nil {
		return measurement.StatusFailed, fmt.Errorf("starting stream: %w", err)
	}

	logger.Info("streaming", slog.Duration("duration", config.Duration))

	status = measurement.StatusDone
	timer := time.NewTimer(config.Duration)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		logger.Warn("interrupted")
		status = measurement.StatusCanceled
	}

	if err = session.Stop(); err != nil {
		return measurement.StatusFailed, fmt.Errorf("stopping stream: %w", err)
	}

	// Let the last writes settle before the output file is closed.
	time.Sleep(config.DrainDelay)

	return status, nil
}

func openJournal(ctx context.Context, path string, device sdrplay.Device, config *Config) (storage.Store, int64, error) {
	store := storage.NewSqliteStore(path)

	id, err := store.CreateSession(ctx, &measurement.Session{
		StartTime:    time.Now(),
		Tool:         measurement.ToolRecorder,
		DeviceSerial: device.SerialNumber,
		HWVersion:    device.HWVersion.String(),
	}, config)
	if err != nil {
		_ = store.Close()
		return nil, 0, fmt.Errorf("creating journal session: %w", err)
	}

	return store, id, nil
}

// closeJournal stores the recording summary, finishes the session and closes
// the store. The stored session and recording are read back and logged.
func closeJournal(ctx context.Context, store storage.Store, sessionID int64, status string, recording *measurement.Recording, logger *slog.Logger) (err error) {
	defer func() {
		if cerr := store.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("closing journal: %w", cerr))
		}
	}()

	if recording != nil {
		if err = store.StoreRecording(ctx, sessionID, recording); err != nil {
			status = measurement.StatusFailed
			err = fmt.Errorf("storing recording: %w", err)
		}
	}
	if ferr := store.FinishSession(ctx, sessionID, status); ferr != nil {
		return errors.Join(err, fmt.Errorf("finishing journal session: %w", ferr))
	}
	if err != nil {
		return err
	}

	sess, err := store.Session(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("reading journal session: %w", err)
	}

	attrs := []any{
		slog.Int64("session", sess.ID),
		slog.String("status", sess.Status),
	}
	if recording != nil {
		stored, err := store.Recording(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("reading journal recording: %w", err)
		}
		attrs = append(attrs,
			slog.String("mode", stored.Mode),
			slog.String("path", stored.Path),
			slog.Uint64("samples", stored.TotalSamples),
		)
	}

	logger.Info("journal written", attrs...)
	return nil
}
