package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/rsp-tools/internal/measurement"
	"github.com/roman-kulish/rsp-tools/internal/sdr"
	"github.com/roman-kulish/rsp-tools/internal/sdr/sdrplay"
	"github.com/roman-kulish/rsp-tools/internal/stream"
)

// ProgressEvery is the number of gain changes between two progress lines.
const ProgressEvery = 1000

// Run opens and configures the device, verifies the configuration and then
// cycles through the gain schedule until the change count is reached or ctx
// is cancelled. Every acquired resource is released before Run returns.
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
			if !config.GainChanges.Debug {
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

	var j *journal
	if config.GainChanges.Journal != "" {
		if j, err = openJournal(ctx, config.GainChanges.Journal, session.Device(), config); err != nil {
			return err
		}
	}

	status := measurement.StatusFailed
	defer func() {
		// The session is finished even when ctx is cancelled.
		jerr := j.close(context.WithoutCancel(ctx), status, logger)
		err = errors.Join(err, jerr)
	}()

	ack := stream.NewGainAck()
	mon := newMonitor(ack, config.GainChanges.Verbose, logger)

	cb := sdrplay.Callbacks{
		StreamA: mon,
		Event:   stream.NewEventLogger(logger),
	}
	if err = session.Start(&cb); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}

	c := cycler{
		session:  session,
		ack:      ack,
		schedule: config.Schedule(),
		config:   &config.GainChanges,
		journal:  j,
		logger:   logger,
	}
	if status, err = c.run(ctx); err != nil {
		return err
	}

	if err = session.Stop(); err != nil {
		status = measurement.StatusFailed
		return fmt.Errorf("stopping stream: %w", err)
	}

	logger.Info("gain changes done",
		slog.String("status", status),
		slog.Uint64("changes", uint64(c.changes)),
		slog.Uint64("timeouts", uint64(c.timeouts)),
		slog.String("samples", humanize.Comma(int64(mon.totalSamples.Load()))),
		slog.Uint64("jumps", mon.jumps.Load()),
	)

	return nil
}

// cycler requests the gain changes of one run.
type cycler struct {
	session  *sdr.Session
	ack      *stream.GainAck
	schedule Schedule
	config   *GainChangesConfig
	journal  *journal
	logger   *slog.Logger

	changes  uint32
	timeouts uint32
}

func (c *cycler) run(ctx context.Context) (string, error) {
	c.logger.Info("changing gains", slog.Duration("wait", c.config.Wait))

	for n := uint32(1); n < c.config.Count; n++ {
		if !sleep(ctx, c.config.Wait) {
			return c.interrupted(n)
		}

		gr, lna := c.schedule.At(n)
		c.ack.Arm()

		requested := time.Now()
		if err := c.session.UpdateGain(gr, lna); err != nil {
			return measurement.StatusFailed, fmt.Errorf("gain change #%d: %w", n, err)
		}
		c.changes++

		if n%ProgressEvery == 0 {
			c.logger.Info("gain change", slog.Uint64("n", uint64(n)))
		}

		elapsed, err := c.ack.Wait(ctx, c.config.UpdateTimeout)
		switch {
		case errors.Is(err, stream.ErrAckTimeout):
			c.timeouts++
			c.logger.Warn("gain change update timeout",
				slog.Uint64("n", uint64(n)),
				slog.Int("gRdB", gr),
				slog.Int("LNAstate", int(lna)),
			)
		case err != nil:
			return c.interrupted(n)
		}

		if c.config.Verbose {
			c.logger.Info("gain change",
				slog.Uint64("n", uint64(n)),
				slog.Int64("elapsed", int64(elapsed/c.config.PollInterval)),
			)
		}

		change := measurement.GainChange{
			Sequence:      n,
			Timestamp:     requested,
			GainReduction: gr,
			LNAState:      lna,
			Elapsed:       elapsed,
			Acknowledged:  err == nil,
		}
		if err = c.journal.add(context.WithoutCancel(ctx), change); err != nil {
			return measurement.StatusFailed, err
		}
	}

	return measurement.StatusDone, nil
}

func (c *cycler) interrupted(n uint32) (string, error) {
	c.logger.Warn("interrupted", slog.Uint64("n", uint64(n)))
	return measurement.StatusCanceled, nil
}

// sleep waits for d or until ctx is done and reports whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
