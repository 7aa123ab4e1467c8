package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roman-kulish/rsp-tools/internal/measurement"
	"github.com/roman-kulish/rsp-tools/internal/sdr/sdrplay"
	"github.com/roman-kulish/rsp-tools/internal/storage"
)

// journal buffers gain change measurements and stores them in batches. A nil
// journal discards everything.
type journal struct {
	store     storage.Store
	sessionID int64
	batch     []measurement.GainChange
	stored    int
}

func openJournal(ctx context.Context, path string, device sdrplay.Device, config *Config) (*journal, error) {
	store := storage.NewSqliteStore(path)

	id, err := store.CreateSession(ctx, &measurement.Session{
		StartTime:    time.Now(),
		Tool:         measurement.ToolGainChanges,
		DeviceSerial: device.SerialNumber,
		HWVersion:    device.HWVersion.String(),
	}, config)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("creating journal session: %w", err)
	}

	return &journal{
		store:     store,
		sessionID: id,
		batch:     make([]measurement.GainChange, 0, storage.MaxBatchRows),
	}, nil
}

func (j *journal) add(ctx context.Context, change measurement.GainChange) error {
	if j == nil {
		return nil
	}

	j.batch = append(j.batch, change)
	if len(j.batch) < storage.MaxBatchRows {
		return nil
	}
	return j.flush(ctx)
}

func (j *journal) flush(ctx context.Context) error {
	if len(j.batch) == 0 {
		return nil
	}

	if err := j.store.StoreGainChanges(ctx, j.sessionID, j.batch); err != nil {
		return fmt.Errorf("storing gain changes: %w", err)
	}

	j.stored += len(j.batch)
	j.batch = j.batch[:0]
	return nil
}

// close flushes the pending batch, finishes the session and closes the store.
// The finished session is read back and logged with the number of stored
// changes and how many of them timed out.
func (j *journal) close(ctx context.Context, status string, logger *slog.Logger) (err error) {
	if j == nil {
		return nil
	}
	defer func() {
		if cerr := j.store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing journal: %w", cerr)
		}
	}()

	if err = j.flush(ctx); err != nil {
		status = measurement.StatusFailed
	}

	if ferr := j.store.FinishSession(ctx, j.sessionID, status); ferr != nil && err == nil {
		err = fmt.Errorf("finishing journal session: %w", ferr)
	}
	if err != nil {
		return err
	}

	sess, err := j.store.Session(ctx, j.sessionID)
	if err != nil {
		return fmt.Errorf("reading journal session: %w", err)
	}

	timeouts, err := j.countTimeouts(ctx)
	if err != nil {
		return err
	}

	logger.Info("journal written",
		slog.Int64("session", sess.ID),
		slog.String("status", sess.Status),
		slog.Int("changes", j.stored),
		slog.Int("timeouts", timeouts),
	)
	return nil
}

func (j *journal) countTimeouts(ctx context.Context) (n int, err error) {
	reader, err := j.store.ReadGainChanges(ctx, j.sessionID, storage.WithUnacknowledgedOnly())
	if err != nil {
		return 0, fmt.Errorf("reading journal: %w", err)
	}
	defer func() {
		if cerr := reader.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for reader.Next(ctx) {
		n++
	}
	return n, reader.Error()
}
