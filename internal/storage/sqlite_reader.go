package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roman-kulish/rsp-tools/internal/measurement"
)

// GainChangeReader provides sequential access to the gain changes of one
// session.
type GainChangeReader interface {
	// Session returns the session the reader iterates over.
	Session() *measurement.Session

	// Next advances to the next gain change. It returns false when there is
	// no more data or an error occurred.
	Next(ctx context.Context) bool

	// Current returns the gain change read by the last successful Next.
	Current() *measurement.GainChange

	// Error returns the first error encountered during iteration.
	Error() error

	// Close releases the database resources held by the reader.
	Close() error
}

var _ GainChangeReader = (*SqliteGainChangeReader)(nil)

// ReaderOption configures a SqliteGainChangeReader
type ReaderOption func(*SqliteGainChangeReader)

// WithUnacknowledgedOnly limits the reader to changes that timed out.
func WithUnacknowledgedOnly() ReaderOption {
	return func(r *SqliteGainChangeReader) {
		r.unacknowledgedOnly = true
	}
}

// SqliteGainChangeReader implements GainChangeReader for SQLite database
// backend.
type SqliteGainChangeReader struct {
	db *sql.DB

	sessionID int64
	session   *measurement.Session

	unacknowledgedOnly bool

	current *measurement.GainChange
	rows    *sql.Rows
	err     error
}

func newSqliteGainChangeReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*SqliteGainChangeReader, error) {
	r := &SqliteGainChangeReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return r, nil
}

func (r *SqliteGainChangeReader) init(ctx context.Context) error {
	if r.db == nil {
		return errors.New("database connection required")
	}
	if r.sessionID <= 0 {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: r.loadSession},
		{msg: "initializing query", fn: r.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (r *SqliteGainChangeReader) loadSession(ctx context.Context) (err error) {
	stmt, err := r.db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	r.session, err = scanSession(stmt.QueryRowContext(ctx, r.sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("session %d: %w", r.sessionID, ErrSessionNotFound)
	}
	if err != nil {
		return fmt.Errorf("querying session: %w", err)
	}
	return nil
}

func (r *SqliteGainChangeReader) initQuery(ctx context.Context) (err error) {
	stmt, err := r.db.PrepareContext(ctx, selectGainChangesSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if r.rows, err = stmt.QueryContext(ctx, r.sessionID, r.unacknowledgedOnly); err != nil {
		return err
	}
	return nil
}

func (r *SqliteGainChangeReader) Session() *measurement.Session {
	return r.session
}

func (r *SqliteGainChangeReader) Next(ctx context.Context) bool {
	if r.err != nil || r.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		r.err = ctx.Err()
		return false
	default:
	}

	if !r.rows.Next() {
		r.current = nil
		return false
	}

	var d gainChangeData
	if r.err = r.rows.Scan(&d.Sequence, &d.Timestamp, &d.GainReduction, &d.LNAState, &d.ElapsedNs, &d.Acknowledged); r.err != nil {
		r.err = fmt.Errorf("scanning gain change: %w", r.err)
		return false
	}

	c := d.toGainChange()
	r.current = &c
	return true
}

func (r *SqliteGainChangeReader) Current() *measurement.GainChange {
	return r.current
}

func (r *SqliteGainChangeReader) Error() error {
	if r.err != nil {
		return r.err
	}
	if r.rows != nil {
		return r.rows.Err()
	}
	return nil
}

func (r *SqliteGainChangeReader) Close() error {
	if r.rows != nil {
		err := r.rows.Close()
		r.current = nil
		r.rows = nil
		return err
	}
	return nil
}
