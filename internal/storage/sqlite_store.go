package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/rsp-tools/internal/measurement"
)

// MaxBatchRows is the maximum number of rows inserted by one statement.
const MaxBatchRows = 1000

var (
	// ErrSessionNotFound is returned when a session ID does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoRecording is returned when a session has no recording summary.
	ErrNoRecording = errors.New("no recording stored for session")
)

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a new journal backed by the Sqlite database at
// dbPath. Connections are opened and the schema is created on first use.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, session *measurement.Session, config any) (sessionID int64, err error) {
	configData, err := toConfigData(config)
	if err != nil {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	startTime := session.StartTime
	if startTime.IsZero() {
		startTime = time.Now()
	}

	result, err := stmt.ExecContext(ctx,
		startTime.UTC(),
		session.Tool,
		session.DeviceSerial,
		session.HWVersion,
		configData,
		measurement.StatusRunning,
	)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

func (s *SqliteStore) FinishSession(ctx context.Context, sessionID int64, status string) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	result, err := db.ExecContext(ctx, finishSessionSQL, time.Now().UTC(), status, sessionID)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finishing session %d: %w", sessionID, ErrSessionNotFound)
	}
	return nil
}

func scanSession(row interface{ Scan(...any) error }) (*measurement.Session, error) {
	var d sessionData
	if err := row.Scan(&d.ID, &d.StartTime, &d.EndTime, &d.Tool, &d.DeviceSerial, &d.HWVersion, &d.Config, &d.Status); err != nil {
		return nil, err
	}
	return d.toSession(), nil
}

func (s *SqliteStore) Session(ctx context.Context, id int64) (session *measurement.Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	session, err = scanSession(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("session %d: %w", id, ErrSessionNotFound)
		return
	}
	if err != nil {
		err = fmt.Errorf("scanning session: %w", err)
	}
	return
}

func (s *SqliteStore) StoreGainChanges(ctx context.Context, sessionID int64, changes []measurement.GainChange) (err error) {
	if len(changes) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	for start := 0; start < len(changes); start += MaxBatchRows {
		end := min(start+MaxBatchRows, len(changes))
		if err = insertGainChanges(ctx, tx, sessionID, changes[start:end]); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func insertGainChanges(ctx context.Context, tx *sql.Tx, sessionID int64, changes []measurement.GainChange) error {
	// Prepare values array
	values := make([]interface{}, 0, len(changes)*7)

	// Build batch insert query
	valuesPlaceholder := "(?, ?, ?, ?, ?, ?, ?)"

	var sb strings.Builder

	sb.WriteString(insertGainChangesSQL)

	for i := range changes {
		data := toGainChangeData(sessionID, &changes[i])
		values = append(values,
			data.SessionID,
			data.Sequence,
			data.Timestamp,
			data.GainReduction,
			data.LNAState,
			data.ElapsedNs,
			data.Acknowledged,
		)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(valuesPlaceholder)
	}

	// Single batch insert
	if _, err := tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting gain changes: %w", err)
	}
	return nil
}

// ReadGainChanges creates a new reader over the gain changes of a session.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - sessionID: Unique identifier of the session to read from
//   - opts: Optional configuration parameters for the reader
//     (WithUnacknowledgedOnly)
//
// The returned reader must be closed after use to release database resources.
// Each reader instance should only be used from a single goroutine.
//
// Returns error if reader creation fails or the session doesn't exist.
func (s *SqliteStore) ReadGainChanges(ctx context.Context, sessionID int64, opts ...ReaderOption) (*SqliteGainChangeReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSqliteGainChangeReader(ctx, db, sessionID, opts...)
}

func (s *SqliteStore) StoreRecording(ctx context.Context, sessionID int64, recording *measurement.Recording) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertRecordingSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	data := toRecordingData(sessionID, recording)

	if _, err = stmt.ExecContext(ctx,
		data.SessionID,
		data.Mode,
		data.Path,
		data.StartTime,
		data.EndTime,
		data.TotalSamples,
		data.SampleRate,
		data.RoundedKHz,
		data.DroppedSamples,
		data.DropEvents,
		data.WriteErrors,
		data.IMin,
		data.IMax,
		data.QMin,
		data.QMax,
		data.CallbackGaps,
		data.MaxGapNs,
	); err != nil {
		return fmt.Errorf("inserting recording: %w", err)
	}

	return nil
}

func (s *SqliteStore) Recording(ctx context.Context, sessionID int64) (recording *measurement.Recording, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectRecordingSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var d recordingData
	err = stmt.QueryRowContext(ctx, sessionID).Scan(
		&d.Mode,
		&d.Path,
		&d.StartTime,
		&d.EndTime,
		&d.TotalSamples,
		&d.SampleRate,
		&d.RoundedKHz,
		&d.DroppedSamples,
		&d.DropEvents,
		&d.WriteErrors,
		&d.IMin,
		&d.IMax,
		&d.QMin,
		&d.QMax,
		&d.CallbackGaps,
		&d.MaxGapNs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("session %d: %w", sessionID, ErrNoRecording)
		return
	}
	if err != nil {
		err = fmt.Errorf("scanning recording: %w", err)
		return
	}

	return d.toRecording(), nil
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
