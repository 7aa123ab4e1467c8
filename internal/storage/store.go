package storage

import (
	"context"

	"github.com/roman-kulish/rsp-tools/internal/measurement"
)

// Store provides an interface for the run journal of the RSP tools.
// It records sessions, gain change measurements and recording summaries.
// All operations that write to the database should be considered atomic.
type Store interface {
	// CreateSession starts a new journal session and returns its unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - session: Session metadata; ID, EndTime and Status are ignored
	//   - config: Optional channel configuration. Can be string, []byte, or JSON-serializable object
	//
	// Returns:
	//   - sessionID: Unique identifier for the created session
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, session *measurement.Session, config any) (sessionID int64, err error)

	// FinishSession records the end time and final status of a session.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - sessionID: Unique session identifier
	//   - status: One of the measurement.Status constants
	//
	// Returns:
	//   - error: If the update fails, the session does not exist or context is cancelled
	FinishSession(ctx context.Context, sessionID int64, status string) error

	// Session retrieves a specific session by its ID.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - id: Unique session identifier
	//
	// Returns:
	//   - session: Pointer to session data
	//   - error: If retrieval fails or context is cancelled
	Session(ctx context.Context, id int64) (session *measurement.Session, err error)

	// StoreGainChanges inserts a batch of gain change measurements in a single transaction.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - sessionID: Session the measurements belong to
	//   - changes: Measurements to insert, an empty batch is a no-op
	//
	// Returns:
	//   - error: If the insert fails; no row of the batch is stored in that case
	StoreGainChanges(ctx context.Context, sessionID int64, changes []measurement.GainChange) error

	// ReadGainChanges creates a reader iterating over the gain changes of a session
	// in sequence order. The reader must be closed after use.
	ReadGainChanges(ctx context.Context, sessionID int64, opts ...ReaderOption) (*SqliteGainChangeReader, error)

	// StoreRecording stores the summary of a recording run.
	StoreRecording(ctx context.Context, sessionID int64, recording *measurement.Recording) error

	// Recording returns the latest recording summary of a session.
	Recording(ctx context.Context, sessionID int64) (*measurement.Recording, error)

	// Close flushes indexes and closes the database connections.
	Close() error
}

var _ Store = (*SqliteStore)(nil)
