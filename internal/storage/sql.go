package storage

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    start_time    TIMESTAMP NOT NULL,
    end_time      TIMESTAMP,
    tool          TEXT      NOT NULL,
    device_serial TEXT      NOT NULL,
    hw_version    TEXT      NOT NULL,
    config        TEXT,
    status        TEXT      NOT NULL
);

CREATE TABLE IF NOT EXISTS gain_changes (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id     INTEGER   NOT NULL REFERENCES sessions (id),
    sequence       INTEGER   NOT NULL,
    timestamp      TIMESTAMP NOT NULL,
    gain_reduction INTEGER   NOT NULL,
    lna_state      INTEGER   NOT NULL,
    elapsed_ns     INTEGER   NOT NULL,
    acknowledged   INTEGER   NOT NULL
);

CREATE TABLE IF NOT EXISTS recordings (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id      INTEGER   NOT NULL REFERENCES sessions (id),
    mode            TEXT      NOT NULL,
    path            TEXT,
    start_time      TIMESTAMP,
    end_time        TIMESTAMP,
    total_samples   INTEGER   NOT NULL,
    sample_rate     REAL      NOT NULL,
    rounded_khz     INTEGER   NOT NULL,
    dropped_samples INTEGER   NOT NULL,
    drop_events     INTEGER   NOT NULL,
    write_errors    INTEGER   NOT NULL,
    i_min           INTEGER   NOT NULL,
    i_max           INTEGER   NOT NULL,
    q_min           INTEGER   NOT NULL,
    q_max           INTEGER   NOT NULL,
    callback_gaps   INTEGER   NOT NULL,
    max_gap_ns      INTEGER   NOT NULL
);`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_gain_changes_session_sequence ON gain_changes (session_id, sequence);
CREATE INDEX IF NOT EXISTS idx_recordings_session ON recordings (session_id);`

	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      tool,
                      device_serial,
                      hw_version,
                      config,
                      status)
VALUES (?, ?, ?, ?, ?, ?)`

	finishSessionSQL = `
UPDATE sessions
SET end_time = ?,
    status   = ?
WHERE id = ?`

	selectSessionSQL = `
SELECT 
    id, 
    start_time, 
    end_time, 
    tool, 
    device_serial, 
    hw_version, 
    config, 
    status 
FROM sessions 
WHERE 
    id = ?`

	insertGainChangesSQL = `
INSERT INTO gain_changes (
                          session_id,
                          sequence,
                          timestamp,
                          gain_reduction,
                          lna_state,
                          elapsed_ns,
                          acknowledged)
VALUES `

	selectGainChangesSQL = `
SELECT 
    sequence, 
    timestamp, 
    gain_reduction, 
    lna_state, 
    elapsed_ns, 
    acknowledged 
FROM gain_changes 
WHERE 
    session_id = ? 
    AND (? = 0 OR acknowledged = 0)
ORDER BY sequence`

	insertRecordingSQL = `
INSERT INTO recordings (
                        session_id,
                        mode,
                        path,
                        start_time,
                        end_time,
                        total_samples,
                        sample_rate,
                        rounded_khz,
                        dropped_samples,
                        drop_events,
                        write_errors,
                        i_min,
                        i_max,
                        q_min,
                        q_max,
                        callback_gaps,
                        max_gap_ns)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectRecordingSQL = `
SELECT 
    mode, 
    path, 
    start_time, 
    end_time, 
    total_samples, 
    sample_rate, 
    rounded_khz, 
    dropped_samples, 
    drop_events, 
    write_errors, 
    i_min, 
    i_max, 
    q_min, 
    q_max, 
    callback_gaps, 
    max_gap_ns 
FROM recordings 
WHERE 
    session_id = ?
ORDER BY id DESC
LIMIT 1`
)
