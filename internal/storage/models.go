package storage

import (
	"database/sql"
	"time"
)

type sessionData struct {
	ID           int64
	StartTime    time.Time
	EndTime      sql.NullTime
	Tool         string
	DeviceSerial string
	HWVersion    string
	Config       sql.NullString
	Status       string
}

type gainChangeData struct {
	SessionID     int64
	Sequence      int64
	Timestamp     time.Time
	GainReduction int64
	LNAState      int64
	ElapsedNs     int64
	Acknowledged  bool
}

type recordingData struct {
	SessionID      int64
	Mode           string
	Path           sql.NullString
	StartTime      sql.NullTime
	EndTime        sql.NullTime
	TotalSamples   int64
	SampleRate     float64
	RoundedKHz     int64
	DroppedSamples int64
	DropEvents     int64
	WriteErrors    int64
	IMin           int64
	IMax           int64
	QMin           int64
	QMax           int64
	CallbackGaps   int64
	MaxGapNs       int64
}
