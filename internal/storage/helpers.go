package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roman-kulish/rsp-tools/internal/measurement"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toNullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}

// toSQLInt clamps counters that may exceed the range of an SQLite integer.
func toSQLInt(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

func toConfigData(config any) (configData sql.NullString, err error) {
	if config == nil {
		return
	}

	switch c := config.(type) {
	case string:
		configData.Valid = true
		configData.String = c

	case []byte:
		configData.Valid = true
		configData.String = string(c)

	default:
		var p []byte
		if p, err = json.Marshal(c); err != nil {
			err = fmt.Errorf("marshaling config: %w", err)
			return
		}

		configData.Valid = true
		configData.String = string(p)
	}
	return
}

func toGainChangeData(sessionID int64, c *measurement.GainChange) *gainChangeData {
	return &gainChangeData{
		SessionID:     sessionID,
		Sequence:      int64(c.Sequence),
		Timestamp:     c.Timestamp.UTC(),
		GainReduction: int64(c.GainReduction),
		LNAState:      int64(c.LNAState),
		ElapsedNs:     int64(c.Elapsed),
		Acknowledged:  c.Acknowledged,
	}
}

func toRecordingData(sessionID int64, r *measurement.Recording) *recordingData {
	return &recordingData{
		SessionID:      sessionID,
		Mode:           r.Mode,
		Path:           toNullString(r.Path),
		StartTime:      toNullTime(r.StartTime),
		EndTime:        toNullTime(r.EndTime),
		TotalSamples:   toSQLInt(r.TotalSamples),
		SampleRate:     r.SampleRate,
		RoundedKHz:     int64(r.RoundedKHz),
		DroppedSamples: toSQLInt(r.DroppedSamples),
		DropEvents:     toSQLInt(r.DropEvents),
		WriteErrors:    toSQLInt(r.WriteErrors),
		IMin:           int64(r.IMin),
		IMax:           int64(r.IMax),
		QMin:           int64(r.QMin),
		QMax:           int64(r.QMax),
		CallbackGaps:   toSQLInt(r.CallbackGaps),
		MaxGapNs:       int64(r.MaxGap),
	}
}

func (d *sessionData) toSession() *measurement.Session {
	s := measurement.Session{
		ID:           d.ID,
		StartTime:    d.StartTime,
		Tool:         d.Tool,
		DeviceSerial: d.DeviceSerial,
		HWVersion:    d.HWVersion,
		Status:       d.Status,
	}
	if d.EndTime.Valid {
		s.EndTime = &d.EndTime.Time
	}
	if d.Config.Valid {
		s.Config = &d.Config.String
	}
	return &s
}

func (d *gainChangeData) toGainChange() measurement.GainChange {
	return measurement.GainChange{
		Sequence:      uint32(d.Sequence),
		Timestamp:     d.Timestamp,
		GainReduction: int(d.GainReduction),
		LNAState:      uint8(d.LNAState),
		Elapsed:       time.Duration(d.ElapsedNs),
		Acknowledged:  d.Acknowledged,
	}
}

func (d *recordingData) toRecording() *measurement.Recording {
	r := measurement.Recording{
		Mode:           d.Mode,
		Path:           d.Path.String,
		TotalSamples:   uint64(d.TotalSamples),
		SampleRate:     d.SampleRate,
		RoundedKHz:     int(d.RoundedKHz),
		DroppedSamples: uint64(d.DroppedSamples),
		DropEvents:     uint64(d.DropEvents),
		WriteErrors:    uint64(d.WriteErrors),
		IMin:           int16(d.IMin),
		IMax:           int16(d.IMax),
		QMin:           int16(d.QMin),
		QMax:           int16(d.QMax),
		CallbackGaps:   uint64(d.CallbackGaps),
		MaxGap:         time.Duration(d.MaxGapNs),
	}
	if d.StartTime.Valid {
		r.StartTime = d.StartTime.Time
	}
	if d.EndTime.Valid {
		r.EndTime = d.EndTime.Time
	}
	return &r
}
