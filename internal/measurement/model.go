// Package measurement holds the records written to and read back from the
// run journal.
package measurement

import "time"

const (
	ToolGainChanges = "gainchanges"
	ToolRecorder    = "recorder"

	StatusRunning  = "running"
	StatusDone     = "done"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"

	ModeRecord   = "record"
	ModeTimeDiff = "timediff"
)

// Session represents a single run of one of the tools against one device.
type Session struct {
	ID           int64      `json:"ID"`                      // Unique identifier for the session
	StartTime    time.Time  `json:"startTime"`               // When the run began
	EndTime      *time.Time `json:"endTime,omitempty"`       // When the run finished, nil while running
	Tool         string     `json:"tool"`                    // "gainchanges" or "recorder"
	DeviceSerial string     `json:"deviceSerial"`            // Serial number of the RSP
	HWVersion    string     `json:"hwVersion"`               // RSP model
	Config       *string    `json:"config,string,omitempty"` // Channel configuration in JSON format
	Status       string     `json:"status"`                  // running, done, failed or canceled
}

// GainChange represents one gain change request of the gain cycling tool.
type GainChange struct {
	Sequence      uint32        `json:"sequence"`      // Change number, starting at 1
	Timestamp     time.Time     `json:"timestamp"`     // When the change was requested
	GainReduction int           `json:"gainReduction"` // Requested IF gain reduction in dB
	LNAState      uint8         `json:"lnaState"`      // Requested LNA state
	Elapsed       time.Duration `json:"elapsed"`       // Time until acknowledgment or timeout
	Acknowledged  bool          `json:"acknowledged"`  // Whether the stream reported the change in time
}

// Recording summarises one streaming run of the recorder.
type Recording struct {
	Mode           string        `json:"mode"`           // record or timediff
	Path           string        `json:"path,omitempty"` // Final output path, empty without output
	StartTime      time.Time     `json:"startTime"`      // First callback
	EndTime        time.Time     `json:"endTime"`        // Latest callback
	TotalSamples   uint64        `json:"totalSamples"`
	SampleRate     float64       `json:"sampleRate"` // Estimated samples per second
	RoundedKHz     int           `json:"roundedKHz"`
	DroppedSamples uint64        `json:"droppedSamples"`
	DropEvents     uint64        `json:"dropEvents"`
	WriteErrors    uint64        `json:"writeErrors"`
	IMin           int16         `json:"iMin"`
	IMax           int16         `json:"iMax"`
	QMin           int16         `json:"qMin"`
	QMax           int16         `json:"qMax"`
	CallbackGaps   uint64        `json:"callbackGaps"` // Time difference mode only
	MaxGap         time.Duration `json:"maxGap"`
}
