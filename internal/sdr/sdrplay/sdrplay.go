// Package sdrplay is the boundary to the SDRplay API (v3). It mirrors the
// subset of the vendor types used by the tools in this repository and
// exposes the vendor calls through the API interface, so the sequencing code
// can run against the real library (cgo, build tag "sdrplay") or a fake.
package sdrplay

import "fmt"

// APIVersion is the SDRplay API version the binding is written against.
const APIVersion float32 = 3.15

// MaxDevices is the maximum number of devices enumerated by Devices.
const MaxDevices = 4

// HWVersion identifies the RSP model.
type HWVersion uint8

const (
	RSP1    HWVersion = 1
	RSP2    HWVersion = 2
	RSPduo  HWVersion = 3
	RSPdx   HWVersion = 4
	RSP1B   HWVersion = 6
	RSPdxR2 HWVersion = 7
	RSP1A   HWVersion = 255
)

func (v HWVersion) String() string {
	switch v {
	case RSP1:
		return "RSP1"
	case RSP2:
		return "RSP2"
	case RSPduo:
		return "RSPduo"
	case RSPdx:
		return "RSPdx"
	case RSP1B:
		return "RSP1B"
	case RSPdxR2:
		return "RSPdx-R2"
	case RSP1A:
		return "RSP1A"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(v))
	}
}

// TunerSelect selects a tuner on dual tuner hardware.
type TunerSelect int

const (
	TunerNeither TunerSelect = 0
	TunerA       TunerSelect = 1
	TunerB       TunerSelect = 2
	TunerBoth    TunerSelect = 3
)

// RspDuoMode is a bit set of RSPduo operating modes.
type RspDuoMode int

const (
	RspDuoModeUnknown     RspDuoMode = 0
	RspDuoModeSingleTuner RspDuoMode = 1
	RspDuoModeDualTuner   RspDuoMode = 2
	RspDuoModeMaster      RspDuoMode = 4
	RspDuoModeSlave       RspDuoMode = 8
)

// Has reports whether all bits of o are set in m.
func (m RspDuoMode) Has(o RspDuoMode) bool {
	return m&o == o
}

// IFType is the IF frequency in kHz.
type IFType int

const (
	IFUndefined IFType = -1
	IFZero      IFType = 0
	IF450       IFType = 450
	IF1620      IFType = 1620
	IF2048      IFType = 2048
)

// Valid reports whether t is an IF frequency the API accepts.
func (t IFType) Valid() bool {
	switch t {
	case IFZero, IF450, IF1620, IF2048:
		return true
	}
	return false
}

// Bandwidth is the IF bandwidth in kHz.
type Bandwidth int

const (
	BWUndefined Bandwidth = 0
	BW0_200     Bandwidth = 200
	BW0_300     Bandwidth = 300
	BW0_600     Bandwidth = 600
	BW1_536     Bandwidth = 1536
	BW5_000     Bandwidth = 5000
	BW6_000     Bandwidth = 6000
	BW7_000     Bandwidth = 7000
	BW8_000     Bandwidth = 8000
)

// Valid reports whether b is an IF bandwidth the API accepts.
func (b Bandwidth) Valid() bool {
	switch b {
	case BW0_200, BW0_300, BW0_600, BW1_536, BW5_000, BW6_000, BW7_000, BW8_000:
		return true
	}
	return false
}

// AgcControl is the AGC loop mode.
type AgcControl int

const (
	AGCDisable AgcControl = 0
	AGC100Hz   AgcControl = 1
	AGC50Hz    AgcControl = 2
	AGC5Hz     AgcControl = 3
	AGCCtrlEn  AgcControl = 4
)

// DebugLevel is the verbosity of the API's own log.
type DebugLevel int

const (
	DebugDisable DebugLevel = 0
	DebugVerbose DebugLevel = 1
	DebugWarning DebugLevel = 2
	DebugError   DebugLevel = 3
	DebugMessage DebugLevel = 4
)

// ReasonForUpdate is a bit set telling Update which parameters changed.
type ReasonForUpdate uint32

const (
	UpdateNone          ReasonForUpdate = 0x00000000
	UpdateDevFs         ReasonForUpdate = 0x00000001
	UpdateDevPpm        ReasonForUpdate = 0x00000002
	UpdateTunerGr       ReasonForUpdate = 0x00008000
	UpdateTunerGrLimits ReasonForUpdate = 0x00010000
	UpdateTunerFrf      ReasonForUpdate = 0x00020000
	UpdateTunerBwType   ReasonForUpdate = 0x00040000
	UpdateTunerIfType   ReasonForUpdate = 0x00080000
	UpdateTunerDcOffset ReasonForUpdate = 0x00100000

	UpdateCtrlDCoffsetIQimbalance ReasonForUpdate = 0x00400000
	UpdateCtrlDecimation          ReasonForUpdate = 0x00800000
	UpdateCtrlAgc                 ReasonForUpdate = 0x01000000
)

// EventType identifies an asynchronous API event.
type EventType int

const (
	EventGainChange          EventType = 0
	EventPowerOverloadChange EventType = 1
	EventDeviceRemoved       EventType = 2
	EventRspDuoModeChange    EventType = 3
	EventDeviceFailure       EventType = 4
)

func (e EventType) String() string {
	switch e {
	case EventGainChange:
		return "gain change"
	case EventPowerOverloadChange:
		return "power overload change"
	case EventDeviceRemoved:
		return "device removed"
	case EventRspDuoModeChange:
		return "RSPduo mode change"
	case EventDeviceFailure:
		return "device failure"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Device describes an enumerated RSP. Fields other than the handle are
// refreshed by the binding after every call that lets the API modify them.
type Device struct {
	SerialNumber     string
	HWVersion        HWVersion
	Tuner            TunerSelect
	RspDuoMode       RspDuoMode
	RspDuoSampleFreq float64
	Valid            bool

	// handle is owned by the API implementation that enumerated the device.
	handle any
}

// Handle returns the implementation specific device handle.
func (d *Device) Handle() any {
	return d.handle
}

// WithHandle returns a copy of d bound to the given implementation handle.
// It is used by API implementations when enumerating devices.
func (d Device) WithHandle(h any) Device {
	d.handle = h
	return d
}

// Decimation mirrors the decimation control parameters.
type Decimation struct {
	Enable bool
	Factor uint8
}

// DCOffsetTuner mirrors the tuner DC offset compensation parameters.
type DCOffsetTuner struct {
	DCCal           uint8 `yaml:"dcCal" json:"dcCal"`
	SpeedUp         uint8 `yaml:"speedUp" json:"speedUp"`
	TrackTime       int   `yaml:"trackTime" json:"trackTime"`
	RefreshRateTime int   `yaml:"refreshRateTime" json:"refreshRateTime"`
}

// Params mirrors the fields of the device parameter block (device params
// plus receive channel A) that the tools write and verify.
type Params struct {
	SampleRateHz  float64
	Decimation    Decimation
	IFType        IFType
	Bandwidth     Bandwidth
	AGC           AgcControl
	GainReduction int
	LNAState      uint8
	DCEnable      bool
	IQEnable      bool
	DCOffsetTuner DCOffsetTuner
	RFHz          float64
}

// StreamParams mirrors the per-block stream callback parameters.
type StreamParams struct {
	FirstSampleNum uint32
	GrChanged      bool
	RfChanged      bool
	FsChanged      bool
	NumSamples     uint32
}

// GainParams carries the payload of a gain change event.
type GainParams struct {
	GRdB          uint32
	LNAGRdB       uint32
	CurrentGainDB float64
}

// EventParams carries the payload of an event. Only the member matching the
// event type is meaningful.
type EventParams struct {
	Gain          GainParams
	PowerOverload bool
	RspDuoMode    RspDuoMode
}

// StreamHandler consumes sample blocks. It runs on the API's callback
// thread and must not retain xi or xq after returning.
type StreamHandler interface {
	HandleStream(xi, xq []int16, params StreamParams, reset bool)
}

// EventHandler consumes asynchronous API events.
type EventHandler interface {
	HandleEvent(event EventType, tuner TunerSelect, params EventParams)
}

// Callbacks is the callback table registered by Init. A nil *Callbacks
// registers null callbacks, which the API accepts for a configuration check.
type Callbacks struct {
	StreamA StreamHandler
	StreamB StreamHandler
	Event   EventHandler
}

// API is the set of vendor calls used by the tools. Every method returning an
// error wraps the API's own error string.
type API interface {
	Open() error
	Close() error
	Version() (float32, error)

	LockDeviceAPI() error
	UnlockDeviceAPI() error

	Devices() ([]Device, error)
	SelectDevice(d *Device) error
	ReleaseDevice(d *Device) error
	DebugEnable(d *Device, level DebugLevel) error

	// Params reads back the current parameter block of the selected device.
	Params(d *Device) (*Params, error)
	// SetParams writes p into the parameter block of the selected device.
	SetParams(d *Device, p *Params) error
	// SetGain writes only the gain reduction and LNA state fields.
	SetGain(d *Device, gainReduction int, lnaState uint8) error

	Init(d *Device, cb *Callbacks) error
	Uninit(d *Device) error
	Update(d *Device, tuner TunerSelect, reason ReasonForUpdate) error
}
