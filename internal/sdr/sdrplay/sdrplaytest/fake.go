// Package sdrplaytest provides an in-memory sdrplay.API for tests. It records
// every call, can fail any operation on demand and simulates the API's
// callback thread while streaming.
package sdrplaytest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roman-kulish/rsp-tools/internal/sdr/driver"
	"github.com/roman-kulish/rsp-tools/internal/sdr/sdrplay"
)

// ErrNotSelected is returned for device operations before SelectDevice.
var ErrNotSelected = errors.New("sdrplaytest: device not selected")

// SampleFunc returns the I and Q values of the n-th streamed sample.
type SampleFunc func(n uint64) (int16, int16)

// Fake is a scriptable sdrplay.API. Configure the exported fields before use;
// they must not be modified while the fake is streaming.
type Fake struct {
	// DeviceList is returned by Devices.
	DeviceList []sdrplay.Device
	// APIVersion is returned by Version. Zero means sdrplay.APIVersion.
	APIVersion float32
	// Fail maps an operation name (e.g. "Init", "SelectDevice") to the error
	// it returns.
	Fail map[string]error
	// Clamp, when set, is applied to the stored parameter block by Init, the
	// way the API silently adjusts unsupported values.
	Clamp func(p *sdrplay.Params)
	// OnInit, when set, may modify the device descriptor during Init.
	OnInit func(d *sdrplay.Device)

	// BlockSize is the number of samples per stream callback (default 1024).
	BlockSize uint32
	// Blocks is the number of blocks delivered after Init. Zero streams until
	// Uninit.
	Blocks int
	// Interval is the delay between two blocks.
	Interval time.Duration
	// FirstSampleNum is the sequence number of the first sample.
	FirstSampleNum uint32
	// Skip maps a block index to the number of samples lost before it.
	Skip map[int]uint32
	// Samples generates the sample values. Nil produces zeros.
	Samples SampleFunc
	// AckGainUpdates makes the next block after a gain Update carry
	// grChanged.
	AckGainUpdates bool
	// Events are delivered to the event handler right after Init.
	Events []Event

	mu        sync.Mutex
	calls     []string
	opened    bool
	locked    bool
	selected  string
	params    *sdrplay.Params
	updates   []Update
	pendingGr bool

	stop chan struct{}
	done chan struct{}
}

// Event is an event delivered by the simulated callback thread.
type Event struct {
	Type   sdrplay.EventType
	Tuner  sdrplay.TunerSelect
	Params sdrplay.EventParams
}

// Update records one Update call.
type Update struct {
	Tuner         sdrplay.TunerSelect
	Reason        sdrplay.ReasonForUpdate
	GainReduction int
	LNAState      uint8
}

type handle struct {
	serial string
}

// NewDevice returns a device descriptor bound to the fake.
func NewDevice(serial string, hw sdrplay.HWVersion) sdrplay.Device {
	d := sdrplay.Device{
		SerialNumber: serial,
		HWVersion:    hw,
		Tuner:        sdrplay.TunerA,
		Valid:        true,
	}
	if hw == sdrplay.RSPduo {
		d.RspDuoMode = sdrplay.RspDuoModeSingleTuner | sdrplay.RspDuoModeDualTuner | sdrplay.RspDuoModeMaster
		d.Tuner = sdrplay.TunerBoth
	}
	return d.WithHandle(&handle{serial: serial})
}

// Calls returns the names of the operations invoked so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.calls...)
}

// Updates returns every Update call, in order.
func (f *Fake) Updates() []Update {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]Update(nil), f.updates...)
}

// StoredParams returns a copy of the parameter block as last written or
// clamped.
func (f *Fake) StoredParams() sdrplay.Params {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.params == nil {
		return sdrplay.Params{}
	}
	return *f.params
}

// Locked reports whether the device API lock is held.
func (f *Fake) Locked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.locked
}

func (f *Fake) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, op)
	if err, ok := f.Fail[op]; ok {
		return err
	}
	return nil
}

func (f *Fake) Open() error {
	if err := f.record("Open"); err != nil {
		return err
	}

	f.mu.Lock()
	f.opened = true
	f.mu.Unlock()
	return nil
}

func (f *Fake) Close() error {
	if err := f.record("Close"); err != nil {
		return err
	}

	f.mu.Lock()
	f.opened = false
	f.mu.Unlock()
	return nil
}

func (f *Fake) Version() (float32, error) {
	if err := f.record("Version"); err != nil {
		return 0, err
	}
	if f.APIVersion != 0 && f.APIVersion != sdrplay.APIVersion {
		return f.APIVersion, fmt.Errorf("SDRplay API version mismatch - expected=%.2f found=%.2f", sdrplay.APIVersion, f.APIVersion)
	}
	return sdrplay.APIVersion, nil
}

func (f *Fake) LockDeviceAPI() error {
	if err := f.record("LockDeviceAPI"); err != nil {
		return err
	}

	f.mu.Lock()
	f.locked = true
	f.mu.Unlock()
	return nil
}

func (f *Fake) UnlockDeviceAPI() error {
	if err := f.record("UnlockDeviceAPI"); err != nil {
		return err
	}

	f.mu.Lock()
	f.locked = false
	f.mu.Unlock()
	return nil
}

func (f *Fake) Devices() ([]sdrplay.Device, error) {
	if err := f.record("Devices"); err != nil {
		return nil, err
	}

	n := len(f.DeviceList)
	if n > sdrplay.MaxDevices {
		n = sdrplay.MaxDevices
	}
	return append([]sdrplay.Device(nil), f.DeviceList[:n]...), nil
}

func (f *Fake) SelectDevice(d *sdrplay.Device) error {
	if err := f.record("SelectDevice"); err != nil {
		return err
	}

	h, ok := d.Handle().(*handle)
	if !ok {
		return driver.NewAPIError("sdrplay_api_SelectDevice", 1, "sdrplay_api_Fail")
	}

	f.mu.Lock()
	f.selected = h.serial
	f.params = &sdrplay.Params{}
	f.mu.Unlock()
	return nil
}

func (f *Fake) ReleaseDevice(d *sdrplay.Device) error {
	if err := f.record("ReleaseDevice"); err != nil {
		return err
	}

	f.mu.Lock()
	f.selected = ""
	f.mu.Unlock()
	return nil
}

func (f *Fake) DebugEnable(d *sdrplay.Device, level sdrplay.DebugLevel) error {
	return f.record("DebugEnable")
}

func (f *Fake) Params(d *sdrplay.Device) (*sdrplay.Params, error) {
	if err := f.record("Params"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.params == nil {
		return nil, ErrNotSelected
	}
	p := *f.params
	return &p, nil
}

func (f *Fake) SetParams(d *sdrplay.Device, p *sdrplay.Params) error {
	if err := f.record("SetParams"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.params == nil {
		return ErrNotSelected
	}
	*f.params = *p
	return nil
}

func (f *Fake) SetGain(d *sdrplay.Device, gainReduction int, lnaState uint8) error {
	if err := f.record("SetGain"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.params == nil {
		return ErrNotSelected
	}
	f.params.GainReduction = gainReduction
	f.params.LNAState = lnaState
	return nil
}

func (f *Fake) Init(d *sdrplay.Device, cb *sdrplay.Callbacks) error {
	if err := f.record("Init"); err != nil {
		return err
	}

	f.mu.Lock()
	if f.params != nil && f.Clamp != nil {
		f.Clamp(f.params)
	}
	f.mu.Unlock()

	if f.OnInit != nil {
		f.OnInit(d)
	}

	if cb == nil {
		return nil
	}

	f.stop = make(chan struct{})
	f.done = make(chan struct{})
	go f.run(cb, f.stop, f.done)
	return nil
}

func (f *Fake) Uninit(d *sdrplay.Device) error {
	err := f.record("Uninit")

	if f.stop != nil {
		close(f.stop)
		<-f.done
		f.stop, f.done = nil, nil
	}
	return err
}

func (f *Fake) Update(d *sdrplay.Device, tuner sdrplay.TunerSelect, reason sdrplay.ReasonForUpdate) error {
	if err := f.record("Update"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	u := Update{Tuner: tuner, Reason: reason}
	if f.params != nil {
		u.GainReduction = f.params.GainReduction
		u.LNAState = f.params.LNAState
	}
	f.updates = append(f.updates, u)

	if reason&sdrplay.UpdateTunerGr != 0 && f.AckGainUpdates {
		f.pendingGr = true
	}
	return nil
}

// run is the simulated callback thread.
func (f *Fake) run(cb *sdrplay.Callbacks, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	if cb.Event != nil {
		for _, e := range f.Events {
			cb.Event.HandleEvent(e.Type, e.Tuner, e.Params)
		}
	}

	if cb.StreamA == nil {
		<-stop
		return
	}

	size := f.BlockSize
	if size == 0 {
		size = 1024
	}
	xi := make([]int16, size)
	xq := make([]int16, size)

	seq := f.FirstSampleNum
	var produced uint64

	for block := 0; f.Blocks == 0 || block < f.Blocks; block++ {
		select {
		case <-stop:
			return
		default:
		}

		seq += f.Skip[block]

		for k := range xi {
			if f.Samples != nil {
				xi[k], xq[k] = f.Samples(produced + uint64(k))
			} else {
				xi[k], xq[k] = 0, 0
			}
		}

		f.mu.Lock()
		gr := f.pendingGr
		f.pendingGr = false
		f.mu.Unlock()

		cb.StreamA.HandleStream(xi, xq, sdrplay.StreamParams{
			FirstSampleNum: seq,
			GrChanged:      gr,
			NumSamples:     size,
		}, block == 0)

		seq += size
		produced += uint64(size)

		if f.Interval > 0 {
			select {
			case <-stop:
				return
			case <-time.After(f.Interval):
			}
		}
	}

	<-stop
}
