package sdr

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/rsp-tools/internal/sdr/sdrplay"
)

var (
	// ErrDeviceNotFound is returned when no enumerated device matches the
	// requested serial number.
	ErrDeviceNotFound = errors.New("SDRplay RSP not found or not available")

	// ErrSingleTunerUnavailable is returned for an RSPduo that cannot run in
	// single tuner mode.
	ErrSingleTunerUnavailable = errors.New("SDRplay RSPduo single tuner mode not available")

	// ErrStreaming is returned when an operation requires the device to be
	// stopped.
	ErrStreaming = errors.New("device is streaming")

	// ErrNotStreaming is returned when an operation requires the device to
	// be streaming.
	ErrNotStreaming = errors.New("device is not streaming")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("session is closed")
)

// WithSessionLogger sets the logger for the session
func WithSessionLogger(logger *slog.Logger) func(s *Session) {
	return func(s *Session) {
		s.logger = logger
	}
}

// Session owns one selected device from acquisition to release. Resources
// are released by Close in the reverse order of acquisition.
//
// A Session is driven from a single goroutine; only the stream and event
// handlers run on the API's callback thread.
type Session struct {
	api    sdrplay.API
	device sdrplay.Device
	logger *slog.Logger

	// unwind holds one release step per acquired resource, last acquired
	// last.
	unwind []step

	streaming bool
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

type step struct {
	name string
	fn   func() error
}

// Open acquires the API, selects the device with the given serial number
// (the first device if serial is empty) and forces single tuner mode on an
// RSPduo. On failure everything already acquired is released.
func Open(api sdrplay.API, serial string, options ...func(s *Session)) (*Session, error) {
	s := Session{
		api:    api,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&s)
	}

	if err := s.open(serial); err != nil {
		return nil, errors.Join(err, s.Close())
	}

	return &s, nil
}

func (s *Session) push(name string, fn func() error) {
	s.unwind = append(s.unwind, step{name: name, fn: fn})
}

func (s *Session) pop() {
	s.unwind = s.unwind[:len(s.unwind)-1]
}

func (s *Session) open(serial string) error {
	if err := s.api.Open(); err != nil {
		return err
	}
	s.push("close API", s.api.Close)

	ver, err := s.api.Version()
	if err != nil {
		return err
	}
	s.logger.Debug("SDRplay API opened", slog.Float64("version", float64(ver)))

	if err = s.api.LockDeviceAPI(); err != nil {
		return err
	}
	s.push("unlock device API", s.api.UnlockDeviceAPI)

	devices, err := s.api.Devices()
	if err != nil {
		return err
	}

	idx := -1
	for i := range devices {
		if serial == "" || devices[i].SerialNumber == serial {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrDeviceNotFound
	}
	s.device = devices[idx]

	if s.device.HWVersion == sdrplay.RSPduo {
		if !s.device.RspDuoMode.Has(sdrplay.RspDuoModeSingleTuner) {
			return ErrSingleTunerUnavailable
		}
		s.device.RspDuoMode = sdrplay.RspDuoModeSingleTuner
		s.device.Tuner = sdrplay.TunerA
		s.device.RspDuoSampleFreq = 0
	}

	if err = s.api.SelectDevice(&s.device); err != nil {
		return err
	}

	// The device is released under the API lock once streaming is over.
	// Replace the unlock step so the lock is not released twice.
	s.pop()
	s.push("release device", s.release)

	if err = s.api.UnlockDeviceAPI(); err != nil {
		return err
	}

	s.logger.Info("device selected",
		slog.String("serial", s.device.SerialNumber),
		slog.String("hwVer", s.device.HWVersion.String()),
	)

	return nil
}

// release releases the device under the device API lock. The device is
// released even if the lock cannot be taken.
func (s *Session) release() error {
	var errs []error

	lockErr := s.api.LockDeviceAPI()
	if lockErr != nil {
		errs = append(errs, lockErr)
	}

	if err := s.api.ReleaseDevice(&s.device); err != nil {
		errs = append(errs, err)
	}

	if lockErr == nil {
		if err := s.api.UnlockDeviceAPI(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Device returns a copy of the selected device descriptor.
func (s *Session) Device() sdrplay.Device {
	return s.device
}

// EnableDebug turns on the API's verbose debug log for the device.
func (s *Session) EnableDebug() error {
	if s.closed {
		return ErrClosed
	}
	return s.api.DebugEnable(&s.device, sdrplay.DebugVerbose)
}

// Configure validates cfg and writes it into the device's parameter block.
func (s *Session) Configure(cfg *Config) error {
	if s.closed {
		return ErrClosed
	}
	if s.streaming {
		return ErrStreaming
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return s.api.SetParams(&s.device, cfg.Params())
}

// Verify initialises the device with null callbacks, reads the parameter
// block back and compares it with cfg. Every mismatch is logged and
// returned in a *MismatchError. The device is uninitialised before
// returning.
func (s *Session) Verify(cfg *Config) error {
	if s.closed {
		return ErrClosed
	}
	if s.streaming {
		return ErrStreaming
	}

	if err := s.api.Init(&s.device, nil); err != nil {
		return err
	}

	got, err := s.api.Params(&s.device)
	if err != nil {
		return errors.Join(err, s.api.Uninit(&s.device))
	}

	s.logger.Info("device",
		slog.String("SerNo", s.device.SerialNumber),
		slog.String("hwVer", s.device.HWVersion.String()),
		slog.String("tuner", fmt.Sprintf("0x%02x", int(s.device.Tuner))),
	)
	s.logger.Info("settings",
		slog.String("SR", humanize.SIWithDigits(got.SampleRateHz, 3, "Hz")),
		slog.String("LO", humanize.SIWithDigits(got.RFHz, 6, "Hz")),
		slog.Int("BW", int(got.Bandwidth)),
		slog.Int("If", int(got.IFType)),
		slog.Int("Dec", int(got.Decimation.Factor)),
		slog.Int("IFagc", int(got.AGC)),
		slog.Int("IFgain", got.GainReduction),
		slog.Int("LNAstate", int(got.LNAState)),
	)
	s.logger.Info("settings",
		slog.Bool("DCenable", got.DCEnable),
		slog.Bool("IQenable", got.IQEnable),
		slog.Int("dcCal", int(got.DCOffsetTuner.DCCal)),
		slog.Int("speedUp", int(got.DCOffsetTuner.SpeedUp)),
		slog.Int("trackTime", got.DCOffsetTuner.TrackTime),
		slog.Int("refreshRateTime", got.DCOffsetTuner.RefreshRateTime),
	)

	mismatches := Compare(s.device, cfg.Params(), got)
	for _, m := range mismatches {
		s.logger.Error("unexpected change",
			slog.String("field", m.Field),
			slog.String("want", m.Want),
			slog.String("got", m.Got),
		)
	}

	if err = s.api.Uninit(&s.device); err != nil {
		return err
	}

	if len(mismatches) > 0 {
		return &MismatchError{Mismatches: mismatches}
	}
	return nil
}

// Start initialises the device with the given callbacks. Callbacks must stay
// valid until Stop returns.
func (s *Session) Start(cb *sdrplay.Callbacks) error {
	if s.closed {
		return ErrClosed
	}
	if s.streaming {
		return ErrStreaming
	}
	if cb == nil {
		return errors.New("start streaming: callbacks are required")
	}

	if err := s.api.Init(&s.device, cb); err != nil {
		return err
	}

	s.streaming = true
	s.push("stop streaming", s.stop)
	return nil
}

// Stop uninitialises the device. No callback runs after Stop returns.
func (s *Session) Stop() error {
	if s.closed {
		return ErrClosed
	}
	if !s.streaming {
		return ErrNotStreaming
	}

	s.pop()
	return s.stop()
}

func (s *Session) stop() error {
	s.streaming = false
	return s.api.Uninit(&s.device)
}

// UpdateGain writes a new gain reduction and LNA state and asks the API to
// apply them to tuner A while streaming.
func (s *Session) UpdateGain(gainReduction int, lnaState uint8) error {
	if s.closed {
		return ErrClosed
	}
	if !s.streaming {
		return ErrNotStreaming
	}

	if err := s.api.SetGain(&s.device, gainReduction, lnaState); err != nil {
		return err
	}
	return s.api.Update(&s.device, sdrplay.TunerA, sdrplay.UpdateTunerGr)
}

// Close releases every acquired resource in reverse order of acquisition.
// All steps run; their errors are joined.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error

		for i := len(s.unwind) - 1; i >= 0; i-- {
			st := s.unwind[i]
			if err := st.fn(); err != nil {
				s.logger.Error("release failed", slog.String("step", st.name), slog.String("error", err.Error()))
				errs = append(errs, fmt.Errorf("%s: %w", st.name, err))
			}
		}

		s.unwind = nil
		s.closed = true
		s.closeErr = errors.Join(errs...)
	})

	return s.closeErr
}
