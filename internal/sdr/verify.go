package sdr

import (
	"fmt"
	"strings"

	"github.com/roman-kulish/rsp-tools/internal/sdr/sdrplay"
)

// Mismatch is a parameter that did not read back as written.
type Mismatch struct {
	Field string
	Want  string
	Got   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: %s -> %s", m.Field, m.Want, m.Got)
}

// MismatchError is returned by Session.Verify when the API changed any of the
// written parameters.
type MismatchError struct {
	Mismatches []Mismatch
}

func (e *MismatchError) Error() string {
	parts := make([]string, len(e.Mismatches))
	for i, m := range e.Mismatches {
		parts[i] = m.String()
	}
	return fmt.Sprintf("device configuration check failed: %d unexpected change(s): %s", len(e.Mismatches), strings.Join(parts, "; "))
}

type comparison struct {
	mismatches []Mismatch
}

func (c *comparison) check(field string, ok bool, format string, want, got any) {
	if ok {
		return
	}
	c.mismatches = append(c.mismatches, Mismatch{
		Field: field,
		Want:  fmt.Sprintf(format, want),
		Got:   fmt.Sprintf(format, got),
	})
}

// Compare returns every field of the device descriptor and the parameter
// block that differs from what a single tuner session configured with want
// must look like. The gain reduction is only compared with AGC disabled.
func Compare(device sdrplay.Device, want, got *sdrplay.Params) []Mismatch {
	var c comparison

	wantMode := sdrplay.RspDuoModeUnknown
	if device.HWVersion == sdrplay.RSPduo {
		wantMode = sdrplay.RspDuoModeSingleTuner
	}

	c.check("tuner", device.Tuner == sdrplay.TunerA, "0x%02x", int(sdrplay.TunerA), int(device.Tuner))
	c.check("rspDuoMode", device.RspDuoMode == wantMode, "0x%02x", int(wantMode), int(device.RspDuoMode))
	c.check("rspDuoSampleFreq", device.RspDuoSampleFreq == 0, "%.0f", 0.0, device.RspDuoSampleFreq)

	c.check("fsHz", got.SampleRateHz == want.SampleRateHz, "%.0f", want.SampleRateHz, got.SampleRateHz)
	c.check("decimation.enable", got.Decimation.Enable == want.Decimation.Enable, "%t", want.Decimation.Enable, got.Decimation.Enable)
	c.check("decimation.decimationFactor", got.Decimation.Factor == want.Decimation.Factor, "%d", want.Decimation.Factor, got.Decimation.Factor)
	c.check("ifType", got.IFType == want.IFType, "%d", int(want.IFType), int(got.IFType))
	c.check("bwType", got.Bandwidth == want.Bandwidth, "%d", int(want.Bandwidth), int(got.Bandwidth))
	c.check("agc.enable", got.AGC == want.AGC, "%d", int(want.AGC), int(got.AGC))
	if want.AGC == sdrplay.AGCDisable {
		c.check("gain.gRdB", got.GainReduction == want.GainReduction, "%d", want.GainReduction, got.GainReduction)
	}
	c.check("gain.LNAstate", got.LNAState == want.LNAState, "%d", want.LNAState, got.LNAState)
	c.check("dcOffset.DCenable", got.DCEnable == want.DCEnable, "%t", want.DCEnable, got.DCEnable)
	c.check("dcOffset.IQenable", got.IQEnable == want.IQEnable, "%t", want.IQEnable, got.IQEnable)
	c.check("dcOffsetTuner.dcCal", got.DCOffsetTuner.DCCal == want.DCOffsetTuner.DCCal, "%d", want.DCOffsetTuner.DCCal, got.DCOffsetTuner.DCCal)
	c.check("dcOffsetTuner.speedUp", got.DCOffsetTuner.SpeedUp == want.DCOffsetTuner.SpeedUp, "%d", want.DCOffsetTuner.SpeedUp, got.DCOffsetTuner.SpeedUp)
	c.check("dcOffsetTuner.trackTime", got.DCOffsetTuner.TrackTime == want.DCOffsetTuner.TrackTime, "%d", want.DCOffsetTuner.TrackTime, got.DCOffsetTuner.TrackTime)
	c.check("dcOffsetTuner.refreshRateTime", got.DCOffsetTuner.RefreshRateTime == want.DCOffsetTuner.RefreshRateTime, "%d", want.DCOffsetTuner.RefreshRateTime, got.DCOffsetTuner.RefreshRateTime)
	c.check("rfHz", got.RFHz == want.RFHz, "%.0f", want.RFHz, got.RFHz)

	return c.mismatches
}
