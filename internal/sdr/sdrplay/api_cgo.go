//go:build sdrplay

package sdrplay

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lsdrplay_api

#include <stdlib.h>
#include <sdrplay_api.h>

extern void rspStreamACallback(short *xi, short *xq, sdrplay_api_StreamCbParamsT *params, unsigned int numSamples, unsigned int reset, void *cbContext);
extern void rspStreamBCallback(short *xi, short *xq, sdrplay_api_StreamCbParamsT *params, unsigned int numSamples, unsigned int reset, void *cbContext);
extern void rspEventCallback(sdrplay_api_EventT eventId, sdrplay_api_TunerSelectT tuner, sdrplay_api_EventParamsT *params, void *cbContext);

static const float rsp_header_version = SDRPLAY_API_VERSION;

enum {
	RSP_CB_STREAM_A = 1,
	RSP_CB_STREAM_B = 2,
	RSP_CB_EVENT    = 4,
};

static sdrplay_api_ErrT rsp_init(HANDLE dev, int which, void *cbContext) {
	sdrplay_api_CallbackFnsT fns = { NULL, NULL, NULL };
	if (which & RSP_CB_STREAM_A) fns.StreamACbFn = rspStreamACallback;
	if (which & RSP_CB_STREAM_B) fns.StreamBCbFn = rspStreamBCallback;
	if (which & RSP_CB_EVENT) fns.EventCbFn = rspEventCallback;
	return sdrplay_api_Init(dev, &fns, cbContext);
}

static unsigned int rsp_event_gain_grdb(sdrplay_api_EventParamsT *p) { return p->gainParams.gRdB; }
static unsigned int rsp_event_gain_lnagrdb(sdrplay_api_EventParamsT *p) { return p->gainParams.lnaGRdB; }
static double rsp_event_gain_curr(sdrplay_api_EventParamsT *p) { return p->gainParams.currGain; }
static int rsp_event_overload(sdrplay_api_EventParamsT *p) { return p->powerOverloadParams.powerOverloadChangeType == sdrplay_api_Overload_Detected; }
static int rsp_event_duo_mode(sdrplay_api_EventParamsT *p) { return (int)p->rspDuoModeParams.modeChangeType; }
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	pointer "github.com/mattn/go-pointer"

	"github.com/roman-kulish/rsp-tools/internal/sdr/driver"
)

var errForeignDevice = errors.New("sdrplay: device was not enumerated by this API")

// cDevice keeps the C copy of the device descriptor and the callback context
// registered by Init.
type cDevice struct {
	dev   *C.sdrplay_api_DeviceT
	cbRef unsafe.Pointer
}

type cAPI struct {
	mu      sync.Mutex
	devices []*cDevice
}

// New returns the API backed by the vendor shared library.
func New() (API, error) {
	return &cAPI{}, nil
}

func apiError(op string, code C.sdrplay_api_ErrT) error {
	if code == C.sdrplay_api_Success {
		return nil
	}
	return driver.NewAPIError(op, int(code), C.GoString(C.sdrplay_api_GetErrorString(code)))
}

func (a *cAPI) Open() error {
	return apiError("sdrplay_api_Open", C.sdrplay_api_Open())
}

func (a *cAPI) Close() error {
	a.mu.Lock()
	for _, d := range a.devices {
		C.free(unsafe.Pointer(d.dev))
	}
	a.devices = nil
	a.mu.Unlock()

	return apiError("sdrplay_api_Close", C.sdrplay_api_Close())
}

func (a *cAPI) Version() (float32, error) {
	var ver C.float
	if err := apiError("sdrplay_api_ApiVersion", C.sdrplay_api_ApiVersion(&ver)); err != nil {
		return 0, err
	}
	if float32(ver) != float32(C.rsp_header_version) {
		return float32(ver), fmt.Errorf("SDRplay API version mismatch - expected=%.2f found=%.2f", float32(C.rsp_header_version), float32(ver))
	}
	return float32(ver), nil
}

func (a *cAPI) LockDeviceAPI() error {
	return apiError("sdrplay_api_LockDeviceApi", C.sdrplay_api_LockDeviceApi())
}

func (a *cAPI) UnlockDeviceAPI() error {
	return apiError("sdrplay_api_UnlockDeviceApi", C.sdrplay_api_UnlockDeviceApi())
}

func (a *cAPI) Devices() ([]Device, error) {
	var list [MaxDevices]C.sdrplay_api_DeviceT
	n := C.uint(MaxDevices)

	if err := apiError("sdrplay_api_GetDevices", C.sdrplay_api_GetDevices(&list[0], &n, C.uint(MaxDevices))); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	devices := make([]Device, 0, int(n))
	for i := 0; i < int(n); i++ {
		cd := &cDevice{dev: (*C.sdrplay_api_DeviceT)(C.calloc(1, C.size_t(unsafe.Sizeof(list[i]))))}
		*cd.dev = list[i]
		a.devices = append(a.devices, cd)

		d := Device{}.WithHandle(cd)
		syncDevice(&d, cd.dev)
		devices = append(devices, d)
	}
	return devices, nil
}

func syncDevice(d *Device, c *C.sdrplay_api_DeviceT) {
	d.SerialNumber = C.GoString(&c.SerNo[0])
	d.HWVersion = HWVersion(c.hwVer)
	d.Tuner = TunerSelect(c.tuner)
	d.RspDuoMode = RspDuoMode(c.rspDuoMode)
	d.RspDuoSampleFreq = float64(c.rspDuoSampleFreq)
	d.Valid = c.valid != 0
}

func handleOf(d *Device) (*cDevice, error) {
	cd, ok := d.Handle().(*cDevice)
	if !ok || cd == nil || cd.dev == nil {
		return nil, errForeignDevice
	}
	return cd, nil
}

func (a *cAPI) SelectDevice(d *Device) error {
	cd, err := handleOf(d)
	if err != nil {
		return err
	}

	cd.dev.tuner = C.sdrplay_api_TunerSelectT(d.Tuner)
	cd.dev.rspDuoMode = C.sdrplay_api_RspDuoModeT(d.RspDuoMode)
	cd.dev.rspDuoSampleFreq = C.double(d.RspDuoSampleFreq)

	err = apiError("sdrplay_api_SelectDevice", C.sdrplay_api_SelectDevice(cd.dev))
	syncDevice(d, cd.dev)
	return err
}

func (a *cAPI) ReleaseDevice(d *Device) error {
	cd, err := handleOf(d)
	if err != nil {
		return err
	}
	return apiError("sdrplay_api_ReleaseDevice", C.sdrplay_api_ReleaseDevice(cd.dev))
}

func (a *cAPI) DebugEnable(d *Device, level DebugLevel) error {
	cd, err := handleOf(d)
	if err != nil {
		return err
	}
	return apiError("sdrplay_api_DebugEnable", C.sdrplay_api_DebugEnable(cd.dev.dev, C.sdrplay_api_DbgLvl_t(level)))
}

func (a *cAPI) deviceParams(cd *cDevice) (*C.sdrplay_api_DeviceParamsT, error) {
	var params *C.sdrplay_api_DeviceParamsT
	if err := apiError("sdrplay_api_GetDeviceParams", C.sdrplay_api_GetDeviceParams(cd.dev.dev, &params)); err != nil {
		return nil, err
	}
	if params == nil || params.rxChannelA == nil {
		return nil, errors.New("sdrplay_api_GetDeviceParams() returned no receive channel A parameters")
	}
	return params, nil
}

func (a *cAPI) Params(d *Device) (*Params, error) {
	cd, err := handleOf(d)
	if err != nil {
		return nil, err
	}
	params, err := a.deviceParams(cd)
	if err != nil {
		return nil, err
	}
	syncDevice(d, cd.dev)

	rx := params.rxChannelA
	p := Params{
		Decimation: Decimation{
			Enable: rx.ctrlParams.decimation.enable != 0,
			Factor: uint8(rx.ctrlParams.decimation.decimationFactor),
		},
		IFType:        IFType(rx.tunerParams.ifType),
		Bandwidth:     Bandwidth(rx.tunerParams.bwType),
		AGC:           AgcControl(rx.ctrlParams.agc.enable),
		GainReduction: int(rx.tunerParams.gain.gRdB),
		LNAState:      uint8(rx.tunerParams.gain.LNAstate),
		DCEnable:      rx.ctrlParams.dcOffset.DCenable != 0,
		IQEnable:      rx.ctrlParams.dcOffset.IQenable != 0,
		DCOffsetTuner: DCOffsetTuner{
			DCCal:           uint8(rx.tunerParams.dcOffsetTuner.dcCal),
			SpeedUp:         uint8(rx.tunerParams.dcOffsetTuner.speedUp),
			TrackTime:       int(rx.tunerParams.dcOffsetTuner.trackTime),
			RefreshRateTime: int(rx.tunerParams.dcOffsetTuner.refreshRateTime),
		},
		RFHz: float64(rx.tunerParams.rfFreq.rfHz),
	}
	if params.devParams != nil {
		p.SampleRateHz = float64(params.devParams.fsFreq.fsHz)
	}
	return &p, nil
}

func cBool(b bool) C.uchar {
	if b {
		return 1
	}
	return 0
}

func (a *cAPI) SetParams(d *Device, p *Params) error {
	cd, err := handleOf(d)
	if err != nil {
		return err
	}
	params, err := a.deviceParams(cd)
	if err != nil {
		return err
	}
	if params.devParams == nil {
		return errors.New("sdrplay: device parameters are not available for this device")
	}

	rx := params.rxChannelA
	params.devParams.fsFreq.fsHz = C.double(p.SampleRateHz)
	rx.ctrlParams.decimation.enable = cBool(p.Decimation.Enable)
	rx.ctrlParams.decimation.decimationFactor = C.uchar(p.Decimation.Factor)
	rx.tunerParams.ifType = C.sdrplay_api_If_kHzT(p.IFType)
	rx.tunerParams.bwType = C.sdrplay_api_Bw_MHzT(p.Bandwidth)
	rx.ctrlParams.agc.enable = C.sdrplay_api_AgcControlT(p.AGC)
	if p.AGC == AGCDisable {
		rx.tunerParams.gain.gRdB = C.int(p.GainReduction)
	}
	rx.tunerParams.gain.LNAstate = C.uchar(p.LNAState)
	rx.ctrlParams.dcOffset.DCenable = cBool(p.DCEnable)
	rx.ctrlParams.dcOffset.IQenable = cBool(p.IQEnable)
	rx.tunerParams.dcOffsetTuner.dcCal = C.uchar(p.DCOffsetTuner.DCCal)
	rx.tunerParams.dcOffsetTuner.speedUp = C.uchar(p.DCOffsetTuner.SpeedUp)
	rx.tunerParams.dcOffsetTuner.trackTime = C.int(p.DCOffsetTuner.TrackTime)
	rx.tunerParams.dcOffsetTuner.refreshRateTime = C.int(p.DCOffsetTuner.RefreshRateTime)
	rx.tunerParams.rfFreq.rfHz = C.double(p.RFHz)
	return nil
}

func (a *cAPI) SetGain(d *Device, gainReduction int, lnaState uint8) error {
	cd, err := handleOf(d)
	if err != nil {
		return err
	}
	params, err := a.deviceParams(cd)
	if err != nil {
		return err
	}

	params.rxChannelA.tunerParams.gain.gRdB = C.int(gainReduction)
	params.rxChannelA.tunerParams.gain.LNAstate = C.uchar(lnaState)
	return nil
}

func (a *cAPI) Init(d *Device, cb *Callbacks) error {
	cd, err := handleOf(d)
	if err != nil {
		return err
	}

	var which C.int
	var ctx unsafe.Pointer
	if cb != nil {
		if cb.StreamA != nil {
			which |= C.RSP_CB_STREAM_A
		}
		if cb.StreamB != nil {
			which |= C.RSP_CB_STREAM_B
		}
		if cb.Event != nil {
			which |= C.RSP_CB_EVENT
		}
		ctx = pointer.Save(cb)
	}

	if err = apiError("sdrplay_api_Init", C.rsp_init(cd.dev.dev, which, ctx)); err != nil {
		if ctx != nil {
			pointer.Unref(ctx)
		}
		return err
	}

	cd.cbRef = ctx
	syncDevice(d, cd.dev)
	return nil
}

func (a *cAPI) Uninit(d *Device) error {
	cd, err := handleOf(d)
	if err != nil {
		return err
	}

	err = apiError("sdrplay_api_Uninit", C.sdrplay_api_Uninit(cd.dev.dev))
	if cd.cbRef != nil {
		pointer.Unref(cd.cbRef)
		cd.cbRef = nil
	}
	return err
}

func (a *cAPI) Update(d *Device, tuner TunerSelect, reason ReasonForUpdate) error {
	cd, err := handleOf(d)
	if err != nil {
		return err
	}
	return apiError("sdrplay_api_Update", C.sdrplay_api_Update(cd.dev.dev,
		C.sdrplay_api_TunerSelectT(tuner),
		C.sdrplay_api_ReasonForUpdateT(reason),
		C.sdrplay_api_Update_Ext1_None))
}

func callbacksFrom(ctx unsafe.Pointer) *Callbacks {
	if ctx == nil {
		return nil
	}
	cb, _ := pointer.Restore(ctx).(*Callbacks)
	return cb
}

func dispatchStream(handler func(*Callbacks) StreamHandler, xi, xq *C.short, params *C.sdrplay_api_StreamCbParamsT, numSamples, reset C.uint, ctx unsafe.Pointer) {
	cb := callbacksFrom(ctx)
	if cb == nil {
		return
	}
	h := handler(cb)
	if h == nil {
		return
	}

	n := int(numSamples)
	var i, q []int16
	if n > 0 {
		i = unsafe.Slice((*int16)(unsafe.Pointer(xi)), n)
		q = unsafe.Slice((*int16)(unsafe.Pointer(xq)), n)
	}

	h.HandleStream(i, q, StreamParams{
		FirstSampleNum: uint32(params.firstSampleNum),
		GrChanged:      params.grChanged != 0,
		RfChanged:      params.rfChanged != 0,
		FsChanged:      params.fsChanged != 0,
		NumSamples:     uint32(params.numSamples),
	}, reset != 0)
}

func dispatchEvent(eventID C.sdrplay_api_EventT, tuner C.sdrplay_api_TunerSelectT, params *C.sdrplay_api_EventParamsT, ctx unsafe.Pointer) {
	cb := callbacksFrom(ctx)
	if cb == nil || cb.Event == nil {
		return
	}

	event := EventType(eventID)
	var p EventParams
	if params != nil {
		switch event {
		case EventGainChange:
			p.Gain = GainParams{
				GRdB:          uint32(C.rsp_event_gain_grdb(params)),
				LNAGRdB:       uint32(C.rsp_event_gain_lnagrdb(params)),
				CurrentGainDB: float64(C.rsp_event_gain_curr(params)),
			}
		case EventPowerOverloadChange:
			p.PowerOverload = C.rsp_event_overload(params) != 0
		case EventRspDuoModeChange:
			p.RspDuoMode = RspDuoMode(C.rsp_event_duo_mode(params))
		}
	}

	cb.Event.HandleEvent(event, TunerSelect(tuner), p)
}
