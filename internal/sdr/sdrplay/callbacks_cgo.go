//go:build sdrplay

package sdrplay

// #include <sdrplay_api.h>
import "C"
import "unsafe"

// The API invokes these from its own callback thread. They only unpack the
// context registered by Init and hand the block to the Go handlers.

//export rspStreamACallback
func rspStreamACallback(xi *C.short, xq *C.short, params *C.sdrplay_api_StreamCbParamsT, numSamples C.uint, reset C.uint, cbContext unsafe.Pointer) {
	dispatchStream(func(cb *Callbacks) StreamHandler { return cb.StreamA }, xi, xq, params, numSamples, reset, cbContext)
}

//export rspStreamBCallback
func rspStreamBCallback(xi *C.short, xq *C.short, params *C.sdrplay_api_StreamCbParamsT, numSamples C.uint, reset C.uint, cbContext unsafe.Pointer) {
	dispatchStream(func(cb *Callbacks) StreamHandler { return cb.StreamB }, xi, xq, params, numSamples, reset, cbContext)
}

//export rspEventCallback
func rspEventCallback(eventID C.sdrplay_api_EventT, tuner C.sdrplay_api_TunerSelectT, params *C.sdrplay_api_EventParamsT, cbContext unsafe.Pointer) {
	dispatchEvent(eventID, tuner, params, cbContext)
}
