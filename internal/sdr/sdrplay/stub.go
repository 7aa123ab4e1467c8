//go:build !sdrplay

package sdrplay

import "errors"

// ErrNotCompiled is returned by New when the binary was built without the
// "sdrplay" build tag.
var ErrNotCompiled = errors.New("sdrplay: SDRplay API support not compiled in, rebuild with -tags sdrplay")

// New returns ErrNotCompiled. Build with -tags sdrplay to link the vendor
// library.
func New() (API, error) {
	return nil, ErrNotCompiled
}
