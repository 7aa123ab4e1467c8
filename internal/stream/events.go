package stream

import (
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/roman-kulish/rsp-tools/internal/sdr/sdrplay"
)

// EventLogger is the event handler registered with every stream. It logs
// the API's asynchronous events at debug level and otherwise ignores them.
type EventLogger struct {
	logger *slog.Logger

	overloads atomic.Uint64
}

var _ sdrplay.EventHandler = (*EventLogger)(nil)

// NewEventLogger creates an EventLogger. A nil logger discards.
func NewEventLogger(logger *slog.Logger) *EventLogger {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger
	}
	return &EventLogger{logger: logger}
}

// HandleEvent implements sdrplay.EventHandler.
func (e *EventLogger) HandleEvent(event sdrplay.EventType, tuner sdrplay.TunerSelect, params sdrplay.EventParams) {
	attrs := []any{
		slog.String("event", event.String()),
		slog.Int("tuner", int(tuner)),
	}

	switch event {
	case sdrplay.EventGainChange:
		attrs = append(attrs,
			slog.Uint64("gRdB", uint64(params.Gain.GRdB)),
			slog.Uint64("lnaGRdB", uint64(params.Gain.LNAGRdB)),
			slog.Float64("currGain", params.Gain.CurrentGainDB),
		)
	case sdrplay.EventPowerOverloadChange:
		if params.PowerOverload {
			e.overloads.Add(1)
		}
		attrs = append(attrs, slog.Bool("overload", params.PowerOverload))
	case sdrplay.EventRspDuoModeChange:
		attrs = append(attrs, slog.Int("mode", int(params.RspDuoMode)))
	}

	e.logger.Debug("event", attrs...)
}

// Overloads returns the number of power overload detections seen.
func (e *EventLogger) Overloads() uint64 {
	return e.overloads.Load()
}
