package capture

import (
	"context"
	"errors"
)

// ErrDeviceUnavailable reports that the capture device could not be
// acquired (no device, or permission denied).
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// ErrInvalidTransition reports a session command issued from the wrong
// state. Callers treat it as a logged no-op, never as fatal.
var ErrInvalidTransition = errors.New("invalid session transition")

// Stream is one live acquisition from a capture device. It yields periodic
// encoded chunks for accumulation and on-demand time-domain frames for
// waveform analysis.
type Stream interface {
	// ReadFrame returns the most recent time-domain frame, or false when no
	// frame is available yet.
	ReadFrame() ([]float32, bool)

	// Chunks yields encoded audio. The channel closes on Release.
	Chunks() <-chan []byte

	// Pause suspends chunk production without losing accumulated state.
	Pause() error

	// Resume restarts chunk production after Pause.
	Resume() error

	// Release frees the device. Safe to call more than once.
	Release()
}

// Device produces live audio streams.
type Device interface {
	// Acquire opens the device. Failure maps to ErrDeviceUnavailable at the
	// session level.
	Acquire(ctx context.Context) (Stream, error)

	// Supports reports whether the device can encode the given format.
	Supports(format string) bool
}
