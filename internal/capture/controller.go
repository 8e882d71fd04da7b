package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/audiolibrelab/memocapture/internal/library"
	"github.com/audiolibrelab/memocapture/internal/timeware"
	"github.com/audiolibrelab/memocapture/internal/waveform"
)

// State represents the current state of a capture session.
type State string

const (
	StateIdle      State = "IDLE"
	StateRecording State = "RECORDING"
	StatePaused    State = "PAUSED"
)

const (
	// DefaultTickInterval drives elapsed-time display updates, independent
	// of the device's chunk cadence.
	DefaultTickInterval = 100 * time.Millisecond

	// DefaultFrameInterval drives waveform animation frames (~30/s).
	DefaultFrameInterval = 33 * time.Millisecond

	// BaselineFormat is the negotiation fallback; every device can produce
	// raw PCM wrapped as WAV.
	BaselineFormat = "audio/wav"
)

// Options tune a capture controller.
type Options struct {
	// Formats is the preference-ordered encoding list probed at start.
	Formats []string
	// TickInterval overrides the elapsed ticker cadence.
	TickInterval time.Duration
	// FrameInterval overrides the waveform frame cadence.
	FrameInterval time.Duration
}

// Controller owns the capture state machine: device lifecycle,
// pause-adjusted elapsed time, chunk accumulation, waveform scheduling and
// artifact emission on stop. One ephemeral session at a time.
type Controller struct {
	device   Device
	lib      *library.Library
	kind     library.Kind
	renderer *waveform.Progressive
	clock    timeware.Clock

	formats       []string
	tickInterval  time.Duration
	frameInterval time.Duration

	mu            sync.Mutex
	state         State
	sessionID     uint64
	stream        Stream
	format        string
	chunks        [][]byte
	startInstant  time.Time
	elapsed       time.Duration
	tickTimer     timeware.Timer
	frameTimer    timeware.Timer
	collectorDone chan struct{}
	onElapsed     func(time.Duration)
}

// New creates an idle capture controller.
func New(device Device, lib *library.Library, kind library.Kind, renderer *waveform.Progressive, clock timeware.Clock, opts Options) *Controller {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	return &Controller{
		device:        device,
		lib:           lib,
		kind:          kind,
		renderer:      renderer,
		clock:         clock,
		formats:       opts.Formats,
		tickInterval:  opts.TickInterval,
		frameInterval: opts.FrameInterval,
		state:         StateIdle,
	}
}

// SetElapsedFunc registers a display callback invoked on every elapsed tick.
func (c *Controller) SetElapsedFunc(f func(time.Duration)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onElapsed = f
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Elapsed returns the active-only recording time accumulated so far.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsedLocked()
}

func (c *Controller) elapsedLocked() time.Duration {
	if c.state == StateRecording {
		return c.clock.Now().Sub(c.startInstant)
	}
	return c.elapsed
}

// Format returns the encoding negotiated for the current session.
func (c *Controller) Format() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.format
}

// Waveform returns the live amplitude trace accumulated so far.
func (c *Controller) Waveform() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderer.Samples()
}

// Start acquires the device and begins a fresh session. It fails with
// ErrDeviceUnavailable when the device cannot be acquired and with
// ErrInvalidTransition when a session is already active.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, c.state)
	}

	stream, err := c.device.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	// Probe the preference list; negotiation never fails outright, the
	// baseline format is always available.
	c.format = BaselineFormat
	for _, f := range c.formats {
		if c.device.Supports(f) {
			c.format = f
			break
		}
	}

	c.sessionID++
	sid := c.sessionID
	c.stream = stream
	c.chunks = nil
	c.elapsed = 0
	c.startInstant = c.clock.Now()
	c.state = StateRecording
	c.renderer.Reset()

	done := make(chan struct{})
	c.collectorDone = done
	go c.collectChunks(sid, stream.Chunks(), done)

	c.scheduleTickLocked(sid)
	c.scheduleFrameLocked(sid)

	slog.Info("Capture session started", "kind", c.kind, "format", c.format)
	return nil
}

// Pause suspends the device and halts tick/frame scheduling. Accumulated
// bytes, waveform samples and elapsed time stay untouched.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRecording {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, c.state)
	}

	c.elapsed = c.clock.Now().Sub(c.startInstant)
	c.stopTimersLocked()
	if err := c.stream.Pause(); err != nil {
		slog.Warn("Device pause reported an error", "error", err)
	}
	c.state = StatePaused

	slog.Debug("Capture session paused", "elapsed", c.elapsed)
	return nil
}

// Resume restarts capture from the accumulated elapsed time. The start
// instant is re-anchored to now minus the accumulated time so paused
// duration is never counted.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePaused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, c.state)
	}

	if err := c.stream.Resume(); err != nil {
		slog.Warn("Device resume reported an error", "error", err)
	}
	c.startInstant = c.clock.Now().Add(-c.elapsed)
	c.state = StateRecording

	c.scheduleTickLocked(c.sessionID)
	c.scheduleFrameLocked(c.sessionID)

	slog.Debug("Capture session resumed", "elapsed", c.elapsed)
	return nil
}

// Stop ends the session, releases the device, materializes the accumulated
// bytes into an artifact and adds it to the library. The returned recording
// carries the final pause-adjusted duration.
func (c *Controller) Stop(ctx context.Context) (library.Recording, error) {
	c.mu.Lock()

	if c.state != StateRecording && c.state != StatePaused {
		c.mu.Unlock()
		return library.Recording{}, fmt.Errorf("%w: stop from %s", ErrInvalidTransition, c.state)
	}

	if c.state == StateRecording {
		c.elapsed = c.clock.Now().Sub(c.startInstant)
	}
	c.stopTimersLocked()
	c.releaseLocked()
	c.state = StateIdle

	done := c.collectorDone
	c.collectorDone = nil
	duration := c.elapsed.Seconds()
	format := c.format
	c.mu.Unlock()

	// Let the collector drain the closed chunk channel before reading.
	if done != nil {
		<-done
	}

	c.mu.Lock()
	chunks := c.chunks
	c.chunks = nil
	c.mu.Unlock()

	rec, err := c.lib.Add(ctx, c.kind, chunks, duration, format)
	if err != nil {
		return library.Recording{}, fmt.Errorf("failed to store recording: %w", err)
	}

	slog.Info("Capture session stopped", "duration", rec.DurationLabel, "id", rec.ID)
	return rec, nil
}

// Reset unconditionally tears the session down from any state: device
// released, timers cancelled, ephemeral state cleared. Idempotent.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTimersLocked()
	c.releaseLocked()
	c.sessionID++
	c.state = StateIdle
	c.chunks = nil
	c.elapsed = 0
	c.collectorDone = nil
	c.renderer.Reset()
}

// releaseLocked frees the device exactly once even if teardown is invoked
// redundantly.
func (c *Controller) releaseLocked() {
	if c.stream == nil {
		return
	}
	c.stream.Release()
	c.stream = nil
}

func (c *Controller) stopTimersLocked() {
	if c.tickTimer != nil {
		c.tickTimer.Stop()
		c.tickTimer = nil
	}
	if c.frameTimer != nil {
		c.frameTimer.Stop()
		c.frameTimer = nil
	}
}

func (c *Controller) collectChunks(sid uint64, ch <-chan []byte, done chan struct{}) {
	defer close(done)
	for chunk := range ch {
		c.mu.Lock()
		if c.sessionID == sid {
			c.chunks = append(c.chunks, chunk)
		}
		c.mu.Unlock()
	}
}

func (c *Controller) scheduleTickLocked(sid uint64) {
	c.tickTimer = c.clock.AfterFunc(c.tickInterval, func() { c.onTick(sid) })
}

// onTick drives the elapsed-time display. A tick from a stale session is a
// guaranteed no-op.
func (c *Controller) onTick(sid uint64) {
	c.mu.Lock()
	if c.sessionID != sid || c.state != StateRecording {
		c.mu.Unlock()
		return
	}
	elapsed := c.clock.Now().Sub(c.startInstant)
	cb := c.onElapsed
	c.scheduleTickLocked(sid)
	c.mu.Unlock()

	if cb != nil {
		cb(elapsed)
	}
}

func (c *Controller) scheduleFrameLocked(sid uint64) {
	c.frameTimer = c.clock.AfterFunc(c.frameInterval, func() { c.onFrame(sid) })
}

// onFrame pulls one analysis frame and extends the live trace. Scheduling
// stops as soon as the session leaves Recording; a late frame from a stale
// session is a no-op.
func (c *Controller) onFrame(sid uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionID != sid || c.state != StateRecording {
		return
	}
	if frame, ok := c.stream.ReadFrame(); ok {
		c.renderer.Append(frame)
	}
	c.scheduleFrameLocked(sid)
}

// FormatElapsed renders active recording time as "m:ss.t", whole seconds
// with a visible tenths component, unbounded length.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	tenths := d.Milliseconds() / 100
	secs := tenths / 10
	return fmt.Sprintf("%d:%02d.%d", secs/60, secs%60, tenths%10)
}
