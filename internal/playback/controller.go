package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/audiolibrelab/memocapture/internal/library"
	"github.com/audiolibrelab/memocapture/internal/timeware"
)

// ErrArtifactLoad reports that the engine could not load a recording's
// artifact. The playback session is torn down cleanly and the display shows
// an unavailable state in place of duration.
var ErrArtifactLoad = errors.New("artifact failed to load")

// DefaultProgressInterval samples playback progress at ~30 updates/second,
// decoupling UI smoothness from engine event granularity.
const DefaultProgressInterval = 33 * time.Millisecond

// Engine is the media engine backing one playback session. Its
// authoritative duration and seek readiness arrive asynchronously after
// loading begins; readiness, completion and load failure are reported
// through the registered handlers.
type Engine interface {
	Load(ref string) error
	Play() error
	Stop()
	// Seek is valid only once the engine has signalled readiness.
	Seek(seconds float64) error
	Position() float64
	// Duration returns the authoritative duration once known.
	Duration() (float64, bool)
	SetHandlers(onReady, onEnded func(), onErr func(error))
}

// Progress is one UI snapshot of the active session.
type Progress struct {
	Percent     float64
	Position    float64
	Duration    float64
	Playing     bool
	Unavailable bool
}

// Controller wraps one media artifact at a time. It reconciles the
// recording's persisted duration with the engine's authoritative one, and
// accepts seek input before the engine is ready by parking a single pending
// target that is applied exactly once on readiness.
type Controller struct {
	clock     timeware.Clock
	interval  time.Duration
	newEngine func() Engine

	mu            sync.Mutex
	sessionID     uint64
	engine        Engine
	fallback      float64
	authoritative float64
	hasAuth       bool
	ready         bool
	playing       bool
	pendingSeek   *float64
	uiPosition    float64
	unavailable   bool
	ticker        timeware.Timer
	onProgress    func(Progress)
}

// New creates an idle playback controller. newEngine constructs one engine
// per session.
func New(newEngine func() Engine, clock timeware.Clock, interval time.Duration) *Controller {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &Controller{clock: clock, interval: interval, newEngine: newEngine}
}

// SetProgressFunc registers the UI callback invoked on every progress
// sample and on seek requests.
func (c *Controller) SetProgressFunc(f func(Progress)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onProgress = f
}

// Play starts a session for the recording, fully tearing down any previous
// session first. The recording's persisted duration seeds the fallback
// denominator used until the engine reports an authoritative one.
func (c *Controller) Play(rec library.Recording) error {
	c.mu.Lock()

	c.teardownLocked()
	sid := c.sessionID

	engine := c.newEngine()
	engine.SetHandlers(
		func() { c.onReady(sid) },
		func() { c.onEnded(sid) },
		func(err error) { c.onEngineError(sid, err) },
	)

	c.engine = engine
	c.fallback = rec.DurationSeconds
	c.unavailable = false
	c.uiPosition = 0
	c.mu.Unlock()

	if err := engine.Load(rec.ArtifactRef); err != nil {
		c.onEngineError(sid, err)
		return fmt.Errorf("%w: %v", ErrArtifactLoad, err)
	}
	if err := engine.Play(); err != nil {
		c.onEngineError(sid, err)
		return fmt.Errorf("%w: %v", ErrArtifactLoad, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != sid {
		// A load error already tore the session down.
		return ErrArtifactLoad
	}
	c.playing = true
	c.scheduleTickLocked(sid)

	slog.Info("Playback started", "id", rec.ID, "fallback_duration", rec.DurationSeconds)
	return nil
}

// SeekFraction requests a seek to a fraction of the effective duration. The
// displayed position updates immediately; if the engine is not yet ready
// the target is parked (later requests overwrite earlier ones) and applied
// exactly once when readiness fires.
func (c *Controller) SeekFraction(fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	c.mu.Lock()
	if c.engine == nil {
		c.mu.Unlock()
		return
	}
	target := fraction * c.effectiveDurationLocked()
	c.uiPosition = target

	var engine Engine
	if c.ready {
		engine = c.engine
	} else {
		c.pendingSeek = &target
	}
	cb := c.onProgress
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if engine != nil {
		if err := engine.Seek(target); err != nil {
			slog.Warn("Seek rejected by engine", "target", target, "error", err)
		}
	}
	// Immediate UI feedback regardless of engine readiness.
	if cb != nil {
		cb(snapshot)
	}
}

// Stop explicitly ends the session and resets all indicators.
func (c *Controller) Stop() {
	c.mu.Lock()
	cb := c.onProgress
	c.teardownLocked()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns the current progress state.
func (c *Controller) Snapshot() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Active reports whether a playback session is running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *Controller) onReady(sid uint64) {
	c.mu.Lock()
	if c.sessionID != sid {
		c.mu.Unlock()
		return
	}
	c.ready = true
	c.adoptDurationLocked()

	var engine Engine
	var target float64
	if c.pendingSeek != nil {
		engine = c.engine
		target = *c.pendingSeek
		c.pendingSeek = nil
	}
	c.mu.Unlock()

	if engine != nil {
		if err := engine.Seek(target); err != nil {
			slog.Warn("Pending seek rejected by engine", "target", target, "error", err)
		}
	}
}

func (c *Controller) onEnded(sid uint64) {
	c.mu.Lock()
	if c.sessionID != sid {
		c.mu.Unlock()
		return
	}
	cb := c.onProgress
	c.teardownLocked()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

func (c *Controller) onEngineError(sid uint64, err error) {
	c.mu.Lock()
	if c.sessionID != sid {
		c.mu.Unlock()
		return
	}
	slog.Error("Playback engine failed", "error", err)
	cb := c.onProgress
	c.teardownLocked()
	c.unavailable = true
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// teardownLocked stops the engine, cancels the progress ticker and resets
// every per-session field. Invalidates stale engine callbacks via the
// session id.
func (c *Controller) teardownLocked() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	if c.engine != nil {
		c.engine.Stop()
		c.engine = nil
	}
	c.sessionID++
	c.ready = false
	c.playing = false
	c.pendingSeek = nil
	c.uiPosition = 0
	c.fallback = 0
	c.authoritative = 0
	c.hasAuth = false
	c.unavailable = false
}

func (c *Controller) scheduleTickLocked(sid uint64) {
	c.ticker = c.clock.AfterFunc(c.interval, func() { c.onTick(sid) })
}

func (c *Controller) onTick(sid uint64) {
	c.mu.Lock()
	if c.sessionID != sid || !c.playing {
		c.mu.Unlock()
		return
	}

	c.adoptDurationLocked()
	if c.ready && c.pendingSeek == nil {
		c.uiPosition = c.engine.Position()
	}
	cb := c.onProgress
	snapshot := c.snapshotLocked()
	c.scheduleTickLocked(sid)
	c.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// adoptDurationLocked promotes the engine's duration to authoritative once
// it is finite and positive.
func (c *Controller) adoptDurationLocked() {
	if c.engine == nil {
		return
	}
	if d, ok := c.engine.Duration(); ok && d > 0 && !math.IsInf(d, 0) && !math.IsNaN(d) {
		c.authoritative = d
		c.hasAuth = true
	}
}

// effectiveDurationLocked is the denominator for every duration-dependent
// computation: authoritative when valid, else the persisted fallback.
func (c *Controller) effectiveDurationLocked() float64 {
	if c.hasAuth && c.authoritative > 0 {
		return c.authoritative
	}
	return c.fallback
}

func (c *Controller) snapshotLocked() Progress {
	duration := c.effectiveDurationLocked()
	percent := 0.0
	if duration > 0 {
		percent = c.uiPosition / duration * 100
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return Progress{
		Percent:     percent,
		Position:    c.uiPosition,
		Duration:    duration,
		Playing:     c.playing,
		Unavailable: c.unavailable,
	}
}
