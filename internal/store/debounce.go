package store

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/audiolibrelab/memocapture/internal/timeware"
)

// DefaultFlushDelay is the debounce window between the first staged write
// and the flush that commits every staged key.
const DefaultFlushDelay = 100 * time.Millisecond

// Debounced coalesces writes to the underlying Store. Any sequence of
// writes to one key within a single debounce window collapses to exactly
// one physical write of the final value, so write amplification is bounded
// by the number of distinct keys touched, not the number of Write calls.
type Debounced struct {
	store Store
	clock timeware.Clock
	delay time.Duration

	mu      sync.Mutex
	pending map[string]string
	timer   timeware.Timer
}

// NewDebounced wraps store with a debounce window of delay. The clock is
// injected so tests can advance virtual time instead of sleeping.
func NewDebounced(store Store, clock timeware.Clock, delay time.Duration) *Debounced {
	if delay <= 0 {
		delay = DefaultFlushDelay
	}
	return &Debounced{
		store:   store,
		clock:   clock,
		delay:   delay,
		pending: make(map[string]string),
	}
}

// Write stages value for key and (re)starts the flush timer. The physical
// write happens when the timer fires; callers do not wait on it.
func (d *Debounced) Write(key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending[key] = value
	if d.timer == nil {
		d.timer = d.clock.AfterFunc(d.delay, d.flushPending)
	} else {
		d.timer.Reset(d.delay)
	}
}

// Read returns the staged value for key if one is pending, so readers never
// observe stale data mid-debounce. Otherwise it falls through to the
// underlying store, then to def.
func (d *Debounced) Read(key, def string) string {
	d.mu.Lock()
	if v, ok := d.pending[key]; ok {
		d.mu.Unlock()
		return v
	}
	d.mu.Unlock()

	v, ok, err := d.store.Get(key)
	if err != nil {
		slog.Error("Store read failed", "key", key, "error", err)
		return def
	}
	if !ok {
		return def
	}
	return v
}

// Remove clears both the staged and the underlying entry immediately. The
// removal is not debounced: a stale pending write must never resurrect a
// deleted key.
func (d *Debounced) Remove(key string) error {
	d.mu.Lock()
	delete(d.pending, key)
	d.mu.Unlock()

	return d.store.Delete(key)
}

// Flush commits all staged writes immediately. Used at shutdown so a final
// mutation inside the debounce window is not lost.
func (d *Debounced) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()

	d.flushPending()
}

func (d *Debounced) flushPending() {
	d.mu.Lock()
	staged := d.pending
	d.pending = make(map[string]string)
	d.timer = nil
	d.mu.Unlock()

	for key, value := range staged {
		if err := d.store.Set(key, value); err != nil {
			slog.Error("Store flush failed", "key", key, "error", err)
		}
	}
}

// ReadBool reads a boolean-like preference key through the adapter.
func (d *Debounced) ReadBool(key string, def bool) bool {
	v := d.Read(key, strconv.FormatBool(def))
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("Preference value is not a boolean", "key", key, "value", v)
		return def
	}
	return b
}

// WriteBool stages a boolean-like preference key.
func (d *Debounced) WriteBool(key string, value bool) {
	d.Write(key, strconv.FormatBool(value))
}
