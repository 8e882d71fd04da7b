package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/audiolibrelab/memocapture/internal/library"
	"github.com/audiolibrelab/memocapture/internal/timeware"
)

type fakeEngine struct {
	mu       sync.Mutex
	loaded   string
	playing  bool
	stopped  int
	position float64
	duration float64
	hasDur   bool
	seeks    []float64
	loadErr  error
	playErr  error
	seekErr  error

	onReady func()
	onEnded func()
	onErr   func(error)
}

func (f *fakeEngine) SetHandlers(onReady, onEnded func(), onErr func(error)) {
	f.onReady, f.onEnded, f.onErr = onReady, onEnded, onErr
}

func (f *fakeEngine) Load(ref string) error {
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded = ref
	return nil
}

func (f *fakeEngine) Play() error {
	if f.playErr != nil {
		return f.playErr
	}
	f.playing = true
	return nil
}

func (f *fakeEngine) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
	f.stopped++
}

func (f *fakeEngine) Seek(seconds float64) error {
	if f.seekErr != nil {
		return f.seekErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, seconds)
	f.position = seconds
	return nil
}

func (f *fakeEngine) Position() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeEngine) Duration() (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration, f.hasDur
}

// becomeReady publishes an authoritative duration and fires readiness.
func (f *fakeEngine) becomeReady(duration float64) {
	f.mu.Lock()
	f.duration = duration
	f.hasDur = true
	f.mu.Unlock()
	f.onReady()
}

type playFixture struct {
	ctrl    *Controller
	clock   *timeware.FakeClock
	engines []*fakeEngine
}

func newPlayFixture(t *testing.T) *playFixture {
	t.Helper()
	f := &playFixture{clock: timeware.NewFakeClock()}
	factory := func() Engine {
		e := &fakeEngine{}
		f.engines = append(f.engines, e)
		return e
	}
	f.ctrl = New(factory, f.clock, 33*time.Millisecond)
	return f
}

func (f *playFixture) engine() *fakeEngine { return f.engines[len(f.engines)-1] }

func testRecording(duration float64) library.Recording {
	return library.Recording{
		ID:              "rec-1",
		Name:            "Recording 1",
		ArtifactRef:     "blob:1",
		DurationSeconds: duration,
		DurationLabel:   library.FormatDuration(duration),
		Kind:            library.KindRaw,
	}
}

func TestSeekBeforeReadyAppliesExactlyOnce(t *testing.T) {
	f := newPlayFixture(t)

	if err := f.ctrl.Play(testRecording(10)); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	f.ctrl.SeekFraction(0.5)
	if got := len(f.engine().seeks); got != 0 {
		t.Fatalf("seek must not reach the engine before readiness, got %d", got)
	}

	f.engine().becomeReady(10)
	if got := f.engine().seeks; len(got) != 1 || got[0] != 5 {
		t.Fatalf("expected exactly one seek to 5s on readiness, got %v", got)
	}

	// Readiness firing again must not re-apply the consumed target.
	f.engine().onReady()
	if got := len(f.engine().seeks); got != 1 {
		t.Errorf("pending seek applied more than once: %d", got)
	}
}

func TestSecondPendingSeekOverwritesFirst(t *testing.T) {
	f := newPlayFixture(t)
	f.ctrl.Play(testRecording(10))

	f.ctrl.SeekFraction(0.2)
	f.ctrl.SeekFraction(0.8)
	f.engine().becomeReady(10)

	if got := f.engine().seeks; len(got) != 1 || got[0] != 8 {
		t.Errorf("only the last pending target must be honored, got %v", got)
	}
}

func TestSeekUpdatesUIImmediately(t *testing.T) {
	f := newPlayFixture(t)

	var updates []Progress
	f.ctrl.SetProgressFunc(func(p Progress) { updates = append(updates, p) })
	f.ctrl.Play(testRecording(10))

	f.ctrl.SeekFraction(0.5)

	if len(updates) == 0 {
		t.Fatal("seek must emit immediate UI feedback")
	}
	last := updates[len(updates)-1]
	if last.Position != 5 || last.Percent != 50 {
		t.Errorf("expected immediate position 5s / 50%%, got %v / %v", last.Position, last.Percent)
	}
}

func TestFallbackDurationUntilAuthoritativeKnown(t *testing.T) {
	f := newPlayFixture(t)
	f.ctrl.Play(testRecording(10))

	if got := f.ctrl.Snapshot().Duration; got != 10 {
		t.Errorf("expected fallback duration 10, got %v", got)
	}

	// Engine reports a slightly different authoritative duration.
	f.engine().becomeReady(12)
	if got := f.ctrl.Snapshot().Duration; got != 12 {
		t.Errorf("expected authoritative duration 12, got %v", got)
	}
}

func TestNonFiniteEngineDurationIsIgnored(t *testing.T) {
	f := newPlayFixture(t)
	f.ctrl.Play(testRecording(10))

	f.engine().mu.Lock()
	f.engine().duration = 0
	f.engine().hasDur = true
	f.engine().mu.Unlock()
	f.engine().onReady()

	f.clock.Advance(100 * time.Millisecond)
	if got := f.ctrl.Snapshot().Duration; got != 10 {
		t.Errorf("non-positive engine duration must not replace fallback, got %v", got)
	}
}

func TestProgressClampedWhenPositionExceedsDuration(t *testing.T) {
	f := newPlayFixture(t)
	f.ctrl.Play(testRecording(10))
	f.engine().becomeReady(10)

	f.engine().mu.Lock()
	f.engine().position = 10.4
	f.engine().mu.Unlock()

	f.clock.Advance(50 * time.Millisecond)
	if got := f.ctrl.Snapshot().Percent; got != 100 {
		t.Errorf("percent must clamp to 100, got %v", got)
	}
}

func TestProgressSampledOnTimer(t *testing.T) {
	f := newPlayFixture(t)

	var updates int
	f.ctrl.SetProgressFunc(func(Progress) { updates++ })
	f.ctrl.Play(testRecording(10))
	f.engine().becomeReady(10)

	f.clock.Advance(time.Second)
	// ~30 samples per second.
	if updates < 25 || updates > 35 {
		t.Errorf("expected ~30 progress samples, got %d", updates)
	}
}

func TestNewSessionTearsDownPrevious(t *testing.T) {
	f := newPlayFixture(t)

	f.ctrl.Play(testRecording(10))
	first := f.engine()
	first.becomeReady(10)

	f.ctrl.Play(testRecording(20))
	if first.stopped == 0 {
		t.Error("previous engine must be stopped before a new session starts")
	}

	// Stale callbacks from the first engine must be no-ops.
	first.onEnded()
	if !f.ctrl.Active() {
		t.Error("stale ended event must not touch the new session")
	}

	f.clock.Advance(time.Second)
	second := f.engine()
	if got := len(first.seeks); got != 0 {
		t.Errorf("stale session received seeks: %v", first.seeks)
	}
	if second == first {
		t.Fatal("expected a fresh engine per session")
	}
}

func TestEndedResetsState(t *testing.T) {
	f := newPlayFixture(t)

	f.ctrl.Play(testRecording(10))
	f.engine().becomeReady(10)
	f.ctrl.SeekFraction(0.5)

	f.engine().onEnded()

	snap := f.ctrl.Snapshot()
	if snap.Playing || snap.Position != 0 || snap.Percent != 0 {
		t.Errorf("ended must fully reset indicators, got %+v", snap)
	}

	// No further progress samples after teardown.
	var updates int
	f.ctrl.SetProgressFunc(func(Progress) { updates++ })
	f.clock.Advance(time.Second)
	if updates != 0 {
		t.Errorf("progress ticker survived teardown: %d samples", updates)
	}
}

func TestLoadErrorLeavesNoActiveSession(t *testing.T) {
	f := newPlayFixture(t)

	factoryErr := errors.New("decode failure")
	f.ctrl = New(func() Engine {
		e := &fakeEngine{loadErr: factoryErr}
		f.engines = append(f.engines, e)
		return e
	}, f.clock, 33*time.Millisecond)

	err := f.ctrl.Play(testRecording(10))
	if !errors.Is(err, ErrArtifactLoad) {
		t.Fatalf("expected ErrArtifactLoad, got %v", err)
	}

	snap := f.ctrl.Snapshot()
	if snap.Playing {
		t.Error("failed load must not leave a partially-initialized session active")
	}
	if !snap.Unavailable {
		t.Error("load failure must surface the unavailable state")
	}
}

func TestExplicitStopResetsIndicators(t *testing.T) {
	f := newPlayFixture(t)

	f.ctrl.Play(testRecording(10))
	f.engine().becomeReady(10)
	f.clock.Advance(100 * time.Millisecond)

	f.ctrl.Stop()

	if f.ctrl.Active() {
		t.Error("expected inactive after stop")
	}
	if f.engine().stopped == 0 {
		t.Error("engine must be stopped")
	}
	if snap := f.ctrl.Snapshot(); snap.Position != 0 || snap.Percent != 0 {
		t.Errorf("indicators must reset on stop, got %+v", snap)
	}
}
