package playback

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/audiolibrelab/memocapture/internal/timeware"
)

// FFPlayEngine plays an artifact file through a system audio player. The
// authoritative duration is probed asynchronously with ffprobe after Load,
// which is when the engine becomes seek-ready; seeking restarts the player
// at the requested offset.
type FFPlayEngine struct {
	clock timeware.Clock

	mu        sync.Mutex
	ref       string
	player    string
	cmd       *exec.Cmd
	duration  float64
	ready     bool
	base      float64 // seek offset of the current process
	startedAt int64   // unix millis when the current process started, 0 if stopped
	stopped   bool

	onReady func()
	onEnded func()
	onErr   func(error)
}

// NewFFPlayEngine returns an engine factory suitable for Controller.New.
func NewFFPlayEngine(clock timeware.Clock) func() Engine {
	return func() Engine { return &FFPlayEngine{clock: clock} }
}

func (e *FFPlayEngine) SetHandlers(onReady, onEnded func(), onErr func(error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onReady = onReady
	e.onEnded = onEnded
	e.onErr = onErr
}

// Load validates the artifact and begins the asynchronous duration probe.
func (e *FFPlayEngine) Load(ref string) error {
	if _, err := os.Stat(ref); err != nil {
		return fmt.Errorf("audio file not found: %s", ref)
	}

	player, err := findAudioPlayer()
	if err != nil {
		return fmt.Errorf("no suitable audio player found: %w", err)
	}

	e.mu.Lock()
	e.ref = ref
	e.player = player
	e.mu.Unlock()

	go e.probeDuration(ref)
	return nil
}

// probeDuration extracts the authoritative duration with ffprobe and then
// signals readiness.
func (e *FFPlayEngine) probeDuration(ref string) {
	cmd := exec.Command("ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		ref,
	)

	output, err := cmd.Output()
	if err != nil {
		e.fail(fmt.Errorf("ffprobe failed for %s: %w", ref, err))
		return
	}

	var probeResult struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &probeResult); err != nil {
		e.fail(fmt.Errorf("failed to parse ffprobe output: %w", err))
		return
	}

	seconds, err := strconv.ParseFloat(probeResult.Format.Duration, 64)
	if err != nil {
		e.fail(fmt.Errorf("ffprobe reported no duration for %s", ref))
		return
	}

	e.mu.Lock()
	e.duration = seconds
	e.ready = true
	cb := e.onReady
	e.mu.Unlock()

	slog.Debug("Artifact probed", "ref", ref, "duration", seconds)
	if cb != nil {
		cb()
	}
}

func (e *FFPlayEngine) fail(err error) {
	e.mu.Lock()
	cb := e.onErr
	e.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

// Play starts the player process from the current base offset.
func (e *FFPlayEngine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startProcessLocked(e.base)
}

func (e *FFPlayEngine) startProcessLocked(offset float64) error {
	var cmd *exec.Cmd
	ss := fmt.Sprintf("%.3f", offset)

	switch e.player {
	case "ffplay":
		cmd = exec.Command("ffplay", "-nodisp", "-autoexit", "-ss", ss, e.ref)
	case "mpv":
		cmd = exec.Command("mpv", "--no-video", "--start="+ss, e.ref)
	case "vlc":
		cmd = exec.Command("vlc", "--play-and-exit", "--start-time", ss, e.ref)
	default:
		return fmt.Errorf("unsupported player: %s", e.player)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("playback failed with %s: %w", e.player, err)
	}

	e.cmd = cmd
	e.base = offset
	e.startedAt = e.clock.Now().UnixMilli()

	go func() {
		err := cmd.Wait()

		e.mu.Lock()
		current := e.cmd == cmd && !e.stopped
		cbEnded := e.onEnded
		cbErr := e.onErr
		e.mu.Unlock()

		if !current {
			return
		}
		if err != nil {
			cbErr(fmt.Errorf("player exited abnormally: %w", err))
			return
		}
		cbEnded()
	}()

	return nil
}

// Seek restarts the player at the requested offset. Valid once ready.
func (e *FFPlayEngine) Seek(seconds float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return fmt.Errorf("engine not ready to seek")
	}
	e.killProcessLocked()
	return e.startProcessLocked(seconds)
}

// Position is the base offset plus wall-clock time since the current
// process started.
func (e *FFPlayEngine) Position() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.startedAt == 0 {
		return e.base
	}
	elapsed := float64(e.clock.Now().UnixMilli()-e.startedAt) / 1000
	return e.base + elapsed
}

func (e *FFPlayEngine) Duration() (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration, e.ready
}

// Stop kills the player process. Safe to call more than once.
func (e *FFPlayEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	e.killProcessLocked()
}

func (e *FFPlayEngine) killProcessLocked() {
	if e.cmd != nil && e.cmd.Process != nil {
		e.cmd.Process.Kill()
	}
	e.cmd = nil
	e.startedAt = 0
}

// findAudioPlayer picks the first available system player, in order of
// preference.
func findAudioPlayer() (string, error) {
	players := []string{"ffplay", "mpv", "vlc"}

	for _, player := range players {
		if _, err := exec.LookPath(player); err == nil {
			return player, nil
		}
	}

	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(players, ", "))
}
