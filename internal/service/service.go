package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/audiolibrelab/memocapture/internal/capture"
	"github.com/audiolibrelab/memocapture/internal/config"
	"github.com/audiolibrelab/memocapture/internal/device"
	"github.com/audiolibrelab/memocapture/internal/library"
	"github.com/audiolibrelab/memocapture/internal/playback"
	"github.com/audiolibrelab/memocapture/internal/sink"
	"github.com/audiolibrelab/memocapture/internal/store"
	"github.com/audiolibrelab/memocapture/internal/timeware"
	"github.com/audiolibrelab/memocapture/internal/waveform"
)

// darkModeKey is the preference key for the dark-mode display setting.
const darkModeKey = "darkMode"

// Service is the core MemoCapture interface: one capture session, one
// playback session and the recording library behind a single facade.
type Service interface {
	// Capture operations
	StartCapture(ctx context.Context) error
	PauseCapture() error
	ResumeCapture() error
	StopCapture(ctx context.Context) (library.Recording, error)
	ResetCapture()
	CaptureState() capture.State
	CaptureElapsed() time.Duration

	// Playback operations
	Play(kind library.Kind, id string) error
	SeekFraction(fraction float64)
	StopPlayback()
	PlaybackProgress() playback.Progress

	// Library operations
	Recordings(kind library.Kind) []library.Recording
	RecordingsByDate(kind library.Kind) []library.DateGroup
	Rename(kind library.Kind, id, name string) bool
	Delete(kind library.Kind, id string)
	Export(kind library.Kind, id string) error

	// Preference operations
	DarkMode() bool
	SetDarkMode(enabled bool)

	// Information operations
	GetLastError() string

	// Close flushes pending writes and releases the store.
	Close() error
}

// MemoCaptureService is the main service implementation.
type MemoCaptureService struct {
	cfg *config.Config

	backing  store.Store
	adapter  *store.Debounced
	lib      *library.Library
	capture  *capture.Controller
	playback *playback.Controller

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// New wires the full stack from configuration: the settings database, the
// debounced persistence adapter, the library, the ffmpeg capture device and
// the playback controller.
func New(cfg *config.Config) (*MemoCaptureService, error) {
	dbPath := cfg.Store.Path
	if dbPath == "" {
		dbPath = store.DefaultDBPath()
	}
	backing, err := store.OpenSQLite(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}

	clock := timeware.RealClock{}
	adapter := store.NewDebounced(backing, clock, time.Duration(cfg.Store.FlushDelayMS)*time.Millisecond)

	snk := sink.NewFileSink(cfg.Output.Directory, cfg.Output.ExportDirectory, cfg.Audio.SampleRate, cfg.Audio.Channels)
	lib := library.New(adapter, snk, clock)

	dev := device.NewFFmpeg(cfg.Audio.Source, cfg.Audio.SampleRate, cfg.Audio.Channels)
	renderer := waveform.NewProgressive(&waveform.BufferSurface{}, cfg.Waveform.MinWidth)
	capCtrl := capture.New(dev, lib, library.KindRaw, renderer, clock, capture.Options{
		Formats: cfg.Audio.Formats,
	})

	pb := playback.New(playback.NewFFPlayEngine(clock), clock, 0)

	slog.Debug("Service wired", "db", dbPath, "output", cfg.Output.Directory)

	return &MemoCaptureService{
		cfg:      cfg,
		backing:  backing,
		adapter:  adapter,
		lib:      lib,
		capture:  capCtrl,
		playback: pb,
	}, nil
}

// StartCapture begins a fresh capture session.
func (s *MemoCaptureService) StartCapture(ctx context.Context) error {
	s.clearLastError()
	if err := s.capture.Start(ctx); err != nil {
		s.setLastError(fmt.Sprintf("Failed to start capture: %v", err))
		return err
	}
	return nil
}

// PauseCapture suspends the active session.
func (s *MemoCaptureService) PauseCapture() error {
	if err := s.capture.Pause(); err != nil {
		s.setLastError(fmt.Sprintf("Failed to pause capture: %v", err))
		return err
	}
	return nil
}

// ResumeCapture restarts a paused session.
func (s *MemoCaptureService) ResumeCapture() error {
	if err := s.capture.Resume(); err != nil {
		s.setLastError(fmt.Sprintf("Failed to resume capture: %v", err))
		return err
	}
	return nil
}

// StopCapture ends the session and stores the resulting recording.
func (s *MemoCaptureService) StopCapture(ctx context.Context) (library.Recording, error) {
	rec, err := s.capture.Stop(ctx)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to stop capture: %v", err))
		return library.Recording{}, err
	}
	s.clearLastError()
	return rec, nil
}

// ResetCapture tears the capture session down from any state.
func (s *MemoCaptureService) ResetCapture() {
	s.capture.Reset()
}

// CaptureState returns the capture state machine's current state.
func (s *MemoCaptureService) CaptureState() capture.State {
	return s.capture.State()
}

// CaptureElapsed returns the pause-adjusted recording time.
func (s *MemoCaptureService) CaptureElapsed() time.Duration {
	return s.capture.Elapsed()
}

// Play starts playback of a stored recording.
func (s *MemoCaptureService) Play(kind library.Kind, id string) error {
	rec, ok := s.lib.Get(kind, id)
	if !ok {
		err := fmt.Errorf("recording not found: %s", id)
		s.setLastError(err.Error())
		return err
	}
	s.clearLastError()
	if err := s.playback.Play(rec); err != nil {
		s.setLastError(fmt.Sprintf("Failed to play recording: %v", err))
		return err
	}
	return nil
}

// SeekFraction requests a seek to a fraction of the recording's duration.
func (s *MemoCaptureService) SeekFraction(fraction float64) {
	s.playback.SeekFraction(fraction)
}

// StopPlayback ends the active playback session.
func (s *MemoCaptureService) StopPlayback() {
	s.playback.Stop()
}

// PlaybackProgress returns the current playback snapshot.
func (s *MemoCaptureService) PlaybackProgress() playback.Progress {
	return s.playback.Snapshot()
}

// Recordings returns the kind's sequence, newest first.
func (s *MemoCaptureService) Recordings(kind library.Kind) []library.Recording {
	return s.lib.All(kind)
}

// RecordingsByDate returns the sequence partitioned into calendar-day
// buckets.
func (s *MemoCaptureService) RecordingsByDate(kind library.Kind) []library.DateGroup {
	return s.lib.GroupByDate(kind)
}

// Rename changes a recording's name. Returns false when nothing changed.
func (s *MemoCaptureService) Rename(kind library.Kind, id, name string) bool {
	return s.lib.Rename(kind, id, name)
}

// Delete removes a recording. Unknown ids are a no-op.
func (s *MemoCaptureService) Delete(kind library.Kind, id string) {
	s.lib.Delete(kind, id)
}

// Export copies a recording's artifact to the export directory.
func (s *MemoCaptureService) Export(kind library.Kind, id string) error {
	if err := s.lib.Export(kind, id); err != nil {
		s.setLastError(fmt.Sprintf("Failed to export recording: %v", err))
		return err
	}
	return nil
}

// DarkMode returns the persisted display preference. Defaults to off.
func (s *MemoCaptureService) DarkMode() bool {
	return s.adapter.ReadBool(darkModeKey, false)
}

// SetDarkMode stages the display preference through the debounced adapter.
func (s *MemoCaptureService) SetDarkMode(enabled bool) {
	s.adapter.WriteBool(darkModeKey, enabled)
}

// GetLastError returns the last error message (thread-safe).
func (s *MemoCaptureService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

// setLastError sets the last error message (thread-safe).
func (s *MemoCaptureService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe).
func (s *MemoCaptureService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// Close tears down any live sessions, flushes staged writes synchronously
// and closes the settings database.
func (s *MemoCaptureService) Close() error {
	s.capture.Reset()
	s.playback.Stop()
	s.adapter.Flush()
	if err := s.backing.Close(); err != nil {
		return fmt.Errorf("failed to close settings database: %w", err)
	}
	return nil
}
