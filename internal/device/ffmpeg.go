package device

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/audiolibrelab/memocapture/internal/capture"
)

// chunkDuration sizes the PCM chunks handed to the session accumulator.
const chunkDuration = 100 * time.Millisecond

// frameSamples is the number of time-domain samples kept for waveform
// analysis per frame.
const frameSamples = 1024

// FFmpegDevice captures microphone audio by shelling out to ffmpeg reading
// from the system audio server. It produces raw LINEAR16 PCM; the baseline
// WAV format is the only encoding it negotiates.
type FFmpegDevice struct {
	source     string
	sampleRate int
	channels   int
}

// NewFFmpeg creates a device capturing from the given source (e.g.
// "default" for the default microphone).
func NewFFmpeg(source string, sampleRate, channels int) *FFmpegDevice {
	return &FFmpegDevice{source: source, sampleRate: sampleRate, channels: channels}
}

func (d *FFmpegDevice) Supports(format string) bool {
	return format == capture.BaselineFormat
}

// Acquire starts the ffmpeg capture process. Failure to locate ffmpeg or to
// start capture maps to ErrDeviceUnavailable at the session level.
func (d *FFmpegDevice) Acquire(ctx context.Context) (capture.Stream, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	args := []string{
		"-f", "pulse",
		"-i", d.source,
		"-ac", fmt.Sprintf("%d", d.channels),
		"-ar", fmt.Sprintf("%d", d.sampleRate),
		"-f", "s16le",
		"-",
	}
	slog.Debug("Starting capture process", "args", args)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	s := &ffmpegStream{
		cmd:    cmd,
		chunks: make(chan []byte, 64),
	}
	chunkBytes := d.sampleRate * d.channels * 2 / int(time.Second/chunkDuration)

	go s.drainStderr(stderr)
	go s.readPCM(stdout, chunkBytes)

	return s, nil
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	chunks chan []byte

	mu     sync.Mutex
	paused bool
	frame  []float32

	releaseOnce sync.Once
}

func (s *ffmpegStream) Chunks() <-chan []byte { return s.chunks }

func (s *ffmpegStream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	return nil
}

func (s *ffmpegStream) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	return nil
}

// ReadFrame returns the most recent analysis frame. No frame is produced
// while paused.
func (s *ffmpegStream) ReadFrame() ([]float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused || s.frame == nil {
		return nil, false
	}
	out := make([]float32, len(s.frame))
	copy(out, s.frame)
	return out, true
}

// Release kills the capture process. Safe to call more than once; the
// chunk channel closes when the PCM reader hits EOF.
func (s *ffmpegStream) Release() {
	s.releaseOnce.Do(func() {
		if s.cmd.Process != nil {
			slog.Debug("Sending SIGINT to capture process")
			if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
				slog.Debug("Failed to send interrupt, falling back to SIGKILL", "error", err)
				s.cmd.Process.Kill()
			}
		}
	})
}

// readPCM slices the raw stream into fixed-duration chunks. Paused audio is
// discarded, not buffered.
func (s *ffmpegStream) readPCM(pipe io.ReadCloser, chunkBytes int) {
	defer close(s.chunks)
	defer pipe.Close()
	defer s.cmd.Wait()

	buf := make([]byte, chunkBytes)
	for {
		n, err := io.ReadFull(pipe, buf)
		if n > 0 {
			s.ingest(buf[:n])
		}
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				slog.Debug("Capture stream closed", "error", err)
			}
			return
		}
	}
}

func (s *ffmpegStream) ingest(data []byte) {
	s.mu.Lock()
	if s.paused {
		s.mu.Unlock()
		return
	}
	s.frame = decodeFrame(data, frameSamples)
	s.mu.Unlock()

	chunk := make([]byte, len(data))
	copy(chunk, data)

	select {
	case s.chunks <- chunk:
	default:
		// Accumulator is behind; dropping is preferable to blocking the
		// capture pipe.
		slog.Warn("Dropped capture chunk, accumulator backlogged")
	}
}

func (s *ffmpegStream) drainStderr(pipe io.ReadCloser) {
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		slog.Debug("ffmpeg output", "line", scanner.Text())
	}
	pipe.Close()
}

// decodeFrame converts little-endian LINEAR16 samples to normalized floats.
func decodeFrame(data []byte, maxSamples int) []float32 {
	n := len(data) / 2
	if n > maxSamples {
		n = maxSamples
	}
	frame := make([]float32, n)
	for i := 0; i < n; i++ {
		sample := int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
		frame[i] = float32(sample) / 32768
	}
	return frame
}
