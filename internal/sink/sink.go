package sink

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Sink turns accumulated captured bytes into a playable/downloadable
// artifact identified by an opaque reference.
type Sink interface {
	// Materialize writes the accumulated chunks as one artifact and returns
	// its reference. The mime hint selects the container handling.
	Materialize(ctx context.Context, chunks [][]byte, mimeHint string) (string, error)

	// ToDownloadable exports the artifact under a user-facing name.
	ToDownloadable(ref, suggestedName string) error
}

const (
	wavBytesPerSample = 2 // LINEAR16
	wavBitsPerSample  = 16
	wavPCMFormat      = 1
)

// FileSink stores artifacts as files in the recordings directory.
type FileSink struct {
	dir        string
	exportDir  string
	sampleRate int
	channels   int
}

// NewFileSink creates a file-backed sink. Raw PCM artifacts are wrapped in
// a WAV container at the given sample rate and channel count.
func NewFileSink(dir, exportDir string, sampleRate, channels int) *FileSink {
	return &FileSink{dir: dir, exportDir: exportDir, sampleRate: sampleRate, channels: channels}
}

func (s *FileSink) Materialize(ctx context.Context, chunks [][]byte, mimeHint string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create recordings directory: %w", err)
	}

	var data []byte
	for _, c := range chunks {
		data = append(data, c...)
	}

	ext := extensionFor(mimeHint)
	if ext == "wav" {
		data = s.wrapWAV(data)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s.%s", uuid.NewString(), ext))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	slog.Debug("Artifact materialized", "path", path, "bytes", len(data), "format", ext)
	return path, nil
}

func (s *FileSink) ToDownloadable(ref, suggestedName string) error {
	if _, err := os.Stat(ref); err != nil {
		return fmt.Errorf("artifact not found: %s", ref)
	}
	if err := os.MkdirAll(s.exportDir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	name := cleanFileName(suggestedName)
	if name == "" {
		name = "recording"
	}
	dest := filepath.Join(s.exportDir, name+filepath.Ext(ref))

	src, err := os.Open(ref)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to export artifact: %w", err)
	}

	slog.Info("Artifact exported", "dest", dest)
	return nil
}

// wrapWAV prepends a PCM WAV header to raw LINEAR16 samples.
func (s *FileSink) wrapWAV(pcm []byte) []byte {
	var buf bytes.Buffer
	byteRate := s.sampleRate * s.channels * wavBytesPerSample

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(wavPCMFormat))
	binary.Write(&buf, binary.LittleEndian, uint16(s.channels))
	binary.Write(&buf, binary.LittleEndian, uint32(s.sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(s.channels*wavBytesPerSample))
	binary.Write(&buf, binary.LittleEndian, uint16(wavBitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

func extensionFor(mimeHint string) string {
	hint := strings.ToLower(mimeHint)
	switch {
	case strings.Contains(hint, "flac"):
		return "flac"
	case strings.Contains(hint, "ogg"), strings.Contains(hint, "opus"):
		return "ogg"
	case strings.Contains(hint, "mp3"), strings.Contains(hint, "mpeg"):
		return "mp3"
	default:
		return "wav"
	}
}

// cleanFileName sanitizes a filename
// Allows: letters, numbers, spaces, hyphens, underscores
func cleanFileName(name string) string {
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == ' ' || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(result.String()), " ", "_")
}
