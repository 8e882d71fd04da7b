package library

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/audiolibrelab/memocapture/internal/sink"
	"github.com/audiolibrelab/memocapture/internal/store"
	"github.com/audiolibrelab/memocapture/internal/timeware"
)

// Library owns one ordered sequence of recordings per kind, newest first,
// serialized through the debounced store adapter.
type Library struct {
	store *store.Debounced
	sink  sink.Sink
	clock timeware.Clock

	mu    sync.RWMutex
	items map[Kind][]Recording
}

// DateGroup is one calendar-day bucket for presentation. Recordings keep
// their library-relative order.
type DateGroup struct {
	Label      string
	Recordings []Recording
}

// New creates a library and loads every known kind from the store.
func New(st *store.Debounced, snk sink.Sink, clock timeware.Clock) *Library {
	l := &Library{
		store: st,
		sink:  snk,
		clock: clock,
		items: make(map[Kind][]Recording),
	}
	for _, kind := range Kinds {
		l.items[kind] = l.load(kind)
	}
	return l
}

// load parses the persisted sequence for a kind. A corrupted payload yields
// an empty sequence; it is logged and never propagated.
func (l *Library) load(kind Kind) []Recording {
	raw := l.store.Read(kind.StorageKey(), "")
	if raw == "" {
		return nil
	}

	var recs []Recording
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		slog.Error("Failed to parse stored recordings, starting empty", "kind", kind, "error", err)
		return nil
	}
	return recs
}

// All returns the kind's sequence, newest first.
func (l *Library) All(kind Kind) []Recording {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Recording, len(l.items[kind]))
	copy(out, l.items[kind])
	return out
}

// Get returns a recording by id.
func (l *Library) Get(kind Kind, id string) (Recording, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, r := range l.items[kind] {
		if r.ID == id {
			return r, true
		}
	}
	return Recording{}, false
}

// Add materializes an artifact from the accumulated chunks, constructs a
// recording with a fresh id and a default name, prepends it (newest first)
// and persists. The default name counts existing recordings of the kind at
// creation time and is never recomputed.
func (l *Library) Add(ctx context.Context, kind Kind, chunks [][]byte, durationSeconds float64, mimeHint string) (Recording, error) {
	ref, err := l.sink.Materialize(ctx, chunks, mimeHint)
	if err != nil {
		return Recording{}, fmt.Errorf("failed to materialize artifact: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec := Recording{
		ID:              uuid.NewString(),
		Name:            fmt.Sprintf("Recording %d", len(l.items[kind])+1),
		ArtifactRef:     ref,
		DurationSeconds: durationSeconds,
		DurationLabel:   FormatDuration(durationSeconds),
		Timestamp:       l.clock.Now().UnixMilli(),
		Kind:            kind,
	}

	l.items[kind] = append([]Recording{rec}, l.items[kind]...)
	l.persist(kind)

	slog.Info("Recording added", "kind", kind, "id", rec.ID, "name", rec.Name, "duration", rec.DurationLabel)
	return rec, nil
}

// Delete removes the recording with the given id. Unknown ids are a no-op.
func (l *Library) Delete(kind Kind, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	recs := l.items[kind]
	for i, r := range recs {
		if r.ID == id {
			l.items[kind] = append(recs[:i:i], recs[i+1:]...)
			l.persist(kind)
			slog.Info("Recording deleted", "kind", kind, "id", id)
			return
		}
	}
	slog.Debug("Delete ignored, id not found", "kind", kind, "id", id)
}

// Rename changes a recording's name. The trimmed name must be non-empty and
// differ from the current one; otherwise nothing is persisted.
func (l *Library) Rename(kind Kind, id, newName string) bool {
	trimmed := strings.TrimSpace(newName)
	if trimmed == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for i, r := range l.items[kind] {
		if r.ID != id {
			continue
		}
		if r.Name == trimmed {
			return false
		}
		l.items[kind][i].Name = trimmed
		l.persist(kind)
		return true
	}
	return false
}

// GroupByDate partitions the sequence into calendar-day buckets, preserving
// the newest-first order inside each bucket. Presentation only.
func (l *Library) GroupByDate(kind Kind) []DateGroup {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var groups []DateGroup
	index := make(map[string]int)

	for _, r := range l.items[kind] {
		label := r.CreatedAt().Format("January 2, 2006")
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, DateGroup{Label: label})
		}
		groups[i].Recordings = append(groups[i].Recordings, r)
	}
	return groups
}

// Export hands the recording's artifact to the sink as a downloadable file
// named after the recording.
func (l *Library) Export(kind Kind, id string) error {
	rec, ok := l.Get(kind, id)
	if !ok {
		return fmt.Errorf("recording not found: %s", id)
	}
	return l.sink.ToDownloadable(rec.ArtifactRef, rec.Name)
}

// persist serializes the kind's sequence through the debounced adapter.
// Callers hold l.mu.
func (l *Library) persist(kind Kind) {
	data, err := json.Marshal(l.items[kind])
	if err != nil {
		slog.Error("Failed to serialize recordings", "kind", kind, "error", err)
		return
	}
	l.store.Write(kind.StorageKey(), string(data))
}
