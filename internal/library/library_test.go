package library

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/audiolibrelab/memocapture/internal/store"
	"github.com/audiolibrelab/memocapture/internal/timeware"
)

type fakeSink struct {
	refs     int
	exported []string
	fail     bool
}

func (f *fakeSink) Materialize(ctx context.Context, chunks [][]byte, mimeHint string) (string, error) {
	if f.fail {
		return "", errors.New("sink unavailable")
	}
	f.refs++
	return fmt.Sprintf("blob:%d", f.refs), nil
}

func (f *fakeSink) ToDownloadable(ref, suggestedName string) error {
	f.exported = append(f.exported, ref+"/"+suggestedName)
	return nil
}

type fixture struct {
	lib     *Library
	backing *store.MemoryStore
	adapter *store.Debounced
	clock   *timeware.FakeClock
	sink    *fakeSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backing := store.NewMemoryStore()
	clock := timeware.NewFakeClock()
	adapter := store.NewDebounced(backing, clock, 100*time.Millisecond)
	snk := &fakeSink{}
	return &fixture{
		lib:     New(adapter, snk, clock),
		backing: backing,
		adapter: adapter,
		clock:   clock,
		sink:    snk,
	}
}

func (f *fixture) add(t *testing.T, duration float64) Recording {
	t.Helper()
	rec, err := f.lib.Add(context.Background(), KindRaw, [][]byte{{1}}, duration, "audio/wav")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	return rec
}

func TestDefaultNamesAndDisplayOrder(t *testing.T) {
	f := newFixture(t)

	f.add(t, 1)
	f.clock.Advance(time.Second)
	f.add(t, 2)
	f.clock.Advance(time.Second)
	f.add(t, 3)

	recs := f.lib.All(KindRaw)
	if len(recs) != 3 {
		t.Fatalf("expected 3 recordings, got %d", len(recs))
	}

	// Names follow creation order, display order is newest first.
	wantNames := []string{"Recording 3", "Recording 2", "Recording 1"}
	for i, want := range wantNames {
		if recs[i].Name != want {
			t.Errorf("position %d: expected %q, got %q", i, want, recs[i].Name)
		}
	}
}

func TestPersistedOrderRoundTrips(t *testing.T) {
	f := newFixture(t)

	f.add(t, 1.4)
	f.add(t, 65.2)
	f.clock.Advance(200 * time.Millisecond)

	// Reload from the same backing store.
	adapter := store.NewDebounced(f.backing, f.clock, 100*time.Millisecond)
	reloaded := New(adapter, f.sink, f.clock)

	recs := reloaded.All(KindRaw)
	if len(recs) != 2 {
		t.Fatalf("expected 2 recordings after reload, got %d", len(recs))
	}
	if recs[0].Name != "Recording 2" || recs[1].Name != "Recording 1" {
		t.Errorf("order lost in round-trip: %q, %q", recs[0].Name, recs[1].Name)
	}
	if recs[1].DurationLabel != "0:01" || recs[0].DurationLabel != "1:05" {
		t.Errorf("duration labels lost: %q, %q", recs[1].DurationLabel, recs[0].DurationLabel)
	}
}

func TestCorruptPayloadLoadsEmpty(t *testing.T) {
	backing := store.NewMemoryStore()
	backing.Set(KindRaw.StorageKey(), "{not json[")
	clock := timeware.NewFakeClock()
	adapter := store.NewDebounced(backing, clock, 100*time.Millisecond)

	lib := New(adapter, &fakeSink{}, clock)
	if got := len(lib.All(KindRaw)); got != 0 {
		t.Errorf("corrupt payload must load as empty, got %d recordings", got)
	}
}

func TestDeleteRemovesExactlyOne(t *testing.T) {
	f := newFixture(t)

	a := f.add(t, 1)
	f.add(t, 2)

	f.lib.Delete(KindRaw, a.ID)
	if got := len(f.lib.All(KindRaw)); got != 1 {
		t.Fatalf("expected 1 recording left, got %d", got)
	}

	// Unknown id is a no-op.
	f.lib.Delete(KindRaw, "no-such-id")
	if got := len(f.lib.All(KindRaw)); got != 1 {
		t.Errorf("delete of unknown id must be a no-op, got %d recordings", got)
	}
}

func TestRenamePersistsOnlyOnChange(t *testing.T) {
	f := newFixture(t)

	rec := f.add(t, 1)
	f.clock.Advance(200 * time.Millisecond)
	writesAfterAdd := f.backing.SetCalls

	if f.lib.Rename(KindRaw, rec.ID, "  Recording 1  ") {
		t.Error("rename to the current name (after trim) must not report a change")
	}
	if f.lib.Rename(KindRaw, rec.ID, "   ") {
		t.Error("rename to an empty name must be rejected")
	}
	f.clock.Advance(200 * time.Millisecond)
	if f.backing.SetCalls != writesAfterAdd {
		t.Errorf("no-op renames must not persist, writes went %d -> %d", writesAfterAdd, f.backing.SetCalls)
	}

	if !f.lib.Rename(KindRaw, rec.ID, "Riff idea") {
		t.Fatal("expected rename to apply")
	}
	got, _ := f.lib.Get(KindRaw, rec.ID)
	if got.Name != "Riff idea" {
		t.Errorf("expected renamed recording, got %q", got.Name)
	}
	f.clock.Advance(200 * time.Millisecond)
	if f.backing.SetCalls != writesAfterAdd+1 {
		t.Errorf("expected exactly one more physical write, got %d", f.backing.SetCalls-writesAfterAdd)
	}
}

func TestGroupByDatePreservesOrder(t *testing.T) {
	f := newFixture(t)

	f.add(t, 1)
	f.clock.Advance(time.Minute)
	f.add(t, 2)
	f.clock.Advance(48 * time.Hour)
	f.add(t, 3)

	groups := f.lib.GroupByDate(KindRaw)
	if len(groups) != 2 {
		t.Fatalf("expected 2 date buckets, got %d", len(groups))
	}
	// Newest bucket first, holding the newest recording.
	if len(groups[0].Recordings) != 1 || groups[0].Recordings[0].Name != "Recording 3" {
		t.Errorf("first bucket wrong: %+v", groups[0])
	}
	if len(groups[1].Recordings) != 2 || groups[1].Recordings[0].Name != "Recording 2" {
		t.Errorf("second bucket must keep newest-first order: %+v", groups[1])
	}
}

func TestKindsAreIsolated(t *testing.T) {
	f := newFixture(t)

	f.add(t, 1)
	if _, err := f.lib.Add(context.Background(), KindAIImproved, [][]byte{{2}}, 2, "audio/wav"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if got := len(f.lib.All(KindRaw)); got != 1 {
		t.Errorf("raw library should have 1 recording, got %d", got)
	}
	improved := f.lib.All(KindAIImproved)
	if len(improved) != 1 || improved[0].Name != "Recording 1" {
		t.Errorf("kinds must number independently: %+v", improved)
	}
}

func TestAddSinkFailurePropagates(t *testing.T) {
	f := newFixture(t)
	f.sink.fail = true

	if _, err := f.lib.Add(context.Background(), KindRaw, [][]byte{{1}}, 1, "audio/wav"); err == nil {
		t.Error("expected error when the sink cannot materialize")
	}
	if got := len(f.lib.All(KindRaw)); got != 0 {
		t.Errorf("failed add must not mutate the library, got %d recordings", got)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00"},
		{9.9, "0:09"},
		{60, "1:00"},
		{125.4, "2:05"},
		{3725, "62:05"},
	}
	for _, c := range cases {
		if got := FormatDuration(c.seconds); got != c.want {
			t.Errorf("FormatDuration(%v): expected %q, got %q", c.seconds, c.want, got)
		}
	}
}
