package library

import (
	"fmt"
	"time"
)

// Kind classifies a recording. Libraries of different kinds never intermix
// in storage or display.
type Kind string

const (
	KindRaw        Kind = "raw"
	KindAIImproved Kind = "aiImproved"
)

// Kinds lists every known kind, in display order.
var Kinds = []Kind{KindRaw, KindAIImproved}

// StorageKey returns the persistent-store key holding this kind's sequence.
func (k Kind) StorageKey() string {
	return string(k) + "Recordings"
}

// Recording is one captured clip. The id and artifact reference are fixed
// at creation; only the name is mutable.
type Recording struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	ArtifactRef     string  `json:"artifactRef"`
	DurationSeconds float64 `json:"durationSeconds"`
	DurationLabel   string  `json:"durationLabel"`
	Timestamp       int64   `json:"timestamp"` // epoch millis
	Kind            Kind    `json:"kind"`
}

// CreatedAt returns the creation instant.
func (r Recording) CreatedAt() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// FormatDuration renders seconds as an "m:ss" display label.
func FormatDuration(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
