// Package budget plans bounded ingestion work: it splits a batch into
// submission chunks that honor both an object-count and an estimated
// payload-size limit, and tracks the wall-clock budget an ingestion call is
// allowed to spend before aborting with a partial result.
package budget

import (
	"time"
)

const (
	// objectOverheadBytes is the per-object JSON envelope cost (keys,
	// identifiers, punctuation) added on top of the content and vectors.
	objectOverheadBytes = 256

	// vectorElementBytes is the serialized cost of one vector element.
	// Floats render as text on the wire, so 12 bytes is closer than 4.
	vectorElementBytes = 12

	// DefaultMaxChunkObjects caps objects per submission chunk when no
	// explicit batch size is configured.
	DefaultMaxChunkObjects = 100

	// DefaultMaxChunkBytes caps the estimated chunk payload. Managed
	// gateways commonly reject request bodies past a few megabytes.
	DefaultMaxChunkBytes = 4 << 20
)

// ObjectBytes estimates the serialized size of one storage object from its
// content length and total vector elements across all slots.
func ObjectBytes(contentLen, vectorElems int) int {
	return objectOverheadBytes + contentLen + vectorElems*vectorElementBytes
}

// Range is a half-open [Start, End) slice of the batch.
type Range struct {
	// Start is the index of the first object in the chunk.
	Start int
	// End is the index one past the last object in the chunk.
	End int
}

// Chunks splits a batch into submission ranges. Each chunk holds at most
// maxObjects entries and stays under maxBytes of estimated payload; an
// object larger than maxBytes on its own still gets a chunk of one, so
// oversized records degrade to per-object submission instead of vanishing.
func Chunks(sizes []int, maxObjects, maxBytes int) []Range {
	if maxObjects <= 0 {
		maxObjects = DefaultMaxChunkObjects
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxChunkBytes
	}

	var out []Range
	start := 0
	bytes := 0
	for i, size := range sizes {
		if i > start && (i-start >= maxObjects || bytes+size > maxBytes) {
			out = append(out, Range{Start: start, End: i})
			start = i
			bytes = 0
		}
		bytes += size
	}
	if start < len(sizes) {
		out = append(out, Range{Start: start, End: len(sizes)})
	}
	return out
}

// Tracker watches the wall-clock budget of one ingestion call.
type Tracker struct {
	started time.Time
	max     time.Duration
}

// NewTracker starts a tracker with the given budget. A zero max never
// expires.
func NewTracker(max time.Duration) *Tracker {
	return &Tracker{started: time.Now(), max: max}
}

// Elapsed returns the time spent so far.
func (t *Tracker) Elapsed() time.Duration {
	return time.Since(t.started)
}

// Exceeded reports whether the budget is spent.
func (t *Tracker) Exceeded() bool {
	return t.max > 0 && t.Elapsed() > t.max
}
