package netsync

import (
	"time"

	"golang.org/x/exp/slices"
)

// Sample is one buffered value. Stamp orders samples; Received is the local
// receipt time used for pruning.
type Sample[T any] struct {
	Stamp    time.Time
	Received time.Time
	Value    T
}

// Buffer is a stamp-ordered history. It is owned by the frame loop and is
// not safe for concurrent use.
type Buffer[T any] struct {
	samples []Sample[T]
	window  time.Duration
}

func NewBuffer[T any](window time.Duration) *Buffer[T] {
	return &Buffer[T]{window: window}
}

func cmpStamp[T any](s Sample[T], t time.Time) int {
	return s.Stamp.Compare(t)
}

// Add inserts v in stamp order. A sample with an equal stamp is replaced.
func (b *Buffer[T]) Add(stamp, received time.Time, v T) {
	s := Sample[T]{Stamp: stamp, Received: received, Value: v}
	i, found := slices.BinarySearchFunc(b.samples, stamp, cmpStamp[T])
	if found {
		b.samples[i] = s
		return
	}
	b.samples = slices.Insert(b.samples, i, s)
}

// Prune drops samples received more than the window before now
func (b *Buffer[T]) Prune(now time.Time) {
	cutoff := now.Add(-b.window)
	b.samples = slices.DeleteFunc(b.samples, func(s Sample[T]) bool {
		return !s.Received.After(cutoff)
	})
}

func (b *Buffer[T]) Len() int { return len(b.samples) }

// Latest is the sample with the newest stamp
func (b *Buffer[T]) Latest() (Sample[T], bool) {
	if len(b.samples) == 0 {
		return Sample[T]{}, false
	}
	return b.samples[len(b.samples)-1], true
}

// Bracket finds consecutive samples with from.Stamp <= t <= to.Stamp
func (b *Buffer[T]) Bracket(t time.Time) (from, to Sample[T], ok bool) {
	if len(b.samples) < 2 {
		return from, to, false
	}
	i, found := slices.BinarySearchFunc(b.samples, t, cmpStamp[T])
	switch {
	case found && i == len(b.samples)-1:
		return b.samples[i-1], b.samples[i], true
	case found:
		return b.samples[i], b.samples[i+1], true
	case i == 0 || i == len(b.samples):
		return from, to, false
	}
	return b.samples[i-1], b.samples[i], true
}

// Alpha is how far t lies between from and to, in [0, 1] for a bracketing pair
func Alpha[T any](from, to Sample[T], t time.Time) float64 {
	span := to.Stamp.Sub(from.Stamp)
	if span <= 0 {
		return 1
	}
	return float64(t.Sub(from.Stamp)) / float64(span)
}

// At samples the buffer at t: interpolated between a bracketing pair, else
// the latest sample verbatim. ok is false only for an empty buffer.
func At[T any](b *Buffer[T], t time.Time, lerp func(from, to T, alpha float64) T) (T, bool) {
	if from, to, ok := b.Bracket(t); ok {
		return lerp(from.Value, to.Value, Alpha(from, to, t)), true
	}
	latest, ok := b.Latest()
	return latest.Value, ok
}
