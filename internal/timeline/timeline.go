// Package timeline lays tracks end to end on one absolute time axis.
package timeline

import (
	"mixtape/internal/tracks"
)

// Entry places one track on the merged timeline. Offsets are in seconds.
type Entry struct {
	Track tracks.Track
	Start float64
	End   float64
}

// Duration returns the width of the entry.
func (e Entry) Duration() float64 {
	return e.End - e.Start
}

// Contains reports whether t falls inside [Start, End).
func (e Entry) Contains(t float64) bool {
	return t >= e.Start && t < e.End
}

// Timeline is an ordered run of entries where each entry starts where the
// previous one ends. The zero value is an empty timeline.
type Timeline struct {
	Entries []Entry
	Total   float64
}

// Build assigns start and end offsets to tracks in order. A track with a
// non-positive duration becomes a zero-width entry and does not move the
// running total.
func Build(list []tracks.Track) Timeline {
	entries := make([]Entry, 0, len(list))
	var running float64
	for _, t := range list {
		width := t.Duration
		if width < 0 {
			width = 0
		}
		entries = append(entries, Entry{Track: t, Start: running, End: running + width})
		running += width
	}
	return Timeline{Entries: entries, Total: running}
}

// Tracks returns the tracks in timeline order.
func (tl Timeline) Tracks() []tracks.Track {
	out := make([]tracks.Track, len(tl.Entries))
	for i, e := range tl.Entries {
		out[i] = e.Track
	}
	return out
}

// Len returns the number of entries.
func (tl Timeline) Len() int {
	return len(tl.Entries)
}
