// Package moments validates and ranks the moments proposed by the language
// model before anything is rendered.
package moments

import (
	"sort"

	"github.com/anl331/vid-clipper/internal/ports"
	"github.com/anl331/vid-clipper/internal/types"
)

const (
	// Moments shorter than this fraction of the minimum are treated as
	// broken timestamps and dropped instead of extended.
	dropFraction = 0.4

	// Starts within this window of each other count as the same moment.
	overlapWindow = 30.0

	// Clip ends are kept this far from the hard end of the video; seeking
	// past EOF yields an empty file.
	endBuffer = 2.0
)

// Limits are the per-job duration and count bounds.
type Limits struct {
	MinDuration float64
	MaxDuration float64
	MaxClips    int
}

// Finalize applies duration enforcement, video-bounds clamping, overlap
// deduplication and ranking. The result is sorted by start time and holds at
// most MaxClips entries; it may be empty.
func Finalize(in []types.Moment, lim Limits, videoDuration float64, logf ports.Logf) []types.Moment {
	out := enforceDurations(in, lim, logf)
	out = clampToVideo(out, lim, videoDuration, logf)
	out = dedupOverlapping(out, logf)

	// Rank by hook score, keep the best, then restore chronological order.
	sort.SliceStable(out, func(i, j int) bool { return out[i].HookScore > out[j].HookScore })
	if len(out) > lim.MaxClips {
		out = out[:lim.MaxClips]
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// enforceDurations clamps over-long moments, extends near-misses to the
// minimum and drops moments too short to be anything but a bad timestamp.
func enforceDurations(in []types.Moment, lim Limits, logf ports.Logf) []types.Moment {
	dropThreshold := lim.MinDuration * dropFraction
	out := make([]types.Moment, 0, len(in))
	for _, m := range in {
		d := m.Duration()
		switch {
		case d <= 0:
			logf("WARNING", "dropping %q: invalid duration %.0fs", m.Title, d)
		case d > lim.MaxDuration:
			logf("INFO", "clamped %q %.0fs -> %.0fs", m.Title, d, lim.MaxDuration)
			m.End = m.Start + lim.MaxDuration
			out = append(out, m)
		case d < lim.MinDuration && d < dropThreshold:
			logf("WARNING", "dropped %q: %.0fs is too short (min=%.0fs)", m.Title, d, lim.MinDuration)
		case d < lim.MinDuration:
			logf("INFO", "extended %q %.0fs -> %.0fs", m.Title, d, lim.MinDuration)
			m.End = m.Start + lim.MinDuration
			out = append(out, m)
		default:
			out = append(out, m)
		}
	}
	return out
}

// clampToVideo drops moments starting past the end of the video and clamps
// ends that run past it. Models sometimes hallucinate timestamps beyond the
// transcript.
func clampToVideo(in []types.Moment, lim Limits, videoDuration float64, logf ports.Logf) []types.Moment {
	if videoDuration <= 0 {
		return in
	}
	maxTS := videoDuration - endBuffer
	out := make([]types.Moment, 0, len(in))
	for _, m := range in {
		if m.Start >= maxTS {
			logf("WARNING", "dropping %q: start %.0fs is past video end (%.0fs)", m.Title, m.Start, maxTS)
			continue
		}
		if m.End > maxTS {
			m.End = maxTS
		}
		if m.Duration() < lim.MinDuration {
			logf("WARNING", "dropping %q: only %.0fs after bounds clamp (min=%.0fs)", m.Title, m.Duration(), lim.MinDuration)
			continue
		}
		out = append(out, m)
	}
	return out
}

// dedupOverlapping merges moments whose starts are within overlapWindow of
// each other, keeping the one with the higher hook score. Ties keep the
// earlier moment.
func dedupOverlapping(in []types.Moment, logf ports.Logf) []types.Moment {
	if len(in) == 0 {
		return in
	}
	sorted := make([]types.Moment, len(in))
	copy(sorted, in)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := sorted[:1]
	for _, m := range sorted[1:] {
		last := &out[len(out)-1]
		if m.Start-last.Start < overlapWindow {
			if m.HookScore > last.HookScore {
				logf("INFO", "replacing overlapping %q with higher-hook %q", last.Title, m.Title)
				*last = m
			}
			continue
		}
		out = append(out, m)
	}
	return out
}
