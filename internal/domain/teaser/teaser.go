// Package teaser picks the 6 second hook window that is prepended to a clip.
package teaser

import (
	"strings"

	"github.com/anl331/vid-clipper/internal/ports"
	"github.com/anl331/vid-clipper/internal/types"
)

const (
	// Duration of the teaser window in seconds.
	Duration = 6.0

	// The peak must sit at least this far into the clip and leave this much
	// room before the end (teaser duration plus a second of margin).
	minLeadIn  = 2.0
	minTailGap = 7.0
)

// Window is the chosen teaser sub-window in absolute source seconds.
type Window struct {
	Start float64
	End   float64
}

// Pick returns the teaser window for a moment: the model's peak offset when
// it is valid and has speech near it, otherwise the densest 6s of speech
// inside the clip. ok is false when the clip has no room or no speech.
func Pick(m types.Moment, segments []types.Segment, logf ports.Logf) (Window, bool) {
	dur := m.Duration()
	if dur < minLeadIn+minTailGap {
		return Window{}, false
	}

	if m.PeakOffset != nil {
		off := *m.PeakOffset
		if off >= minLeadIn && off <= dur-minTailGap {
			absPeak := m.Start + off
			if speechNear(segments, absPeak) {
				return Window{Start: absPeak, End: absPeak + Duration}, true
			}
			if shifted, ok := densestSegmentStart(segments, m); ok {
				logf("INFO", "peak offset had no speech, shifted teaser to +%.1fs", shifted-m.Start)
				return Window{Start: shifted, End: shifted + Duration}, true
			}
			logf("WARNING", "no speech found for teaser, skipping hook")
			return Window{}, false
		}
	}

	if start, ok := densestWordWindow(segments, m); ok {
		return Window{Start: start, End: start + Duration}, true
	}
	return Window{}, false
}

// speechNear reports whether a substantial spoken segment sits just after
// the peak.
func speechNear(segments []types.Segment, absPeak float64) bool {
	for _, s := range segments {
		if s.Start >= absPeak-2.0 && s.End <= absPeak+4.0 && len(strings.TrimSpace(s.Text)) > 10 {
			return true
		}
	}
	return false
}

// densestSegmentStart returns the start of the wordiest segment fully inside
// the teaser-eligible part of the clip.
func densestSegmentStart(segments []types.Segment, m types.Moment) (float64, bool) {
	best, bestWords := 0.0, -1
	for _, s := range segments {
		if s.Start < m.Start+minLeadIn || s.End > m.End-minTailGap {
			continue
		}
		n := len(strings.Fields(s.Text))
		if n > bestWords {
			bestWords = n
			best = s.Start
		}
	}
	return best, bestWords >= 0
}

// densestWordWindow slides a 6s window over the clip's words and returns the
// start with the highest word count.
func densestWordWindow(segments []types.Segment, m types.Moment) (float64, bool) {
	var words []types.Word
	for _, s := range segments {
		words = append(words, s.Words...)
	}

	lo, hi := m.Start+minLeadIn, m.End-minTailGap
	best, bestCount := 0.0, 0
	for _, w := range words {
		t := w.Start
		if t < lo || t > hi {
			continue
		}
		count := 0
		for _, o := range words {
			if o.Start >= t && o.Start < t+Duration {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			best = t
		}
	}
	return best, bestCount > 0
}
