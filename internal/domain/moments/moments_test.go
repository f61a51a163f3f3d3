package moments

import (
	"testing"

	"github.com/anl331/vid-clipper/internal/types"
)

func discardLogf(string, string, ...any) {}

var lim = Limits{MinDuration: 20, MaxDuration: 90, MaxClips: 5}

func TestFinalize_ClampsOverlongMoments(t *testing.T) {
	in := []types.Moment{{Start: 10, End: 150, Title: "long", HookScore: 8}}
	out := Finalize(in, lim, 600, discardLogf)
	if len(out) != 1 {
		t.Fatalf("expected 1 moment, got %d", len(out))
	}
	if out[0].End != 100 {
		t.Fatalf("expected end clamped to 100, got %v", out[0].End)
	}
}

func TestFinalize_ExtendsNearMisses(t *testing.T) {
	// 12s is above the 8s drop threshold (0.4 * 20) so it gets extended.
	in := []types.Moment{{Start: 100, End: 112, Title: "short", HookScore: 5}}
	out := Finalize(in, lim, 600, discardLogf)
	if len(out) != 1 {
		t.Fatalf("expected 1 moment, got %d", len(out))
	}
	if out[0].End != 120 {
		t.Fatalf("expected end extended to 120, got %v", out[0].End)
	}
}

func TestFinalize_DropsBrokenTimestamps(t *testing.T) {
	in := []types.Moment{
		{Start: 100, End: 105, Title: "tiny", HookScore: 9},
		{Start: 200, End: 195, Title: "negative", HookScore: 9},
	}
	out := Finalize(in, lim, 600, discardLogf)
	if len(out) != 0 {
		t.Fatalf("expected all dropped, got %+v", out)
	}
}

func TestFinalize_ClampsToVideoEnd(t *testing.T) {
	in := []types.Moment{
		{Start: 3599, End: 3650, Title: "past end", HookScore: 8},
		{Start: 3000, End: 3060, Title: "runs over", HookScore: 7},
	}
	out := Finalize(in, lim, 3046, discardLogf)
	if len(out) != 1 {
		t.Fatalf("expected 1 moment, got %d: %+v", len(out), out)
	}
	if out[0].Title != "runs over" {
		t.Fatalf("unexpected survivor %q", out[0].Title)
	}
	if out[0].End != 3044 {
		t.Fatalf("expected end clamped to 3044, got %v", out[0].End)
	}
}

func TestFinalize_DropsTooShortAfterClamp(t *testing.T) {
	in := []types.Moment{{Start: 3030, End: 3090, Title: "tail", HookScore: 8}}
	out := Finalize(in, lim, 3046, discardLogf)
	if len(out) != 0 {
		t.Fatalf("expected drop after clamp left only 14s, got %+v", out)
	}
}

func TestFinalize_DedupKeepsHigherHookScore(t *testing.T) {
	in := []types.Moment{
		{Start: 100, End: 140, Title: "weaker", HookScore: 5},
		{Start: 110, End: 150, Title: "stronger", HookScore: 9},
		{Start: 200, End: 240, Title: "separate", HookScore: 6},
	}
	out := Finalize(in, lim, 600, discardLogf)
	if len(out) != 2 {
		t.Fatalf("expected 2 moments, got %d: %+v", len(out), out)
	}
	if out[0].Title != "stronger" || out[1].Title != "separate" {
		t.Fatalf("unexpected dedup result: %+v", out)
	}
}

func TestFinalize_DedupTieKeepsEarlier(t *testing.T) {
	in := []types.Moment{
		{Start: 100, End: 140, Title: "first", HookScore: 7},
		{Start: 110, End: 150, Title: "second", HookScore: 7},
	}
	out := Finalize(in, lim, 600, discardLogf)
	if len(out) != 1 || out[0].Title != "first" {
		t.Fatalf("expected tie to keep earlier moment, got %+v", out)
	}
}

func TestFinalize_RanksThenRestoresChronology(t *testing.T) {
	in := []types.Moment{
		{Start: 400, End: 440, Title: "d", HookScore: 9},
		{Start: 100, End: 140, Title: "a", HookScore: 3},
		{Start: 200, End: 240, Title: "b", HookScore: 8},
		{Start: 300, End: 340, Title: "c", HookScore: 7},
	}
	out := Finalize(in, Limits{MinDuration: 20, MaxDuration: 90, MaxClips: 2}, 600, discardLogf)
	if len(out) != 2 {
		t.Fatalf("expected 2 moments, got %d", len(out))
	}
	// Top 2 by hook score are d and b; output must be chronological.
	if out[0].Title != "b" || out[1].Title != "d" {
		t.Fatalf("unexpected ranking/order: %+v", out)
	}
}
