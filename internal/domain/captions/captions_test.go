package captions

import (
	"strings"
	"testing"

	"github.com/anl331/vid-clipper/internal/config"
	"github.com/anl331/vid-clipper/internal/types"
)

func testOpts() config.JobOptions {
	return config.DefaultJobOptions("")
}

func testWords() []types.Word {
	// Absolute transcript times for a clip starting at 100s.
	return []types.Word{
		{Word: "the", Start: 100.0, End: 100.4},
		{Word: "market", Start: 100.4, End: 101.0},
		{Word: "never", Start: 101.2, End: 101.8},
		{Word: "sleeps", Start: 102.5, End: 103.1},
		{Word: "at", Start: 103.1, End: 103.3},
		{Word: "all", Start: 103.3, End: 104.0},
	}
}

func TestWrapTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short stays one line", "Big News", "BIG NEWS"},
		{"long splits near midpoint", "this title is way too long", `THIS TITLE IS\NWAY TOO LONG`},
		{"single long word stays", "supercalifragilistic", "SUPERCALIFRAGILISTIC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WrapTitle(tt.in); got != tt.want {
				t.Fatalf("WrapTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHexToASSBGR(t *testing.T) {
	if got := HexToASSBGR("#ffff00"); got != "&H00ffff&" {
		t.Fatalf("expected BGR swap, got %q", got)
	}
	if got := HexToASSBGR("nonsense"); got != "&H00FFFF&" {
		t.Fatalf("expected yellow fallback, got %q", got)
	}
}

func TestFmtTime(t *testing.T) {
	if got := fmtTime(3725.5); got != "1:02:05.50" {
		t.Fatalf("unexpected timestamp %q", got)
	}
	if got := fmtTime(-1); got != "0:00:00.00" {
		t.Fatalf("expected clamp to zero, got %q", got)
	}
}

func TestGenerate_UppercasesWords(t *testing.T) {
	opts := testOpts()
	opts.TitleEnabled = false
	opts.CaptionHighlight = false
	out := Generate(testWords(), 100, "", 30, opts, false)
	if !strings.Contains(out, "THE MARKET NEVER") {
		t.Fatalf("expected uppercased chunk text in:\n%s", out)
	}
	if strings.Contains(out, "the market") {
		t.Fatalf("found lowercase caption text in:\n%s", out)
	}
}

func TestGenerate_ChunkWindowsAbut(t *testing.T) {
	opts := testOpts()
	opts.TitleEnabled = false
	opts.CaptionHighlight = false
	out := Generate(testWords(), 100, "", 30, opts, false)

	var starts, ends []string
	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, "Dialogue:") {
			continue
		}
		fields := strings.Split(line, ",")
		starts = append(starts, fields[1])
		ends = append(ends, fields[2])
	}
	if len(starts) != 2 {
		t.Fatalf("expected 2 chunk events, got %d:\n%s", len(starts), out)
	}
	// First chunk's window is closed up to the second chunk's start, so the
	// 101.8..102.5 speech gap has no caption hole.
	if ends[0] != starts[1] {
		t.Fatalf("chunk windows do not abut: end=%s next start=%s", ends[0], starts[1])
	}
}

func TestGenerate_HighlightSpansMatchWordTiming(t *testing.T) {
	opts := testOpts()
	opts.TitleEnabled = false
	out := Generate(testWords(), 100, "", 30, opts, false)

	// Chunk one: three highlights plus fillers over the 1.0..1.2 pause and
	// the 1.8..2.5 window tail. Chunk two: three abutting highlights.
	if n := strings.Count(out, "Dialogue:"); n != 8 {
		t.Fatalf("expected 8 events, got %d:\n%s", n, out)
	}
	// "NEVER" is highlighted for exactly its spoken span, not until the next
	// word starts.
	if !strings.Contains(out, `Dialogue: 0,0:00:01.20,0:00:01.80,Default,,0,0,0,,THE MARKET {\c&H00ffff&}NEVER{\c&HFFFFFF&}`) {
		t.Fatalf("expected highlight bounded by NEVER's own timing in:\n%s", out)
	}
	// The pause before "never" shows the chunk with nothing colored.
	if !strings.Contains(out, `Dialogue: 0,0:00:01.00,0:00:01.20,Default,,0,0,0,,THE MARKET NEVER`) {
		t.Fatalf("expected uncolored filler over the word gap in:\n%s", out)
	}
	// The closed-up window tail after the last word is uncolored too.
	if !strings.Contains(out, `Dialogue: 0,0:00:01.80,0:00:02.50,Default,,0,0,0,,THE MARKET NEVER`) {
		t.Fatalf("expected uncolored filler to the window end in:\n%s", out)
	}
}

func TestGenerate_TitleIntroSuppressesEarlyChunks(t *testing.T) {
	opts := testOpts()
	opts.CaptionHighlight = false
	opts.TitleIntroDuration = 3.0
	out := Generate(testWords(), 100, "My Title", 30, opts, false)

	if !strings.Contains(out, `{\fad(0,350)}MY TITLE`) {
		t.Fatalf("expected fading intro title in:\n%s", out)
	}
	// The first chunk ends at 2.5s, inside the intro, so it is skipped; the
	// second chunk survives.
	n := strings.Count(out, ",Default,,")
	if n != 1 {
		t.Fatalf("expected 1 caption event after intro suppression, got %d:\n%s", n, out)
	}
}

func TestGenerate_TopTitlePinnedFullDuration(t *testing.T) {
	opts := testOpts()
	opts.CaptionHighlight = false
	opts.TitlePosition = config.TitleTop
	out := Generate(testWords(), 100, "Pinned", 30, opts, false)

	if !strings.Contains(out, "TitleTop,,0,0,0,,PINNED") {
		t.Fatalf("expected pinned top title in:\n%s", out)
	}
	if !strings.Contains(out, "0:00:31.00,TitleTop") {
		t.Fatalf("expected title to span clip duration + 1 in:\n%s", out)
	}
	// Top mode does not delay captions.
	if got := strings.Count(out, ",Default,,"); got != 2 {
		t.Fatalf("expected 2 caption events alongside top title, got %d:\n%s", got, out)
	}
}

func TestGenerate_SuppressTitle(t *testing.T) {
	opts := testOpts()
	out := Generate(testWords(), 100, "My Title", 30, opts, true)
	if strings.Contains(out, "MY TITLE") {
		t.Fatalf("expected title suppressed in:\n%s", out)
	}
}

func TestTitleOverlay(t *testing.T) {
	opts := testOpts()
	out := TitleOverlay("Teaser Hook", 6, opts, 500)
	if !strings.Contains(out, `{\fad(0,500)}TEASER HOOK`) {
		t.Fatalf("expected fading teaser title in:\n%s", out)
	}
	if strings.Count(out, "Dialogue:") != 1 {
		t.Fatalf("expected a single event in:\n%s", out)
	}
}
