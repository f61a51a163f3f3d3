package render

import (
	"strings"
	"testing"

	"github.com/anl331/vid-clipper/internal/config"
	"github.com/anl331/vid-clipper/internal/domain/teaser"
	"github.com/anl331/vid-clipper/internal/types"
)

func TestSanitizeTitle(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Why He NEVER Quits!?", "Why_He_NEVER_Quits"},
		{"The $1M Mistake: Don't Do This", "The_1M_Mistake_Dont_Do_This"},
		{"  spaced  out  ", "spaced__out"},
		{"", ""},
		{strings.Repeat("a", 60), strings.Repeat("a", 40)},
	}
	for _, tc := range cases {
		if got := SanitizeTitle(tc.in); got != tc.want {
			t.Errorf("SanitizeTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestOutputName(t *testing.T) {
	got := OutputName(3, "The Trick Nobody Uses")
	want := "clip_03_The_Trick_Nobody_Uses.mp4"
	if got != want {
		t.Fatalf("OutputName = %q, want %q", got, want)
	}
}

func TestTeaserPlan(t *testing.T) {
	opts := config.DefaultJobOptions("")
	opts.TeaserEnabled = true

	// The teaser does not depend on having a title; only where the title
	// lands does.
	opts.TitleEnabled = false
	if pick, carry := teaserPlan(opts, ""); !pick || carry {
		t.Fatalf("titleless teaser: pick=%v carry=%v, want pick without title carry", pick, carry)
	}
	opts.TitleEnabled = true
	if pick, carry := teaserPlan(opts, ""); !pick || carry {
		t.Fatalf("empty title: pick=%v carry=%v, want pick without title carry", pick, carry)
	}
	if pick, carry := teaserPlan(opts, "Hook"); !pick || !carry {
		t.Fatalf("titled teaser: pick=%v carry=%v, want both", pick, carry)
	}
	opts.TeaserEnabled = false
	if pick, _ := teaserPlan(opts, "Hook"); pick {
		t.Fatal("disabled teaser must not be picked")
	}
}

func TestExpectedDuration(t *testing.T) {
	m := types.Moment{Start: 10, End: 40}
	if got := expectedDuration(m, false); got != 30 {
		t.Fatalf("without teaser: got %.1f, want 30", got)
	}
	// Only a teaser that actually landed in front of the clip counts.
	if got := expectedDuration(m, true); got != 30+teaser.Duration {
		t.Fatalf("with teaser: got %.1f, want %.1f", got, 30+teaser.Duration)
	}
}

func TestFullscreenGraph(t *testing.T) {
	got := fullscreenGraph("")
	want := "[0:v]split[bg][fg];" +
		"[bg]crop=ih*9/16:ih,scale=1080:1920,boxblur=20:20[bgout];" +
		"[fg]scale=1080:-2:force_original_aspect_ratio=decrease[fgout];" +
		"[bgout][fgout]overlay=(W-w)/2:(H-h)/2[out]"
	if got != want {
		t.Fatalf("fullscreenGraph:\n got %s\nwant %s", got, want)
	}

	withAss := fullscreenGraph("/tmp/c.ass")
	if !strings.Contains(withAss, ",ass=/tmp/c.ass[out]") {
		t.Fatalf("captions not burned before output: %s", withAss)
	}
}

func TestSplitGraph_Default(t *testing.T) {
	got := splitGraph(1920, 1080, faceGeom{}, "")
	if !strings.Contains(got, "[vb]scale=-2:1280,crop=1080:1280[bot]") {
		t.Fatalf("expected centered bottom crop: %s", got)
	}
	if !strings.Contains(got, "pad=1080:640:(ow-iw)/2:(oh-ih)/2:black[top]") {
		t.Fatalf("expected letterboxed top band: %s", got)
	}
	if !strings.HasSuffix(got, "[top][bot]vstack[out]") {
		t.Fatalf("expected vstack output: %s", got)
	}
}

func TestSplitGraph_AnchoredX(t *testing.T) {
	x := 0.8
	got := splitGraph(1920, 1080, faceGeom{x: &x}, "")
	// 1920 scaled to 1280 tall is 2274 wide (even); x=0.8 centers past the
	// right edge, so the crop clamps to 2274-1080.
	if !strings.Contains(got, "[vb]scale=-2:1280,crop=1080:1280:1194:0[bot]") {
		t.Fatalf("expected clamped x-shift crop: %s", got)
	}
}

func TestSplitGraph_TightCrop(t *testing.T) {
	tight := types.Rect{X: 782, Y: 166, W: 336, H: 546}
	got := splitGraph(1920, 1080, faceGeom{tight: &tight}, "/tmp/c.ass")
	if !strings.Contains(got, "[vb]crop=336:546:782:166,scale=1080:1280:force_original_aspect_ratio=increase,crop=1080:1280[bot]") {
		t.Fatalf("expected tight subject zoom: %s", got)
	}
	if !strings.HasSuffix(got, "[base];[base]ass=/tmp/c.ass[out]") {
		t.Fatalf("captions must burn after the vstack: %s", got)
	}
}

func TestCenterGraph_StaticAnchor(t *testing.T) {
	x := 0.2
	got := centerGraph(1920, 1080, faceGeom{x: &x}, "")
	// cropW = even(1080*9/16) = 606; cx = even(clamp(384-303)) = 80.
	want := "[0:v]crop=606:ih:80:0,scale=1080:1920[out]"
	if got != want {
		t.Fatalf("centerGraph = %s, want %s", got, want)
	}
}

func TestCenterGraph_Sendcmd(t *testing.T) {
	got := centerGraph(1920, 1080, faceGeom{sendcmd: "/tmp/track.cmd"}, "")
	want := "[0:v]sendcmd=f=/tmp/track.cmd,crop=606:ih:(iw-ow)/2:0,scale=1080:1920[out]"
	if got != want {
		t.Fatalf("centerGraph = %s, want %s", got, want)
	}
}

func TestCenterGraph_NoFaceCentersCrop(t *testing.T) {
	got := centerGraph(1920, 1080, faceGeom{}, "")
	want := "[0:v]crop=606:ih,scale=1080:1920[out]"
	if got != want {
		t.Fatalf("centerGraph = %s, want %s", got, want)
	}
}

func TestPortraitVF(t *testing.T) {
	got := portraitVF("")
	want := "scale=1080:1920:force_original_aspect_ratio=decrease," +
		"pad=1080:1920:(ow-iw)/2:(oh-ih)/2:black"
	if got != want {
		t.Fatalf("portraitVF = %s, want %s", got, want)
	}
	if !strings.HasSuffix(portraitVF("/tmp/c.ass"), ",ass=/tmp/c.ass") {
		t.Fatalf("captions missing from portrait chain")
	}
}

func TestClampEvenInt(t *testing.T) {
	if got := clampEvenInt(-5, 100); got != 0 {
		t.Fatalf("negative must clamp to 0, got %d", got)
	}
	if got := clampEvenInt(101, 100); got != 100 {
		t.Fatalf("overflow must clamp to max, got %d", got)
	}
	if got := clampEvenInt(51, 100); got != 50 {
		t.Fatalf("odd values must round down, got %d", got)
	}
}
