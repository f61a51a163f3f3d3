package tracking

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/anl331/vid-clipper/internal/ports"
	"github.com/anl331/vid-clipper/internal/types"
)

func discardLogf(string, string, ...any) {}

type fakeDetector struct {
	backend string
	dets    []types.Detection
	err     error
	calls   int
}

func (f *fakeDetector) Backend() string { return f.backend }

func (f *fakeDetector) Detect(context.Context, string, float64, float64) ([]types.Detection, error) {
	f.calls++
	return f.dets, f.err
}

func TestDetect_CascadesOnFailureAndEmpty(t *testing.T) {
	failing := &fakeDetector{backend: "person", err: errors.New("no model")}
	empty := &fakeDetector{backend: "face"}
	hit := &fakeDetector{backend: "cascade", dets: []types.Detection{
		{Time: 1, Box: types.Rect{X: 100, Y: 100, W: 200, H: 400}},
	}}

	dets := Detect(context.Background(), asDetectors(failing, empty, hit), "v.mp4", 0, 30, discardLogf)
	if len(dets) != 1 {
		t.Fatalf("expected cascade to reach third backend, got %v", dets)
	}
	if failing.calls != 1 || empty.calls != 1 || hit.calls != 1 {
		t.Fatalf("expected each backend tried once")
	}
}

func TestDetect_AllBackendsMiss(t *testing.T) {
	a := &fakeDetector{backend: "person"}
	b := &fakeDetector{backend: "face"}
	dets := Detect(context.Background(), asDetectors(a, b), "v.mp4", 0, 30, discardLogf)
	if dets != nil {
		t.Fatalf("expected nil on total miss, got %v", dets)
	}
}

func TestFirstCenterX_UsesEarliestDetection(t *testing.T) {
	dets := []types.Detection{
		{Time: 5, Box: types.Rect{X: 1500, Y: 0, W: 100, H: 100}},
		{Time: 1, Box: types.Rect{X: 300, Y: 0, W: 100, H: 100}},
	}
	x, ok := FirstCenterX(dets, 1920)
	if !ok {
		t.Fatal("expected a center")
	}
	want := 350.0 / 1920.0
	if x != want {
		t.Fatalf("expected %v, got %v", want, x)
	}
}

func TestTightCrop_PadsAndCentersOnFaceRegion(t *testing.T) {
	info := types.VideoInfo{Width: 1920, Height: 1080}
	dets := []types.Detection{
		{Time: 0, Box: types.Rect{X: 800, Y: 200, W: 300, H: 600}},
	}
	crop, ok := TightCrop(dets, info, discardLogf)
	if !ok {
		t.Fatal("expected a tight crop")
	}
	if int(crop.W)%2 != 0 || int(crop.H)%2 != 0 {
		t.Fatalf("crop dimensions must be even, got %vx%v", crop.W, crop.H)
	}
	if crop.W < 1920*minSizeFraction || crop.H < 50 {
		t.Fatalf("crop below minimums: %+v", crop)
	}
	if crop.X < 0 || crop.Y < 0 || crop.X+crop.W > 1920 || crop.Y+crop.H > 1080 {
		t.Fatalf("crop out of frame: %+v", crop)
	}
}

func TestTightCrop_RejectsFullFrameSubject(t *testing.T) {
	info := types.VideoInfo{Width: 1920, Height: 1080}
	dets := []types.Detection{
		{Time: 0, Box: types.Rect{X: 0, Y: 0, W: 1900, H: 1060}},
	}
	if _, ok := TightCrop(dets, info, discardLogf); ok {
		t.Fatal("expected rejection of near-full-frame subject")
	}
}

func TestTightCrop_NoDetections(t *testing.T) {
	if _, ok := TightCrop(nil, types.VideoInfo{Width: 1920, Height: 1080}, discardLogf); ok {
		t.Fatal("expected no crop without detections")
	}
}

func TestBuildKeyframes_AssignsNearestDetections(t *testing.T) {
	dets := []types.Detection{
		{Time: 10, Box: types.Rect{X: 90, Y: 90, W: 20, H: 20}},
		{Time: 40, Box: types.Rect{X: 190, Y: 90, W: 20, H: 20}},
	}
	kfs := BuildKeyframes(dets, 10, 40, 4)
	if len(kfs) != 4 {
		t.Fatalf("expected 4 keyframes, got %d", len(kfs))
	}
	if !kfs[0].Valid || kfs[0].X != 100 {
		t.Fatalf("first keyframe should hold first detection: %+v", kfs[0])
	}
	if !kfs[3].Valid || kfs[3].X != 200 {
		t.Fatalf("last keyframe should hold last detection: %+v", kfs[3])
	}
	if kfs[1].Valid || kfs[2].Valid {
		t.Fatalf("middle keyframes should be misses: %+v", kfs[1:3])
	}
}

func TestSmooth_RequiresTwoDetections(t *testing.T) {
	kfs := []Keyframe{
		{T: 0, X: 100, Y: 100, Valid: true},
		{T: 1}, {T: 2}, {T: 3},
	}
	if _, ok := Smooth(kfs, 1920, 1080); ok {
		t.Fatal("expected failure with a single detection")
	}
}

func TestSmooth_InterpolatesAndStaysInBounds(t *testing.T) {
	kfs := []Keyframe{
		{T: 0},
		{T: 1, X: 100, Y: 500, W: 50, H: 50, Valid: true},
		{T: 2},
		{T: 3, X: 400, Y: 500, W: 50, H: 50, Valid: true},
		{T: 4},
	}
	out, ok := Smooth(kfs, 1920, 1080)
	if !ok {
		t.Fatal("expected smoothing to succeed")
	}
	if len(out) != len(kfs) {
		t.Fatalf("length changed: %d", len(out))
	}
	for i, kf := range out {
		if kf.X < 0 || kf.X > 1919 || kf.Y < 0 || kf.Y > 1079 {
			t.Fatalf("keyframe %d out of bounds: %+v", i, kf)
		}
		if kf.W != 50 || kf.H != 50 {
			t.Fatalf("keyframe %d missing size fill: %+v", i, kf)
		}
	}
	// The interpolated midpoint (250) survives a window-3 average of a
	// linear ramp.
	if out[2].X != 250 {
		t.Fatalf("expected midpoint 250, got %v", out[2].X)
	}
	// X must be monotonic for a left-to-right pan.
	for i := 1; i < len(out); i++ {
		if out[i].X < out[i-1].X {
			t.Fatalf("smoothed path not monotonic at %d: %v", i, out)
		}
	}
}

func TestSendcmdScript(t *testing.T) {
	kfs := []Keyframe{
		{T: 10, X: 500},
		{T: 12, X: 700},
	}
	script := SendcmdScript(kfs, 608, 1080, 1920, 1080, false)
	lines := strings.Split(strings.TrimSpace(script), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 commands, got %q", script)
	}
	if lines[0] != "0.000 crop x 196;" {
		t.Fatalf("unexpected first command %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "2.000 crop x ") {
		t.Fatalf("expected relative time 2.000, got %q", lines[1])
	}
}

func asDetectors(fakes ...*fakeDetector) []ports.Detector {
	out := make([]ports.Detector, len(fakes))
	for i, d := range fakes {
		out[i] = d
	}
	return out
}
