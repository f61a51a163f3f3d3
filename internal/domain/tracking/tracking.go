// Package tracking turns raw subject detections into stable crop geometry:
// a cascade over detector backends, trajectory smoothing and clamped boxes.
package tracking

import (
	"context"
	"fmt"
	"math"

	"github.com/anl331/vid-clipper/internal/ports"
	"github.com/anl331/vid-clipper/internal/types"
)

const (
	// Fraction of the person box holding head and shoulders.
	faceFraction = 0.80

	padXFraction    = 0.06
	padTopFraction  = 0.04
	padBotFraction  = 0.10
	minSizeFraction = 0.10

	// A subject covering more of the frame than this is already
	// full-screen; a tight zoom would show nothing new.
	maxSizeFraction = 0.75

	minCropPixels = 50

	// Keyframes sampled per clip for the animated crop.
	DefaultKeyframes = 12

	smoothWindow = 3
)

// Detect runs the detector cascade over the clip window and returns the
// first backend's non-empty result. Errors and empty results fall through to
// the next backend.
func Detect(ctx context.Context, detectors []ports.Detector, videoPath string, start, end float64, logf ports.Logf) []types.Detection {
	for _, d := range detectors {
		dets, err := d.Detect(ctx, videoPath, start, end)
		if err != nil {
			logf("INFO", "subject detection: %s backend failed (%v), trying next", d.Backend(), err)
			continue
		}
		if len(dets) == 0 {
			logf("INFO", "subject detection: %s backend found nothing, trying next", d.Backend())
			continue
		}
		logf("INFO", "subject detection: %s backend found %d boxes", d.Backend(), len(dets))
		return dets
	}
	logf("INFO", "subject detection: no backend found a subject")
	return nil
}

// FirstCenterX returns the normalized horizontal center (0 left, 1 right) of
// the earliest detection. The opening frame sets viewer expectation, so later
// movement does not shift a static crop.
func FirstCenterX(dets []types.Detection, frameW float64) (float64, bool) {
	if len(dets) == 0 || frameW <= 0 {
		return 0, false
	}
	first := dets[0]
	for _, d := range dets[1:] {
		if d.Time < first.Time {
			first = d
		}
	}
	x := first.Box.CenterX() / frameW
	return math.Max(0, math.Min(1, x)), true
}

// TightCrop derives a padded head-and-shoulders crop from the earliest
// detection, in source pixels. ok is false when no useful tight zoom exists.
func TightCrop(dets []types.Detection, info types.VideoInfo, logf ports.Logf) (types.Rect, bool) {
	if len(dets) == 0 || info.Width <= 0 || info.Height <= 0 {
		return types.Rect{}, false
	}
	first := dets[0]
	for _, d := range dets[1:] {
		if d.Time < first.Time {
			first = d
		}
	}
	box := first.Box
	vidW, vidH := float64(info.Width), float64(info.Height)

	faceH := box.H * faceFraction
	padX := box.W * padXFraction
	cx := box.X + box.W/2
	cy := box.Y + faceH/2
	newW := box.W + padX*2
	newH := faceH + faceH*padTopFraction + faceH*padBotFraction

	newW = math.Max(newW, vidW*minSizeFraction)
	newH = math.Max(newH, vidH*minSizeFraction)

	if newW > vidW*maxSizeFraction || newH > vidH*maxSizeFraction {
		logf("INFO", "subject fills the frame (%.0fx%.0f), no tight zoom", newW, newH)
		return types.Rect{}, false
	}

	newW = math.Min(newW, vidW)
	newH = math.Min(newH, vidH)

	cx = math.Max(newW/2, math.Min(vidW-newW/2, cx))
	cy = math.Max(newH/2, math.Min(vidH-newH/2, cy))

	x0 := math.Max(0, cx-newW/2)
	y0 := math.Max(0, cy-newH/2)
	cw := int(math.Min(newW, vidW-x0))
	ch := int(math.Min(newH, vidH-y0))
	cw -= cw % 2
	ch -= ch % 2

	if cw < minCropPixels || ch < minCropPixels {
		logf("INFO", "crop too small (%dx%d), skipping tight zoom", cw, ch)
		return types.Rect{}, false
	}
	return types.Rect{X: math.Floor(x0), Y: math.Floor(y0), W: float64(cw), H: float64(ch)}, true
}

// Keyframe is one sampled point of the subject trajectory. X/Y are the
// subject center in source pixels; W/H the detection size.
type Keyframe struct {
	T     float64
	X, Y  float64
	W, H  float64
	Valid bool
}

// BuildKeyframes spreads n keyframes across [start, end] and assigns each
// the detection nearest in time, if one lies within half a step.
func BuildKeyframes(dets []types.Detection, start, end float64, n int) []Keyframe {
	if n < 2 {
		n = 2
	}
	duration := math.Max(0.1, end-start)
	step := duration / float64(n-1)

	kfs := make([]Keyframe, n)
	for i := range kfs {
		t := math.Min(start+float64(i)*step, end)
		kfs[i] = Keyframe{T: t}
		bestDist := step / 2
		for _, d := range dets {
			dist := math.Abs(d.Time - t)
			if dist <= bestDist {
				bestDist = dist
				kfs[i].X = d.Box.CenterX()
				kfs[i].Y = d.Box.CenterY()
				kfs[i].W = d.Box.W
				kfs[i].H = d.Box.H
				kfs[i].Valid = true
			}
		}
	}
	return kfs
}

// Smooth interpolates missing keyframes and applies a moving average to the
// subject path, clamped to frame bounds. It fails when fewer than two
// keyframes carry a detection.
func Smooth(kfs []Keyframe, frameW, frameH int) ([]Keyframe, bool) {
	var valid []int
	for i, kf := range kfs {
		if kf.Valid {
			valid = append(valid, i)
		}
	}
	if len(valid) < 2 {
		return nil, false
	}

	out := make([]Keyframe, len(kfs))
	copy(out, kfs)

	interpolate(out, valid, func(kf *Keyframe) *float64 { return &kf.X })
	interpolate(out, valid, func(kf *Keyframe) *float64 { return &kf.Y })

	// Size uses the nearest valid keyframe rather than interpolation; a box
	// that grows smoothly between two people is not a real subject.
	for i := range out {
		if out[i].Valid {
			continue
		}
		nearest := valid[0]
		for _, vi := range valid {
			if abs(vi-i) < abs(nearest-i) {
				nearest = vi
			}
		}
		out[i].W = kfs[nearest].W
		out[i].H = kfs[nearest].H
		out[i].Valid = true
	}

	movingAverage(out, frameW, func(kf *Keyframe) *float64 { return &kf.X })
	movingAverage(out, frameH, func(kf *Keyframe) *float64 { return &kf.Y })
	return out, true
}

// interpolate edge-holds before the first and after the last valid keyframe
// and linearly fills the gaps between valid ones.
func interpolate(kfs []Keyframe, valid []int, field func(*Keyframe) *float64) {
	first, last := valid[0], valid[len(valid)-1]
	for i := 0; i < first; i++ {
		*field(&kfs[i]) = *field(&kfs[first])
	}
	for i := last + 1; i < len(kfs); i++ {
		*field(&kfs[i]) = *field(&kfs[last])
	}
	for j := 0; j < len(valid)-1; j++ {
		a, b := valid[j], valid[j+1]
		if b-a <= 1 {
			continue
		}
		va, vb := *field(&kfs[a]), *field(&kfs[b])
		for k := a + 1; k < b; k++ {
			frac := float64(k-a) / float64(b-a)
			*field(&kfs[k]) = va + (vb-va)*frac
		}
	}
}

// movingAverage smooths with a centered window, averaging the two edge
// samples in place of the missing neighbors.
func movingAverage(kfs []Keyframe, bound int, field func(*Keyframe) *float64) {
	n := len(kfs)
	if n < 2 {
		return
	}
	vals := make([]float64, n)
	for i := range kfs {
		vals[i] = *field(&kfs[i])
	}

	smoothed := make([]float64, n)
	half := smoothWindow / 2
	for i := range vals {
		sum, count := 0.0, 0
		for j := i - half; j <= i+half; j++ {
			if j >= 0 && j < n {
				sum += vals[j]
				count++
			}
		}
		smoothed[i] = sum / float64(count)
	}
	smoothed[0] = (vals[0] + vals[1]) / 2
	smoothed[n-1] = (vals[n-2] + vals[n-1]) / 2

	for i := range kfs {
		*field(&kfs[i]) = math.Max(0, math.Min(float64(bound-1), smoothed[i]))
	}
}

// SendcmdScript renders the ffmpeg sendcmd commands that animate the crop
// position along the trajectory. Times are relative to the first keyframe.
func SendcmdScript(kfs []Keyframe, cropW, cropH, frameW, frameH int, animateY bool) string {
	if len(kfs) == 0 {
		return ""
	}
	t0 := kfs[0].T
	var out string
	for _, kf := range kfs {
		x := clampEven(kf.X-float64(cropW)/2, frameW-cropW)
		out += fmt.Sprintf("%.3f crop x %d;\n", kf.T-t0, x)
		if animateY && frameH > 0 {
			y := clampEven(kf.Y-float64(cropH)/2, frameH-cropH)
			out += fmt.Sprintf("%.3f crop y %d;\n", kf.T-t0, y)
		}
	}
	return out
}

func clampEven(v float64, max int) int {
	n := int(math.Max(0, math.Min(float64(max), v)))
	return n - n%2
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
