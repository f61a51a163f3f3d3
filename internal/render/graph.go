package render

import (
	"fmt"

	"github.com/anl331/vid-clipper/internal/ports/adapters/ffmpeg"
	"github.com/anl331/vid-clipper/internal/types"
)

// Target canvas for every layout.
const (
	canvasW = 1080
	canvasH = 1920

	splitTopH = 640
	splitBotH = 1280
)

// faceGeom carries what the tracker found for one render window.
type faceGeom struct {
	// x is the normalized horizontal subject center; nil means unknown.
	x *float64
	// tight is the padded head-and-shoulders crop in source pixels; nil
	// when no useful tight zoom exists.
	tight *types.Rect
	// sendcmd is a crop-animation script path; empty means a static crop.
	sendcmd string
}

// fullscreenGraph letterboxes the full frame over a blurred center strip.
func fullscreenGraph(assPath string) string {
	vf := "[0:v]split[bg][fg];" +
		"[bg]crop=ih*9/16:ih,scale=1080:1920,boxblur=20:20[bgout];" +
		"[fg]scale=1080:-2:force_original_aspect_ratio=decrease[fgout];" +
		"[bgout][fgout]overlay=(W-w)/2:(H-h)/2"
	if assPath != "" {
		vf += ",ass=" + ffmpeg.EscapeFilterPath(assPath)
	}
	return vf + "[out]"
}

// splitGraph stacks a letterboxed full frame over a zoomed speaker crop.
func splitGraph(srcW, srcH int, face faceGeom, assPath string) string {
	var bot string
	switch {
	case face.tight != nil:
		t := face.tight
		bot = fmt.Sprintf("[vb]crop=%.0f:%.0f:%.0f:%.0f,"+
			"scale=%d:%d:force_original_aspect_ratio=increase,"+
			"crop=%d:%d[bot]", t.W, t.H, t.X, t.Y, canvasW, splitBotH, canvasW, splitBotH)
	case face.x != nil:
		scaledW := evenInt(srcW * splitBotH / srcH)
		botX := clampEvenInt(int(*face.x*float64(scaledW))-canvasW/2, scaledW-canvasW)
		bot = fmt.Sprintf("[vb]scale=-2:%d,crop=%d:%d:%d:0[bot]", splitBotH, canvasW, splitBotH, botX)
	default:
		bot = fmt.Sprintf("[vb]scale=-2:%d,crop=%d:%d[bot]", splitBotH, canvasW, splitBotH)
	}

	vf := "[0:v]split=2[vt][vb];" +
		fmt.Sprintf("[vt]scale=%d:-2,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black[top];", canvasW, canvasW, splitTopH) +
		bot + ";" +
		"[top][bot]vstack"
	if assPath != "" {
		vf += "[base];[base]ass=" + ffmpeg.EscapeFilterPath(assPath)
	}
	return vf + "[out]"
}

// centerGraph crops the 9:16 strip around the subject and scales it to fill
// the canvas. A sendcmd script animates the crop x along the subject track.
func centerGraph(srcW, srcH int, face faceGeom, assPath string) string {
	cropW := evenInt(srcH * 9 / 16)

	var crop string
	switch {
	case face.sendcmd != "":
		crop = fmt.Sprintf("sendcmd=f=%s,crop=%d:ih:(iw-ow)/2:0,scale=%d:%d",
			ffmpeg.EscapeFilterPath(face.sendcmd), cropW, canvasW, canvasH)
	case face.x != nil:
		cx := clampEvenInt(int(*face.x*float64(srcW))-cropW/2, srcW-cropW)
		crop = fmt.Sprintf("crop=%d:ih:%d:0,scale=%d:%d", cropW, cx, canvasW, canvasH)
	default:
		crop = fmt.Sprintf("crop=%d:ih,scale=%d:%d", cropW, canvasW, canvasH)
	}

	vf := "[0:v]" + crop
	if assPath != "" {
		vf += "[base];[base]ass=" + ffmpeg.EscapeFilterPath(assPath)
	}
	return vf + "[out]"
}

// portraitVF scales and pads already-vertical sources; no crop decisions.
func portraitVF(assPath string) string {
	vf := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,"+
		"pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black", canvasW, canvasH, canvasW, canvasH)
	if assPath != "" {
		vf += ",ass=" + ffmpeg.EscapeFilterPath(assPath)
	}
	return vf
}

func evenInt(v int) int { return v - v%2 }

func clampEvenInt(v, max int) int {
	if v < 0 {
		v = 0
	}
	if v > max {
		v = max
	}
	return evenInt(v)
}
