// Package render cuts one vertical clip per selected moment: layout
// filtergraph, burned captions, optional hook teaser, quality gate.
package render

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/anl331/vid-clipper/internal/config"
	"github.com/anl331/vid-clipper/internal/domain/captions"
	"github.com/anl331/vid-clipper/internal/domain/teaser"
	"github.com/anl331/vid-clipper/internal/domain/tracking"
	"github.com/anl331/vid-clipper/internal/ports"
	"github.com/anl331/vid-clipper/internal/ports/adapters/ffmpeg"
	"github.com/anl331/vid-clipper/internal/types"
)

const (
	// Cap on concurrent ffmpeg renders across every job in the process.
	maxConcurrentRenders = 6

	// Files below this size are failed renders (a seek past EOF or an
	// encoder crash), not real clips.
	minClipBytes = 100_000

	// Duration drift beyond this is logged; the clip still ships.
	maxDriftSeconds = 10.0
)

var unsafeTitleChars = regexp.MustCompile(`[^\w\s-]`)

// anchorX maps fixed crop anchors to normalized horizontal positions.
var anchorX = map[string]float64{
	config.AnchorLeft:  0.2,
	config.AnchorRight: 0.8,
}

// Renderer renders clips for one process; the render slot pool is shared by
// all jobs.
type Renderer struct {
	ffmpeg    *ffmpeg.Adapter
	detectors []ports.Detector
	outDir    string
	workDir   string
	slots     chan struct{}
}

func New(ff *ffmpeg.Adapter, detectors []ports.Detector, outDir, workDir string) *Renderer {
	return &Renderer{
		ffmpeg:    ff,
		detectors: detectors,
		outDir:    outDir,
		workDir:   workDir,
		slots:     make(chan struct{}, maxConcurrentRenders),
	}
}

// Request describes one clip to render.
type Request struct {
	VideoPath string
	VideoID   string
	Info      types.VideoInfo
	Index     int // 1-based clip number
	Moment    types.Moment
	Segments  []types.Segment
	Opts      config.JobOptions
}

// RenderClip produces the clip file for one moment. The error, when non-nil,
// is a *ports.RenderError; the caller records it and renders siblings.
func (r *Renderer) RenderClip(ctx context.Context, req Request, logf ports.Logf) (types.Clip, error) {
	m := req.Moment

	// Global render slot; respects cancellation while queued.
	select {
	case r.slots <- struct{}{}:
		defer func() { <-r.slots }()
	case <-ctx.Done():
		return types.Clip{}, &ports.RenderError{Title: m.Title, Err: ctx.Err()}
	}

	outPath := filepath.Join(r.outDir, req.VideoID, OutputName(req.Index, m.Title))
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return types.Clip{}, &ports.RenderError{Title: m.Title, Err: err}
	}

	logf("INFO", "rendering clip %d: %s (%.0fs)", req.Index, m.Title, m.Duration())

	pickTeaser, carryTitle := teaserPlan(req.Opts, m.Title)
	teaserWin, teaserOK := teaser.Window{}, false
	if pickTeaser {
		teaserWin, teaserOK = teaser.Pick(m, req.Segments, logf)
	}
	// A teaser carrying the title suppresses the main clip's title intro.
	titleOnTeaser := teaserOK && carryTitle

	face := r.resolveFace(ctx, req, m.Start, m.End, logf)

	assPath, err := r.writeCaptions(req, titleOnTeaser)
	if err != nil {
		return types.Clip{}, &ports.RenderError{Title: m.Title, Err: err}
	}
	if assPath != "" {
		defer os.Remove(assPath)
	}

	if err := r.cut(ctx, req, m.Start, m.End, face, assPath, outPath, logf); err != nil {
		return types.Clip{}, &ports.RenderError{Title: m.Title, Err: err}
	}

	teaserPrepended := false
	if teaserOK {
		if err := r.prependTeaser(ctx, req, teaserWin, carryTitle, outPath, logf); err != nil {
			// The main clip is intact; ship it without the hook.
			logf("WARNING", "teaser failed, keeping plain clip: %v", err)
		} else {
			teaserPrepended = true
		}
	}

	clip, err := r.qualityGate(ctx, req, teaserPrepended, outPath, logf)
	if err != nil {
		return types.Clip{}, err
	}
	logf("INFO", "clip saved: %s (%.1f MB)", filepath.Base(outPath), float64(clip.SizeBytes)/1024/1024)
	return clip, nil
}

// resolveFace runs subject detection when the layout needs an anchor.
func (r *Renderer) resolveFace(ctx context.Context, req Request, start, end float64, logf ports.Logf) faceGeom {
	opts := req.Opts
	if !req.Info.Landscape() {
		return faceGeom{}
	}
	if opts.ClipFormat != config.FormatCenter && opts.ClipFormat != config.FormatSplit {
		return faceGeom{}
	}

	if x, ok := anchorX[opts.CropAnchor]; ok {
		logf("INFO", "crop anchor: %s (x=%.1f)", opts.CropAnchor, x)
		return faceGeom{x: &x}
	}
	if opts.CropAnchor != config.AnchorAuto {
		return faceGeom{}
	}

	logf("INFO", "auto-detecting subject for %.1fs-%.1fs", start, end)
	dets := tracking.Detect(ctx, r.detectors, req.VideoPath, start, end, logf)
	if len(dets) == 0 {
		return faceGeom{}
	}

	geom := faceGeom{}
	if x, ok := tracking.FirstCenterX(dets, float64(req.Info.Width)); ok {
		geom.x = &x
	}
	if opts.ClipFormat == config.FormatSplit {
		if tight, ok := tracking.TightCrop(dets, req.Info, logf); ok {
			geom.tight = &tight
		}
	}
	if opts.ClipFormat == config.FormatCenter {
		kfs := tracking.BuildKeyframes(dets, start, end, tracking.DefaultKeyframes)
		if smoothed, ok := tracking.Smooth(kfs, req.Info.Width, req.Info.Height); ok {
			cropW := evenInt(req.Info.Height * 9 / 16)
			script := tracking.SendcmdScript(smoothed, cropW, req.Info.Height, req.Info.Width, req.Info.Height, false)
			path := filepath.Join(r.workDir, fmt.Sprintf("%s_clip%02d.sendcmd", req.VideoID, req.Index))
			if err := os.WriteFile(path, []byte(script), 0o644); err == nil {
				geom.sendcmd = path
			} else {
				logf("WARNING", "sendcmd write failed, using static crop: %v", err)
			}
		}
	}
	return geom
}

// writeCaptions renders the ASS file for the clip window, or "" when there
// is nothing to burn.
func (r *Renderer) writeCaptions(req Request, suppressTitle bool) (string, error) {
	m := req.Moment
	var words []types.Word
	for _, seg := range req.Segments {
		for _, w := range seg.Words {
			if w.Start >= m.Start-0.5 && w.End <= m.End+0.5 {
				words = append(words, w)
			}
		}
	}
	title := ""
	if req.Opts.TitleEnabled {
		title = m.Title
	}
	if len(words) == 0 && (title == "" || suppressTitle) {
		return "", nil
	}

	content := captions.Generate(words, m.Start, title, m.Duration(), req.Opts, suppressTitle)
	path := filepath.Join(r.workDir, fmt.Sprintf("%s_clip%02d.ass", req.VideoID, req.Index))
	if err := os.MkdirAll(r.workDir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// cut runs ffmpeg for one [start, end] window into outPath.
func (r *Renderer) cut(ctx context.Context, req Request, start, end float64, face faceGeom, assPath, outPath string, logf ports.Logf) error {
	args := []string{
		"-ss", ffmpeg.FormatSeconds(start),
		"-to", ffmpeg.FormatSeconds(end),
		"-i", req.VideoPath,
	}

	if req.Info.Landscape() {
		var vf string
		switch req.Opts.ClipFormat {
		case config.FormatCenter:
			vf = centerGraph(req.Info.Width, req.Info.Height, face, assPath)
		case config.FormatSplit:
			vf = splitGraph(req.Info.Width, req.Info.Height, face, assPath)
		default:
			vf = fullscreenGraph(assPath)
		}
		args = append(args, "-filter_complex", vf, "-map", "[out]", "-map", "0:a?")
	} else {
		args = append(args, "-vf", portraitVF(assPath))
	}

	args = append(args,
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "20",
		"-c:a", "aac", "-b:a", "128k",
		"-movflags", "+faststart",
		outPath,
	)
	return r.ffmpeg.Run(ctx, args, logf)
}

// teaserPlan decides whether a hook teaser should be picked at all and, when
// one is found, whether it carries the title on behalf of the main clip.
func teaserPlan(opts config.JobOptions, title string) (pick, carryTitle bool) {
	return opts.TeaserEnabled, opts.TitleEnabled && title != ""
}

// prependTeaser renders the hook window, optionally with the title burned
// in, and concatenates it in front of the main clip.
func (r *Renderer) prependTeaser(ctx context.Context, req Request, win teaser.Window, carryTitle bool, outPath string, logf ports.Logf) error {
	logf("INFO", "prepending %.0fs teaser from %.1fs", win.End-win.Start, win.Start)

	overlayPath := ""
	if carryTitle {
		overlay := captions.TitleOverlay(req.Moment.Title, win.End-win.Start, req.Opts, 500)
		overlayPath = filepath.Join(r.workDir, fmt.Sprintf("%s_clip%02d_teaser.ass", req.VideoID, req.Index))
		if err := os.WriteFile(overlayPath, []byte(overlay), 0o644); err != nil {
			return err
		}
		defer os.Remove(overlayPath)
	}

	face := r.resolveFace(ctx, req, win.Start, win.End, logf)
	teaserPath := outPath + ".teaser.mp4"
	defer os.Remove(teaserPath)
	if err := r.cut(ctx, req, win.Start, win.End, face, overlayPath, teaserPath, logf); err != nil {
		return err
	}
	if st, err := os.Stat(teaserPath); err != nil || st.Size() < 10_000 {
		return fmt.Errorf("teaser render produced no usable file")
	}

	combinedPath := outPath + ".combined.mp4"
	if err := r.ffmpeg.Concat(ctx, teaserPath, outPath, combinedPath, logf); err != nil {
		os.Remove(combinedPath)
		return err
	}
	return os.Rename(combinedPath, outPath)
}

// expectedDuration is the length the output file should have. Only a teaser
// that actually made it in front of the clip counts.
func expectedDuration(m types.Moment, teaserPrepended bool) float64 {
	d := m.Duration()
	if teaserPrepended {
		d += teaser.Duration
	}
	return d
}

// qualityGate rejects undersized files and logs duration drift.
func (r *Renderer) qualityGate(ctx context.Context, req Request, teaserPrepended bool, outPath string, logf ports.Logf) (types.Clip, error) {
	m := req.Moment
	st, err := os.Stat(outPath)
	if err != nil {
		return types.Clip{}, &ports.RenderError{Title: m.Title, Err: fmt.Errorf("output missing: %w", err)}
	}
	if st.Size() < minClipBytes {
		os.Remove(outPath)
		return types.Clip{}, &ports.RenderError{
			Title: m.Title,
			Err:   fmt.Errorf("output only %d bytes, rejecting as failed render", st.Size()),
		}
	}

	clip := types.Clip{
		File:      outPath,
		Title:     m.Title,
		Start:     m.Start,
		End:       m.End,
		Duration:  m.Duration(),
		SizeBytes: st.Size(),
	}
	if info, err := r.ffmpeg.Probe(ctx, outPath); err == nil && info.Duration > 0 {
		expected := expectedDuration(m, teaserPrepended)
		if drift := math.Abs(info.Duration - expected); drift > maxDriftSeconds {
			logf("WARNING", "clip %d duration drift: %.1fs vs expected %.1fs", req.Index, info.Duration, expected)
		}
		clip.Duration = info.Duration
	}
	return clip, nil
}

// SanitizeTitle makes a title safe for a filename: strip punctuation, cap
// length, collapse spaces to underscores.
func SanitizeTitle(title string) string {
	s := unsafeTitleChars.ReplaceAllString(title, "")
	if len(s) > 40 {
		s = s[:40]
	}
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
}

// OutputName is the deterministic clip filename for an index and title.
func OutputName(index int, title string) string {
	return fmt.Sprintf("clip_%02d_%s.mp4", index, SanitizeTitle(title))
}
