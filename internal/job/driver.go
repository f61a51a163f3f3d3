package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/anl331/vid-clipper/internal/config"
	"github.com/anl331/vid-clipper/internal/domain/moments"
	"github.com/anl331/vid-clipper/internal/ports"
	"github.com/anl331/vid-clipper/internal/render"
	"github.com/anl331/vid-clipper/internal/types"
)

// maxConcurrentClips bounds the per-job render fan-out. The renderer holds
// its own process-wide slot pool on top of this.
const maxConcurrentClips = 4

// ClipRenderer is what the driver needs from internal/render.
type ClipRenderer interface {
	RenderClip(ctx context.Context, req render.Request, logf ports.Logf) (types.Clip, error)
}

// Driver walks one job through download, transcription, moment selection and
// rendering. It is shared by every job; per-job state lives in *Job.
type Driver struct {
	downloader   ports.Downloader
	transcribers map[string]ports.Transcriber
	selector     ports.MomentSelector
	video        ports.VideoTool
	renderer     ClipRenderer
	cache        AnalysisStore
	workDir      string

	// videoLocks serializes jobs targeting the same source video, so two
	// submissions of one URL never race on the download cache. Entries are
	// reference counted and removed once the last holder releases.
	mu         sync.Mutex
	videoLocks map[string]*videoLock
}

type videoLock struct {
	mu   sync.Mutex
	refs int
}

func NewDriver(
	downloader ports.Downloader,
	transcribers map[string]ports.Transcriber,
	selector ports.MomentSelector,
	video ports.VideoTool,
	renderer ClipRenderer,
	cache AnalysisStore,
	workDir string,
) *Driver {
	return &Driver{
		downloader:   downloader,
		transcribers: transcribers,
		selector:     selector,
		video:        video,
		renderer:     renderer,
		cache:        cache,
		workDir:      workDir,
		videoLocks:   make(map[string]*videoLock),
	}
}

func (d *Driver) lockVideo(videoID string) func() {
	d.mu.Lock()
	l, ok := d.videoLocks[videoID]
	if !ok {
		l = &videoLock{}
		d.videoLocks[videoID] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.videoLocks, videoID)
		}
		d.mu.Unlock()
	}
}

// Run executes the whole pipeline for one job. It never returns an error;
// every failure ends in j.Fail with a user-facing message.
func (d *Driver) Run(ctx context.Context, j *Job) {
	opts := j.Options()
	logf := j.Logf

	videoID := d.downloader.VideoID(j.URL())
	j.SetVideoID(videoID)
	unlock := d.lockVideo(videoID)
	defer unlock()

	// Expired source files are swept before each acquisition.
	if c, ok := d.downloader.(interface{ CleanupExpired() }); ok {
		c.CleanupExpired()
	}

	// Acquire.
	j.StartStage(StageDownloading, StatusDownloading)
	videoPath, err := d.downloader.Download(ctx, j.URL(), videoID, logf)
	if err != nil {
		d.fail(ctx, j, StageDownloading, err)
		return
	}
	info, err := d.video.Probe(ctx, videoPath)
	if err != nil {
		d.fail(ctx, j, StageDownloading, err)
		return
	}
	j.EndStage(StageDownloading, "ok", false)
	logf("INFO", "source ready: %dx%d, %.0fs", info.Width, info.Height, info.Duration)

	// Transcribe and select, or reuse a cached analysis.
	selected, cached, err := d.analyze(ctx, j, videoID, videoPath, info, opts, logf)
	if err != nil {
		return // analyze already failed the job
	}
	if cached {
		logf("INFO", "reusing cached analysis (%d moments)", len(selected.Moments))
	}
	if len(selected.Moments) == 0 {
		j.Fail((&ports.SelectionError{Reason: "no valid moments found"}).Error())
		return
	}

	// Render.
	j.StartStage(StageClipping, StatusClipping)
	clips := d.renderAll(ctx, j, videoID, videoPath, info, selected, opts, logf)
	if ctx.Err() != nil {
		d.fail(ctx, j, StageClipping, ctx.Err())
		return
	}

	rendered := 0
	for _, c := range clips {
		if c.Err == "" {
			rendered++
		}
	}
	if rendered == 0 {
		j.EndStage(StageClipping, "error", false)
		j.Fail("all clip renders failed")
		return
	}
	j.EndStage(StageClipping, "ok", false)
	logf("INFO", "job complete: %d/%d clips rendered", rendered, len(clips))
	j.Finish(clips)
}

// analysis is the transcription + selection result the render stage consumes.
type analysis struct {
	Segments []types.Segment
	Moments  []types.Moment
}

// analyze produces moments for the video, consulting the analysis cache
// first. On failure it fails the job and returns a non-nil error.
func (d *Driver) analyze(ctx context.Context, j *Job, videoID, videoPath string, info types.VideoInfo, opts config.JobOptions, logf ports.Logf) (analysis, bool, error) {
	lim := moments.Limits{
		MinDuration: opts.MinDuration,
		MaxDuration: opts.MaxDuration,
		MaxClips:    opts.MaxClips,
	}

	if !opts.Reanalyze {
		entry, err := d.cache.Lookup(videoID)
		if err != nil {
			logf("WARNING", "analysis cache unreadable, re-analyzing: %v", err)
		} else if entry != nil && entry.Model == opts.Model {
			j.StartStage(StageTranscribing, StatusTranscribing)
			j.EndStage(StageTranscribing, "ok", true)
			j.StartStage(StageAnalyzing, StatusAnalyzing)
			j.EndStage(StageAnalyzing, "ok", true)
			final := moments.Finalize(entry.Moments, lim, info.Duration, logf)
			return analysis{Segments: entry.Segments, Moments: final}, true, nil
		}
	}

	j.StartStage(StageTranscribing, StatusTranscribing)
	transcript, err := d.transcribe(ctx, videoID, videoPath, opts, logf)
	if err != nil {
		d.fail(ctx, j, StageTranscribing, err)
		return analysis{}, false, err
	}
	j.EndStage(StageTranscribing, "ok", false)
	logf("INFO", "transcribed %d segments", len(transcript.Segments))

	j.StartStage(StageAnalyzing, StatusAnalyzing)
	raw, err := d.selector.SelectMoments(ctx, transcript, ports.SelectRequest{
		Model:       opts.Model,
		MaxClips:    opts.MaxClips,
		MinDuration: opts.MinDuration,
		MaxDuration: opts.MaxDuration,
	}, logf)
	if err != nil {
		d.fail(ctx, j, StageAnalyzing, err)
		return analysis{}, false, err
	}
	final := moments.Finalize(raw, lim, info.Duration, logf)
	if len(final) == 0 {
		err := &ports.SelectionError{Reason: "no valid moments found"}
		d.fail(ctx, j, StageAnalyzing, err)
		return analysis{}, false, err
	}
	j.EndStage(StageAnalyzing, "ok", false)

	if err := d.cache.Save(AnalysisEntry{
		VideoID:  videoID,
		Model:    opts.Model,
		Segments: transcript.Segments,
		Moments:  final,
	}); err != nil {
		logf("WARNING", "analysis cache write failed: %v", err)
	}

	return analysis{Segments: transcript.Segments, Moments: final}, false, nil
}

// transcribe runs the configured provider, falling back to the other one
// once when enabled.
func (d *Driver) transcribe(ctx context.Context, videoID, videoPath string, opts config.JobOptions, logf ports.Logf) (types.Transcript, error) {
	tr, err := d.transcribeWith(ctx, opts.TranscriptionProvider, videoID, videoPath, logf)
	if err == nil || !opts.TranscriptionFallback || ctx.Err() != nil {
		return tr, err
	}

	alternate := config.ProviderRemote
	if opts.TranscriptionProvider == config.ProviderRemote {
		alternate = config.ProviderLocal
	}
	logf("WARNING", "%s transcription failed (%v), falling back to %s",
		opts.TranscriptionProvider, err, alternate)
	return d.transcribeWith(ctx, alternate, videoID, videoPath, logf)
}

func (d *Driver) transcribeWith(ctx context.Context, provider, videoID, videoPath string, logf ports.Logf) (types.Transcript, error) {
	t, ok := d.transcribers[provider]
	if !ok {
		return types.Transcript{}, &ports.TranscriptionError{
			Provider: provider,
			Err:      fmt.Errorf("provider not configured"),
		}
	}

	mediaPath := videoPath
	if provider == config.ProviderLocal {
		wavPath := filepath.Join(d.workDir, videoID+".wav")
		if err := os.MkdirAll(d.workDir, 0o755); err != nil {
			return types.Transcript{}, &ports.TranscriptionError{Provider: provider, Err: err}
		}
		if err := d.video.ExtractAudioMono16k(ctx, videoPath, wavPath); err != nil {
			return types.Transcript{}, &ports.TranscriptionError{Provider: provider, Err: err}
		}
		defer os.Remove(wavPath)
		mediaPath = wavPath
	}

	logf("INFO", "transcribing with %s provider", provider)
	return t.Transcribe(ctx, mediaPath, logf)
}

// renderAll fans moments out over a bounded worker pool. A failed render
// records a skipped clip entry; siblings keep going.
func (d *Driver) renderAll(ctx context.Context, j *Job, videoID, videoPath string, info types.VideoInfo, sel analysis, opts config.JobOptions, logf ports.Logf) []types.Clip {
	n := len(sel.Moments)
	clips := make([]types.Clip, n)

	workers := maxConcurrentClips
	if n < workers {
		workers = n
	}
	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				m := sel.Moments[i]
				clip, err := d.renderer.RenderClip(ctx, render.Request{
					VideoPath: videoPath,
					VideoID:   videoID,
					Info:      info,
					Index:     i + 1,
					Moment:    m,
					Segments:  sel.Segments,
					Opts:      opts,
				}, logf)
				if err != nil {
					logf("ERROR", "clip %d failed: %v", i+1, err)
					clips[i] = types.Clip{
						Title: m.Title,
						Start: m.Start,
						End:   m.End,
						Err:   err.Error(),
					}
					continue
				}
				clips[i] = clip
			}
		}()
	}

	for i := 0; i < n; i++ {
		select {
		case indexes <- i:
		case <-ctx.Done():
			// Drain: mark the rest cancelled without dispatching them.
			for ; i < n; i++ {
				clips[i] = types.Clip{Title: sel.Moments[i].Title, Err: "cancelled"}
			}
		}
	}
	close(indexes)
	wg.Wait()
	return clips
}

// fail closes the active stage and records a user-facing message. A
// cancelled context always reads as a manual stop.
func (d *Driver) fail(ctx context.Context, j *Job, stage string, err error) {
	j.EndStage(stage, "error", false)
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		j.Fail((&ports.CancelledError{}).Error())
		return
	}
	j.Fail(err.Error())
}
