package ports

import (
	"context"

	"github.com/anl331/vid-clipper/internal/types"
)

// Logf receives human-readable progress lines for the job log. level is one
// of INFO, WARNING, ERROR.
type Logf func(level, format string, args ...any)

// Downloader resolves a source URL to a local media file and a stable video
// identifier. Download must be idempotent per video id: a cached file is
// returned without invoking the external tool again.
type Downloader interface {
	VideoID(url string) string
	Download(ctx context.Context, url, videoID string, logf Logf) (string, error)
}

// Transcriber converts a local media file into a word-level transcript.
// Local and remote providers return structurally identical output.
type Transcriber interface {
	Provider() string
	Transcribe(ctx context.Context, mediaPath string, logf Logf) (types.Transcript, error)
}

// SelectRequest carries the per-job knobs the moment selector honors.
type SelectRequest struct {
	Model       string
	MaxClips    int
	MinDuration float64
	MaxDuration float64
}

// MomentSelector asks a language model for clip-worthy windows. The returned
// moments are raw model output; validation and dedup happen in
// domain/moments.
type MomentSelector interface {
	SelectMoments(ctx context.Context, tr types.Transcript, req SelectRequest, logf Logf) ([]types.Moment, error)
}

// Detector locates the dominant subject in sampled frames of one time
// window. Zero detections with a nil error means the window had no subject;
// the cascade moves on to the next backend.
type Detector interface {
	Backend() string
	Detect(ctx context.Context, videoPath string, start, end float64) ([]types.Detection, error)
}

// VideoTool wraps the external encoder for probing and audio extraction.
// Render commands are built by internal/render on top of the same adapter.
type VideoTool interface {
	Probe(ctx context.Context, path string) (types.VideoInfo, error)
	ExtractAudioMono16k(ctx context.Context, inPath, outPath string) error
}
