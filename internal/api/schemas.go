package api

import "github.com/anl331/vid-clipper/internal/config"

// RunRequest is the POST /api/run body. Every field except url is an
// optional override of the server's default job options.
type RunRequest struct {
	URL string `json:"url"`

	Model       *string  `json:"model,omitempty"`
	MaxClips    *int     `json:"max_clips,omitempty"`
	MinDuration *float64 `json:"min_duration,omitempty"`
	MaxDuration *float64 `json:"max_duration,omitempty"`
	Reanalyze   *bool    `json:"reanalyze,omitempty"`

	TranscriptionProvider *string `json:"transcription_provider,omitempty"`
	TranscriptionFallback *bool   `json:"transcription_fallback,omitempty"`

	ClipFormat *string `json:"clip_format,omitempty"`
	CropAnchor *string `json:"crop_anchor,omitempty"`

	CaptionFontSize       *int    `json:"caption_font_size,omitempty"`
	CaptionChunkSize      *int    `json:"caption_chunk_size,omitempty"`
	CaptionHighlight      *bool   `json:"caption_highlight,omitempty"`
	CaptionHighlightColor *string `json:"caption_highlight_color,omitempty"`

	TitleEnabled  *bool   `json:"title_enabled,omitempty"`
	TitlePosition *string `json:"title_position,omitempty"`
	TeaserEnabled *bool   `json:"teaser_enabled,omitempty"`
}

// Options merges the request's overrides onto the given defaults.
func (r RunRequest) Options(defaults config.JobOptions) config.JobOptions {
	opts := defaults

	if r.Model != nil {
		opts.Model = *r.Model
	}
	if r.MaxClips != nil {
		opts.MaxClips = *r.MaxClips
	}
	if r.MinDuration != nil {
		opts.MinDuration = *r.MinDuration
	}
	if r.MaxDuration != nil {
		opts.MaxDuration = *r.MaxDuration
	}
	if r.Reanalyze != nil {
		opts.Reanalyze = *r.Reanalyze
	}
	if r.TranscriptionProvider != nil {
		opts.TranscriptionProvider = *r.TranscriptionProvider
	}
	if r.TranscriptionFallback != nil {
		opts.TranscriptionFallback = *r.TranscriptionFallback
	}
	if r.ClipFormat != nil {
		opts.ClipFormat = *r.ClipFormat
	}
	if r.CropAnchor != nil {
		opts.CropAnchor = *r.CropAnchor
	}
	if r.CaptionFontSize != nil {
		opts.CaptionFontSize = *r.CaptionFontSize
	}
	if r.CaptionChunkSize != nil {
		opts.CaptionChunkSize = *r.CaptionChunkSize
	}
	if r.CaptionHighlight != nil {
		opts.CaptionHighlight = *r.CaptionHighlight
	}
	if r.CaptionHighlightColor != nil {
		opts.CaptionHighlightColor = *r.CaptionHighlightColor
	}
	if r.TitleEnabled != nil {
		opts.TitleEnabled = *r.TitleEnabled
	}
	if r.TitlePosition != nil {
		opts.TitlePosition = *r.TitlePosition
	}
	if r.TeaserEnabled != nil {
		opts.TeaserEnabled = *r.TeaserEnabled
	}
	return opts
}

// RunResponse acknowledges an accepted job.
type RunResponse struct {
	Ok      bool   `json:"ok"`
	JobID   string `json:"job_id"`
	VideoID string `json:"video_id,omitempty"`
	Status  string `json:"status"`
}

// StopAllResponse reports how many jobs a stop-all signalled.
type StopAllResponse struct {
	Stopped int `json:"stopped"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the liveness body.
type HealthResponse struct {
	Status      string `json:"status"`
	RunningJobs int    `json:"running_jobs"`
}
