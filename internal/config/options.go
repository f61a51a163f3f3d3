package config

import (
	"errors"
	"fmt"
)

// Clip layout formats.
const (
	FormatFullscreen = "fullscreen"
	FormatSplit      = "split"
	FormatCenter     = "center"
)

// Crop anchors.
const (
	AnchorAuto   = "auto"
	AnchorLeft   = "left"
	AnchorCenter = "center"
	AnchorRight  = "right"
)

// Title positions.
const (
	TitleIntro = "intro"
	TitleTop   = "top"
)

// Transcription providers.
const (
	ProviderLocal  = "local"
	ProviderRemote = "remote"
)

// JobOptions is the per-job configuration snapshot. It is fixed when a job
// is submitted and immutable for the job's duration.
type JobOptions struct {
	Model       string  `json:"model"`
	MaxClips    int     `json:"max_clips"`
	MinDuration float64 `json:"min_duration"`
	MaxDuration float64 `json:"max_duration"`
	Reanalyze   bool    `json:"reanalyze"`

	TranscriptionProvider string `json:"transcription_provider"`
	TranscriptionFallback bool   `json:"transcription_fallback"`

	ClipFormat string `json:"clip_format"`
	CropAnchor string `json:"crop_anchor"`

	CaptionFontSize       int    `json:"caption_font_size"`
	CaptionMarginV        int    `json:"caption_margin_v"`
	CaptionChunkSize      int    `json:"caption_chunk_size"`
	CaptionHighlight      bool   `json:"caption_highlight"`
	CaptionHighlightColor string `json:"caption_highlight_color"`
	CaptionFont           string `json:"caption_font"`

	TitleEnabled       bool    `json:"title_enabled"`
	TitlePosition      string  `json:"title_position"`
	TitleIntroDuration float64 `json:"title_intro_duration"`
	TitleFontSize      int     `json:"title_font_size"`
	TitleMarginV       int     `json:"title_margin_v"`
	TitleFont          string  `json:"title_font"`

	TeaserEnabled bool `json:"teaser_enabled"`
}

// DefaultJobOptions returns the option set used when the caller omits a
// field.
func DefaultJobOptions(model string) JobOptions {
	if model == "" {
		model = DefaultOpenRouterModel
	}
	return JobOptions{
		Model:       model,
		MaxClips:    5,
		MinDuration: 20,
		MaxDuration: 90,

		TranscriptionProvider: ProviderLocal,

		ClipFormat: FormatFullscreen,
		CropAnchor: AnchorAuto,

		CaptionFontSize:       78,
		CaptionMarginV:        350,
		CaptionChunkSize:      3,
		CaptionHighlight:      true,
		CaptionHighlightColor: "#ffff00",
		CaptionFont:           "Montserrat ExtraBold",

		TitleEnabled:       true,
		TitlePosition:      TitleIntro,
		TitleIntroDuration: 3.5,
		TitleFontSize:      78,
		TitleMarginV:       200,
		TitleFont:          "Montserrat ExtraBold",

		TeaserEnabled: true,
	}
}

// Validate rejects option sets no stage can honor.
func (o JobOptions) Validate() error {
	if o.MaxClips <= 0 {
		return errors.New("max_clips must be > 0")
	}
	if o.MinDuration <= 0 {
		return errors.New("min_duration must be > 0")
	}
	if o.MaxDuration <= 0 {
		return errors.New("max_duration must be > 0")
	}
	if o.MinDuration > o.MaxDuration {
		return errors.New("min_duration must be <= max_duration")
	}
	if o.CaptionChunkSize <= 0 {
		return errors.New("caption_chunk_size must be > 0")
	}
	switch o.TranscriptionProvider {
	case ProviderLocal, ProviderRemote:
	default:
		return fmt.Errorf("unknown transcription_provider %q", o.TranscriptionProvider)
	}
	switch o.ClipFormat {
	case FormatFullscreen, FormatSplit, FormatCenter:
	default:
		return fmt.Errorf("unknown clip_format %q", o.ClipFormat)
	}
	switch o.CropAnchor {
	case AnchorAuto, AnchorLeft, AnchorCenter, AnchorRight:
	default:
		return fmt.Errorf("unknown crop_anchor %q", o.CropAnchor)
	}
	switch o.TitlePosition {
	case TitleIntro, TitleTop:
	default:
		return fmt.Errorf("unknown title_position %q", o.TitlePosition)
	}
	return nil
}
