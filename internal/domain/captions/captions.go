// Package captions generates ASS subtitle files for vertical clips: chunked
// word captions with a moving per-word highlight, plus title overlays.
package captions

import (
	"fmt"
	"math"
	"strings"

	"github.com/anl331/vid-clipper/internal/config"
	"github.com/anl331/vid-clipper/internal/types"
)

const (
	playResX = 1080
	playResY = 1920

	titleWrapChars = 16
)

// Generate renders the full caption track for one clip. words are absolute
// transcript words inside the clip window, startOffset the clip's absolute
// start. An empty title or suppressTitle skips the title overlay.
func Generate(words []types.Word, startOffset float64, title string, clipDuration float64, opts config.JobOptions, suppressTitle bool) string {
	var events []string
	captionStartAfter := 0.0

	if title != "" && opts.TitleEnabled && !suppressTitle {
		titleText := WrapTitle(title)
		if opts.TitlePosition == config.TitleTop {
			titleEnd := clipDuration + 1
			if clipDuration <= 0 {
				titleEnd = 9999
			}
			events = append(events, dialogue(0, titleEnd, "TitleTop", titleText))
		} else if opts.TitleIntroDuration > 0 {
			// Visible from frame 1, fades out as captions take over.
			events = append(events, dialogue(0, opts.TitleIntroDuration, "Title", `{\fad(0,350)}`+titleText))
			captionStartAfter = opts.TitleIntroDuration
		}
	}

	events = append(events, chunkEvents(words, startOffset, captionStartAfter, opts)...)
	return header(opts) + strings.Join(events, "\n") + "\n"
}

// TitleOverlay renders a title-only track, used to burn the title onto the
// hook teaser.
func TitleOverlay(title string, duration float64, opts config.JobOptions, fadeOutMs int) string {
	titleText := WrapTitle(title)
	style := "Title"
	if opts.TitlePosition == config.TitleTop {
		style = "TitleTop"
	}
	ev := dialogue(0, duration, style, fmt.Sprintf(`{\fad(0,%d)}`, fadeOutMs)+titleText)
	return header(opts) + ev + "\n"
}

// chunk is one caption group with its display window already shifted to
// clip-relative time.
type chunk struct {
	start, end float64
	words      []types.Word
}

// chunkEvents groups words into fixed-size chunks and emits their events.
// Consecutive chunk windows are closed up to abut, so the caption track has
// no gaps over the spoken span of the clip.
func chunkEvents(words []types.Word, startOffset, captionStartAfter float64, opts config.JobOptions) []string {
	size := opts.CaptionChunkSize
	if size <= 0 {
		size = 3
	}

	var chunks []chunk
	for i := 0; i < len(words); i += size {
		group := words[i:min(i+size, len(words))]
		c := chunk{
			start: group[0].Start - startOffset,
			end:   group[len(group)-1].End - startOffset,
			words: group,
		}
		if c.start < 0 {
			c.start = 0
		}
		chunks = append(chunks, c)
	}

	for i := range chunks {
		if i+1 < len(chunks) && chunks[i+1].start > chunks[i].start {
			chunks[i].end = chunks[i+1].start
		}
	}

	var events []string
	for _, c := range chunks {
		// Skip chunks that finish during the title intro, delay ones that
		// merely start inside it.
		if c.end <= captionStartAfter {
			continue
		}
		if c.start < captionStartAfter {
			c.start = captionStartAfter
		}
		if opts.CaptionHighlight {
			events = append(events, highlightEvents(c, startOffset, opts)...)
		} else {
			events = append(events, dialogue(c.start, c.end, "Default", chunkText(c.words, -1, "")))
		}
	}
	return events
}

// highlightEvents tiles the chunk window. Each word is highlighted for
// exactly its own spoken span; gaps between words, and the tail of the
// window, show the chunk with no word colored.
func highlightEvents(c chunk, startOffset float64, opts config.JobOptions) []string {
	color := HexToASSBGR(opts.CaptionHighlightColor)
	plain := chunkText(c.words, -1, "")
	out := make([]string, 0, 2*len(c.words))

	cursor := c.start
	for i, w := range c.words {
		ws := w.Start - startOffset
		we := w.End - startOffset
		if ws < c.start {
			ws = c.start
		}
		if we > c.end {
			we = c.end
		}
		if ws > cursor {
			out = append(out, dialogue(cursor, ws, "Default", plain))
			cursor = ws
		}
		if we > cursor {
			out = append(out, dialogue(cursor, we, "Default", chunkText(c.words, i, color)))
			cursor = we
		}
	}
	if cursor < c.end {
		out = append(out, dialogue(cursor, c.end, "Default", plain))
	}
	return out
}

// chunkText uppercases the chunk, coloring the word at highlightIdx when it
// is >= 0.
func chunkText(words []types.Word, highlightIdx int, color string) string {
	parts := make([]string, 0, len(words))
	for i, w := range words {
		text := strings.ToUpper(w.Word)
		if i == highlightIdx {
			text = `{\c` + color + `}` + text + `{\c&HFFFFFF&}`
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}

func header(opts config.JobOptions) string {
	return fmt.Sprintf(`[Script Info]
Title: Captions
ScriptType: v4.00+
WrapStyle: 0
ScaledBorderAndShadow: yes
YCbCr Matrix: TV.709
PlayResX: %d
PlayResY: %d

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,%s,%d,&H00FFFFFF,&H000000FF,&H00000000,&H80000000,-1,0,0,0,100,100,0,0,1,5,2,2,40,40,%d,1
Style: Title,%s,%d,&H00FFFFFF,&H000000FF,&H00000000,&H80000000,-1,0,0,0,100,100,0,0,1,5,2,2,40,40,%d,1
Style: TitleTop,%s,%d,&H00FFFFFF,&H000000FF,&H00000000,&H80000000,-1,0,0,0,100,100,0,0,1,5,2,8,60,60,%d,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`,
		playResX, playResY,
		opts.CaptionFont, opts.CaptionFontSize, opts.CaptionMarginV,
		opts.TitleFont, opts.TitleFontSize, opts.CaptionMarginV,
		opts.TitleFont, opts.TitleFontSize, opts.TitleMarginV,
	)
}

func dialogue(start, end float64, style, text string) string {
	return fmt.Sprintf("Dialogue: 0,%s,%s,%s,,0,0,0,,%s", fmtTime(start), fmtTime(end), style, text)
}

// fmtTime renders seconds as the h:mm:ss.cs timestamps ASS expects.
func fmtTime(t float64) string {
	if t < 0 {
		t = 0
	}
	total := int(math.Round(t * 100))
	return fmt.Sprintf("%d:%02d:%02d.%02d",
		total/360000, (total/6000)%60, (total/100)%60, total%100)
}

// HexToASSBGR converts #RRGGBB to the &HBBGGRR& form ASS uses.
func HexToASSBGR(hexColor string) string {
	h := strings.TrimPrefix(hexColor, "#")
	if len(h) != 6 {
		return "&H00FFFF&" // yellow
	}
	r, g, b := h[0:2], h[2:4], h[4:6]
	return "&H" + b + g + r + "&"
}

// WrapTitle uppercases the title and splits it into two balanced lines at a
// word boundary when it is longer than titleWrapChars.
func WrapTitle(text string) string {
	text = strings.ToUpper(strings.TrimSpace(text))
	if len(text) <= titleWrapChars {
		return text
	}
	words := strings.Fields(text)
	if len(words) < 2 {
		return text
	}

	bestSplit, bestDiff := 1, int(^uint(0)>>1)
	for i := 1; i < len(words); i++ {
		line1 := strings.Join(words[:i], " ")
		line2 := strings.Join(words[i:], " ")
		diff := len(line1) - len(line2)
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			bestDiff = diff
			bestSplit = i
		}
	}
	return strings.Join(words[:bestSplit], " ") + `\N` + strings.Join(words[bestSplit:], " ")
}
