package types

// Transcript is the word-level transcription of one source video. Both
// transcription providers produce this exact shape so everything downstream
// is provider-agnostic.
type Transcript struct {
	Segments []Segment `json:"segments"`
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Word carries start/end in seconds from the beginning of the source video.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Words flattens all segment words in timeline order.
func (t Transcript) Words() []Word {
	var out []Word
	for _, s := range t.Segments {
		out = append(out, s.Words...)
	}
	return out
}

// Duration is the end of the last segment, in seconds.
func (t Transcript) Duration() float64 {
	if len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].End
}

func (t Transcript) Empty() bool {
	for _, s := range t.Segments {
		if len(s.Words) > 0 {
			return false
		}
	}
	return true
}

// Moment is one LLM-proposed clip window.
type Moment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Title      string  `json:"title"`
	Reason     string  `json:"reason,omitempty"`
	HookScore  int     `json:"hook_score"`
	HookReason string  `json:"hook_reason,omitempty"`
	// PeakOffset is seconds from Start to the most compelling spoken moment,
	// used as the teaser window; nil when the model found none.
	PeakOffset *float64 `json:"peak_offset,omitempty"`
}

func (m Moment) Duration() float64 { return m.End - m.Start }

// Clip is one rendered output. Err non-empty marks a moment whose render
// failed; the entry stays in the job's clip list as a skipped record.
type Clip struct {
	File      string  `json:"file,omitempty"`
	Title     string  `json:"title"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Duration  float64 `json:"duration"`
	SizeBytes int64   `json:"size_bytes,omitempty"`
	Err       string  `json:"error,omitempty"`
}

// Rect is a bounding box in source pixels.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (r Rect) CenterX() float64 { return r.X + r.W/2 }
func (r Rect) CenterY() float64 { return r.Y + r.H/2 }

// Detection is one detector hit at one sampled timestamp. Source names the
// detector backend that produced it (person, face or cascade).
type Detection struct {
	Time       float64 `json:"t"`
	Box        Rect    `json:"box"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// VideoInfo is the probed geometry of a local media file.
type VideoInfo struct {
	Width    int
	Height   int
	Duration float64
}

func (v VideoInfo) Landscape() bool { return v.Width > v.Height }
