// Package whispercpp transcribes audio with a local whisper.cpp binary.
package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/anl331/vid-clipper/internal/ports"
	"github.com/anl331/vid-clipper/internal/types"
)

type Adapter struct {
	bin     string
	model   string
	workDir string
}

// New returns a local transcriber. workDir holds the intermediate wav and
// whisper.cpp's JSON output.
func New(binPath, modelPath, workDir string) *Adapter {
	return &Adapter{bin: binPath, model: modelPath, workDir: workDir}
}

func (a *Adapter) Provider() string { return "local" }

// Transcribe runs whisper.cpp over a 16kHz mono wav and returns the parsed
// transcript with word-level timestamps.
func (a *Adapter) Transcribe(ctx context.Context, wavPath string, logf ports.Logf) (types.Transcript, error) {
	if err := os.MkdirAll(a.workDir, 0o755); err != nil {
		return types.Transcript{}, &ports.TranscriptionError{Provider: "local", Err: err}
	}

	// Per-call prefix: concurrent jobs share the work dir, so a fixed name
	// would let one job read another's output.
	outPrefix := a.outputPrefix()
	defer os.Remove(outPrefix + ".json")
	args := []string{
		"-m", a.model,
		"-f", wavPath,
		"-oj",
		"-of", outPrefix,
		"-ml", "1",
		"-sow",
	}

	logf("INFO", "transcribing locally: %s", filepath.Base(wavPath))
	cmd := exec.CommandContext(ctx, a.bin, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return types.Transcript{}, &ports.TranscriptionError{
			Provider: "local",
			Err:      fmt.Errorf("whisper.cpp: %w\n%s", err, string(b)),
		}
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, &ports.TranscriptionError{Provider: "local", Err: err}
	}

	tr, err := parseOutput(jb)
	if err != nil {
		return types.Transcript{}, &ports.TranscriptionError{Provider: "local", Err: err}
	}
	logf("INFO", "transcription complete: %d segments, %d words", len(tr.Segments), len(tr.Words()))
	return tr, nil
}

func (a *Adapter) outputPrefix() string {
	return filepath.Join(a.workDir, "whisper-"+uuid.NewString())
}

// whisper.cpp emits word-granularity events under -ml 1; group them back
// into sentence-like segments on punctuation boundaries.
func parseOutput(jb []byte) (types.Transcript, error) {
	var out struct {
		Transcription []struct {
			Offsets struct {
				From int64 `json:"from"`
				To   int64 `json:"to"`
			} `json:"offsets"`
			Text string `json:"text"`
		} `json:"transcription"`
	}
	if err := json.Unmarshal(jb, &out); err != nil {
		return types.Transcript{}, fmt.Errorf("parse whisper.cpp output: %w", err)
	}

	var (
		tr  types.Transcript
		cur *types.Segment
	)
	for _, ev := range out.Transcription {
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			continue
		}
		w := types.Word{
			Word:  text,
			Start: float64(ev.Offsets.From) / 1000,
			End:   float64(ev.Offsets.To) / 1000,
		}
		if cur == nil {
			tr.Segments = append(tr.Segments, types.Segment{Start: w.Start})
			cur = &tr.Segments[len(tr.Segments)-1]
		}
		cur.Words = append(cur.Words, w)
		cur.End = w.End
		if cur.Text != "" {
			cur.Text += " "
		}
		cur.Text += text
		if strings.HasSuffix(text, ".") || strings.HasSuffix(text, "?") || strings.HasSuffix(text, "!") {
			cur = nil
		}
	}
	return tr, nil
}
