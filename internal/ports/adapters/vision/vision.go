// Package vision runs the Python detection helper as a subprocess and parses
// its JSON output into subject detections.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/anl331/vid-clipper/internal/ports"
	"github.com/anl331/vid-clipper/internal/types"
)

const (
	maxStderrBytes = 8 * 1024 // tail of stderr kept for diagnostics
	detectTimeout  = 5 * time.Minute
)

// Runner owns the resolved Python interpreter and hands out per-backend
// detectors.
type Runner struct {
	python  string
	module  string
	workDir string
}

// NewRunner resolves the interpreter and prepares the output directory.
// pythonPath may be empty, in which case python3/python is looked up on PATH.
func NewRunner(pythonPath, module, workDir string) (*Runner, error) {
	python, err := resolvePython(pythonPath)
	if err != nil {
		return nil, fmt.Errorf("cannot locate python: %w", err)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create vision work dir: %w", err)
	}
	return &Runner{python: python, module: module, workDir: workDir}, nil
}

// Detector returns a detector bound to one backend: "person" (YOLO),
// "face" (MediaPipe) or "cascade" (Haar).
func (r *Runner) Detector(backend string) ports.Detector {
	return &detector{runner: r, backend: backend}
}

type detector struct {
	runner  *Runner
	backend string
}

func (d *detector) Backend() string { return d.backend }

// Detect samples the [start, end] window of the video and returns detected
// subject boxes in pixel coordinates, ordered by sample time.
func (d *detector) Detect(ctx context.Context, videoPath string, start, end float64) ([]types.Detection, error) {
	outPath := filepath.Join(d.runner.workDir, "detect-"+uuid.NewString()+".json")
	defer os.Remove(outPath)

	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	args := []string{
		"-m", d.runner.module,
		"detect",
		"--video", videoPath,
		"--start", fmt.Sprintf("%.3f", start),
		"--end", fmt.Sprintf("%.3f", end),
		"--backend", d.backend,
		"--out", outPath,
	}
	cmd := exec.CommandContext(ctx, d.runner.python, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = io.Discard

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("vision %s backend: %w: %s", d.backend, err, stderrBuf.String())
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read vision output: %w", err)
	}
	return parseDetections(data, d.backend)
}

func parseDetections(data []byte, backend string) ([]types.Detection, error) {
	var out struct {
		Detections []struct {
			Time       float64    `json:"time"`
			Box        types.Rect `json:"box"`
			Confidence float64    `json:"confidence"`
		} `json:"detections"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse vision output: %w", err)
	}

	dets := make([]types.Detection, 0, len(out.Detections))
	for _, d := range out.Detections {
		dets = append(dets, types.Detection{
			Time:       d.Time,
			Box:        d.Box,
			Confidence: d.Confidence,
			Source:     backend,
		})
	}
	return dets, nil
}

func resolvePython(pythonPath string) (string, error) {
	if pythonPath != "" {
		return pythonPath, nil
	}
	for _, name := range []string{"python3", "python"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no python interpreter on PATH")
}

// limitedWriter keeps only the last limit bytes written through it.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		tail := lw.w.Bytes()[lw.w.Len()-lw.limit:]
		trimmed := make([]byte, len(tail))
		copy(trimmed, tail)
		lw.w.Reset()
		lw.w.Write(trimmed)
	}
	return n, nil
}
