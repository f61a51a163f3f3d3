package ffmpeg

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/anl331/vid-clipper/internal/ports"
	"github.com/anl331/vid-clipper/internal/types"
)

const maxStderrTail = 8 * 1024 // tail of encoder stderr kept for diagnostics

type Adapter struct {
	ffmpeg  string
	ffprobe string
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

// Probe returns width/height of the first video stream and the container
// duration.
func (a *Adapter) Probe(ctx context.Context, path string) (types.VideoInfo, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return types.VideoInfo{}, fmt.Errorf("ffprobe %s: %w\n%s", path, err, tail(b))
	}

	var out struct {
		Streams []struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return types.VideoInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return types.VideoInfo{}, fmt.Errorf("no video stream in %s", path)
	}

	info := types.VideoInfo{Width: out.Streams[0].Width, Height: out.Streams[0].Height}
	if out.Format.Duration != "" {
		info.Duration, err = strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)
		if err != nil {
			return types.VideoInfo{}, fmt.Errorf("parse duration %q: %w", out.Format.Duration, err)
		}
	}
	return info, nil
}

// ExtractAudioMono16k produces the wav the local ASR engine expects.
func (a *Adapter) ExtractAudioMono16k(ctx context.Context, inPath, outPath string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", inPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outPath,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, tail(b))
	}
	return nil
}

// ExtractAudioCompressed produces a small mono mp3 suitable for upload to
// the remote speech API, which enforces a file size cap.
func (a *Adapter) ExtractAudioCompressed(ctx context.Context, inPath, outPath string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", inPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-ab", "64k",
		"-ar", "16000",
		"-ac", "1",
		outPath,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract compressed audio: %w\n%s", err, tail(b))
	}
	return nil
}

// Run executes ffmpeg with the given arguments, streaming stderr lines into
// the job log as they arrive. The returned error carries a bounded stderr
// tail.
func (a *Adapter) Run(ctx context.Context, args []string, logf ports.Logf) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg, append([]string{"-y"}, args...)...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start: %w", err)
	}

	var (
		mu       sync.Mutex
		tailBuf  []byte
		scanDone = make(chan struct{})
	)
	go func() {
		defer close(scanDone)
		sc := bufio.NewScanner(stderr)
		sc.Buffer(make([]byte, 0, 64*1024), 256*1024)
		for sc.Scan() {
			line := sc.Text()
			if logf != nil {
				logf("DEBUG", "ffmpeg: %s", line)
			}
			mu.Lock()
			tailBuf = append(tailBuf, line...)
			tailBuf = append(tailBuf, '\n')
			if len(tailBuf) > maxStderrTail {
				tailBuf = tailBuf[len(tailBuf)-maxStderrTail:]
			}
			mu.Unlock()
		}
	}()

	waitErr := cmd.Wait()
	<-scanDone
	if waitErr != nil {
		mu.Lock()
		t := string(tailBuf)
		mu.Unlock()
		return fmt.Errorf("ffmpeg exited: %w\n%s", waitErr, t)
	}
	return nil
}

// Concat re-encodes first+second into out as one seamless stream.
func (a *Adapter) Concat(ctx context.Context, first, second, out string, logf ports.Logf) error {
	return a.Run(ctx, []string{
		"-i", first,
		"-i", second,
		"-filter_complex", "[0:v][0:a][1:v][1:a]concat=n=2:v=1:a=1[v][a]",
		"-map", "[v]", "-map", "[a]",
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "20",
		"-c:a", "aac", "-b:a", "128k",
		"-movflags", "+faststart",
		out,
	}, logf)
}

// FormatSeconds renders a timestamp the way ffmpeg -ss/-to expects.
func FormatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

// EscapeFilterPath escapes a path for use inside a filtergraph argument.
func EscapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "\\\\")
	p = strings.ReplaceAll(p, ":", "\\:")
	return p
}

func tail(b []byte) string {
	if len(b) > maxStderrTail {
		b = b[len(b)-maxStderrTail:]
	}
	return string(b)
}
