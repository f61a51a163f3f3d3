// Package ytdlp resolves source URLs to local media files using the yt-dlp
// binary, with a per-video-id cache in front of it.
package ytdlp

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/anl331/vid-clipper/internal/ports"
)

// Downloaded source files older than this are re-fetched; platform CDN URLs
// expire and stale files may be truncated.
const cacheTTL = 24 * time.Hour

// Format chain: mp4 <=1080p preferred for seekability, then best available.
const formatChain = "bestvideo[height<=1080][ext=mp4]+bestaudio[ext=m4a]/best[height<=1080][ext=mp4]/best[height<=1080]/best"

var youtubeIDRe = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/shorts/)([A-Za-z0-9_-]{11})`)

type Adapter struct {
	bin      string
	cacheDir string
}

func New(binPath, cacheDir string) *Adapter {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	return &Adapter{bin: binPath, cacheDir: cacheDir}
}

// VideoID derives a stable identifier from the URL: the platform id for
// YouTube URLs, otherwise a short content hash.
func (a *Adapter) VideoID(url string) string {
	if m := youtubeIDRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:12]
}

// Download returns a local file for the video, fetching only on cache miss.
func (a *Adapter) Download(ctx context.Context, url, videoID string, logf ports.Logf) (string, error) {
	if err := os.MkdirAll(a.cacheDir, 0o755); err != nil {
		return "", &ports.AcquisitionError{URL: url, Err: err}
	}

	if cached, ok := a.cachedFile(videoID); ok {
		logf("INFO", "using cached video file: %s", filepath.Base(cached))
		return cached, nil
	}

	outTemplate := filepath.Join(a.cacheDir, videoID+".%(ext)s")
	base := []string{
		"--impersonate", "chrome-120",
		"-f", formatChain,
		"--merge-output-format", "mp4",
		"-o", outTemplate,
		"--no-playlist",
		"--retries", "3",
		"--fragment-retries", "3",
		"--concurrent-fragments", "8",
	}

	logf("INFO", "downloading: %s", url)
	err := a.run(ctx, append(base, url), logf)
	if err != nil && ctx.Err() == nil {
		// Some sites block the impersonated UA; retry plain before giving up.
		logf("WARNING", "impersonation failed, retrying without impersonation flag")
		plain := []string{
			"-f", formatChain,
			"--merge-output-format", "mp4",
			"-o", outTemplate,
			"--no-playlist",
			"--retries", "2",
			"--concurrent-fragments", "8",
			url,
		}
		err = a.run(ctx, plain, logf)
	}
	if err != nil {
		return "", &ports.AcquisitionError{URL: url, Err: err}
	}

	path, ok := a.cachedFile(videoID)
	if !ok {
		return "", &ports.AcquisitionError{URL: url, Err: fmt.Errorf("downloader produced no output file for %s", videoID)}
	}
	if st, err := os.Stat(path); err == nil {
		logf("INFO", "downloaded: %s (%.1f MB)", filepath.Base(path), float64(st.Size())/1024/1024)
	}
	return path, nil
}

// CleanupExpired removes cached source files past the TTL.
func (a *Adapter) CleanupExpired() {
	entries, err := os.ReadDir(a.cacheDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) > cacheTTL {
			os.Remove(filepath.Join(a.cacheDir, e.Name()))
		}
	}
}

func (a *Adapter) cachedFile(videoID string) (string, bool) {
	for _, ext := range []string{".mp4", ".mkv", ".webm"} {
		path := filepath.Join(a.cacheDir, videoID+ext)
		st, err := os.Stat(path)
		if err != nil {
			continue
		}
		if time.Since(st.ModTime()) > cacheTTL {
			os.Remove(path)
			continue
		}
		if st.Size() > 0 {
			return path, true
		}
	}
	return "", false
}

func (a *Adapter) run(ctx context.Context, args []string, logf ports.Logf) error {
	cmd := exec.CommandContext(ctx, a.bin, args...)

	// yt-dlp writes progress to both streams; interleave them on one pipe.
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		return fmt.Errorf("start yt-dlp: %w", err)
	}

	var lastLines []string
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		sc := bufio.NewScanner(pr)
		sc.Buffer(make([]byte, 0, 64*1024), 256*1024)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			logf("DEBUG", "yt-dlp: %s", line)
			lastLines = append(lastLines, line)
			if len(lastLines) > 5 {
				lastLines = lastLines[1:]
			}
		}
	}()

	waitErr := cmd.Wait()
	pw.Close()
	<-scanDone
	if waitErr != nil {
		return fmt.Errorf("yt-dlp: %w: %s", waitErr, strings.Join(lastLines, " | "))
	}
	return nil
}
