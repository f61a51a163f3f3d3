package ytdlp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func discardLogf(string, string, ...any) {}

func TestVideoID_YouTubeForms(t *testing.T) {
	a := New("", t.TempDir())
	cases := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s",
	}
	for _, url := range cases {
		if got := a.VideoID(url); got != "dQw4w9WgXcQ" {
			t.Errorf("VideoID(%q) = %q, want dQw4w9WgXcQ", url, got)
		}
	}
}

func TestVideoID_NonYouTubeIsStableHash(t *testing.T) {
	a := New("", t.TempDir())
	url := "https://vimeo.com/123456789"
	id := a.VideoID(url)
	if len(id) != 12 {
		t.Fatalf("expected 12-char hash id, got %q", id)
	}
	if a.VideoID(url) != id {
		t.Fatalf("id must be deterministic")
	}
	if a.VideoID("https://vimeo.com/other") == id {
		t.Fatalf("different urls must not collide")
	}
}

func TestDownload_CacheHitSkipsBinary(t *testing.T) {
	dir := t.TempDir()
	// Binary path that cannot exist; a cache hit must never invoke it.
	a := New(filepath.Join(dir, "no-such-yt-dlp"), dir)

	cached := filepath.Join(dir, "vid123.mp4")
	if err := os.WriteFile(cached, []byte("mp4data"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := a.Download(context.Background(), "https://youtu.be/vid123", "vid123", discardLogf)
	if err != nil {
		t.Fatalf("cache hit must not fail: %v", err)
	}
	if got != cached {
		t.Fatalf("expected cached path %s, got %s", cached, got)
	}
}

func TestCachedFile_IgnoresEmptyAndExpired(t *testing.T) {
	dir := t.TempDir()
	a := New("", dir)

	empty := filepath.Join(dir, "empty.mp4")
	os.WriteFile(empty, nil, 0o644)
	if _, ok := a.cachedFile("empty"); ok {
		t.Fatal("zero-byte files must not count as cached")
	}

	stale := filepath.Join(dir, "stale.mp4")
	os.WriteFile(stale, []byte("data"), 0o644)
	old := time.Now().Add(-cacheTTL - time.Hour)
	os.Chtimes(stale, old, old)
	if _, ok := a.cachedFile("stale"); ok {
		t.Fatal("expired files must not count as cached")
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("expired file must be removed on lookup")
	}
}

func TestCleanupExpired(t *testing.T) {
	dir := t.TempDir()
	a := New("", dir)

	fresh := filepath.Join(dir, "fresh.mp4")
	stale := filepath.Join(dir, "stale.mp4")
	os.WriteFile(fresh, []byte("data"), 0o644)
	os.WriteFile(stale, []byte("data"), 0o644)
	old := time.Now().Add(-cacheTTL - time.Hour)
	os.Chtimes(stale, old, old)

	a.CleanupExpired()

	if _, err := os.Stat(fresh); err != nil {
		t.Fatal("fresh file must survive cleanup")
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale file must be removed")
	}
}
