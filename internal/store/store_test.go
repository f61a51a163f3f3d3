package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/anl331/vid-clipper/internal/job"
	"github.com/anl331/vid-clipper/internal/types"
)

func testSnapshot(id string, status job.Status) job.Snapshot {
	now := time.Now().UTC()
	return job.Snapshot{
		ID:        id,
		URL:       "https://youtu.be/dQw4w9WgXcQ",
		VideoID:   "dQw4w9WgXcQ",
		Status:    status,
		Steps:     map[string]job.Step{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestJobStore_SaveAndGet(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	snap := testSnapshot("job-1", job.StatusClipping)
	snap.Clips = []types.Clip{{File: "clip_01_test.mp4", Title: "Test"}}
	if err := s.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.GetSnapshot(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.VideoID != "dQw4w9WgXcQ" || len(got.Clips) != 1 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	// Upsert replaces.
	snap.Status = job.StatusDone
	if err := s.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, _ = s.GetSnapshot(ctx, "job-1")
	if got.Status != job.StatusDone {
		t.Fatalf("expected done after upsert, got %s", got.Status)
	}
}

func TestJobStore_GetUnknownIsNil(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	got, err := s.GetSnapshot(context.Background(), "nope")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v, %v", got, err)
	}
}

func TestJobStore_MarkInterruptedOnReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ctx := context.Background()
	if err := s.SaveSnapshot(ctx, testSnapshot("stuck", job.StatusTranscribing)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveSnapshot(ctx, testSnapshot("finished", job.StatusDone)); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	stuck, _ := s2.GetSnapshot(ctx, "stuck")
	if stuck.Status != job.StatusError || stuck.Error != "interrupted by restart" {
		t.Fatalf("expected interrupted job marked errored, got %+v", stuck)
	}
	finished, _ := s2.GetSnapshot(ctx, "finished")
	if finished.Status != job.StatusDone {
		t.Fatalf("terminal job must not be touched, got %+v", finished)
	}
}

func TestJobStore_History(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	snap := testSnapshot("job-1", job.StatusDone)
	snap.Clips = []types.Clip{
		{File: "a.mp4"},
		{File: "", Err: "render failed"},
		{File: "b.mp4"},
	}
	if err := s.AppendHistory(ctx, snap); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err := s.ListHistory(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ClipCount != 2 {
		t.Fatalf("skipped clips must not count, got %d", entries[0].ClipCount)
	}
}

func TestAnalysisCache_MissThenHit(t *testing.T) {
	c := NewAnalysisCache(t.TempDir())

	got, err := c.Lookup("vid123")
	if err != nil || got != nil {
		t.Fatalf("expected miss, got %v, %v", got, err)
	}

	entry := job.AnalysisEntry{
		VideoID:  "vid123",
		Model:    "test/model",
		Segments: []types.Segment{{Start: 0, End: 5, Text: "hello"}},
		Moments:  []types.Moment{{Start: 0, End: 30, Title: "T", HookScore: 7}},
	}
	if err := c.Save(entry); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err = c.Lookup("vid123")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Model != "test/model" || len(got.Moments) != 1 || got.CachedAt.IsZero() {
		t.Fatalf("unexpected entry: %+v", got)
	}
}

func TestAnalysisCache_SaveOverwrites(t *testing.T) {
	c := NewAnalysisCache(t.TempDir())
	if err := c.Save(job.AnalysisEntry{VideoID: "v", Model: "old"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := c.Save(job.AnalysisEntry{VideoID: "v", Model: "new", Moments: []types.Moment{{}}}); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, _ := c.Lookup("v")
	if got.Model != "new" || len(got.Moments) != 1 {
		t.Fatalf("expected overwrite, got %+v", got)
	}
}

func TestAnalysisCache_Introspect(t *testing.T) {
	c := NewAnalysisCache(t.TempDir())

	info, err := c.Introspect("missing")
	if err != nil || info.Cached {
		t.Fatalf("expected uncached, got %+v, %v", info, err)
	}

	c.Save(job.AnalysisEntry{VideoID: "v", Model: "m", Moments: []types.Moment{{}, {}}})
	info, err = c.Introspect("v")
	if err != nil {
		t.Fatalf("introspect: %v", err)
	}
	if !info.Cached || info.Model != "m" || info.MomentsCount != 2 {
		t.Fatalf("unexpected introspection: %+v", info)
	}
}
