package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/anl331/vid-clipper/internal/job"
)

// AnalysisCache stores one JSON file per video id, replaced atomically so
// concurrent readers never see a partial write. It implements
// job.AnalysisStore.
type AnalysisCache struct {
	dir string
}

func NewAnalysisCache(dir string) *AnalysisCache {
	return &AnalysisCache{dir: dir}
}

func (c *AnalysisCache) path(videoID string) string {
	return filepath.Join(c.dir, videoID+".json")
}

// Lookup returns the cached entry for the video, or nil on a miss.
func (c *AnalysisCache) Lookup(videoID string) (*job.AnalysisEntry, error) {
	data, err := os.ReadFile(c.path(videoID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read analysis cache: %w", err)
	}
	var e job.AnalysisEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parse analysis cache for %s: %w", videoID, err)
	}
	return &e, nil
}

// Save writes the entry via a temp file and rename, replacing any previous
// entry for the video.
func (c *AnalysisCache) Save(e job.AnalysisEntry) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create analysis cache dir: %w", err)
	}
	e.CachedAt = time.Now().UTC()

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal analysis entry: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, e.VideoID+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, c.path(e.VideoID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace analysis cache: %w", err)
	}
	return nil
}

// Introspection is the summary served by the cache endpoint.
type Introspection struct {
	Cached       bool   `json:"cached"`
	Model        string `json:"model,omitempty"`
	MomentsCount int    `json:"moments_count"`
}

// Introspect reports whether an entry exists and what it holds, without
// returning the full payload.
func (c *AnalysisCache) Introspect(videoID string) (Introspection, error) {
	e, err := c.Lookup(videoID)
	if err != nil {
		return Introspection{}, err
	}
	if e == nil {
		return Introspection{}, nil
	}
	return Introspection{Cached: true, Model: e.Model, MomentsCount: len(e.Moments)}, nil
}
