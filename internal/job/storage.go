package job

import (
	"context"
	"time"

	"github.com/anl331/vid-clipper/internal/types"
)

// AnalysisEntry is the cached transcription + selection result for one
// video. Reuse requires a matching model id.
type AnalysisEntry struct {
	VideoID  string          `json:"video_id"`
	Model    string          `json:"model"`
	Segments []types.Segment `json:"segments"`
	Moments  []types.Moment  `json:"moments"`
	CachedAt time.Time       `json:"cached_at"`
}

// AnalysisStore caches analysis results per video id. Lookup returns nil on
// a miss.
type AnalysisStore interface {
	Lookup(videoID string) (*AnalysisEntry, error)
	Save(entry AnalysisEntry) error
}

// SnapshotStore persists job state. The manager writes through on every
// mutation and appends a history row when a job reaches a terminal status.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*Snapshot, error)
	AppendHistory(ctx context.Context, snap Snapshot) error
}
