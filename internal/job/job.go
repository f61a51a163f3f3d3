// Package job holds the per-job state machine, the manager that owns running
// jobs, and the driver that walks a job through the pipeline stages.
package job

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anl331/vid-clipper/internal/config"
	"github.com/anl331/vid-clipper/internal/types"
)

// Status is the job's position in the pipeline.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusDownloading  Status = "downloading"
	StatusTranscribing Status = "transcribing"
	StatusAnalyzing    Status = "analyzing"
	StatusClipping     Status = "clipping"
	StatusDone         Status = "done"
	StatusError        Status = "error"
)

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool { return s == StatusDone || s == StatusError }

// Stage names, used as step keys. Each active status has a matching stage.
const (
	StageDownloading  = "downloading"
	StageTranscribing = "transcribing"
	StageAnalyzing    = "analyzing"
	StageClipping     = "clipping"
)

// Step records one stage's timing and outcome.
type Step struct {
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Status    string     `json:"status"` // running, ok, error, skipped
	Cached    bool       `json:"cached,omitempty"`
}

// LogEntry is one line of the job's bounded log ring.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// maxLogEntries bounds the in-memory and persisted log ring per job.
const maxLogEntries = 500

// Snapshot is the JSON view of a job that the store persists and the API
// serves. It is always a deep copy, safe to hand out.
type Snapshot struct {
	ID        string            `json:"id"`
	URL       string            `json:"url"`
	VideoID   string            `json:"video_id"`
	Status    Status            `json:"status"`
	Steps     map[string]Step   `json:"steps"`
	Error     string            `json:"error,omitempty"`
	Logs      []LogEntry        `json:"logs"`
	Clips     []types.Clip      `json:"clips"`
	Options   config.JobOptions `json:"options"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Job is the mutable state of one pipeline run. All mutation goes through
// methods holding the internal lock; readers take a Snapshot.
type Job struct {
	mu sync.Mutex

	id        string
	url       string
	videoID   string
	status    Status
	steps     map[string]*Step
	err       string
	logs      []LogEntry
	clips     []types.Clip
	options   config.JobOptions
	createdAt time.Time
	updatedAt time.Time

	// onChange, when set, receives a fresh snapshot after every mutation.
	// The manager uses it for write-through persistence.
	onChange func(Snapshot)
}

// New creates a queued job for the URL with an options snapshot.
func New(url string, opts config.JobOptions) *Job {
	now := time.Now().UTC()
	return &Job{
		id:        uuid.NewString(),
		url:       url,
		status:    StatusQueued,
		steps:     make(map[string]*Step),
		options:   opts,
		createdAt: now,
		updatedAt: now,
	}
}

func (j *Job) ID() string { return j.id }

func (j *Job) URL() string { return j.url }

func (j *Job) Options() config.JobOptions { return j.options }

// SetOnChange installs the persistence hook. Must be called before the
// driver starts.
func (j *Job) SetOnChange(fn func(Snapshot)) {
	j.mu.Lock()
	j.onChange = fn
	j.mu.Unlock()
}

// SetVideoID records the resolved video id once acquisition derives it.
func (j *Job) SetVideoID(id string) {
	j.mu.Lock()
	j.videoID = id
	j.touch()
	j.mu.Unlock()
}

// StartStage moves the job into an active status and stamps the stage start.
func (j *Job) StartStage(stage string, status Status) {
	j.mu.Lock()
	now := time.Now().UTC()
	j.status = status
	j.steps[stage] = &Step{StartedAt: &now, Status: "running"}
	j.touch()
	j.mu.Unlock()
}

// EndStage stamps the stage end with the given outcome.
func (j *Job) EndStage(stage, outcome string, cached bool) {
	j.mu.Lock()
	if st, ok := j.steps[stage]; ok {
		now := time.Now().UTC()
		st.EndedAt = &now
		st.Status = outcome
		st.Cached = cached
	}
	j.touch()
	j.mu.Unlock()
}

// Finish marks the job done.
func (j *Job) Finish(clips []types.Clip) {
	j.mu.Lock()
	j.status = StatusDone
	j.clips = clips
	j.touch()
	j.mu.Unlock()
}

// Fail marks the job errored with a message. The active stage, if any, is
// closed as errored too.
func (j *Job) Fail(msg string) {
	j.mu.Lock()
	j.status = StatusError
	j.err = msg
	for _, st := range j.steps {
		if st.Status == "running" {
			now := time.Now().UTC()
			st.EndedAt = &now
			st.Status = "error"
		}
	}
	j.touch()
	j.mu.Unlock()
}

// Logf appends a line to the job's log ring, evicting the oldest entries
// past the bound.
func (j *Job) Logf(level, format string, args ...any) {
	j.mu.Lock()
	j.logs = append(j.logs, LogEntry{
		Time:    time.Now().UTC(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	})
	if len(j.logs) > maxLogEntries {
		j.logs = j.logs[len(j.logs)-maxLogEntries:]
	}
	j.touch()
	j.mu.Unlock()
}

// Status returns the current status.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Snapshot returns a deep copy of the job state.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshotLocked()
}

func (j *Job) snapshotLocked() Snapshot {
	steps := make(map[string]Step, len(j.steps))
	for k, v := range j.steps {
		steps[k] = *v
	}
	logs := make([]LogEntry, len(j.logs))
	copy(logs, j.logs)
	clips := make([]types.Clip, len(j.clips))
	copy(clips, j.clips)
	return Snapshot{
		ID:        j.id,
		URL:       j.url,
		VideoID:   j.videoID,
		Status:    j.status,
		Steps:     steps,
		Error:     j.err,
		Logs:      logs,
		Clips:     clips,
		Options:   j.options,
		CreatedAt: j.createdAt,
		UpdatedAt: j.updatedAt,
	}
}

// touch refreshes updated_at and pushes a snapshot to the persistence hook.
// Callers hold the lock.
func (j *Job) touch() {
	j.updatedAt = time.Now().UTC()
	if j.onChange != nil {
		j.onChange(j.snapshotLocked())
	}
}
