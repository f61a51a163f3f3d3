package job

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/anl331/vid-clipper/internal/config"
	"github.com/anl331/vid-clipper/internal/logging"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrJobNotRunning = errors.New("job is not running")
)

// handle is one live job plus its cancel switch.
type handle struct {
	job    *Job
	cancel context.CancelFunc
}

// Manager owns running jobs: it submits them to the driver, persists every
// state change and serves stop requests.
type Manager struct {
	driver *Driver
	store  SnapshotStore
	logger *slog.Logger

	mu      sync.Mutex
	running map[string]*handle
	wg      sync.WaitGroup
}

func NewManager(driver *Driver, st SnapshotStore, logger *slog.Logger) *Manager {
	return &Manager{
		driver:  driver,
		store:   st,
		logger:  logging.WithComponent(logger, "manager"),
		running: make(map[string]*handle),
	}
}

// Submit queues a new job for the URL and starts its pipeline. The returned
// job is already persisted.
func (m *Manager) Submit(url string, opts config.JobOptions) (*Job, error) {
	if url == "" {
		return nil, errors.New("url is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	j := New(url, opts)
	j.SetVideoID(m.driver.downloader.VideoID(url))
	logger := logging.WithJobID(m.logger, j.ID())

	// Every mutation writes through to sqlite so restarts and API reads
	// always see current state.
	j.SetOnChange(func(snap Snapshot) {
		if err := m.store.SaveSnapshot(context.Background(), snap); err != nil {
			logger.Error("snapshot persist failed", "error", err)
		}
	})
	if err := m.store.SaveSnapshot(context.Background(), j.Snapshot()); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.running[j.ID()] = &handle{job: j, cancel: cancel}
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			cancel()
			m.mu.Lock()
			delete(m.running, j.ID())
			m.mu.Unlock()
		}()

		logger.Info("job started", "url", url)
		m.driver.Run(ctx, j)

		snap := j.Snapshot()
		if err := m.store.AppendHistory(context.Background(), snap); err != nil {
			logger.Error("history append failed", "error", err)
		}
		logger.Info("job finished", "status", string(snap.Status), "clips", len(snap.Clips))
	}()

	return j, nil
}

// Stop cancels one running job. Terminal or unknown jobs return an error.
func (m *Manager) Stop(id string) error {
	m.mu.Lock()
	h, ok := m.running[id]
	m.mu.Unlock()
	if !ok {
		if snap, err := m.store.GetSnapshot(context.Background(), id); err == nil && snap != nil {
			return ErrJobNotRunning
		}
		return ErrJobNotFound
	}
	m.logger.Info("stopping job", "job_id", id)
	h.cancel()
	return nil
}

// StopAll cancels every running job and returns how many were signalled.
func (m *Manager) StopAll() int {
	m.mu.Lock()
	handles := make([]*handle, 0, len(m.running))
	for _, h := range m.running {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}
	if len(handles) > 0 {
		m.logger.Info("stopping all jobs", "count", len(handles))
	}
	return len(handles)
}

// RunningCount reports how many jobs are currently active.
func (m *Manager) RunningCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

// Wait blocks until every submitted job has finished. Used on shutdown
// after StopAll.
func (m *Manager) Wait() {
	m.wg.Wait()
}
