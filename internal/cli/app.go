package cli

import (
	"fmt"
	"log/slog"

	"github.com/anl331/vid-clipper/internal/config"
	"github.com/anl331/vid-clipper/internal/job"
	"github.com/anl331/vid-clipper/internal/logging"
	"github.com/anl331/vid-clipper/internal/ports"
	"github.com/anl331/vid-clipper/internal/ports/adapters/ffmpeg"
	"github.com/anl331/vid-clipper/internal/ports/adapters/groq"
	"github.com/anl331/vid-clipper/internal/ports/adapters/openrouter"
	"github.com/anl331/vid-clipper/internal/ports/adapters/vision"
	"github.com/anl331/vid-clipper/internal/ports/adapters/whispercpp"
	"github.com/anl331/vid-clipper/internal/ports/adapters/ytdlp"
	"github.com/anl331/vid-clipper/internal/render"
	"github.com/anl331/vid-clipper/internal/store"
)

// app holds everything a command needs after wiring.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.JobStore
	cache   *store.AnalysisCache
	manager *job.Manager
}

// buildApp wires configuration, adapters, stores and the job manager.
func buildApp() (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(cfg.LogLevel)

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	cache := store.NewAnalysisCache(cfg.AnalysisCacheDir())

	ff := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath)
	downloader := ytdlp.New(cfg.YtDlpPath, cfg.VideoCacheDir())
	transcribers := map[string]ports.Transcriber{
		config.ProviderLocal:  whispercpp.New(cfg.WhisperBin, cfg.WhisperModel, cfg.WorkDir()),
		config.ProviderRemote: groq.New(cfg.GroqAPIKey, ff, cfg.WorkDir()),
	}
	if err := openrouter.ValidateBaseURL(cfg.OpenRouterBaseURL, nil); err != nil {
		return nil, err
	}
	selector := openrouter.New(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL)

	// Subject detection is optional: without a usable python the tracker
	// cascade is empty and crops stay centered.
	var detectors []ports.Detector
	if runner, err := vision.NewRunner(cfg.VisionPython, cfg.VisionModule, cfg.WorkDir()); err != nil {
		logger.Warn("subject detection unavailable, crops stay centered", "error", err)
	} else {
		for _, backend := range []string{"person", "face", "cascade"} {
			detectors = append(detectors, runner.Detector(backend))
		}
	}

	renderer := render.New(ff, detectors, cfg.OutDir, cfg.WorkDir())
	driver := job.NewDriver(downloader, transcribers, selector, ff, renderer, cache, cfg.WorkDir())

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		cache:   cache,
		manager: job.NewManager(driver, st, logger),
	}, nil
}

func (a *app) close() {
	a.store.Close()
}
