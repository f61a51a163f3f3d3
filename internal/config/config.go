// Package config reads daemon configuration from environment variables with
// sensible defaults, and defines the per-job option set.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultPort     = 8690
	DefaultLogLevel = "info"
	DefaultDataDir  = ".clipper"
	DefaultOutDir   = "clips"

	DefaultOpenRouterModel   = "google/gemini-2.0-flash-001"
	DefaultOpenRouterBaseURL = "https://openrouter.ai"

	EnvPort     = "CLIPPER_PORT"
	EnvLogLevel = "CLIPPER_LOG_LEVEL"
	EnvDataDir  = "CLIPPER_DATA_DIR"
	EnvOutDir   = "CLIPPER_OUT_DIR"

	EnvFFmpeg       = "CLIPPER_FFMPEG"
	EnvFFprobe      = "CLIPPER_FFPROBE"
	EnvYtDlp        = "CLIPPER_YTDLP"
	EnvWhisperBin   = "CLIPPER_WHISPER_BIN"
	EnvWhisperModel = "CLIPPER_WHISPER_MODEL"
	EnvVisionPython = "CLIPPER_VISION_PYTHON"
	EnvVisionModule = "CLIPPER_VISION_MODULE"

	EnvOpenRouterAPIKey  = "OPENROUTER_API_KEY"
	EnvOpenRouterModel   = "OPENROUTER_MODEL"
	EnvOpenRouterBaseURL = "OPENROUTER_BASE_URL"
	EnvGroqAPIKey        = "GROQ_API_KEY"

	DBFilename = "clipper.db"
)

// Config is the process-level configuration. Per-job knobs live in
// JobOptions.
type Config struct {
	Port     int
	LogLevel string
	DataDir  string
	OutDir   string

	FFmpegPath   string
	FFprobePath  string
	YtDlpPath    string
	WhisperBin   string
	WhisperModel string
	VisionPython string
	VisionModule string

	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterBaseURL string
	GroqAPIKey        string
}

// FromEnv builds a Config from environment variables over defaults.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:     DefaultPort,
		LogLevel: DefaultLogLevel,
		DataDir:  DefaultDataDir,
		OutDir:   DefaultOutDir,

		FFmpegPath:   "ffmpeg",
		FFprobePath:  "ffprobe",
		YtDlpPath:    "yt-dlp",
		WhisperBin:   ".cache/bin/whisper.cpp",
		WhisperModel: ".cache/models/ggml-base.bin",
		VisionModule: "clipper_vision",

		OpenRouterModel:   DefaultOpenRouterModel,
		OpenRouterBaseURL: DefaultOpenRouterBaseURL,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.Port = port
	}

	setFromEnv(&cfg.LogLevel, EnvLogLevel)
	setFromEnv(&cfg.DataDir, EnvDataDir)
	setFromEnv(&cfg.OutDir, EnvOutDir)
	setFromEnv(&cfg.FFmpegPath, EnvFFmpeg)
	setFromEnv(&cfg.FFprobePath, EnvFFprobe)
	setFromEnv(&cfg.YtDlpPath, EnvYtDlp)
	setFromEnv(&cfg.WhisperBin, EnvWhisperBin)
	setFromEnv(&cfg.WhisperModel, EnvWhisperModel)
	setFromEnv(&cfg.VisionPython, EnvVisionPython)
	setFromEnv(&cfg.VisionModule, EnvVisionModule)
	setFromEnv(&cfg.OpenRouterAPIKey, EnvOpenRouterAPIKey)
	setFromEnv(&cfg.OpenRouterModel, EnvOpenRouterModel)
	setFromEnv(&cfg.OpenRouterBaseURL, EnvOpenRouterBaseURL)
	setFromEnv(&cfg.GroqAPIKey, EnvGroqAPIKey)

	return cfg, nil
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) DBPath() string            { return filepath.Join(c.DataDir, DBFilename) }
func (c *Config) VideoCacheDir() string     { return filepath.Join(c.DataDir, "video_cache") }
func (c *Config) AnalysisCacheDir() string  { return filepath.Join(c.DataDir, "analysis") }
func (c *Config) WorkDir() string           { return filepath.Join(c.DataDir, "work") }
