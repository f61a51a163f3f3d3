package cli

import (
	"strings"
	"testing"

	"github.com/anl331/vid-clipper/internal/config"
)

func TestBuildApp_RejectsUntrustedModelHost(t *testing.T) {
	t.Setenv(config.EnvDataDir, t.TempDir())
	t.Setenv(config.EnvOpenRouterBaseURL, "https://evil.example.com")

	_, err := buildApp()
	if err == nil || !strings.Contains(err.Error(), "not allowed") {
		t.Fatalf("expected base URL rejection, got %v", err)
	}
}

func TestBuildApp_DefaultModelHostAccepted(t *testing.T) {
	t.Setenv(config.EnvDataDir, t.TempDir())
	t.Setenv(config.EnvOpenRouterBaseURL, "")

	a, err := buildApp()
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	a.close()
}
