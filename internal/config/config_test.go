package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, "postgres", cfg.DatabaseDriver)
	require.Equal(t, 10, cfg.UploadMaxSizeMB)
	require.Equal(t, 30*time.Minute, cfg.SessionIdleTTL)
	require.Equal(t, time.Minute, cfg.AnalysisTimeout)
	require.Equal(t, "gpt-4o-mini", cfg.AIModel)
	require.Equal(t, "grading.analysis.completed", cfg.NATSSubject)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GRADER_APP_PORT", ":9090")
	t.Setenv("GRADER_DATABASE_DRIVER", "SQLite")
	t.Setenv("GRADER_SESSION_IDLE_TTL", "5m")
	t.Setenv("GRADER_UPLOAD_MAX_SIZE_MB", "0")
	t.Setenv("GRADER_OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, "sqlite", cfg.DatabaseDriver)
	require.Equal(t, 5*time.Minute, cfg.SessionIdleTTL)
	require.Equal(t, 10, cfg.UploadMaxSizeMB)
	require.Equal(t, "sk-test", cfg.OpenAIAPIKey)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GRADER_ANALYSIS_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("GRADER_ANALYSIS_TIMEOUT", "30s")
	t.Setenv("GRADER_DATABASE_DRIVER", "mysql")
	_, err = Load()
	require.Error(t, err)
}
