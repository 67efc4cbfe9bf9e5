package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"applypilot/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() config.Config {
	var cfg config.Config
	cfg.App.Port = 38471
	cfg.Portal.BaseURL = "https://www.example-jobs.com"
	cfg.Portal.SearchURL = "https://www.example-jobs.com/jobs/search?keywords={keywords}&location={location}&start={page}"
	cfg.Portal.Queries = []config.Query{{Keywords: "golang", Location: "Remote", MaxPages: 2}}
	cfg.Screening.MinFitScore = 60
	cfg.Screening.TitleRules = []config.Rule{{Tag: "go", Weight: 30, Any: []string{"golang", "go developer"}}}
	return cfg
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	assert.NoError(t, config.Validate(validConfig()))
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cfg := validConfig()
	cfg.App.Port = 0
	cfg.Portal.Queries = nil
	cfg.Screening.MinFitScore = 150
	cfg.Screening.TitleRules = []config.Rule{{Weight: 10}}

	err := config.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.port")
	assert.Contains(t, err.Error(), "portal.queries")
	assert.Contains(t, err.Error(), "min_fit_score")
	assert.Contains(t, err.Error(), "title_rules[0].tag")
}

func TestValidateLLMNeedsModel(t *testing.T) {
	cfg := validConfig()
	cfg.Screening.LLM.Enabled = true

	err := config.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "screening.llm.model")
}

func TestSaveAtomicRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	cfg := validConfig()
	cfg.Schedule.CycleMinutes = 20
	require.NoError(t, config.SaveAtomic(path, cfg))

	// second save leaves a .bak of the first
	cfg.Schedule.CycleMinutes = 30
	require.NoError(t, config.SaveAtomic(path, cfg))
	_, err := os.Stat(path + ".bak")
	assert.NoError(t, err)

	got, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, got.Schedule.CycleMinutes)
	assert.Equal(t, 30*time.Minute, got.CycleInterval())
	assert.Equal(t, "golang", got.Portal.Queries[0].Keywords)
}

func TestEnsureUserConfigCopiesDefault(t *testing.T) {
	dir := t.TempDir()
	def := filepath.Join(dir, "default.yml")
	require.NoError(t, os.WriteFile(def, []byte("app:\n  port: 38471\n"), 0o644))

	dataDir := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))

	userPath, err := config.EnsureUserConfig(dataDir, def)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dataDir, "config.yml"), userPath)

	cfg, err := config.Load(userPath)
	require.NoError(t, err)
	assert.Equal(t, 38471, cfg.App.Port)

	// second call is a no-op, does not re-copy
	again, err := config.EnsureUserConfig(dataDir, "does-not-exist.yml")
	require.NoError(t, err)
	assert.Equal(t, userPath, again)
}

func TestDefaultsWhenUnset(t *testing.T) {
	var cfg config.Config
	assert.Equal(t, 45*time.Minute, cfg.CycleInterval())
	assert.Equal(t, 30*time.Second, cfg.NavTimeout())
}
