package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_HasSaneValues(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 50, cfg.Search.MaxResults)
	assert.Equal(t, "zh", cfg.Search.PreferredLanguage)
	assert.Equal(t, 16, cfg.Index.MaxPrefixLength)
	assert.Equal(t, 2, cfg.Index.MinTokenLength)
	assert.Equal(t, 1000, cfg.Index.BatchSize)
	assert.NotEmpty(t, cfg.IndexPath)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Search.MaxResults, cfg.Search.MaxResults)
}

func TestLoad_ReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sdex.yaml")
	content := `
data_dir: /data/sde
index_path: /data/index.db
changelog_path: /data/changelog.db
search:
  max_results: 25
  preferred_language: de
index:
  max_prefix_length: 12
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/sde", cfg.DataDir)
	assert.Equal(t, 25, cfg.Search.MaxResults)
	assert.Equal(t, "de", cfg.Search.PreferredLanguage)
	assert.Equal(t, 12, cfg.Index.MaxPrefixLength)
	// Unset fields keep defaults
	assert.Equal(t, 2, cfg.Index.MinTokenLength)
}

func TestLoad_InvalidYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sdex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SDEX_PREFERRED_LANGUAGE", "fr")
	t.Setenv("SDEX_MAX_RESULTS", "7")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "fr", cfg.Search.PreferredLanguage)
	assert.Equal(t, 7, cfg.Search.MaxResults)
}

func TestValidate_RejectsInconsistentTokenBounds(t *testing.T) {
	cfg := Default()
	cfg.Index.MinTokenLength = 20
	cfg.Index.MaxPrefixLength = 10

	err := cfg.Validate()
	assert.Error(t, err)
}

func TestSaveAndReload_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sdex.yaml")

	cfg := Default()
	cfg.Search.MaxResults = 99
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 99, loaded.Search.MaxResults)
}
