package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI with a fresh root command and captured output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeDataset writes a minimal dataset directory: a meta file carrying
// the version and one category file.
func writeDataset(t *testing.T, dir, version string, records ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	meta := `{"_key":"_meta","buildNumber":` + version + `,"releaseDate":"2025-06-01"}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_sde.jsonl"), []byte(meta), 0o644))

	var body string
	for _, r := range records {
		body += r + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "types.jsonl"), []byte(body), 0o644))
}

func setupEnv(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", base)
	t.Setenv("SDEX_INDEX_PATH", filepath.Join(base, "index.db"))
	t.Setenv("SDEX_CHANGELOG_PATH", filepath.Join(base, "changelog.db"))
	return base
}

func TestCLI_IndexThenSearch(t *testing.T) {
	base := setupEnv(t)
	dataDir := filepath.Join(base, "sde")
	writeDataset(t, dataDir, "2911930",
		`{"_key":"34","name":{"en":"Tritanium","zh":"三钛合金"},"mass":1000}`,
		`{"_key":"638","name":{"en":"Raven"}}`)

	// Given: an index built from the dataset
	out, err := run(t, "index", dataDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Loaded 2 entities")
	assert.Contains(t, out, "2911930")

	// When: searching by English name
	out, err = run(t, "search", "Tritanium", "--format", "json")
	require.NoError(t, err, out)

	// Then: the matching entity comes back
	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, float64(34), results[0]["id"])
	assert.Equal(t, "三钛合金", results[0]["primary_name"])
}

func TestCLI_SearchWithoutIndexFails(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "search", "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sdex index")
}

func TestCLI_DiffRecordAndChangelog(t *testing.T) {
	base := setupEnv(t)
	oldDir := filepath.Join(base, "old")
	newDir := filepath.Join(base, "new")
	writeDataset(t, oldDir, "100",
		`{"_key":"34","name":{"en":"Tritanium"},"mass":1000}`)
	writeDataset(t, newDir, "101",
		`{"_key":"34","name":{"en":"Tritanium"},"mass":1200}`,
		`{"_key":"999","name":{"en":"New Thing"}}`)

	// Given: a recorded diff between the two versions
	out, err := run(t, "diff", oldDir, newDir, "--record", "--summary")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Recorded changeset 100 -> 101")
	assert.Contains(t, out, "+1 added")
	assert.Contains(t, out, "~1 modified")

	// When: recording the same pair again
	_, err = run(t, "diff", oldDir, newDir, "--record", "--summary")

	// Then: the duplicate is rejected
	require.Error(t, err)

	// And: the changeset is listed and retrievable
	out, err = run(t, "changelog", "list")
	require.NoError(t, err, out)
	assert.Contains(t, out, "100 -> 101")

	out, err = run(t, "changelog", "show", "100", "101")
	require.NoError(t, err, out)
	assert.Contains(t, out, "mass: 1000 -> 1200")
	assert.Contains(t, out, "+ 999")
}

func TestCLI_ChangelogShowUnknownPairFails(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "changelog", "show", "1", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no changeset recorded")
}

func TestCLI_StatsReportsVersionAndCounts(t *testing.T) {
	base := setupEnv(t)
	dataDir := filepath.Join(base, "sde")
	writeDataset(t, dataDir, "2911930",
		`{"_key":"34","name":{"en":"Tritanium"}}`)

	out, err := run(t, "index", dataDir)
	require.NoError(t, err, out)

	out, err = run(t, "stats")
	require.NoError(t, err, out)
	assert.Contains(t, out, "2911930")
	assert.Contains(t, out, "Entities:  1")
	assert.Contains(t, out, "types")
}

func TestCLI_ConfigShowIsJSON(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "config", "show")
	require.NoError(t, err)

	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
}

func TestCLI_HelpListsCommands(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"index", "search", "diff", "changelog", "stats", "watch", "resolve"} {
		assert.Contains(t, out, sub)
	}
}
