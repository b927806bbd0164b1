package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alvmarrod/site-mirror/internal/storage"
	"github.com/alvmarrod/site-mirror/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	assert.Equal(t, "sitemirror", cmd.Use)
	assert.Equal(t, version.Version, cmd.Version)

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	cfg := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, cfg)
	assert.Equal(t, "c", cfg.Shorthand)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"run", "schedule", "history", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCmd(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "sitemirror version "+version.Version))
}

func TestConfigPath_Flag(t *testing.T) {
	cmd := NewRootCmd()
	require.NoError(t, cmd.PersistentFlags().Set("config", "/etc/mirror.yaml"))

	path, err := configPath(cmd)
	require.NoError(t, err)
	assert.Equal(t, "/etc/mirror.yaml", path)
}

func TestConfigPath_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{}`), 0o644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	path, err := configPath(NewRootCmd())
	require.NoError(t, err)
	assert.Equal(t, "config.json", path)
}

func TestRunCmd_MissingConfig(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"run", "--config", filepath.Join(t.TempDir(), "missing.yaml")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestHistoryCmd(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "history.db")

	store, err := storage.NewStorage(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.StartRun("0f8e2f3a-1111-2222-3333-444455556666", time.Now().Add(-time.Minute)))
	require.NoError(t, store.FinishRun(storage.Run{
		RunID:      "0f8e2f3a-1111-2222-3333-444455556666",
		FinishedAt: time.Now(),
		Metrics:    storage.Metrics{PagesFetched: 12, PagesWritten: 2},
		SyncStatus: storage.SyncCommitted,
		CommitHash: "89abcdef0123",
	}))
	require.NoError(t, store.Close())

	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := "origins:\n  - https://example.test\ndb_path: " + dbPath + "\nmirror_dir: " + filepath.Join(dir, "www") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"history", "--config", cfgPath, "-n", "5"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "0f8e2f3a")
	assert.Contains(t, out.String(), "12/2/0/0")
	assert.Contains(t, out.String(), storage.SyncCommitted)
	assert.Contains(t, out.String(), "89abcde")
}

func TestPrintRuns_Empty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printRuns(&out, nil))
	assert.Equal(t, "No runs recorded yet.\n", out.String())
}

func TestPrintRuns_Running(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printRuns(&out, []storage.Run{{RunID: "short", StartedAt: time.Now()}}))
	assert.Contains(t, out.String(), "running")
	assert.Contains(t, out.String(), "short")
}
