package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrigger_CoalescesBurstIntoOneFiring(t *testing.T) {
	trigger := NewTrigger(20 * time.Millisecond)
	defer trigger.Stop()

	// A burst of notifications within the window.
	trigger.Notify()
	trigger.Notify()
	trigger.Notify()

	select {
	case <-trigger.C():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected a firing after the window")
	}

	// No second firing without new notifications.
	select {
	case <-trigger.C():
		t.Fatal("unexpected second firing")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTrigger_FiresAgainAfterSecondBurst(t *testing.T) {
	trigger := NewTrigger(10 * time.Millisecond)
	defer trigger.Stop()

	trigger.Notify()
	select {
	case <-trigger.C():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected first firing")
	}

	trigger.Notify()
	select {
	case <-trigger.C():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected second firing")
	}
}

func TestTrigger_StopSuppressesFiring(t *testing.T) {
	trigger := NewTrigger(10 * time.Millisecond)

	trigger.Notify()
	trigger.Stop()

	select {
	case <-trigger.C():
		t.Fatal("firing after Stop")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcher_FiresOnDatasetWrite(t *testing.T) {
	dir := t.TempDir()

	w, err := New(dir, 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "types.jsonl"),
		[]byte(`{"_key":"34","name":{"en":"Tritanium"}}`+"\n"), 0o644))

	select {
	case <-w.Rebuilds():
	case <-time.After(5 * time.Second):
		t.Fatal("expected a rebuild signal after writing a dataset file")
	}
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()

	w, err := New(dir, 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	select {
	case <-w.Rebuilds():
		t.Fatal("rebuild signal for a non-dataset file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNew_MissingDirFails(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), 0, nil)
	assert.Error(t, err)
}
