package control

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitorSweep(t *testing.T) {
	t.Run("should archive and evict old terminal sessions", func(t *testing.T) {
		r := newTestRegistry(t)
		startSession(t, r, "done")
		startSession(t, r, "live")

		_, err := r.Complete(context.Background(), "done", true)
		require.NoError(t, err)

		// Backdate the end time past the retention window.
		r.mu.Lock()
		past := time.Now().Add(-2 * time.Hour)
		r.sessions["done"].endedAt = &past
		r.mu.Unlock()

		archiveDir := t.TempDir()
		janitor, err := NewJanitor(JanitorConfig{
			Registry:   r,
			ArchiveDir: archiveDir,
			Retention:  time.Hour,
		})
		require.NoError(t, err)

		archived, err := janitor.Sweep()
		require.NoError(t, err)
		assert.Equal(t, 1, archived)

		_, err = r.GetStatus("done")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = r.GetStatus("live")
		assert.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(archiveDir, "done.json"))
		require.NoError(t, err)

		var record ArchiveRecord
		require.NoError(t, json.Unmarshal(data, &record))
		assert.Equal(t, "done", record.Snapshot.ID)
		assert.Equal(t, StatusCompleted, record.Snapshot.Status)
		assert.NotEmpty(t, record.Adversary)
		assert.NotEmpty(t, record.Strategy)
	})

	t.Run("should keep recent terminal sessions", func(t *testing.T) {
		r := newTestRegistry(t)
		startSession(t, r, "fresh")
		_, err := r.Complete(context.Background(), "fresh", false)
		require.NoError(t, err)

		janitor, err := NewJanitor(JanitorConfig{
			Registry:   r,
			ArchiveDir: t.TempDir(),
			Retention:  time.Hour,
		})
		require.NoError(t, err)

		archived, err := janitor.Sweep()
		require.NoError(t, err)
		assert.Zero(t, archived)

		_, err = r.GetStatus("fresh")
		assert.NoError(t, err)
	})

	t.Run("should keep the session when the archive write fails", func(t *testing.T) {
		r := newTestRegistry(t)
		startSession(t, r, "s1")

		_, err := r.Complete(context.Background(), "s1", true)
		require.NoError(t, err)

		r.mu.Lock()
		past := time.Now().Add(-2 * time.Hour)
		r.sessions["s1"].endedAt = &past
		r.mu.Unlock()

		archiveDir := t.TempDir()
		janitor, err := NewJanitor(JanitorConfig{
			Registry:   r,
			ArchiveDir: archiveDir,
			Retention:  time.Hour,
		})
		require.NoError(t, err)

		// Occupy the temp path with a directory so the write fails.
		blocker := filepath.Join(archiveDir, "s1.json.tmp")
		require.NoError(t, os.Mkdir(blocker, 0700))

		archived, err := janitor.Sweep()
		require.NoError(t, err)
		assert.Zero(t, archived)

		// No archive landed, so the session must still be there.
		_, err = os.Stat(filepath.Join(archiveDir, "s1.json"))
		assert.True(t, os.IsNotExist(err))
		_, err = r.GetStatus("s1")
		assert.NoError(t, err)

		// The next sweep picks it up once the write can succeed.
		require.NoError(t, os.Remove(blocker))

		archived, err = janitor.Sweep()
		require.NoError(t, err)
		assert.Equal(t, 1, archived)

		_, err = r.GetStatus("s1")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = os.Stat(filepath.Join(archiveDir, "s1.json"))
		assert.NoError(t, err)
	})

	t.Run("should include queued commands and events in the archive", func(t *testing.T) {
		r := newTestRegistry(t)
		startSession(t, r, "s1")

		require.NoError(t, r.SendCommand(context.Background(), "s1", "alice", "hurry"))
		_, err := r.RecordSabotage(context.Background(), "s1", "timing", "stalled", 0.8)
		require.NoError(t, err)

		_, err = r.Complete(context.Background(), "s1", true)
		require.NoError(t, err)

		r.mu.Lock()
		past := time.Now().Add(-2 * time.Hour)
		r.sessions["s1"].endedAt = &past
		r.mu.Unlock()

		archiveDir := t.TempDir()
		janitor, err := NewJanitor(JanitorConfig{
			Registry:   r,
			ArchiveDir: archiveDir,
			Retention:  time.Hour,
		})
		require.NoError(t, err)

		_, err = janitor.Sweep()
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(archiveDir, "s1.json"))
		require.NoError(t, err)

		var record ArchiveRecord
		require.NoError(t, json.Unmarshal(data, &record))
		require.Len(t, record.Commands, 1)
		assert.Equal(t, "hurry", record.Commands[0].Text)
		require.Len(t, record.Events, 1)
		assert.Equal(t, "timing", record.Events[0].Type)
	})
}

func TestNewJanitorValidation(t *testing.T) {
	_, err := NewJanitor(JanitorConfig{ArchiveDir: t.TempDir()})
	assert.Error(t, err)

	_, err = NewJanitor(JanitorConfig{Registry: newTestRegistry(t)})
	assert.Error(t, err)

	_, err = NewJanitor(JanitorConfig{
		Registry:   newTestRegistry(t),
		ArchiveDir: t.TempDir(),
		Schedule:   "not a schedule",
	})
	assert.Error(t, err)
}
