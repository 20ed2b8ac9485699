package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fetchd/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finishTask(t *testing.T, store *task.Store, id, filename string, finishedAt time.Time) {
	t.Helper()

	store.Update(context.Background(), id, func(tk *task.Task) {
		tk.Status = task.StatusDone
		tk.Progress = "100%"
		tk.Filename = filename
		tk.FinishedAt = finishedAt
	})
}

func TestDeleteExpired(t *testing.T) {
	dir := t.TempDir()
	store := task.NewStore()
	keepFor := time.Hour

	expired := store.Create("https://youtu.be/old", "", "", false)
	finishTask(t, store, expired.ID, "old.mp4", time.Now().Add(-2*time.Hour))

	fresh := store.Create("https://youtu.be/new", "", "", false)
	finishTask(t, store, fresh.ID, "new.mp4", time.Now().Add(-time.Minute))

	running := store.Create("https://youtu.be/busy", "", "", false)

	for _, name := range []string{"old.mp4", "new.mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("media"), 0o600))
	}

	DeleteExpired(context.Background(), store, nil, dir, keepFor)

	_, ok := store.Get(expired.ID)
	assert.False(t, ok, "expired task should be evicted")

	_, ok = store.Get(fresh.ID)
	assert.True(t, ok, "fresh task should survive")

	_, ok = store.Get(running.ID)
	assert.True(t, ok, "running task should survive")

	_, err := os.Stat(filepath.Join(dir, "old.mp4"))
	assert.True(t, os.IsNotExist(err), "expired artifact should be removed")

	_, err = os.Stat(filepath.Join(dir, "new.mp4"))
	assert.NoError(t, err, "fresh artifact should survive")
}

func TestDeleteExpired_FailedTaskLeavesNoArtifact(t *testing.T) {
	dir := t.TempDir()
	store := task.NewStore()

	failed := store.Create("https://youtu.be/broken", "", "", false)
	store.Update(context.Background(), failed.ID, func(tk *task.Task) {
		tk.Status = task.StatusError
		tk.Error = "extraction failed during fetch: boom"
		tk.FinishedAt = time.Now().Add(-2 * time.Hour)
	})

	unrelated := filepath.Join(dir, "keep.mp4")
	require.NoError(t, os.WriteFile(unrelated, []byte("media"), 0o600))

	DeleteExpired(context.Background(), store, nil, dir, time.Hour)

	_, ok := store.Get(failed.ID)
	assert.False(t, ok)

	_, err := os.Stat(unrelated)
	assert.NoError(t, err, "unrelated files stay untouched")
}

func TestDeleteExpired_EmptyStore(t *testing.T) {
	store := task.NewStore()

	DeleteExpired(context.Background(), store, nil, t.TempDir(), time.Hour)

	assert.Zero(t, store.Len())
}
