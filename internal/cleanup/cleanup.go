// Package cleanup reclaims finished tasks and their artifacts after a
// retention window.
package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"fetchd/internal/logctx"
	"fetchd/internal/task"
	"fetchd/internal/telemetry"
)

// DeleteExpired evicts finished tasks older than keepFor from the store
// and removes the artifacts of completed ones from dir. Per-file
// failures are logged and skipped; the eviction itself already
// happened.
func DeleteExpired(ctx context.Context, store *task.Store, tel *telemetry.Telemetry, dir string, keepFor time.Duration) {
	logger := logctx.From(ctx)

	evicted := store.Sweep(keepFor)
	if len(evicted) == 0 {
		return
	}

	tel.RecordEvictions(int64(len(evicted)))

	for _, t := range evicted {
		logger.InfoContext(ctx, "evicted finished task", "task_id", t.ID, "status", string(t.Status))

		if t.Status != task.StatusDone || t.Filename == "" {
			continue
		}

		path := filepath.Join(dir, filepath.Base(t.Filename))

		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}

			logger.ErrorContext(ctx, "failed to delete expired artifact", "file", path, "err", err)

			continue
		}

		logger.InfoContext(ctx, "deleted expired artifact", "file", path)
	}
}
