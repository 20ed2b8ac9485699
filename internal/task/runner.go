package task

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/semaphore"

	"fetchd/internal/extractor"
	"fetchd/internal/logctx"
	"fetchd/internal/telemetry"
)

const eventBufferSize = 16

// Runner executes tasks against the extractor, one goroutine per task.
// After creation it is the only writer of a task's state, so readers can
// poll the store without coordination.
type Runner struct {
	store       *Store
	ext         extractor.Client
	tel         *telemetry.Telemetry
	downloadDir string
	sem         *semaphore.Weighted
	wg          sync.WaitGroup

	// baseCtx bounds every run to the service lifetime, independent of
	// the HTTP request that launched it.
	baseCtx context.Context

	OnTaskFinished chan Task
	OnTaskFailed   chan Task
}

// NewRunner creates a runner whose runs live within ctx. maxParallel
// bounds how many fetches run at once; values below one mean one.
func NewRunner(ctx context.Context, store *Store, ext extractor.Client, tel *telemetry.Telemetry, downloadDir string, maxParallel int) *Runner {
	if maxParallel < 1 {
		maxParallel = 1
	}

	return &Runner{
		store:          store,
		ext:            ext,
		tel:            tel,
		downloadDir:    downloadDir,
		sem:            semaphore.NewWeighted(int64(maxParallel)),
		baseCtx:        ctx,
		OnTaskFinished: make(chan Task, eventBufferSize),
		OnTaskFailed:   make(chan Task, eventBufferSize),
	}
}

// Close waits for in-flight runs and then releases the event channels.
// Call it once no more launches can happen.
func (r *Runner) Close() {
	r.wg.Wait()
	close(r.OnTaskFinished)
	close(r.OnTaskFailed)
}

// Launch starts the run goroutine for a created task. Only the logger is
// carried over from ctx; the run itself detaches from the request
// lifetime, so a client disconnecting does not abort its download.
func (r *Runner) Launch(ctx context.Context, id string) {
	runCtx := logctx.WithLogger(r.baseCtx, logctx.From(ctx))

	r.wg.Add(1)

	go r.run(runCtx, id)
}

func (r *Runner) run(ctx context.Context, id string) {
	defer r.wg.Done()

	ctx = logctx.With(ctx, "task_id", id)
	logger := logctx.From(ctx)

	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorContext(ctx, "task runner panic", "panic", rec, "stack", string(debug.Stack()))

			r.fail(ctx, id, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	t, ok := r.store.Get(id)
	if !ok {
		logger.WarnContext(ctx, "launched task no longer exists")

		return
	}

	// Uploaded jars are task-owned temp files; the resolved default jar
	// stays in place for the next task.
	if t.CookieUploaded && t.CookieFile != "" {
		defer os.Remove(t.CookieFile)
	}

	// The task stays queued until a slot frees up.
	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.fail(ctx, id, "service shutting down")

		return
	}
	defer r.sem.Release(1)

	r.store.Update(ctx, id, func(t *Task) {
		if t.Status == StatusQueued {
			t.Status = StatusRunning
		}
	})

	logger.InfoContext(ctx, "task started", "url", t.SourceURL, "requested_format", t.RequestedFormat)

	var filename string

	err := r.tel.InstrumentTask(ctx, func(ctx context.Context) error {
		var fetchErr error
		filename, fetchErr = r.ext.Fetch(ctx, extractor.Request{
			URL:        t.SourceURL,
			Format:     t.RequestedFormat,
			CookieFile: t.CookieFile,
		}, r.progressFunc(ctx, id))

		return fetchErr
	})
	if err != nil {
		logger.ErrorContext(ctx, "task failed", "err", err)

		r.fail(ctx, id, err.Error())

		return
	}

	r.finish(ctx, id, filename)
}

// progressFunc renders extractor progress into the task's progress
// string. Reported progress never moves backwards even though the tool
// restarts its counter for every fragment and output file.
func (r *Runner) progressFunc(ctx context.Context, id string) extractor.ProgressFunc {
	logger := logctx.From(ctx)

	var last float64

	return func(p extractor.Progress) {
		pct := p.Percent
		if pct > 100 {
			pct = 100
		}

		if pct <= last {
			return
		}

		last = pct
		rendered := humanize.FtoaWithDigits(pct, 1) + "%"

		r.store.Update(ctx, id, func(t *Task) {
			if t.Status == StatusRunning {
				t.Progress = rendered
			}
		})

		attrs := []any{"progress", rendered, "downloaded", humanize.Bytes(uint64(p.DownloadedBytes))}
		if p.TotalBytes > 0 {
			attrs = append(attrs, "total", humanize.Bytes(uint64(p.TotalBytes)))
		}

		logger.DebugContext(ctx, "task progress", attrs...)
	}
}

// finish records the terminal success state. Filename, progress and
// status change in a single store update so a poller can never see one
// without the others.
func (r *Runner) finish(ctx context.Context, id, filename string) {
	logger := logctx.From(ctx)
	now := time.Now()

	var (
		snapshot Task
		updated  bool
	)

	r.store.Update(ctx, id, func(t *Task) {
		if t.Status.Terminal() {
			return
		}

		t.Status = StatusDone
		t.Progress = "100%"
		t.Filename = filename
		t.FinishedAt = now
		snapshot = *t
		updated = true
	})

	if !updated {
		return
	}

	if info, err := os.Stat(filepath.Join(r.downloadDir, filename)); err == nil {
		r.tel.RecordDownloadBytes(info.Size())
		logger.InfoContext(ctx, "task completed", "filename", filename, "size", humanize.Bytes(uint64(info.Size())))
	} else {
		logger.InfoContext(ctx, "task completed", "filename", filename)
	}

	r.emit(r.OnTaskFinished, snapshot)
}

// fail records the terminal error state with a one-line diagnostic.
func (r *Runner) fail(ctx context.Context, id, diagnostic string) {
	now := time.Now()

	var (
		snapshot Task
		updated  bool
	)

	r.store.Update(ctx, id, func(t *Task) {
		if t.Status.Terminal() {
			return
		}

		t.Status = StatusError
		t.Error = diagnostic
		t.FinishedAt = now
		snapshot = *t
		updated = true
	})

	if updated {
		r.emit(r.OnTaskFailed, snapshot)
	}
}

// emit drops the event when no listener keeps up; notifications must
// never stall a run.
func (r *Runner) emit(ch chan Task, t Task) {
	select {
	case ch <- t:
	default:
	}
}
