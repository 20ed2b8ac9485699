package task

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fetchd/internal/extractor"
)

type mockExtractor struct {
	probeFunc func(ctx context.Context, req extractor.Request) (*extractor.Metadata, error)
	fetchFunc func(ctx context.Context, req extractor.Request, onProgress extractor.ProgressFunc) (string, error)
}

func (m *mockExtractor) Probe(ctx context.Context, req extractor.Request) (*extractor.Metadata, error) {
	if m.probeFunc != nil {
		return m.probeFunc(ctx, req)
	}

	return &extractor.Metadata{}, nil
}

func (m *mockExtractor) Fetch(ctx context.Context, req extractor.Request, onProgress extractor.ProgressFunc) (string, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, req, onProgress)
	}

	return "clip.mp4", nil
}

func waitForStatus(t *testing.T, store *Store, id string, want Status) Task {
	t.Helper()

	var got Task

	require.Eventually(t, func() bool {
		snap, ok := store.Get(id)
		if !ok {
			return false
		}

		got = snap

		return snap.Status == want
	}, 2*time.Second, 5*time.Millisecond)

	return got
}

func TestRunner_Success(t *testing.T) {
	store := NewStore()
	ext := &mockExtractor{
		fetchFunc: func(ctx context.Context, req extractor.Request, onProgress extractor.ProgressFunc) (string, error) {
			onProgress(extractor.Progress{Percent: 25, DownloadedBytes: 250, TotalBytes: 1000})
			onProgress(extractor.Progress{Percent: 60, DownloadedBytes: 600, TotalBytes: 1000})

			return "My Clip - abc123.mp4", nil
		},
	}
	runner := NewRunner(context.Background(), store, ext, nil, t.TempDir(), 2)

	created := store.Create("https://example.com/watch?v=1", "", "", false)
	runner.Launch(context.Background(), created.ID)

	got := waitForStatus(t, store, created.ID, StatusDone)
	assert.Equal(t, "100%", got.Progress)
	assert.Equal(t, "My Clip - abc123.mp4", got.Filename)
	assert.Empty(t, got.Error)
	assert.False(t, got.FinishedAt.IsZero())

	select {
	case evt := <-runner.OnTaskFinished:
		assert.Equal(t, created.ID, evt.ID)
	case <-time.After(time.Second):
		t.Fatal("expected a finished event")
	}
}

func TestRunner_Failure(t *testing.T) {
	store := NewStore()
	ext := &mockExtractor{
		fetchFunc: func(ctx context.Context, req extractor.Request, onProgress extractor.ProgressFunc) (string, error) {
			return "", errors.New("Unable to download webpage")
		},
	}
	runner := NewRunner(context.Background(), store, ext, nil, t.TempDir(), 2)

	created := store.Create("https://example.com/watch?v=1", "", "", false)
	runner.Launch(context.Background(), created.ID)

	got := waitForStatus(t, store, created.ID, StatusError)
	assert.Contains(t, got.Error, "Unable to download webpage")
	assert.Empty(t, got.Filename)

	select {
	case evt := <-runner.OnTaskFailed:
		assert.Equal(t, created.ID, evt.ID)
	case <-time.After(time.Second):
		t.Fatal("expected a failed event")
	}
}

// TestRunner_ProgressNeverRegresses feeds out-of-order percentages, as the
// tool does when it restarts its counter per output file, and asserts the
// visible progress only moves forward.
func TestRunner_ProgressNeverRegresses(t *testing.T) {
	store := NewStore()

	var (
		mu       sync.Mutex
		observed []string
	)

	var taskID string

	ext := &mockExtractor{
		fetchFunc: func(ctx context.Context, req extractor.Request, onProgress extractor.ProgressFunc) (string, error) {
			for _, pct := range []float64{10, 55, 30, 80} {
				onProgress(extractor.Progress{Percent: pct})

				snap, ok := store.Get(taskID)
				if ok {
					mu.Lock()
					observed = append(observed, snap.Progress)
					mu.Unlock()
				}
			}

			return "clip.mp4", nil
		},
	}
	runner := NewRunner(context.Background(), store, ext, nil, t.TempDir(), 1)

	created := store.Create("https://example.com/watch?v=1", "", "", false)
	taskID = created.ID
	runner.Launch(context.Background(), created.ID)

	waitForStatus(t, store, created.ID, StatusDone)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"10%", "55%", "55%", "80%"}, observed)
}

func TestRunner_BoundedParallelism(t *testing.T) {
	store := NewStore()
	release := make(chan struct{})
	ext := &mockExtractor{
		fetchFunc: func(ctx context.Context, req extractor.Request, onProgress extractor.ProgressFunc) (string, error) {
			<-release

			return "clip.mp4", nil
		},
	}
	runner := NewRunner(context.Background(), store, ext, nil, t.TempDir(), 1)

	first := store.Create("https://example.com/watch?v=1", "", "", false)
	second := store.Create("https://example.com/watch?v=2", "", "", false)
	runner.Launch(context.Background(), first.ID)
	runner.Launch(context.Background(), second.ID)

	// With a single slot exactly one task may run; the other waits in
	// queued until the slot frees.
	require.Eventually(t, func() bool {
		a, _ := store.Get(first.ID)
		b, _ := store.Get(second.ID)

		return (a.Status == StatusRunning && b.Status == StatusQueued) ||
			(a.Status == StatusQueued && b.Status == StatusRunning)
	}, 2*time.Second, 5*time.Millisecond)

	close(release)

	waitForStatus(t, store, first.ID, StatusDone)
	waitForStatus(t, store, second.ID, StatusDone)
}

func TestRunner_RemovesUploadedCookieJar(t *testing.T) {
	store := NewStore()
	runner := NewRunner(context.Background(), store, &mockExtractor{}, nil, t.TempDir(), 1)

	jar := filepath.Join(t.TempDir(), "cookies-upload.txt")
	require.NoError(t, os.WriteFile(jar, []byte("# Netscape HTTP Cookie File\nexample.com\tFALSE\t/\tFALSE\t0\tk\tv\n"), 0o600))

	created := store.Create("https://example.com/watch?v=1", "", jar, true)
	runner.Launch(context.Background(), created.ID)

	waitForStatus(t, store, created.ID, StatusDone)

	require.Eventually(t, func() bool {
		_, err := os.Stat(jar)

		return os.IsNotExist(err)
	}, time.Second, 5*time.Millisecond)
}

func TestRunner_KeepsDefaultCookieJar(t *testing.T) {
	store := NewStore()
	runner := NewRunner(context.Background(), store, &mockExtractor{}, nil, t.TempDir(), 1)

	jar := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(jar, []byte("# Netscape HTTP Cookie File\nexample.com\tFALSE\t/\tFALSE\t0\tk\tv\n"), 0o600))

	created := store.Create("https://example.com/watch?v=1", "", jar, false)
	runner.Launch(context.Background(), created.ID)

	waitForStatus(t, store, created.ID, StatusDone)

	time.Sleep(20 * time.Millisecond)

	_, err := os.Stat(jar)
	assert.NoError(t, err)
}

func TestRunner_RecoversFromPanic(t *testing.T) {
	store := NewStore()
	ext := &mockExtractor{
		fetchFunc: func(ctx context.Context, req extractor.Request, onProgress extractor.ProgressFunc) (string, error) {
			panic("extractor blew up")
		},
	}
	runner := NewRunner(context.Background(), store, ext, nil, t.TempDir(), 1)

	created := store.Create("https://example.com/watch?v=1", "", "", false)
	runner.Launch(context.Background(), created.ID)

	got := waitForStatus(t, store, created.ID, StatusError)
	assert.Contains(t, got.Error, "internal error")
}
