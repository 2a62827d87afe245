package download

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heathweaver/video-transcription/internal/tracking"
)

func newTestStore(t *testing.T) *tracking.Store {
	t.Helper()
	dir := t.TempDir()
	return tracking.NewStore(
		filepath.Join(dir, "downloaded.txt"),
		filepath.Join(dir, "file_sizes.json"),
	)
}

func TestPartitionArithmetic(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	groups := partition(items, 2)
	require.Len(t, groups, 3)
	assert.Equal(t, []string{"a", "b"}, groups[0])
	assert.Equal(t, []string{"c", "d"}, groups[1])
	assert.Equal(t, []string{"e"}, groups[2])
	// ceil(5/2) = 3 groups means exactly 2 inter-group pacing gaps.
	assert.Equal(t, 2, len(groups)-1)

	assert.Len(t, partition(items, 5), 1)
	assert.Len(t, partition(items, 10), 1)
	assert.Empty(t, partition(nil, 2))
}

func TestFilterCandidates(t *testing.T) {
	completed := map[string]struct{}{"done.mp4": {}}
	workList := []string{
		"https://example.com/videos/done.mp4",
		"https://example.com/videos/new.mp4",
		"/local/path/ignored.mp4",
		"not a url",
		"http://example.com/videos/other.mp4",
	}
	candidates := filterCandidates(workList, completed)
	assert.Equal(t, []string{
		"https://example.com/videos/new.mp4",
		"http://example.com/videos/other.mp4",
	}, candidates)
}

func TestSchedulerRunBatch(t *testing.T) {
	payload := make([]byte, 4096)
	var inFlight, maxInFlight atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			seen := maxInFlight.Load()
			if n <= seen || maxInFlight.CompareAndSwap(seen, n) {
				break
			}
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		time.Sleep(20 * time.Millisecond) // keep transfers overlapping
		w.Write(payload)
	}))
	defer server.Close()

	var workList []string
	for i := 0; i < 5; i++ {
		workList = append(workList, fmt.Sprintf("%s/video%d.mp4", server.URL, i))
	}

	cfg := testDownloadConfig()
	cfg.RateLimitDelay = 5 * time.Millisecond
	store := newTestStore(t)
	downloadDir := t.TempDir()
	scheduler := NewScheduler(cfg, store, downloadDir)

	summary, err := scheduler.Run(context.Background(), workList, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Attempted)
	assert.Equal(t, 5, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Zero(t, summary.Skipped)
	assert.LessOrEqual(t, maxInFlight.Load(), int32(cfg.MaxConcurrent))

	completed, err := store.Completed()
	require.NoError(t, err)
	assert.Len(t, completed, 5)
	for i := 0; i < 5; i++ {
		info, err := os.Stat(filepath.Join(downloadDir, fmt.Sprintf("video%d.mp4", i)))
		require.NoError(t, err)
		assert.Equal(t, int64(len(payload)), info.Size())
	}
}

func TestSchedulerSkipsCompleted(t *testing.T) {
	var requests atomic.Int32
	payload := make([]byte, 256)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write(payload)
	}))
	defer server.Close()

	store := newTestStore(t)
	require.NoError(t, store.MarkCompleted("video0.mp4"))
	require.NoError(t, store.MarkCompleted("video1.mp4"))

	workList := []string{
		server.URL + "/video0.mp4",
		server.URL + "/video1.mp4",
		server.URL + "/video2.mp4",
	}
	cfg := testDownloadConfig()
	scheduler := NewScheduler(cfg, store, t.TempDir())

	summary, err := scheduler.Run(context.Background(), workList, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, int32(1), requests.Load(), "completed files must not be re-attempted")
}

func TestSchedulerLimit(t *testing.T) {
	var requests atomic.Int32
	payload := make([]byte, 128)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write(payload)
	}))
	defer server.Close()

	var workList []string
	for i := 0; i < 6; i++ {
		workList = append(workList, fmt.Sprintf("%s/video%d.mp4", server.URL, i))
	}
	scheduler := NewScheduler(testDownloadConfig(), newTestStore(t), t.TempDir())

	summary, err := scheduler.Run(context.Background(), workList, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, int32(2), requests.Load())
}

func TestSchedulerItemFailureDoesNotAbortBatch(t *testing.T) {
	payload := make([]byte, 512)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken.mp4" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write(payload)
	}))
	defer server.Close()

	workList := []string{
		server.URL + "/broken.mp4",
		server.URL + "/good1.mp4",
		server.URL + "/good2.mp4",
	}
	store := newTestStore(t)
	scheduler := NewScheduler(testDownloadConfig(), store, t.TempDir())

	summary, err := scheduler.Run(context.Background(), workList, 0)
	require.NoError(t, err, "per-item failures must not raise past the batch boundary")
	assert.Equal(t, 3, summary.Attempted)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	completed, err := store.Completed()
	require.NoError(t, err)
	assert.NotContains(t, completed, "broken.mp4")
	assert.Contains(t, completed, "good1.mp4")
	assert.Contains(t, completed, "good2.mp4")
}

func TestSchedulerEmptyWorkList(t *testing.T) {
	scheduler := NewScheduler(testDownloadConfig(), newTestStore(t), t.TempDir())
	summary, err := scheduler.Run(context.Background(), []string{"", "not a url"}, 0)
	require.NoError(t, err)
	assert.Zero(t, summary.Attempted)
}
