package download

import (
	"context"
	"errors"
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

	"github.com/heathweaver/video-transcription/internal/config"
	"github.com/heathweaver/video-transcription/internal/tracking"
	"github.com/heathweaver/video-transcription/internal/utils"
)

func testDownloadConfig() config.DownloadConfig {
	return config.DownloadConfig{
		SessionTimeout:     10 * time.Second,
		ChunkTimeout:       2 * time.Second,
		ChunkSize:          1024,
		MaxRetries:         3,
		BaseRetryDelay:     time.Millisecond,
		MaxConcurrent:      2,
		RateLimitDelay:     0,
		SpeedCheckInterval: time.Second,
		MinSpeed:           1,
		StallThreshold:     3,
		UserAgent:          "test",
	}
}

func newTestWorker(t *testing.T, cfg config.DownloadConfig) (*Worker, *tracking.Store, string) {
	t.Helper()
	trackDir := t.TempDir()
	downloadDir := t.TempDir()
	store := tracking.NewStore(
		filepath.Join(trackDir, "downloaded.txt"),
		filepath.Join(trackDir, "file_sizes.json"),
	)
	client := utils.NewHTTPClient(utils.HTTPClientConfig{
		Timeout:   cfg.SessionTimeout,
		UserAgent: cfg.UserAgent,
	})
	return NewWorker(cfg, client, store, nil, downloadDir, nil), store, downloadDir
}

func TestDownloadSuccess(t *testing.T) {
	payload := make([]byte, 10000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write(payload)
	}))
	defer server.Close()

	worker, store, downloadDir := newTestWorker(t, testDownloadConfig())
	err := worker.Download(context.Background(), server.URL+"/video1.mp4", "video1.mp4")
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(downloadDir, "video1.mp4"))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), info.Size())

	completed, err := store.Completed()
	require.NoError(t, err)
	assert.Contains(t, completed, "video1.mp4")
}

func TestDownloadCompletionOrder(t *testing.T) {
	// The ledger must only be written after all bytes are on disk, so a
	// failed attempt leaves the filename unmarked.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "5000")
		w.Write(make([]byte, 100))
		panic(http.ErrAbortHandler)
	}))
	defer server.Close()

	worker, store, _ := newTestWorker(t, testDownloadConfig())
	err := worker.Download(context.Background(), server.URL+"/video1.mp4", "video1.mp4")
	require.Error(t, err)

	completed, err := store.Completed()
	require.NoError(t, err)
	assert.NotContains(t, completed, "video1.mp4")
}

func TestDownloadNotFoundNoRetry(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	worker, _, _ := newTestWorker(t, testDownloadConfig())
	err := worker.Download(context.Background(), server.URL+"/missing.mp4", "missing.mp4")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, int32(1), requests.Load(), "non-2xx must not trigger the retry path")
}

func TestDownloadNetworkErrorRetries(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		// Advertise more than is sent, then drop the connection.
		w.Header().Set("Content-Length", "4096")
		w.Write(make([]byte, 128))
		panic(http.ErrAbortHandler)
	}))
	defer server.Close()

	cfg := testDownloadConfig()
	worker, _, _ := newTestWorker(t, cfg)
	err := worker.Download(context.Background(), server.URL+"/video1.mp4", "video1.mp4")
	require.Error(t, err)
	assert.Equal(t, int32(cfg.MaxRetries), requests.Load(), "each retry re-requests from byte zero")
}

func TestDownloadSizeMismatchRetries(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		// Clean EOF short of the expected size: flush without a
		// Content-Length so the client sees a normal end of stream.
		w.(http.Flusher).Flush()
		w.Write(make([]byte, 100))
	}))
	defer server.Close()

	cfg := testDownloadConfig()
	worker, store, _ := newTestWorker(t, cfg)
	require.NoError(t, store.RecordSize("video1.mp4", 5000))

	err := worker.Download(context.Background(), server.URL+"/video1.mp4", "video1.mp4")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSizeMismatch)
	assert.Equal(t, int32(cfg.MaxRetries), requests.Load())

	completed, err := store.Completed()
	require.NoError(t, err)
	assert.NotContains(t, completed, "video1.mp4")
}

func TestDownloadProbeRecordsSize(t *testing.T) {
	payload := make([]byte, 2048)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		if r.Method == http.MethodHead {
			return
		}
		w.Write(payload)
	}))
	defer server.Close()

	worker, store, _ := newTestWorker(t, testDownloadConfig())
	worker.prober = testProber()

	err := worker.Download(context.Background(), server.URL+"/video1.mp4", "video1.mp4")
	require.NoError(t, err)

	size, ok := store.ExpectedSize("video1.mp4")
	require.True(t, ok, "fresh probe should be cached in the tracking store")
	assert.Equal(t, int64(len(payload)), size)
}

func TestBackoffDelayFormula(t *testing.T) {
	base := 5 * time.Minute
	expected := []time.Duration{
		5 * time.Minute,
		10 * time.Minute,
		20 * time.Minute,
		40 * time.Minute,
		80 * time.Minute,
	}
	for k, want := range expected {
		assert.Equal(t, want, backoffDelay(base, k), "attempt index %d", k)
	}
}

func TestIsRetryableTaxonomy(t *testing.T) {
	assert.False(t, isRetryable(nil))
	assert.False(t, isRetryable(&StatusError{Code: 404}))
	assert.False(t, isRetryable(errors.New("unexpected")))
	assert.True(t, isRetryable(ErrStalled))
	assert.True(t, isRetryable(ErrChunkTimeout))
	assert.True(t, isRetryable(ErrSizeMismatch))
}

func TestChunkTimeoutAbortsAttempt(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		w.Write(make([]byte, 100))
		w.(http.Flusher).Flush()
		<-release // hold the connection open past the chunk timeout
	}))
	defer server.Close()
	defer close(release)

	cfg := testDownloadConfig()
	cfg.ChunkTimeout = 50 * time.Millisecond
	cfg.MaxRetries = 1
	cfg.SessionTimeout = 5 * time.Second
	worker, _, _ := newTestWorker(t, cfg)

	err := worker.Download(context.Background(), server.URL+"/video1.mp4", "video1.mp4")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChunkTimeout)
}

func TestStatusErrorMessages(t *testing.T) {
	assert.Contains(t, (&StatusError{Code: 404}).Error(), "File not found")
	assert.Contains(t, (&StatusError{Code: 403}).Error(), "Access forbidden")
	assert.Contains(t, (&StatusError{Code: 401}).Error(), "Authentication required")
	assert.Equal(t, "HTTP 500", (&StatusError{Code: 500}).Error())
}
