package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/heathweaver/video-transcription/internal/config"
	"github.com/heathweaver/video-transcription/internal/tracking"
	"github.com/heathweaver/video-transcription/internal/utils"
)

// Worker transfers one file at a time to the download directory, streaming
// in fixed-size chunks with stall detection and bounded retries. The ledger
// is only written after the full payload is on disk.
type Worker struct {
	cfg      config.DownloadConfig
	client   utils.HTTPDoer
	store    *tracking.Store
	prober   *Prober
	dir      string
	progress *Progress
}

func NewWorker(cfg config.DownloadConfig, client utils.HTTPDoer, store *tracking.Store, prober *Prober, dir string, progress *Progress) *Worker {
	return &Worker{
		cfg:      cfg,
		client:   client,
		store:    store,
		prober:   prober,
		dir:      dir,
		progress: progress,
	}
}

// backoffDelay is the wait after 0-based attempt k fails: base * 2^k.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<attempt)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Download fetches url into the download directory as filename, retrying
// transient failures with exponential backoff. Non-2xx responses fail the
// item immediately; every retry restarts from byte zero.
func (w *Worker) Download(ctx context.Context, url, filename string) error {
	log := utils.GetLogger("download").With().
		Str("file", filename).
		Str("jobId", uuid.NewString()[:8]).
		Logger()

	log.Info().Msg("Starting download")
	if w.cfg.RateLimitDelay > 0 {
		log.Info().Dur("delay", w.cfg.RateLimitDelay).Msg("Waiting before starting download")
		if err := sleepContext(ctx, w.cfg.RateLimitDelay); err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt < w.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(w.cfg.BaseRetryDelay, attempt-1)
			log.Info().Dur("delay", delay).Int("attempt", attempt+1).Msg("Retrying download")
			if err := sleepContext(ctx, delay); err != nil {
				return err
			}
		}
		err := w.attempt(ctx, log, url, filename)
		if err == nil {
			log.Info().Msg("Successfully downloaded")
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			log.Error().Err(err).Msg("Failed to download")
			if w.progress != nil {
				w.progress.Fail(filename, err)
			}
			return err
		}
		log.Error().Err(err).Int("attempt", attempt+1).Msg("Network error downloading")
	}
	log.Error().Err(lastErr).Int("maxRetries", w.cfg.MaxRetries).Msg("Exhausted retries")
	if w.progress != nil {
		w.progress.Fail(filename, lastErr)
	}
	return lastErr
}

// attempt performs one end-to-end transfer try.
func (w *Worker) attempt(ctx context.Context, log zerolog.Logger, url, filename string) error {
	outputPath := filepath.Join(w.dir, filename)

	// The tracking store is the source of truth for the stall baseline; a
	// fresh probe fills it in when the size was never recorded.
	expected, known := w.store.ExpectedSize(filename)
	if !known && w.prober != nil {
		if size, ok := w.prober.Probe(ctx, url); ok {
			expected, known = size, true
			if err := w.store.RecordSize(filename, size); err != nil {
				log.Warn().Err(err).Msg("Could not record probed size")
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("error creating GET request: %v", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	out, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("error creating output file: %v", err)
	}
	defer out.Close()

	if w.progress != nil {
		w.progress.Register(filename, total)
	}

	var baseline int64
	if known {
		baseline = expected
	}
	mon := newStallMonitor(monitorConfig{
		SpeedCheckInterval: w.cfg.SpeedCheckInterval,
		MinSpeed:           w.cfg.MinSpeed,
		StallThreshold:     w.cfg.StallThreshold,
		ProgressWindow:     w.cfg.ChunkTimeout,
	}, baseline, total, time.Now())

	body := &timeoutReader{rc: resp.Body, timeout: w.cfg.ChunkTimeout}
	buf := make([]byte, w.cfg.ChunkSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return fmt.Errorf("error writing to output file: %v", werr)
			}
			if w.progress != nil {
				w.progress.Add(filename, int64(n))
			}
			smp := mon.Observe(int64(n), time.Now())
			w.logSample(log, filename, smp)
			if smp.Confirmed {
				return fmt.Errorf("got %d bytes, expected %d: %w", mon.Downloaded(), expected, ErrStalled)
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			return rerr
		}
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("error closing output file: %v", err)
	}
	if known && mon.Downloaded() != expected {
		return fmt.Errorf("got %d bytes, expected %d: %w", mon.Downloaded(), expected, ErrSizeMismatch)
	}
	mon.Complete()
	if err := w.store.MarkCompleted(filename); err != nil {
		return err
	}
	if w.progress != nil {
		w.progress.Complete(filename)
	}
	return nil
}

func (w *Worker) logSample(log zerolog.Logger, filename string, smp sample) {
	if smp.SpeedChecked {
		if smp.SlowCheck {
			log.Warn().
				Str("speed", utils.FormatSpeed(int64(smp.Speed), 1)).
				Int("stallCount", smp.StallCount).
				Msg("Download speed too slow")
		} else {
			log.Info().Str("speed", utils.FormatSpeed(int64(smp.Speed), 1)).Msg("Download speed")
		}
	}
	if smp.PercentStep {
		log.Info().
			Int("percent", smp.Percent).
			Dur("elapsed", smp.Elapsed).
			Msg("Download progress")
	}
}

// timeoutReader bounds each Read with a deadline by closing the underlying
// body when the timer fires, which unblocks the pending Read.
type timeoutReader struct {
	rc       io.ReadCloser
	timeout  time.Duration
	timedOut atomic.Bool
}

func (r *timeoutReader) Read(p []byte) (int, error) {
	if r.timeout <= 0 {
		return r.rc.Read(p)
	}
	timer := time.AfterFunc(r.timeout, func() {
		r.timedOut.Store(true)
		r.rc.Close()
	})
	n, err := r.rc.Read(p)
	timer.Stop()
	if err != nil && r.timedOut.Load() {
		return n, ErrChunkTimeout
	}
	return n, err
}
