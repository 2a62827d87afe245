package download

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/heathweaver/video-transcription/internal/config"
	"github.com/heathweaver/video-transcription/internal/tracking"
	"github.com/heathweaver/video-transcription/internal/utils"
)

// Summary tallies one batch run.
type Summary struct {
	Attempted int
	Succeeded int
	Failed    int
	Skipped   int
}

// Scheduler filters the work list against the ledger and drives download
// workers in bounded-concurrency groups with pacing between groups.
type Scheduler struct {
	cfg    config.DownloadConfig
	store  *tracking.Store
	client utils.HTTPDoer
	dir    string
}

func NewScheduler(cfg config.DownloadConfig, store *tracking.Store, downloadDir string) *Scheduler {
	return &Scheduler{
		cfg:   cfg,
		store: store,
		// One shared client for the batch; the transport's per-host
		// connection cap matches the concurrency limit.
		client: utils.NewHTTPClient(utils.HTTPClientConfig{
			Timeout:         cfg.SessionTimeout,
			KATimeout:       90 * time.Second,
			UserAgent:       cfg.UserAgent,
			MaxConnsPerHost: cfg.MaxConcurrent,
		}),
		dir: downloadDir,
	}
}

// Run processes the work list. limit > 0 truncates the candidate list.
// Per-item failures are tallied, never propagated; the returned error only
// covers batch-level preconditions.
func (s *Scheduler) Run(ctx context.Context, workList []string, limit int) (Summary, error) {
	log := utils.GetLogger("scheduler")
	var summary Summary

	completed, err := s.store.Completed()
	if err != nil {
		return summary, err
	}
	log.Info().Int("count", len(completed)).Msg("Found already downloaded files")

	candidates := filterCandidates(workList, completed)
	summary.Skipped = len(workList) - len(candidates)
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
		log.Info().Int("count", len(candidates)).Msg("Downloading videos (limited)")
	} else if len(candidates) > 0 {
		log.Info().Int("count", len(candidates)).Msg("Downloading videos")
	}
	if len(candidates) == 0 {
		log.Info().Msg("No new videos to download")
		return summary, nil
	}
	summary.Attempted = len(candidates)

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return summary, fmt.Errorf("error creating download directory: %v", err)
	}

	// Advisory only: a failed pre-flight is logged but never gates the batch.
	if s.cfg.ProbeHost != "" {
		if CheckConnectivity(ctx, s.cfg.ProbeHost) {
			log.Info().Str("host", s.cfg.ProbeHost).Msg("Network connectivity working")
		} else {
			log.Warn().Str("host", s.cfg.ProbeHost).Msg("Connectivity pre-check failed, proceeding anyway")
		}
	}

	progress := NewProgress()
	prober := NewProber(s.client, rate.Every(time.Second))
	worker := NewWorker(s.cfg, s.client, s.store, prober, s.dir, progress)
	sem := semaphore.NewWeighted(int64(s.cfg.MaxConcurrent))

	groups := partition(candidates, s.cfg.MaxConcurrent)
	for gi, group := range groups {
		var g errgroup.Group
		for _, url := range group {
			if err := sem.Acquire(ctx, 1); err != nil {
				return summary, err
			}
			url := url
			filename := utils.FilenameFromURL(url)
			g.Go(func() error {
				defer sem.Release(1)
				defer func() {
					if r := recover(); r != nil {
						log.Error().Interface("panic", r).Str("file", filename).Msg("Unexpected error downloading")
						progress.Fail(filename, fmt.Errorf("unexpected error: %v", r))
					}
				}()
				// Worker logs and records its own failures; an item must
				// never take the batch down with it.
				_ = worker.Download(ctx, url, filename)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return summary, err
		}
		if gi < len(groups)-1 {
			log.Info().Dur("delay", s.cfg.RateLimitDelay).Msg("Waiting before starting next batch")
			if err := sleepContext(ctx, s.cfg.RateLimitDelay); err != nil {
				return summary, err
			}
		}
	}

	summary.Succeeded, summary.Failed = progress.Counts()
	fmt.Println(progress.Summary())
	return summary, nil
}

// filterCandidates keeps URL-shaped entries whose derived filename is not
// already in the completed set.
func filterCandidates(workList []string, completed map[string]struct{}) []string {
	var candidates []string
	for _, entry := range workList {
		if !utils.IsURL(entry) {
			continue
		}
		if _, done := completed[utils.FilenameFromURL(entry)]; done {
			continue
		}
		candidates = append(candidates, entry)
	}
	return candidates
}

// partition splits items into fixed-size groups preserving work-list order.
func partition(items []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	var groups [][]string
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		groups = append(groups, items[start:end])
	}
	return groups
}
