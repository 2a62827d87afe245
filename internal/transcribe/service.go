package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/heathweaver/video-transcription/internal/config"
	"github.com/heathweaver/video-transcription/internal/tracking"
	"github.com/heathweaver/video-transcription/internal/utils"
)

// Service reads the same ledger the downloader writes and transcribes every
// downloaded file that has no transcript yet.
type Service struct {
	cfg           config.TranscribeConfig
	store         *tracking.Store
	backend       Backend
	downloadDir   string
	transcriptDir string
}

func NewService(cfg config.TranscribeConfig, store *tracking.Store, backend Backend, downloadDir, transcriptDir string) *Service {
	return &Service{
		cfg:           cfg,
		store:         store,
		backend:       backend,
		downloadDir:   downloadDir,
		transcriptDir: transcriptDir,
	}
}

// Run sweeps on the poll interval until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	log := utils.GetLogger("transcribe-service")
	if err := os.MkdirAll(s.transcriptDir, 0755); err != nil {
		return fmt.Errorf("error creating transcript directory: %v", err)
	}
	for {
		ok, failed := s.RunOnce(ctx)
		if ok+failed > 0 {
			log.Info().Int("successful", ok).Int("failed", failed).Msg("Transcription batch complete")
		} else {
			log.Info().Msg("No downloaded files found to transcribe, waiting")
		}
		timer := time.NewTimer(s.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunOnce performs a single sweep over the ledger. Per-file errors are
// logged and counted, never propagated.
func (s *Service) RunOnce(ctx context.Context) (successful, failed int) {
	log := utils.GetLogger("transcribe-service")
	completed, err := s.store.Completed()
	if err != nil {
		log.Error().Err(err).Msg("Could not read ledger")
		return 0, 0
	}
	log.Info().Int("count", len(completed)).Msg("Found downloaded files to process")
	for filename := range completed {
		if ctx.Err() != nil {
			return successful, failed
		}
		mediaPath := filepath.Join(s.downloadDir, filename)
		if _, err := os.Stat(mediaPath); err != nil {
			log.Warn().Str("file", filename).Msg("Video file not found, skipping")
			continue
		}
		transcriptPath := s.transcriptPath(filename)
		if _, err := os.Stat(transcriptPath); err == nil {
			log.Debug().Str("file", filename).Msg("Transcript already exists, skipping")
			continue
		}
		if err := s.processFile(ctx, mediaPath, transcriptPath); err != nil {
			log.Error().Err(err).Str("file", filename).Msg("Error transcribing")
			failed++
			continue
		}
		log.Info().Str("file", filename).Msg("Successfully transcribed")
		successful++
	}
	return successful, failed
}

func (s *Service) processFile(ctx context.Context, mediaPath, transcriptPath string) error {
	t, err := s.backend.Transcribe(ctx, mediaPath)
	if err != nil {
		return err
	}
	var text string
	switch {
	case s.cfg.WithSpeakers:
		text = FormatSpeakers(t)
	case s.cfg.WithTimestamps:
		text = FormatTimestamps(t)
	default:
		text = FormatPlain(t)
	}
	if err := os.WriteFile(transcriptPath, []byte(text), 0644); err != nil {
		return fmt.Errorf("error writing transcript: %v", err)
	}
	return nil
}

func (s *Service) transcriptPath(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	return filepath.Join(s.transcriptDir, base+".txt")
}
