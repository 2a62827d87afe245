package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/heathweaver/video-transcription/internal/tracking"
	"github.com/heathweaver/video-transcription/internal/transcribe"
	"github.com/heathweaver/video-transcription/internal/utils"
)

func newTranscribeCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "transcribe [OPTIONS]",
		Short: "Transcribe downloaded videos into text files",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			backend, err := transcribe.NewBackend(cfg.Transcribe)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error creating transcription backend: %v\n", err)
				os.Exit(1)
			}
			store := tracking.NewStore(cfg.LedgerPath(), cfg.SizesPath())
			service := transcribe.NewService(cfg.Transcribe, store, backend, cfg.DownloadDir, cfg.TranscriptDir)
			if once {
				if err := os.MkdirAll(cfg.TranscriptDir, 0755); err != nil {
					fmt.Fprintf(os.Stderr, "Error creating transcript directory: %v\n", err)
					os.Exit(1)
				}
				successful, failed := service.RunOnce(cmd.Context())
				log := utils.GetLogger("transcribe-cmd")
				log.Info().Int("successful", successful).Int("failed", failed).Msg("Transcription batch complete")
				return
			}
			if err := service.Run(cmd.Context()); err != nil {
				fmt.Fprintf(os.Stderr, "Transcription service stopped: %v\n", err)
				os.Exit(1)
			}
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Run a single sweep instead of polling forever")
	return cmd
}
