package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/heathweaver/video-transcription/internal/download"
	"github.com/heathweaver/video-transcription/internal/tracking"
	"github.com/heathweaver/video-transcription/internal/utils"
)

func newDownloadCmd() *cobra.Command {
	var limit int
	var listFile string
	cmd := &cobra.Command{
		Use:   "download [OPTIONS]",
		Short: "Download videos from the work list that are not yet in the ledger",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			if listFile == "" {
				listFile = cfg.WorkListPath()
			}
			urls, err := utils.ReadWorkList(listFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading work list: %v\n", err)
				os.Exit(1)
			}
			store := tracking.NewStore(cfg.LedgerPath(), cfg.SizesPath())
			scheduler := download.NewScheduler(cfg.Download, store, cfg.DownloadDir)
			summary, err := scheduler.Run(cmd.Context(), urls, limit)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error running batch: %v\n", err)
				os.Exit(1)
			}
			// Per-item failures are reported in the summary; they stay in
			// the work list for the next invocation and do not change the
			// exit status.
			log := utils.GetLogger("download-cmd")
			log.Info().
				Int("attempted", summary.Attempted).
				Int("succeeded", summary.Succeeded).
				Int("failed", summary.Failed).
				Int("skipped", summary.Skipped).
				Msg("Batch finished")
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Limit the number of videos to process")
	cmd.Flags().StringVarP(&listFile, "list", "l", "", "Work list file (text or YAML; defaults to download_list.txt in the tracking dir)")
	return cmd
}
