package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/heathweaver/video-transcription/internal/syncer"
	"github.com/heathweaver/video-transcription/internal/utils"
)

func newSyncCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "sync SOURCE_DIR MIRROR_DIR",
		Short: "Repair zero-byte files in a mirror directory from a source directory",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			s, err := syncer.New(args[0], args[1], dryRun)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			report, err := s.Run()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error scanning: %v\n", err)
				os.Exit(1)
			}
			log := utils.GetLogger("sync-cmd")
			log.Info().
				Int("scanned", report.Scanned).
				Int("zeroByte", report.ZeroByte).
				Int("repaired", report.Repaired).
				Int("missing", report.Missing).
				Bool("dryRun", dryRun).
				Msg("Sync complete")
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be copied without copying")
	return cmd
}
