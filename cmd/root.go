package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/heathweaver/video-transcription/internal/config"
	"github.com/heathweaver/video-transcription/internal/utils"
)

var (
	cfgFile string
	debug   bool
)

var PipelineVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "vtp",
	Short:   "Resilient video download and transcription pipeline",
	Version: PipelineVersion,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to YAML config file (environment overrides apply)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newTranscribeCmd())
	rootCmd.AddCommand(newSyncCmd())
}

// loadConfig is fatal on failure: a bad configuration is a startup error,
// the only class of error that sets a non-zero exit status.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
