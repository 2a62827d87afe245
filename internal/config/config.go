package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full pipeline configuration. It is built once at startup
// (optionally from a YAML file, with environment overrides) and passed into
// each component; nothing reads the environment after this point.
type Config struct {
	DownloadDir   string `yaml:"download_dir" env:"DOWNLOAD_DIR" env-default:"/data/videos"`
	TrackingDir   string `yaml:"tracking_dir" env:"TRACKING_DIR" env-default:"/data/tracking"`
	TranscriptDir string `yaml:"transcript_dir" env:"TRANSCRIPT_DIR" env-default:"/data/transcripts"`

	Download   DownloadConfig   `yaml:"download"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
}

// DownloadConfig holds the knobs of the batch downloader.
type DownloadConfig struct {
	// SessionTimeout bounds one whole GET including the body read. It is
	// deliberately huge; stall detection is the real watchdog.
	SessionTimeout time.Duration `yaml:"session_timeout" env:"DOWNLOAD_TIMEOUT" env-default:"4h"`
	// ChunkTimeout bounds a single chunk read and doubles as the
	// stuck-progress window.
	ChunkTimeout   time.Duration `yaml:"chunk_timeout" env:"CHUNK_TIMEOUT" env-default:"30m"`
	ChunkSize      int64         `yaml:"chunk_size" env:"CHUNK_SIZE" env-default:"1048576"`
	MaxRetries     int           `yaml:"max_retries" env:"MAX_RETRIES" env-default:"5"`
	BaseRetryDelay time.Duration `yaml:"retry_delay" env:"RETRY_DELAY" env-default:"5m"`
	MaxConcurrent  int           `yaml:"max_concurrent" env:"MAX_CONCURRENT_DOWNLOADS" env-default:"2"`
	// RateLimitDelay paces both the first attempt of each file and the gap
	// between scheduler groups.
	RateLimitDelay     time.Duration `yaml:"rate_limit_delay" env:"RATE_LIMIT_DELAY" env-default:"60s"`
	SpeedCheckInterval time.Duration `yaml:"speed_check_interval" env:"SPEED_CHECK_INTERVAL" env-default:"60s"`
	MinSpeed           int64         `yaml:"min_speed" env:"MIN_SPEED_BYTES_PER_SECOND" env-default:"1024"`
	StallThreshold     int           `yaml:"stall_threshold" env:"STALL_THRESHOLD" env-default:"3"`
	ProbeHost          string        `yaml:"probe_host" env:"PROBE_HOST" env-default:"wccdownload.on24.com"`
	UserAgent          string        `yaml:"user_agent" env:"DOWNLOAD_USER_AGENT" env-default:"video-transcription"`
}

// TranscribeConfig selects and configures the transcription backend.
type TranscribeConfig struct {
	Backend        string        `yaml:"backend" env:"TRANSCRIBE_BACKEND" env-default:"whisper"`
	WhisperModel   string        `yaml:"whisper_model" env:"WHISPER_MODEL" env-default:"base"`
	WhisperBin     string        `yaml:"whisper_bin" env:"WHISPER_BIN" env-default:"whisper"`
	WithTimestamps bool          `yaml:"with_timestamps" env:"WITH_TIMESTAMPS" env-default:"false"`
	WithSpeakers   bool          `yaml:"with_speakers" env:"WITH_SPEAKERS" env-default:"false"`
	AssemblyAIKey  string        `yaml:"-" env:"ASSEMBLYAI_API_KEY"`
	PollInterval   time.Duration `yaml:"poll_interval" env:"TRANSCRIBE_POLL_INTERVAL" env-default:"60s"`
}

// Load builds the configuration from an optional YAML file plus environment
// overrides. An empty path means environment (and defaults) only.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load configuration from %s: %v", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to load configuration from environment: %v", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Download.MaxConcurrent < 1 {
		return errors.New("max_concurrent must be at least 1")
	}
	if c.Download.MaxRetries < 1 {
		return errors.New("max_retries must be at least 1")
	}
	if c.Download.ChunkSize < 1 {
		return errors.New("chunk_size must be positive")
	}
	if c.Download.StallThreshold < 1 {
		return errors.New("stall_threshold must be at least 1")
	}
	return nil
}

// LedgerPath is the line-delimited record of completed downloads.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.TrackingDir, "downloaded.txt")
}

// WorkListPath is the default download list location.
func (c *Config) WorkListPath() string {
	return filepath.Join(c.TrackingDir, "download_list.txt")
}

// SizesPath maps filenames to expected byte sizes.
func (c *Config) SizesPath() string {
	return filepath.Join(c.TrackingDir, "file_sizes.json")
}

// EnsureDirs creates the directories the pipeline writes to.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DownloadDir, c.TrackingDir, c.TranscriptDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating directory %s: %v", dir, err)
		}
	}
	return nil
}
