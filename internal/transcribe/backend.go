package transcribe

import (
	"context"
	"errors"
	"fmt"

	"github.com/heathweaver/video-transcription/internal/config"
)

// Segment is a portion of transcribed audio.
type Segment struct {
	Start   float64 // seconds
	End     float64
	Text    string
	Speaker string // empty unless the backend diarizes
}

// Transcript bundles the segments of one media file.
type Transcript struct {
	Language string
	Text     string
	Segments []Segment
}

// Backend is a pluggable transcription capability. The downloader core only
// guarantees that ledger entries point at fully written files; backends
// consume those files.
type Backend interface {
	Transcribe(ctx context.Context, mediaPath string) (Transcript, error)
}

// ErrMissingAPIKey is fatal at startup when a cloud backend is selected
// without credentials.
var ErrMissingAPIKey = errors.New("ASSEMBLYAI_API_KEY not set")

// NewBackend builds the backend named by the configuration.
func NewBackend(cfg config.TranscribeConfig) (Backend, error) {
	switch cfg.Backend {
	case "whisper":
		return NewWhisperBackend(cfg.WhisperBin, cfg.WhisperModel), nil
	case "assemblyai":
		if cfg.AssemblyAIKey == "" {
			return nil, ErrMissingAPIKey
		}
		return NewAssemblyAIBackend(cfg.AssemblyAIKey), nil
	default:
		return nil, fmt.Errorf("unknown transcription backend: %s", cfg.Backend)
	}
}
