package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/heathweaver/video-transcription/internal/utils"
)

// WhisperBackend shells out to a local whisper CLI and parses its JSON
// output. Model weights are loaded by the CLI itself.
type WhisperBackend struct {
	Bin   string
	Model string
}

func NewWhisperBackend(bin, model string) *WhisperBackend {
	if bin == "" {
		bin = "whisper"
	}
	if model == "" {
		model = "base"
	}
	return &WhisperBackend{Bin: bin, Model: model}
}

type whisperResult struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (w *WhisperBackend) Transcribe(ctx context.Context, mediaPath string) (Transcript, error) {
	log := utils.GetLogger("whisper")
	if _, err := os.Stat(mediaPath); err != nil {
		return Transcript{}, fmt.Errorf("media file not found: %v", err)
	}
	outDir, err := os.MkdirTemp("", "whisper-")
	if err != nil {
		return Transcript{}, fmt.Errorf("error creating output directory: %v", err)
	}
	defer os.RemoveAll(outDir)

	log.Info().Str("model", w.Model).Str("file", filepath.Base(mediaPath)).Msg("Transcribing")
	cmd := exec.CommandContext(ctx, w.Bin, mediaPath,
		"--model", w.Model,
		"--output_format", "json",
		"--output_dir", outDir,
		"--verbose", "False",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return Transcript{}, fmt.Errorf("whisper failed: %v: %s", err, strings.TrimSpace(string(out)))
	}

	base := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	data, err := os.ReadFile(filepath.Join(outDir, base+".json"))
	if err != nil {
		return Transcript{}, fmt.Errorf("error reading whisper output: %v", err)
	}
	var result whisperResult
	if err := json.Unmarshal(data, &result); err != nil {
		return Transcript{}, fmt.Errorf("error parsing whisper output: %v", err)
	}

	t := Transcript{
		Language: result.Language,
		Text:     strings.TrimSpace(result.Text),
	}
	for _, seg := range result.Segments {
		t.Segments = append(t.Segments, Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	return t, nil
}
