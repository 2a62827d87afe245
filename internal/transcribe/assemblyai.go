package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/heathweaver/video-transcription/internal/utils"
)

const defaultAssemblyAIBaseURL = "https://api.assemblyai.com/v2"

// AssemblyAIBackend runs cloud transcription with speaker diarization:
// upload the media file, start a transcript job, poll until it settles.
type AssemblyAIBackend struct {
	APIKey       string
	BaseURL      string
	Language     string
	PollInterval time.Duration
	HTTPClient   *http.Client
}

func NewAssemblyAIBackend(apiKey string) *AssemblyAIBackend {
	return &AssemblyAIBackend{
		APIKey:       apiKey,
		BaseURL:      defaultAssemblyAIBaseURL,
		PollInterval: 3 * time.Second,
		HTTPClient:   &http.Client{Timeout: 10 * time.Minute},
	}
}

type assemblyAIUploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type assemblyAITranscript struct {
	ID           string  `json:"id"`
	Status       string  `json:"status"`
	Text         string  `json:"text"`
	Error        string  `json:"error"`
	LanguageCode string  `json:"language_code"`
	Utterances   []struct {
		Speaker string  `json:"speaker"`
		Text    string  `json:"text"`
		Start   float64 `json:"start"` // milliseconds
		End     float64 `json:"end"`
	} `json:"utterances"`
}

func (a *AssemblyAIBackend) Transcribe(ctx context.Context, mediaPath string) (Transcript, error) {
	log := utils.GetLogger("assemblyai")
	if a.APIKey == "" {
		return Transcript{}, ErrMissingAPIKey
	}

	uploadURL, err := a.upload(ctx, mediaPath)
	if err != nil {
		return Transcript{}, err
	}
	log.Info().Msg("Upload complete")

	id, err := a.start(ctx, uploadURL)
	if err != nil {
		return Transcript{}, err
	}
	log.Info().Str("transcriptId", id).Msg("Transcription started")

	result, err := a.poll(ctx, id)
	if err != nil {
		return Transcript{}, err
	}

	t := Transcript{Language: result.LanguageCode, Text: result.Text}
	for _, u := range result.Utterances {
		t.Segments = append(t.Segments, Segment{
			Start:   u.Start / 1000,
			End:     u.End / 1000,
			Text:    u.Text,
			Speaker: u.Speaker,
		})
	}
	return t, nil
}

func (a *AssemblyAIBackend) upload(ctx context.Context, mediaPath string) (string, error) {
	f, err := os.Open(mediaPath)
	if err != nil {
		return "", fmt.Errorf("media file not found: %v", err)
	}
	defer f.Close()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/upload", f)
	if err != nil {
		return "", err
	}
	req.Header.Set("authorization", a.APIKey)
	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload failed: %d - %s", resp.StatusCode, body)
	}
	var uploaded assemblyAIUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return "", fmt.Errorf("error parsing upload response: %v", err)
	}
	return uploaded.UploadURL, nil
}

func (a *AssemblyAIBackend) start(ctx context.Context, audioURL string) (string, error) {
	payload := map[string]any{
		"audio_url":      audioURL,
		"speaker_labels": true,
	}
	if a.Language != "" {
		payload["language_code"] = a.Language
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("authorization", a.APIKey)
	req.Header.Set("content-type", "application/json")
	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("transcription request failed: %d - %s", resp.StatusCode, data)
	}
	var started assemblyAITranscript
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		return "", fmt.Errorf("error parsing transcript response: %v", err)
	}
	return started.ID, nil
}

func (a *AssemblyAIBackend) poll(ctx context.Context, id string) (*assemblyAITranscript, error) {
	log := utils.GetLogger("assemblyai")
	endpoint := a.BaseURL + "/transcript/" + id
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("authorization", a.APIKey)
		resp, err := a.HTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("polling failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("polling failed: %d - %s", resp.StatusCode, data)
		}
		var result assemblyAITranscript
		err = json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("error parsing polling response: %v", err)
		}
		switch result.Status {
		case "completed":
			return &result, nil
		case "error":
			return nil, fmt.Errorf("transcription failed: %s", result.Error)
		}
		log.Debug().Str("status", result.Status).Msg("Waiting for transcription to complete")
		timer := time.NewTimer(a.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
