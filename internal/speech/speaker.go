package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const (
	elevenLabsBaseURL = "https://api.elevenlabs.io"

	defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	defaultModelID = "eleven_multilingual_v2"
)

// Speaker renders text to speech through the ElevenLabs streaming API and
// writes the audio to an output sink (typically an external audio player's
// stdin).
type Speaker struct {
	baseURL string
	apiKey  string
	voiceID string
	modelID string
	client  *http.Client
}

// NewSpeaker creates a speaker from config, falling back to the default
// voice and model when unset.
func NewSpeaker(cfg ElevenLabsConfig) *Speaker {
	voice := cfg.VoiceID
	if voice == "" {
		voice = defaultVoiceID
	}
	model := cfg.ModelID
	if model == "" {
		model = defaultModelID
	}
	return &Speaker{
		baseURL: elevenLabsBaseURL,
		apiKey:  cfg.APIKey,
		voiceID: voice,
		modelID: model,
		client:  &http.Client{},
	}
}

// Speak synthesizes text and streams the resulting audio into out as it
// arrives from the API.
func (s *Speaker) Speak(ctx context.Context, text string, out io.Writer) error {
	if text == "" {
		return fmt.Errorf("empty text for synthesis")
	}

	body, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": s.modelID,
	})
	if err != nil {
		return fmt.Errorf("marshalling synthesis request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s/stream", s.baseURL, s.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("synthesis failed (status %d): %s", resp.StatusCode, respBody)
	}

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return fmt.Errorf("streaming audio: %w", err)
	}
	slog.Debug("synthesis complete", "audio_bytes", n, "voice", s.voiceID)
	return nil
}
