package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
)

// ElevenLabsConfig configures ElevenLabs TTS.
type ElevenLabsConfig struct {
	// APIKey is the ElevenLabs API key.
	APIKey string `yaml:"api_key"`

	// VoiceID is the voice to use.
	// Default: "21m00Tcm4TlvDq8ikWAM" (Rachel)
	VoiceID string `yaml:"voice_id"`

	// ModelID is the model to use.
	// Options: "eleven_monolingual_v1", "eleven_multilingual_v2", "eleven_turbo_v2"
	// Default: "eleven_monolingual_v1"
	ModelID string `yaml:"model_id"`

	// Stability controls voice stability (0.0 to 1.0). Default: 0.5
	Stability float64 `yaml:"stability"`

	// SimilarityBoost controls voice similarity (0.0 to 1.0). Default: 0.7
	SimilarityBoost float64 `yaml:"similarity_boost"`
}

func (c *ElevenLabsConfig) applyDefaults() {
	if c.VoiceID == "" {
		c.VoiceID = "21m00Tcm4TlvDq8ikWAM"
	}
	if c.ModelID == "" {
		c.ModelID = "eleven_monolingual_v1"
	}
	if c.Stability == 0 {
		c.Stability = 0.5
	}
	if c.SimilarityBoost == 0 {
		c.SimilarityBoost = 0.7
	}
}

// elevenLabsSynthesizer renders speech through the ElevenLabs REST API.
type elevenLabsSynthesizer struct {
	cfg      ElevenLabsConfig
	client   *http.Client
	baseURL  string
	audioDir string
	endpoint string
}

func newElevenLabsSynthesizer(cfg ElevenLabsConfig, audioDir, publicBaseURL string) (*elevenLabsSynthesizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("tts: ElevenLabs API key is required")
	}
	cfg.applyDefaults()
	if audioDir == "" {
		audioDir = os.TempDir()
	}
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return nil, fmt.Errorf("tts: create audio dir: %w", err)
	}
	return &elevenLabsSynthesizer{
		cfg:      cfg,
		client:   &http.Client{},
		baseURL:  strings.TrimRight(publicBaseURL, "/"),
		audioDir: audioDir,
		endpoint: "https://api.elevenlabs.io/v1/text-to-speech/" + cfg.VoiceID,
	}, nil
}

func (s *elevenLabsSynthesizer) Name() string { return string(EngineElevenLabs) }

func (s *elevenLabsSynthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	requestBody := map[string]any{
		"text":     text,
		"model_id": s.cfg.ModelID,
		"voice_settings": map[string]any{
			"stability":         s.cfg.Stability,
			"similarity_boost":  s.cfg.SimilarityBoost,
			"style":             0.0,
			"use_speaker_boost": true,
		},
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("tts: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("tts: create request: %w", err)
	}
	req.Header.Set("xi-api-key", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tts: ElevenLabs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return "", fmt.Errorf("tts: ElevenLabs returned %s: %s", resp.Status, string(body))
	}

	filename := fmt.Sprintf("audio_%s.mp3", uuid.New().String())
	return writeAudioFile(resp.Body, s.audioDir, filename, s.baseURL)
}
