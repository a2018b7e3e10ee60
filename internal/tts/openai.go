package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures OpenAI TTS.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string `yaml:"api_key"`

	// Model is the TTS model to use.
	// Options: "tts-1", "tts-1-hd"
	// Default: "tts-1"
	Model string `yaml:"model"`

	// Voice is the voice to use.
	// Options: "alloy", "echo", "fable", "onyx", "nova", "shimmer"
	// Default: "nova"
	Voice string `yaml:"voice"`

	// Speed is the speech speed (0.25 to 4.0). Default: 1.1, slightly
	// faster than neutral for energy on sales calls.
	Speed float64 `yaml:"speed"`
}

func (c *OpenAIConfig) applyDefaults() {
	if c.Model == "" {
		c.Model = string(openai.TTSModel1)
	}
	if c.Voice == "" {
		c.Voice = string(openai.VoiceNova)
	}
	if c.Speed == 0 {
		c.Speed = 1.1
	}
}

// openaiSynthesizer renders speech through the OpenAI audio API and
// serves the result from the local static audio directory.
type openaiSynthesizer struct {
	api      *openai.Client
	cfg      OpenAIConfig
	audioDir string
	baseURL  string
}

func newOpenAISynthesizer(cfg OpenAIConfig, audioDir, publicBaseURL string) (*openaiSynthesizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("tts: OpenAI API key is required")
	}
	cfg.applyDefaults()
	if audioDir == "" {
		audioDir = os.TempDir()
	}
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return nil, fmt.Errorf("tts: create audio dir: %w", err)
	}
	return &openaiSynthesizer{
		api:      openai.NewClient(cfg.APIKey),
		cfg:      cfg,
		audioDir: audioDir,
		baseURL:  strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

func (s *openaiSynthesizer) Name() string { return string(EngineOpenAI) }

func (s *openaiSynthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	resp, err := s.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.SpeechModel(s.cfg.Model),
		Input: text,
		Voice: openai.SpeechVoice(s.cfg.Voice),
		Speed: s.cfg.Speed,
	})
	if err != nil {
		return "", fmt.Errorf("tts: OpenAI speech request failed: %w", err)
	}
	defer resp.Close()

	filename := fmt.Sprintf("audio_%s.mp3", uuid.New().String())
	return writeAudioFile(resp, s.audioDir, filename, s.baseURL)
}

// writeAudioFile stores rendered audio under the static directory and
// returns the public URL the telephony provider fetches it from.
func writeAudioFile(audio io.Reader, dir, filename, baseURL string) (string, error) {
	path := filepath.Join(dir, filename)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("tts: create audio file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, audio); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("tts: write audio file: %w", err)
	}

	return baseURL + "/static/" + filename, nil
}
