// Package tts dispatches voice synthesis for call utterances. The
// telephony provider's native speech-from-text is the zero-latency
// floor; premium engines (OpenAI TTS, ElevenLabs) render short,
// high-value utterances to audio files served back to the provider as
// playable URLs.
package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Engine selects the synthesis strategy.
type Engine string

const (
	// EngineHybrid uses a premium engine only for short, important
	// utterances and native provider speech for everything else.
	EngineHybrid Engine = "hybrid"

	// EngineOpenAI always attempts OpenAI TTS first.
	EngineOpenAI Engine = "openai"

	// EngineElevenLabs always attempts ElevenLabs first.
	EngineElevenLabs Engine = "elevenlabs"

	// EngineNative always uses the provider's speech-from-text.
	EngineNative Engine = "native"
)

// hybridMaxLength is the utterance length ceiling for premium synthesis
// in hybrid mode; longer text always uses native provider speech.
const hybridMaxLength = 80

// Speech is the dispatcher's decision for one utterance.
type Speech struct {
	// Text is the utterance, always set.
	Text string

	// AudioURL, when non-empty, is a pre-rendered audio file the
	// provider should play instead of speaking Text.
	AudioURL string
}

// Play reports whether the provider should play a rendered audio file
// rather than synthesize Text itself.
func (s Speech) Play() bool { return s.AudioURL != "" }

// Synthesizer renders text to a publicly reachable audio URL.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string) (string, error)
}

// Config holds dispatcher configuration.
type Config struct {
	// Engine is the synthesis strategy. Default: hybrid.
	Engine Engine `yaml:"engine"`

	// TimeoutSeconds bounds each premium synthesis call. Default: 8.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// AudioDir is where rendered audio files are written. The web
	// server serves this directory under /static. Default: os temp dir
	// (applied by the synthesizers).
	AudioDir string `yaml:"audio_dir"`

	// OpenAI configures the OpenAI TTS engine.
	OpenAI OpenAIConfig `yaml:"openai"`

	// ElevenLabs configures the ElevenLabs engine.
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
}

// ApplyDefaults applies default values to empty config fields.
func (c *Config) ApplyDefaults() {
	if c.Engine == "" {
		c.Engine = EngineHybrid
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 8
	}
	c.OpenAI.applyDefaults()
	c.ElevenLabs.applyDefaults()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineHybrid, EngineOpenAI, EngineElevenLabs, EngineNative, "":
	default:
		return fmt.Errorf("tts: invalid engine: %s", c.Engine)
	}
	return nil
}

// Dispatcher selects how each utterance is voiced.
//
// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	engine   Engine
	timeout  time.Duration
	premium  Synthesizer
	logger   *slog.Logger
	observer Observer
}

// Observer receives one event per Render decision. engine is the
// synthesizer that voiced the utterance; status is "ok" or "fallback"
// when a premium attempt degraded to native provider speech.
type Observer func(engine, status string)

// NewDispatcher creates a dispatcher. premium may be nil (for example
// when no premium engine is configured); every decision then falls back
// to native provider speech.
func NewDispatcher(cfg Config, premium Synthesizer, logger *slog.Logger) (*Dispatcher, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		engine:  cfg.Engine,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		premium: premium,
		logger:  logger,
	}, nil
}

// SetObserver installs the decision observer. Call before the
// dispatcher is shared between goroutines.
func (d *Dispatcher) SetObserver(obs Observer) {
	d.observer = obs
}

func (d *Dispatcher) observe(engine, status string) {
	if d.observer != nil {
		d.observer(engine, status)
	}
}

// Render decides how to voice text. important marks high-value
// utterances (openings, closings) worth premium latency.
//
// Render never fails: any premium synthesis error falls back to native
// provider speech.
func (d *Dispatcher) Render(ctx context.Context, text string, important bool) Speech {
	if strings.TrimSpace(text) == "" || d.premium == nil || d.engine == EngineNative {
		d.observe(string(EngineNative), "ok")
		return Speech{Text: text}
	}

	usePremium := false
	switch d.engine {
	case EngineHybrid:
		usePremium = important && len(text) < hybridMaxLength
	case EngineOpenAI, EngineElevenLabs:
		usePremium = true
	}
	if !usePremium {
		d.observe(string(EngineNative), "ok")
		return Speech{Text: text}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	audioURL, err := d.premium.Synthesize(ctx, text)
	if err != nil {
		d.logger.Warn("premium synthesis failed, falling back to provider speech",
			"engine", d.premium.Name(), "error", err)
		d.observe(d.premium.Name(), "fallback")
		return Speech{Text: text}
	}
	if audioURL == "" {
		d.logger.Warn("premium synthesis returned no audio, falling back to provider speech",
			"engine", d.premium.Name())
		d.observe(d.premium.Name(), "fallback")
		return Speech{Text: text}
	}

	d.observe(d.premium.Name(), "ok")
	return Speech{Text: text, AudioURL: audioURL}
}

// NewSynthesizer builds the premium synthesizer for the configured
// engine. Returns nil (and no error) for the native engine.
func NewSynthesizer(cfg Config, publicBaseURL string) (Synthesizer, error) {
	cfg.ApplyDefaults()

	switch cfg.Engine {
	case EngineNative:
		return nil, nil
	case EngineElevenLabs:
		return newElevenLabsSynthesizer(cfg.ElevenLabs, cfg.AudioDir, publicBaseURL)
	case EngineOpenAI, EngineHybrid:
		if cfg.OpenAI.APIKey == "" {
			if cfg.Engine == EngineOpenAI {
				return nil, errors.New("tts: OpenAI API key is required")
			}
			// Hybrid without a key degrades to native-only.
			return nil, nil
		}
		return newOpenAISynthesizer(cfg.OpenAI, cfg.AudioDir, publicBaseURL)
	default:
		return nil, fmt.Errorf("tts: invalid engine: %s", cfg.Engine)
	}
}
