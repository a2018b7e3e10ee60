// Package dialogue implements the turn-based dialogue policy that
// decides what the bot says next. The policy is a cascade of tiers
// evaluated in a fixed order; cheap deterministic tiers run first and a
// generative completion is the escape valve for substantive input that
// no rule recognizes.
package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Tier identifies which policy tier produced a reply.
type Tier string

const (
	TierOpening    Tier = "opening"
	TierLanguage   Tier = "language"
	TierConfusion  Tier = "confusion"
	TierKeyword    Tier = "keyword"
	TierPhrase     Tier = "phrase"
	TierGenerative Tier = "generative"
	TierDefault    Tier = "default"
)

// generativeMinLength is the minimum utterance length before the
// generative tier is consulted.
const generativeMinLength = 5

// Completer produces a text completion for the generative tier.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error)
}

// Config holds dialogue engine configuration.
type Config struct {
	// AgentName is the persona the bot introduces itself as.
	// Default: "Sarah".
	AgentName string `yaml:"agent_name"`

	// CompanyName is the company the bot represents.
	// Default: "Digital Growth Solutions".
	CompanyName string `yaml:"company_name"`
}

// ApplyDefaults applies default values to empty config fields.
func (c *Config) ApplyDefaults() {
	if c.AgentName == "" {
		c.AgentName = "Sarah"
	}
	if c.CompanyName == "" {
		c.CompanyName = "Digital Growth Solutions"
	}
}

// Engine evaluates the tier cascade. Apart from the generative tier it
// is deterministic: identical input always selects the identical tier
// and reply.
type Engine struct {
	cfg       Config
	phrases   []rule
	completer Completer
	logger    *slog.Logger
}

// NewEngine creates a dialogue engine. completer may be nil, in which
// case the generative tier is skipped and unmatched substantive input
// falls through to the default reply.
func NewEngine(cfg Config, completer Completer, logger *slog.Logger) *Engine {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:       cfg,
		phrases:   buildPhraseRules(cfg.AgentName, cfg.CompanyName),
		completer: completer,
		logger:    logger,
	}
}

// Opening returns the greeting spoken when the callee answers,
// personalized when the lead's name is known.
func (e *Engine) Opening(leadName string) (string, Tier) {
	return e.opening(leadName), TierOpening
}

// Reply runs the cascade over a caller utterance and returns the bot
// utterance together with the tier that produced it. An empty
// utterance falls through every rule tier to the default reply.
func (e *Engine) Reply(ctx context.Context, utterance string) (string, Tier) {
	lowered := strings.ToLower(strings.TrimSpace(utterance))

	// Tier 2: language redirect. Must run before the keyword tiers so a
	// language name is never treated as a topic keyword.
	for _, lang := range languageRules {
		if strings.Contains(lowered, lang.match) {
			return fmt.Sprintf(
				"I understand you'd prefer %s, but I'm most comfortable in English. Can we continue in English? I promise to speak clearly and slowly.",
				lang.display,
			), TierLanguage
		}
	}

	// Tier 3: confusion signals.
	for _, signal := range confusionSignals {
		if strings.Contains(lowered, signal) {
			return confusionReply, TierConfusion
		}
	}

	// Tier 4: single keywords, table order wins.
	for _, r := range keywordRules {
		if strings.Contains(lowered, r.match) {
			return r.reply, TierKeyword
		}
	}

	// Tier 5: multi-word phrases.
	for _, r := range e.phrases {
		if strings.Contains(lowered, r.match) {
			return r.reply, TierPhrase
		}
	}

	// Tier 6: generative fallback for substantive unrecognized input.
	if len(utterance) > generativeMinLength && e.completer != nil {
		reply, err := e.generate(ctx, utterance)
		if err != nil {
			e.logger.Warn("generative tier failed, using default reply", "error", err)
		} else if reply != "" {
			return reply, TierGenerative
		}
	}

	// Tier 7: default.
	return defaultReply, TierDefault
}

func (e *Engine) opening(leadName string) string {
	if leadName != "" {
		return fmt.Sprintf(
			"Hi %s! This is %s from %s. Thanks for your interest in our services! I'd love to chat about how we can help your business grow online. Do you have 3 minutes to talk?",
			leadName, e.cfg.AgentName, e.cfg.CompanyName,
		)
	}
	return fmt.Sprintf(
		"Thanks for taking my call! I'm %s from %s. We help businesses get websites and apps that bring in customers. What kind of project are you considering?",
		e.cfg.AgentName, e.cfg.CompanyName,
	)
}

func (e *Engine) generate(ctx context.Context, utterance string) (string, error) {
	system := fmt.Sprintf(
		"You're %s, a friendly sales rep for %s. Keep responses under 20 words. Ask questions about their business needs. Be helpful and enthusiastic.",
		e.cfg.AgentName, e.cfg.CompanyName,
	)
	reply, err := e.completer.Complete(ctx, system, utterance, 30, 0.4)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}
