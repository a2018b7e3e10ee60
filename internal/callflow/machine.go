// Package callflow implements the per-call state machine driving the
// telephony webhook protocol. Transitions are driven entirely by
// inbound webhooks; every handler returns a valid TwiML document even
// when something inside it fails, because an unanswered webhook makes
// the provider report a hard application error to the callee.
package callflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haasonsaas/leadline/internal/dialogue"
	"github.com/haasonsaas/leadline/internal/intent"
	"github.com/haasonsaas/leadline/internal/leads"
	"github.com/haasonsaas/leadline/internal/notify"
	"github.com/haasonsaas/leadline/internal/observability"
	"github.com/haasonsaas/leadline/internal/sessions"
	"github.com/haasonsaas/leadline/internal/telephony"
	"github.com/haasonsaas/leadline/internal/tts"
)

// Config holds state machine tuning.
type Config struct {
	// MaxTurns is how many utterances are processed before the call
	// moves to the closing transition. Default: 5.
	MaxTurns int `yaml:"max_turns"`

	// GatherTimeoutSeconds bounds initial caller silence. Default: 8.
	GatherTimeoutSeconds int `yaml:"gather_timeout_seconds"`

	// SpeechTimeoutSeconds is the pause that ends an utterance.
	// Default: 3 on the opening gather, 2 afterwards.
	SpeechTimeoutSeconds int `yaml:"speech_timeout_seconds"`
}

// ApplyDefaults applies default values to empty config fields.
func (c *Config) ApplyDefaults() {
	if c.MaxTurns <= 0 {
		c.MaxTurns = 5
	}
	if c.GatherTimeoutSeconds <= 0 {
		c.GatherTimeoutSeconds = 8
	}
	if c.SpeechTimeoutSeconds <= 0 {
		c.SpeechTimeoutSeconds = 3
	}
}

// Canned utterances for fallback paths.
const (
	apologyUnknownLead = "Sorry, there was an error. We'll call you back soon."
	apologyInternal    = "Technical difficulties. We'll call back shortly."
	noInputOpening     = "I didn't catch that. No worries though! I'll have our team follow up with you via email with more information. Have a great day!"
	noInputMidCall     = "I didn't hear anything, but no problem! I'll have our team send you some information via email. Thanks for your time and have a wonderful day!"
	closingLine        = "Perfect! We'll contact you soon. Bye!"
)

// ProcessPath returns the per-turn webhook path for a lead.
func ProcessPath(leadID int64) string { return fmt.Sprintf("/voice/process/%d", leadID) }

// EndPath returns the terminal webhook path for a lead.
func EndPath(leadID int64) string { return fmt.Sprintf("/voice/end/%d", leadID) }

// StartPath returns the entry webhook path for a lead.
func StartPath(leadID int64) string { return fmt.Sprintf("/voice/start/%d", leadID) }

// Machine orchestrates call transitions. All methods return a TwiML
// document to send back to the telephony provider.
//
// Machine is safe for concurrent use.
type Machine struct {
	cfg        Config
	leads      leads.Store
	sessions   *sessions.Store
	policy     *dialogue.Engine
	classifier *intent.Classifier
	voice      *tts.Dispatcher
	notifier   notify.Notifier
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// Deps groups the machine's collaborators.
type Deps struct {
	Leads      leads.Store
	Sessions   *sessions.Store
	Policy     *dialogue.Engine
	Classifier *intent.Classifier
	Voice      *tts.Dispatcher
	Notifier   notify.Notifier
	Logger     *slog.Logger
	Metrics    *observability.Metrics
}

// NewMachine creates a call state machine.
func NewMachine(cfg Config, deps Deps) (*Machine, error) {
	cfg.ApplyDefaults()
	switch {
	case deps.Leads == nil:
		return nil, errors.New("callflow: lead store is required")
	case deps.Sessions == nil:
		return nil, errors.New("callflow: session store is required")
	case deps.Policy == nil:
		return nil, errors.New("callflow: dialogue engine is required")
	case deps.Classifier == nil:
		return nil, errors.New("callflow: intent classifier is required")
	case deps.Voice == nil:
		return nil, errors.New("callflow: voice dispatcher is required")
	case deps.Metrics == nil:
		return nil, errors.New("callflow: metrics are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Machine{
		cfg:        cfg,
		leads:      deps.Leads,
		sessions:   deps.Sessions,
		policy:     deps.Policy,
		classifier: deps.Classifier,
		voice:      deps.Voice,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}, nil
}

// Entry handles the webhook fired when the callee answers. No session
// exists yet; it is created lazily by the first per-turn webhook.
func (m *Machine) Entry(ctx context.Context, leadID int64) (twiml string) {
	defer m.recoverTransition("entry", &twiml)

	lead, err := m.leads.Get(ctx, leadID)
	if err != nil {
		m.logger.Error("entry webhook for unknown lead", "lead_id", leadID, "error", err)
		m.metrics.WebhookTransitions.WithLabelValues("entry", "error").Inc()
		return telephony.NewResponse().Say(apologyUnknownLead).Hangup().String()
	}

	greeting, tier := m.policy.Opening(lead.Name)
	m.metrics.DialogueTierHits.WithLabelValues(string(tier)).Inc()

	speech := m.voice.Render(ctx, greeting, true)

	resp := telephony.NewResponse()
	resp.Gather(ProcessPath(leadID), m.cfg.GatherTimeoutSeconds, m.cfg.SpeechTimeoutSeconds, func(g *telephony.Gather) {
		speakInto(g, speech)
	})
	// Reached only if the gather collects nothing.
	resp.Say(noInputOpening).Redirect(EndPath(leadID))

	m.logger.Info("call entry handled", "lead_id", leadID, "tier", tier)
	m.metrics.WebhookTransitions.WithLabelValues("entry", "ok").Inc()
	return resp.String()
}

// Turn handles a per-turn webhook carrying the recognized utterance
// (possibly empty on silence). The session for callID is created on
// first use.
func (m *Machine) Turn(ctx context.Context, leadID int64, callID, utterance string) (twiml string) {
	defer m.recoverTransition("turn", &twiml)

	utterance = strings.TrimSpace(utterance)

	if _, err := m.leads.Get(ctx, leadID); err != nil {
		m.logger.Error("turn webhook for unknown lead", "lead_id", leadID, "error", err)
		m.metrics.WebhookTransitions.WithLabelValues("turn", "error").Inc()
		return telephony.NewResponse().Say(apologyUnknownLead).Hangup().String()
	}

	// The reply computation may call out to the completion collaborator,
	// so it runs before (not under) the session store lock.
	reply, tier := m.policy.Reply(ctx, utterance)
	m.metrics.DialogueTierHits.WithLabelValues(string(tier)).Inc()

	// Lazily creates the session on the first turn of a call.
	session := m.sessions.Update(callID, leadID, func(s *sessions.Session) {
		if utterance != "" {
			s.History = append(s.History, sessions.Entry{Speaker: sessions.SpeakerUser, Text: utterance})
		}
		s.History = append(s.History, sessions.Entry{Speaker: sessions.SpeakerBot, Text: reply})
		s.Turn++
	})
	m.metrics.ActiveSessions.Set(float64(m.sessions.Len()))

	resp := telephony.NewResponse()
	if session.Turn < m.cfg.MaxTurns {
		speech := m.voice.Render(ctx, reply, false)

		speechTimeout := m.cfg.SpeechTimeoutSeconds
		if speechTimeout > 2 {
			speechTimeout = 2
		}
		resp.Gather(ProcessPath(leadID), m.cfg.GatherTimeoutSeconds, speechTimeout, func(g *telephony.Gather) {
			speakInto(g, speech)
		})
		resp.Say(noInputMidCall).Redirect(EndPath(leadID))
		m.metrics.WebhookTransitions.WithLabelValues("turn", "ok").Inc()
	} else {
		// Closing transition: last reply, no further collection.
		speech := m.voice.Render(ctx, reply, true)
		speakIntoResponse(resp, speech)
		resp.Say(closingLine).Redirect(EndPath(leadID))
		m.metrics.WebhookTransitions.WithLabelValues("closing", "ok").Inc()
	}

	m.logger.Info("call turn handled",
		"lead_id", leadID, "call_id", callID, "turn", session.Turn, "tier", tier)
	return resp.String()
}

// End handles the terminal webhook: finalize the transcript, classify
// intent, persist the outcome, alert the admin when interested, and
// drop the session. The session is removed even when persistence or
// notification fails; a leaked session outweighs a missed write.
func (m *Machine) End(ctx context.Context, leadID int64, callID string) (twiml string) {
	defer m.recoverTransition("terminal", &twiml)
	defer func() {
		m.sessions.Delete(callID)
		m.metrics.ActiveSessions.Set(float64(m.sessions.Len()))
	}()

	session, ok := m.sessions.Get(callID)
	var transcript string
	if ok {
		transcript = serializeHistory(session.History)
	}

	interested, method := m.classifier.Classify(ctx, transcript)
	m.metrics.IntentResults.WithLabelValues(resultLabel(interested), string(method)).Inc()

	err := m.leads.Update(ctx, leadID, leads.Update{
		CallCompleted: leads.Bool(true),
		Interested:    leads.Bool(interested),
		Transcript:    leads.String(transcript),
	})
	if err != nil {
		m.logger.Error("persisting call outcome failed",
			"lead_id", leadID, "call_id", callID, "error", err)
	}

	if interested && m.notifier != nil {
		lead, err := m.leads.Get(ctx, leadID)
		if err != nil {
			m.logger.Error("loading lead for admin alert failed", "lead_id", leadID, "error", err)
		} else if err := m.notifier.Notify(ctx, lead); err != nil {
			m.logger.Warn("admin alert failed", "lead_id", leadID, "error", err)
		}
	}

	m.logger.Info("call ended",
		"lead_id", leadID, "call_id", callID, "interested", interested, "method", method)
	m.metrics.WebhookTransitions.WithLabelValues("terminal", "ok").Inc()
	return telephony.NewResponse().Hangup().String()
}

// recoverTransition converts a panic inside a transition into a spoken
// apology plus termination. The provider would otherwise time out and
// surface a hard application error.
func (m *Machine) recoverTransition(transition string, twiml *string) {
	if r := recover(); r != nil {
		m.logger.Error("panic in call transition", "transition", transition, "panic", r)
		m.metrics.WebhookTransitions.WithLabelValues(transition, "error").Inc()
		*twiml = telephony.NewResponse().Say(apologyInternal).Hangup().String()
	}
}

func speakInto(g *telephony.Gather, speech tts.Speech) {
	if speech.Play() {
		g.Play(speech.AudioURL)
	} else {
		g.Say(speech.Text)
	}
}

func speakIntoResponse(r *telephony.Response, speech tts.Speech) {
	if speech.Play() {
		r.Play(speech.AudioURL)
	} else {
		r.Say(speech.Text)
	}
}

// serializeHistory renders the session history as the stored transcript.
func serializeHistory(history []sessions.Entry) string {
	if len(history) == 0 {
		return ""
	}
	data, err := json.Marshal(history)
	if err != nil {
		// Entries are plain strings; marshalling cannot realistically
		// fail, but the transcript must never take the call down.
		var sb strings.Builder
		for _, entry := range history {
			fmt.Fprintf(&sb, "%s: %s\n", entry.Speaker, entry.Text)
		}
		return sb.String()
	}
	return string(data)
}

func resultLabel(interested bool) string {
	if interested {
		return "interested"
	}
	return "not_interested"
}
