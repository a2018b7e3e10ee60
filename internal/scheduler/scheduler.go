// Package scheduler places outbound calls after a courtesy delay and
// runs periodic housekeeping over call sessions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/leadline/internal/callflow"
	"github.com/haasonsaas/leadline/internal/leads"
	"github.com/haasonsaas/leadline/internal/observability"
	"github.com/haasonsaas/leadline/internal/sessions"
)

// Dialer originates an outbound call and returns the provider call id.
type Dialer interface {
	Originate(ctx context.Context, to, callbackURL string) (string, error)
}

// Config holds scheduler tuning.
type Config struct {
	// CallDelay is how long after form submission the call is placed.
	// Default: 2m.
	CallDelay time.Duration

	// SweepInterval is how often expired sessions are collected.
	// Default: 5m.
	SweepInterval time.Duration
}

// ApplyDefaults applies default values to empty config fields.
func (c *Config) ApplyDefaults() {
	if c.CallDelay <= 0 {
		c.CallDelay = 2 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Minute
	}
}

// originateTimeout bounds the provider API call when a timer fires.
const originateTimeout = 30 * time.Second

// Scheduler tracks one-shot call timers and a recurring session sweep.
// Pending timers live in memory only; a restart forfeits them.
type Scheduler struct {
	cfg       Config
	dialer    Dialer
	leads     leads.Store
	sessions  *sessions.Store
	publicURL string
	logger    *slog.Logger
	metrics   *observability.Metrics

	cron      *cron.Cron
	afterFunc func(time.Duration, func()) *time.Timer

	mu      sync.Mutex
	pending map[int64]*time.Timer
	stopped bool
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithAfterFunc overrides timer creation. Used by tests to fire
// scheduled calls deterministically.
func WithAfterFunc(fn func(time.Duration, func()) *time.Timer) Option {
	return func(s *Scheduler) { s.afterFunc = fn }
}

// New creates a Scheduler. publicURL is the externally reachable base
// URL the provider fetches webhook documents from.
func New(cfg Config, dialer Dialer, leadStore leads.Store, sessionStore *sessions.Store,
	publicURL string, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Scheduler {

	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cfg:       cfg,
		dialer:    dialer,
		leads:     leadStore,
		sessions:  sessionStore,
		publicURL: publicURL,
		logger:    logger,
		metrics:   metrics,
		cron:      cron.New(),
		afterFunc: time.AfterFunc,
		pending:   make(map[int64]*time.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the recurring session sweep.
func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.cfg.SweepInterval)
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return fmt.Errorf("scheduler: registering sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started",
		"call_delay", s.cfg.CallDelay, "sweep_interval", s.cfg.SweepInterval)
	return nil
}

// Stop cancels pending call timers and halts the sweep. Timers that
// have already fired run to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, timer := range s.pending {
		timer.Stop()
		delete(s.pending, id)
	}
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// ScheduleCall arms a one-shot timer that dials the lead after the
// configured delay. A lead with a timer already pending is left alone.
func (s *Scheduler) ScheduleCall(leadID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if _, exists := s.pending[leadID]; exists {
		s.logger.Warn("call already scheduled", "lead_id", leadID)
		return
	}
	s.pending[leadID] = s.afterFunc(s.cfg.CallDelay, func() {
		s.placeCall(leadID)
	})
	s.logger.Info("call scheduled", "lead_id", leadID, "delay", s.cfg.CallDelay)
}

// Pending reports how many call timers are armed.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// placeCall fires when a timer elapses. Origination failures are
// logged and dropped; the lead simply never gets the call.
func (s *Scheduler) placeCall(leadID int64) {
	s.mu.Lock()
	delete(s.pending, leadID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), originateTimeout)
	defer cancel()

	lead, err := s.leads.Get(ctx, leadID)
	if err != nil {
		s.logger.Error("scheduled call for unknown lead", "lead_id", leadID, "error", err)
		return
	}

	callbackURL := s.publicURL + callflow.StartPath(leadID)
	sid, err := s.dialer.Originate(ctx, lead.Phone, callbackURL)
	if err != nil {
		s.logger.Error("call origination failed", "lead_id", leadID, "error", err)
		if s.metrics != nil {
			s.metrics.CallsOriginated.WithLabelValues("error").Inc()
		}
		return
	}

	if err := s.leads.Update(ctx, leadID, leads.Update{CallScheduled: leads.Bool(true)}); err != nil {
		s.logger.Error("marking lead as called failed", "lead_id", leadID, "error", err)
	}

	if s.metrics != nil {
		s.metrics.CallsOriginated.WithLabelValues("success").Inc()
	}
	s.logger.Info("call originated", "lead_id", leadID, "call_sid", sid)
}

// sweep drops expired sessions from calls that never reached the
// terminal webhook.
func (s *Scheduler) sweep() {
	removed := s.sessions.Sweep()
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(s.sessions.Len()))
	}
	if removed > 0 {
		s.logger.Info("expired sessions swept", "removed", removed)
	}
}
