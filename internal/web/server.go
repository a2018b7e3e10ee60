// Package web exposes the HTTP surface: the contact form, the
// telephony webhook endpoints, rendered audio files, and the
// operational endpoints.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/haasonsaas/leadline/internal/callflow"
	"github.com/haasonsaas/leadline/internal/leads"
)

// CallScheduler arms a delayed outbound call for a lead.
type CallScheduler interface {
	ScheduleCall(leadID int64)
}

// SignatureVerifier checks a webhook request signature. A nil verifier
// on the server disables verification.
type SignatureVerifier interface {
	VerifySignature(fullURL string, form url.Values, signature string) bool
}

// Options configures a Server.
type Options struct {
	Addr      string
	PublicURL string
	AudioDir  string

	Machine   *callflow.Machine
	Leads     leads.Store
	Scheduler CallScheduler
	Verifier  SignatureVerifier
	Metrics   http.Handler

	Logger *slog.Logger
}

// Server serves the HTTP surface. Create with NewServer, start with
// Start, stop with Shutdown.
type Server struct {
	opts Options
	http *http.Server
}

// NewServer builds the route table and the underlying http.Server.
func NewServer(opts Options) (*Server, error) {
	switch {
	case opts.Machine == nil:
		return nil, errors.New("web: call machine is required")
	case opts.Leads == nil:
		return nil, errors.New("web: lead store is required")
	case opts.Scheduler == nil:
		return nil, errors.New("web: call scheduler is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{opts: opts}
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /submit-form", s.handleSubmitForm)
	mux.HandleFunc("GET /leads", s.handleLeads)

	mux.HandleFunc("POST /voice/start/{lead_id}", s.handleVoiceStart)
	mux.HandleFunc("POST /voice/process/{lead_id}", s.handleVoiceProcess)
	mux.HandleFunc("POST /voice/end/{lead_id}", s.handleVoiceEnd)

	if s.opts.AudioDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/",
			http.FileServer(http.Dir(s.opts.AudioDir))))
	}

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics)
	}

	return mux
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start blocks serving requests until Shutdown is called or the
// listener fails.
func (s *Server) Start() error {
	s.opts.Logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.opts.Logger.Info("http server shutting down")
	return s.http.Shutdown(ctx)
}
