// Package api provides HTTP handlers and the main API server logic for
// DialogPipe.
//
// It exposes RESTful endpoints for driving conversations, inspecting user
// profiles and the message audit trail, and scheduling recurring messages.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dialogpipe/dialogpipe/internal/bot"
	"github.com/dialogpipe/dialogpipe/internal/dialog"
	"github.com/dialogpipe/dialogpipe/internal/messaging"
	"github.com/dialogpipe/dialogpipe/internal/scheduler"
	"github.com/dialogpipe/dialogpipe/internal/store"
)

const (
	// DefaultAddr is the default listen address for the API server.
	DefaultAddr = ":8080"
	// shutdownTimeout bounds graceful shutdown after ctx cancellation.
	shutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr       string
	Bot        *bot.Bot
	State      dialog.StateManager
	Store      store.Store
	Messaging  messaging.Service
	Scheduler  *scheduler.Scheduler
	TwilioHook *messaging.TwilioService
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithBot sets the bot that processes inbound activities.
func WithBot(b *bot.Bot) Option {
	return func(o *Opts) { o.Bot = b }
}

// WithStateManager sets the state manager behind the profile and
// conversation endpoints.
func WithStateManager(sm dialog.StateManager) Option {
	return func(o *Opts) { o.State = sm }
}

// WithStore sets the store behind the receipts and responses endpoints.
func WithStore(st store.Store) Option {
	return func(o *Opts) { o.Store = st }
}

// WithMessagingService sets the delivery channel used by scheduled messages.
func WithMessagingService(s messaging.Service) Option {
	return func(o *Opts) { o.Messaging = s }
}

// WithScheduler sets the cron scheduler behind the schedule endpoint.
func WithScheduler(s *scheduler.Scheduler) Option {
	return func(o *Opts) { o.Scheduler = s }
}

// WithTwilioWebhook mounts the Twilio inbound webhook for the given service.
func WithTwilioWebhook(s *messaging.TwilioService) Option {
	return func(o *Opts) { o.TwilioHook = s }
}

// Server is the DialogPipe HTTP API.
type Server struct {
	addr       string
	bot        *bot.Bot
	state      dialog.StateManager
	store      store.Store
	msgService messaging.Service
	sched      *scheduler.Scheduler
	twilioHook *messaging.TwilioService
}

// NewServer creates an API server from the provided options.
func NewServer(opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{
		addr:       cfg.Addr,
		bot:        cfg.Bot,
		state:      cfg.State,
		store:      cfg.Store,
		msgService: cfg.Messaging,
		sched:      cfg.Scheduler,
		twilioHook: cfg.TwilioHook,
	}
}

// Routes builds the request multiplexer for the API.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/messages", s.messagesHandler)
	mux.HandleFunc("GET /v1/profiles/{id}", s.profileHandler)
	mux.HandleFunc("DELETE /v1/conversations/{id}", s.deleteConversationHandler)
	mux.HandleFunc("GET /v1/receipts", s.receiptsHandler)
	mux.HandleFunc("GET /v1/responses", s.responsesHandler)
	mux.HandleFunc("POST /v1/schedule", s.scheduleHandler)
	mux.HandleFunc("GET /v1/health", s.healthHandler)
	if s.twilioHook != nil {
		mux.HandleFunc("POST /webhook/twilio", s.twilioHook.WebhookHandler)
	}
	return mux
}

// Run serves the API until ctx is cancelled, then shuts down gracefully. When
// a messaging service is configured the bot's response loop runs alongside.
func (s *Server) Run(ctx context.Context) error {
	if s.bot != nil && s.msgService != nil {
		go func() {
			if err := s.bot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Server.Run: bot loop exited", "error", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:    s.addr,
		Handler: s.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("DialogPipe API listening", "addr", s.addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
