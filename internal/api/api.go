// Package api provides the HTTP surface of WhatsCommerce.
//
// It exposes the Twilio inbound webhook, the message template administration
// endpoints, a health check and the Prometheus scrape endpoint. The webhook
// handler verifies the Twilio signature, drops redelivered messages, runs the
// conversation engine and sends the reply through the messaging service.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/whatscommerce/whatscommerce/internal/conversation"
	"github.com/whatscommerce/whatscommerce/internal/messages"
	"github.com/whatscommerce/whatscommerce/internal/messaging"
	"github.com/whatscommerce/whatscommerce/internal/metrics"
	"github.com/whatscommerce/whatscommerce/internal/store"
	"github.com/whatscommerce/whatscommerce/internal/twiliowhatsapp"
)

// DefaultAddr is the default HTTP listen address.
const DefaultAddr = ":8080"

// Opts holds server configuration.
type Opts struct {
	Addr string
	// PublicURL is the externally visible base URL of this service, needed to
	// reconstruct the signed webhook URL.
	PublicURL string
	// Validator verifies Twilio webhook signatures. nil disables verification
	// (local development only).
	Validator *twiliowhatsapp.Validator
}

// Option configures Opts.
type Option func(*Opts)

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithPublicURL sets the externally visible base URL used for signature checks.
func WithPublicURL(url string) Option {
	return func(o *Opts) { o.PublicURL = url }
}

// WithValidator enables Twilio webhook signature verification.
func WithValidator(v *twiliowhatsapp.Validator) Option {
	return func(o *Opts) { o.Validator = v }
}

// Server wires the conversation engine to HTTP and to the messaging service.
type Server struct {
	opts       Opts
	engine     *conversation.Engine
	msgService messaging.Service
	store      store.Store
	templates  *messages.Catalog
	httpServer *http.Server
}

// NewServer creates a Server. The store is used for webhook deduplication.
func NewServer(engine *conversation.Engine, msgService messaging.Service, st store.Store, templates *messages.Catalog, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Validator == nil {
		slog.Warn("Server created without Twilio signature validator; webhook requests will not be authenticated")
	}
	return &Server{
		opts:       cfg,
		engine:     engine,
		msgService: msgService,
		store:      st,
		templates:  templates,
	}
}

// routes builds the HTTP mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/webhook/twilio", metrics.Middleware("/webhook/twilio", http.HandlerFunc(s.webhookHandler)))
	mux.HandleFunc("/templates", s.templatesHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// Run starts the messaging service, the response pump and the HTTP server.
// It blocks until the context is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	if err := s.msgService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	go s.responsePump(ctx)

	s.httpServer = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("WhatsCommerce API listening", "addr", s.opts.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Run: shutdown failed", "error", err)
		}
		if err := s.msgService.Stop(); err != nil {
			slog.Error("Server.Run: messaging service stop failed", "error", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	}
}

// responsePump consumes inbound messages delivered over the messaging
// service's response channel (the Whatsmeow transport) and runs them through
// the conversation engine. The Twilio transport replies synchronously from
// the webhook handler instead, so its channel stays empty.
func (s *Server) responsePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case resp, ok := <-s.msgService.Responses():
			if !ok {
				return
			}
			reply, err := s.engine.HandleMessage(ctx, resp.From, resp.Body, time.Now())
			if err != nil {
				slog.Error("Server.responsePump: engine failed", "error", err, "from", resp.From)
				continue
			}
			if _, err := s.msgService.SendMessage(ctx, resp.From, reply); err != nil {
				slog.Error("Server.responsePump: reply send failed", "error", err, "to", resp.From)
				metrics.RecordMessageSent(false)
				continue
			}
			metrics.RecordMessageSent(true)
		}
	}
}
