// Package gateway implements the webhook HTTP surface: signature checks,
// payload decryption, envelope normalization, deduplication, and background
// dispatch.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"botpilot/internal/lark"
	"botpilot/internal/metrics"
)

const maxBodyBytes = 1 << 20 // 1MB

// Server hosts the platform callback endpoint plus health and metrics.
type Server struct {
	host         string
	port         int
	callbackPath string
	encryptKey   string
	verifyToken  string
	dispatcher   *Dispatcher
	logger       *slog.Logger
	httpServer   *http.Server
}

type ServerConfig struct {
	Host              string
	Port              int
	CallbackPath      string
	EncryptKey        string // signing secret and AES key; empty disables verification
	VerificationToken string // app token checked against the envelope; empty disables the check
	Dispatcher        *Dispatcher
	Logger            *slog.Logger
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.CallbackPath == "" {
		cfg.CallbackPath = "/callback"
	}
	return &Server{
		host:         cfg.Host,
		port:         cfg.Port,
		callbackPath: cfg.CallbackPath,
		encryptKey:   cfg.EncryptKey,
		verifyToken:  cfg.VerificationToken,
		dispatcher:   cfg.Dispatcher,
		logger:       cfg.Logger,
	}
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully and waits for in-flight event tasks.
func (s *Server) Start(ctx context.Context) error {
	r := chi.NewRouter()
	r.Post(s.callbackPath, s.handleCallback)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"status": "ok"})
	})
	r.Get("/metrics", metrics.Collector.Handler())

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("gateway listening", "addr", s.httpServer.Addr, "path", s.callbackPath)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("gateway shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.httpServer.Shutdown(shutdownCtx)
		s.dispatcher.Wait()
		return err
	case err := <-errCh:
		return fmt.Errorf("gateway server: %w", err)
	}
}

// handleCallback processes one webhook delivery. The platform retries slow
// acks, so everything beyond dedup insertion happens in the background; the
// response is always a structured JSON body with HTTP 200.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, map[string]any{"code": 400, "msg": "cannot read body"})
		return
	}
	defer r.Body.Close()

	metrics.EventsReceived.Inc()

	if sig := r.Header.Get("X-Lark-Signature"); sig != "" {
		timestamp := r.Header.Get("X-Lark-Request-Timestamp")
		nonce := r.Header.Get("X-Lark-Request-Nonce")
		if !lark.VerifySignature(timestamp, nonce, s.encryptKey, body, sig) {
			s.logger.Warn("signature verification failed")
			metrics.EventsRejected.Inc()
			writeJSON(w, map[string]any{"code": 401, "msg": "signature verification failed"})
			return
		}
	}

	var env lark.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		s.logger.Error("invalid callback json", "error", err)
		writeJSON(w, map[string]any{"code": 400, "msg": "invalid json"})
		return
	}

	if env.Encrypt != "" {
		if s.encryptKey == "" {
			s.logger.Error("encrypted payload but no encrypt key configured")
			metrics.EventsRejected.Inc()
			writeJSON(w, map[string]any{"code": 400, "msg": "encrypt key not configured"})
			return
		}
		plain, err := lark.Decrypt(s.encryptKey, env.Encrypt)
		if err != nil {
			s.logger.Error("payload decryption failed", "error", err)
			metrics.EventsRejected.Inc()
			writeJSON(w, map[string]any{"code": 400, "msg": "decrypt failed"})
			return
		}
		env = lark.Envelope{}
		if err := json.Unmarshal(plain, &env); err != nil {
			s.logger.Error("invalid decrypted json", "error", err)
			writeJSON(w, map[string]any{"code": 400, "msg": "invalid json"})
			return
		}
	}

	if s.verifyToken != "" && env.VerificationToken() != s.verifyToken {
		s.logger.Warn("verification token mismatch")
		metrics.EventsRejected.Inc()
		writeJSON(w, map[string]any{"code": 401, "msg": "verification token mismatch"})
		return
	}

	// Webhook-registration handshake: echo the challenge verbatim and stop.
	if env.Challenge != "" {
		s.logger.Info("url verification challenge")
		writeJSON(w, map[string]any{"challenge": env.Challenge})
		return
	}

	switch {
	case env.Header != nil:
		s.handleV2(r.Context(), &env)
	case len(env.Event) > 0:
		s.handleV1(r.Context(), &env)
	}

	writeJSON(w, map[string]any{"code": 0, "msg": "ok"})
}

func (s *Server) handleV2(ctx context.Context, env *lark.Envelope) {
	s.logger.Info("event received", "event_type", env.Header.EventType, "event_id", env.Header.EventID)

	if env.Header.EventType != lark.EventMessageReceive {
		s.logger.Debug("unhandled event type", "event_type", env.Header.EventType)
		return
	}

	evt, err := lark.ParseEventV2(env.Header.EventID, env.Event)
	if err != nil {
		s.logger.Error("cannot parse message event", "error", err)
		return
	}
	s.dispatcher.Dispatch(ctx, evt)
}

func (s *Server) handleV1(ctx context.Context, env *lark.Envelope) {
	if env.Type != "message" {
		s.logger.Debug("unhandled legacy event type", "event_type", env.Type)
		return
	}

	evt, err := lark.ParseEventV1(env.Event)
	if err != nil {
		s.logger.Error("cannot parse legacy event", "error", err)
		return
	}
	s.dispatcher.Dispatch(ctx, evt)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}
