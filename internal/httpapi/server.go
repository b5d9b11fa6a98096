// Package httpapi exposes health checks and the Telegram webhook.
package httpapi

import (
	"context"
	"encoding/json"
	log "log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// WebhookPath is where Telegram pushes updates in webhook mode.
const WebhookPath = "/telegram/webhook"

type Pinger interface {
	Ping(ctx context.Context) error
}

type SessionCounter interface {
	Len(ctx context.Context) (int, error)
}

type Deps struct {
	Values   Pinger
	Sessions SessionCounter
	Webhook  http.Handler // optional
}

// NewRouter builds the HTTP surface.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	h := &healthHandler{values: d.Values, sessions: d.Sessions}
	r.Get("/health", h.health)

	if d.Webhook != nil {
		r.Method(http.MethodPost, WebhookPath, d.Webhook)
	}
	return r
}

type healthHandler struct {
	values   Pinger
	sessions SessionCounter
}

func (h *healthHandler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := map[string]any{"status": "healthy"}
	code := http.StatusOK

	if err := h.values.Ping(ctx); err != nil {
		log.Error("Health check failed", "err", err)
		status["status"] = "degraded"
		status["database"] = "unreachable"
		code = http.StatusServiceUnavailable
	} else {
		status["database"] = "ok"
	}

	if n, err := h.sessions.Len(ctx); err == nil {
		status["sessions"] = n
	}

	writeJSON(w, code, status)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("Encode response", "err", err)
	}
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
