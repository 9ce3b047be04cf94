package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/insightloop/engine/internal/orchestrator"
)

// ServeCmd starts the HTTP server that turns POSTed messages into
// orchestrated turns and streams their events back as SSE, grounded on
// the teacher's pkg/a2a/server.go handleMessageStream (SSE headers,
// http.Flusher, one "event: <kind>\ndata: <json>\n\n" frame per event).
type ServeCmd struct {
	Addr string `help:"Address to listen on." default:":8080"`
}

type turnRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	e, err := build(ctx, cli.Config, cli.EnvFile)
	if err != nil {
		return err
	}
	defer e.Close(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/v1/turns", handleTurns(e.orc))
	if e.obs.Metrics() != nil {
		mux.Handle("/metrics", e.obs.Metrics().Handler())
	}

	srv := &http.Server{Addr: c.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.GracefulShutdown())
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("enginectl: listening", "addr", c.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleTurns accepts one JSON turnRequest per POST and streams the
// resulting eventbus.Bus back to the caller as SSE.
func handleTurns(orc *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req turnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.Message == "" {
			http.Error(w, "message is required", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		bus := orc.HandleTurn(r.Context(), orchestrator.Request{
			SessionID: req.SessionID,
			UserID:    req.UserID,
			Message:   req.Message,
		})

		for ev := range bus.Events() {
			data, err := json.Marshal(ev.Data)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\n", ev.Kind)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
