// Package api exposes the engine over HTTP: the WhatsApp webhook, health
// check and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/salonflow/alexis-engine/internal/engine"
	"github.com/salonflow/alexis-engine/pkg/logging"
)

// turnProcessor is the engine surface the webhook needs.
type turnProcessor interface {
	ProcessMessage(ctx context.Context, salonID, clientPhone, text string, sender engine.SenderType) (engine.TurnResult, error)
}

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	Engine         turnProcessor
	MetricsHandler http.Handler
}

// webhookRequest is one inbound WhatsApp message delivery.
type webhookRequest struct {
	SalonID     string `json:"salonId"`
	ClientPhone string `json:"clientPhone"`
	Text        string `json:"text"`
	Sender      string `json:"sender"`
}

// webhookResponse tells the channel adapter what, if anything, to send back.
type webhookResponse struct {
	Reply      string `json:"reply,omitempty"`
	Replied    bool   `json:"replied"`
	Suppressed string `json:"suppressed,omitempty"`
}

// New creates the HTTP router.
func New(cfg *Config) http.Handler {
	if cfg.Engine == nil {
		panic("api: engine cannot be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Post("/webhook/whatsapp", handleWebhook(cfg.Engine, logger))
	return r
}

func handleWebhook(eng turnProcessor, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req webhookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
			return
		}
		if req.SalonID == "" || req.ClientPhone == "" || req.Text == "" {
			http.Error(w, `{"error":"salonId, clientPhone and text are required"}`, http.StatusBadRequest)
			return
		}

		sender := engine.SenderClient
		if req.Sender == string(engine.SenderAgent) {
			sender = engine.SenderAgent
		}

		res, err := eng.ProcessMessage(r.Context(), req.SalonID, req.ClientPhone, req.Text, sender)
		if err != nil {
			logger.Error("turn processing failed",
				"salon_id", req.SalonID,
				"conversation_id", res.ConversationID,
				"error", err.Error(),
			)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(webhookResponse{
			Reply:      res.Reply,
			Replied:    res.Replied,
			Suppressed: res.Suppressed,
		})
	}
}
