// Package router assembles the HTTP surface: the telephony webhook, the
// media-stream websocket, the call-record archive, health, and metrics.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clearskymed/voicedesk/internal/http/handlers"
	httpmiddleware "github.com/clearskymed/voicedesk/internal/http/middleware"
	"github.com/clearskymed/voicedesk/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	VoiceWebhook   *handlers.VoiceWebhookHandler
	MediaStream    *handlers.MediaStreamHandler
	CallRecords    *handlers.CallRecordsHandler
	MetricsHandler http.Handler

	// Webhook rate limit, requests/sec per IP with the given burst.
	WebhookRateLimit float64
	WebhookBurst     int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// The websocket upgrade skips the request logger: the connection lives
	// for the whole call and a per-request line would be misleading.
	if cfg.MediaStream != nil {
		r.Get("/media-stream", cfg.MediaStream.Handle)
	}

	r.Group(func(g chi.Router) {
		if cfg.Logger != nil {
			g.Use(httpmiddleware.RequestLogger(cfg.Logger))
		}
		if cfg.WebhookRateLimit > 0 {
			g.Use(httpmiddleware.RateLimit(cfg.WebhookRateLimit, cfg.WebhookBurst))
		}
		if cfg.VoiceWebhook != nil {
			g.Post("/webhooks/twilio/voice", cfg.VoiceWebhook.HandleInboundCall)
		}
		if cfg.CallRecords != nil {
			g.Get("/admin/calls", cfg.CallRecords.ListCalls)
			g.Get("/admin/calls/{callSID}", cfg.CallRecords.GetCall)
		}
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
