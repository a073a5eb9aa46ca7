package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clearskymed/voicedesk/internal/conversation"
	"github.com/clearskymed/voicedesk/internal/messaging"
	"github.com/clearskymed/voicedesk/internal/observability/metrics"
	"github.com/clearskymed/voicedesk/pkg/logging"
)

// VoiceWebhookHandler answers the inbound-call webhook: it validates the
// request came from the telephony provider, records the call in Redis, and
// redirects the call's audio into the media-stream endpoint.
type VoiceWebhookHandler struct {
	authToken     string
	publicBaseURL string
	store         *conversation.CallStore
	metrics       *metrics.CallMetrics
	logger        *logging.Logger
}

func NewVoiceWebhookHandler(authToken, publicBaseURL string, store *conversation.CallStore, m *metrics.CallMetrics, logger *logging.Logger) *VoiceWebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &VoiceWebhookHandler{
		authToken:     authToken,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		store:         store,
		metrics:       m,
		logger:        logger.WithComponent("voice_webhook"),
	}
}

// HandleInboundCall processes POST /webhooks/twilio/voice.
func (h *VoiceWebhookHandler) HandleInboundCall(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.metrics.ObserveWebhookLatency("/webhooks/twilio/voice", time.Since(start).Seconds())
	}()

	if h.authToken != "" {
		webhookURL := h.publicBaseURL + "/webhooks/twilio/voice"
		if !messaging.ValidateTwilioSignature(r, h.authToken, webhookURL) {
			h.logger.Warn("rejected webhook with invalid signature", "remote_ip", r.RemoteAddr)
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
	}

	req, err := messaging.ParseVoiceWebhook(r)
	if err != nil || req.CallSid == "" {
		h.logger.Warn("malformed voice webhook", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	h.logger.Info("incoming call",
		"call_sid", req.CallSid,
		"from", messaging.MaskPhone(req.From),
		"status", req.CallStatus,
	)

	if h.store != nil {
		state := &conversation.CallState{
			CallSID:     req.CallSid,
			CallerPhone: req.From,
			OfficePhone: req.To,
			Status:      conversation.CallStatusRinging,
			StartedAt:   time.Now().UTC(),
		}
		if err := h.store.Save(r.Context(), state); err != nil {
			// The call still proceeds; Redis is observability, not control.
			h.logger.Error("failed to record call state", "error", err, "call_sid", req.CallSid)
		}
	}

	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprint(w, connectStreamTwiML(h.streamURL(r)))
}

// streamURL derives the websocket endpoint the call's audio is redirected to.
func (h *VoiceWebhookHandler) streamURL(r *http.Request) string {
	host := r.Host
	if h.publicBaseURL != "" {
		if u, err := url.Parse(h.publicBaseURL); err == nil && u.Host != "" {
			host = u.Host
		}
	}
	return "wss://" + host + "/media-stream"
}

func connectStreamTwiML(streamURL string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><Response><Connect><Stream url="` + streamURL + `"/></Connect></Response>`
}
