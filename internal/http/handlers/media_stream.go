package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clearskymed/voicedesk/internal/agent"
	"github.com/clearskymed/voicedesk/internal/conversation"
	"github.com/clearskymed/voicedesk/internal/records"
	"github.com/clearskymed/voicedesk/pkg/logging"
)

// SessionFactory builds a fresh call session for each media stream.
type SessionFactory func(callSID, callerPhone string) *conversation.Session

// streamEvent is one inbound frame on the media-stream websocket.
type streamEvent struct {
	Event string `json:"event"`
	Start *struct {
		StreamSID string `json:"streamSid"`
		CallSID   string `json:"callSid"`
	} `json:"start,omitempty"`
	Media *struct {
		Payload string `json:"payload"`
	} `json:"media,omitempty"`
	StreamSID string `json:"streamSid,omitempty"`
}

// MediaStreamHandler owns the duplex websocket a call's audio flows over. It
// relays audio between the caller and the voice agent, feeds transcripts into
// the call session, and persists the call record when the stream ends.
type MediaStreamHandler struct {
	upgrader   websocket.Upgrader
	dialer     agent.Dialer
	newSession SessionFactory
	callStore  *conversation.CallStore
	recStore   *records.Store
	logger     *logging.Logger
}

func NewMediaStreamHandler(dialer agent.Dialer, newSession SessionFactory, callStore *conversation.CallStore, recStore *records.Store, logger *logging.Logger) *MediaStreamHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &MediaStreamHandler{
		upgrader: websocket.Upgrader{
			// The signalling provider connects from its own infrastructure,
			// not a browser origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		dialer:     dialer,
		newSession: newSession,
		callStore:  callStore,
		recStore:   recStore,
		logger:     logger.WithComponent("media_stream"),
	}
}

// Handle processes GET /media-stream for one call from upgrade to teardown.
func (h *MediaStreamHandler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	h.logger.Info("media stream connected", "remote_ip", r.RemoteAddr)

	// Detached from the request context: teardown work (booking, record
	// persistence) must outlive the socket.
	ctx := context.Background()

	var (
		writeMu   sync.Mutex
		session   *conversation.Session
		bridge    agent.Bridge
		streamSID string
		started   time.Time
	)
	defer func() {
		if bridge != nil {
			_ = bridge.Close()
		}
		if session != nil {
			session.HandleDisconnect(ctx)
			h.finish(ctx, session, started)
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			h.logger.Info("media stream disconnected", "error", err)
			return
		}
		var evt streamEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			continue
		}

		switch evt.Event {
		case "start":
			if evt.Start == nil || session != nil {
				continue
			}
			streamSID = evt.Start.StreamSID
			started = time.Now().UTC()
			callerPhone := h.lookupCallerPhone(ctx, evt.Start.CallSID, streamSID)

			session = h.newSession(evt.Start.CallSID, callerPhone)
			session.HandleStart(streamSID, evt.Start.CallSID)

			bridge, err = h.dialer.Dial(ctx, evt.Start.CallSID, agent.Callbacks{
				OnAgentResponse: func(text string) {
					session.HandleAgentTurn(text)
				},
				OnUserTranscript: func(text string) {
					session.HandleUserTurn(ctx, text)
					if h.callStore != nil {
						_ = h.callStore.IncrementTurn(ctx, session.CallSID())
					}
				},
				OnAudio: func(audioB64 string) {
					writeMu.Lock()
					defer writeMu.Unlock()
					_ = conn.WriteJSON(map[string]any{
						"event":     "media",
						"streamSid": streamSID,
						"media":     map[string]string{"payload": audioB64},
					})
				},
				OnInterruption: func() {
					writeMu.Lock()
					defer writeMu.Unlock()
					_ = conn.WriteJSON(map[string]any{
						"event":     "clear",
						"streamSid": streamSID,
					})
				},
			})
			if err != nil {
				h.logger.Error("failed to start agent session", "error", err, "call_sid", evt.Start.CallSID)
				return
			}

		case "media":
			// Once the call is transferred the agent no longer hears the
			// caller; the conference does.
			if evt.Media == nil || bridge == nil || session.Transferred() {
				continue
			}
			if err := bridge.SendAudio(ctx, evt.Media.Payload); err != nil {
				h.logger.Warn("audio relay failed", "error", err)
			}

		case "stop":
			if session != nil {
				session.HandleStop(ctx)
			}
			return
		}
	}
}

// lookupCallerPhone reads the caller's number recorded by the webhook and
// marks the stream attached, best effort on both counts.
func (h *MediaStreamHandler) lookupCallerPhone(ctx context.Context, callSID, streamSID string) string {
	if h.callStore == nil {
		return ""
	}
	if err := h.callStore.MarkStreaming(ctx, callSID, streamSID); err != nil {
		h.logger.Warn("failed to mark stream attached", "error", err, "call_sid", callSID)
	}
	state, err := h.callStore.Get(ctx, callSID)
	if err != nil || state == nil {
		return ""
	}
	return state.CallerPhone
}

// finish closes the session and writes the durable call record.
func (h *MediaStreamHandler) finish(ctx context.Context, session *conversation.Session, started time.Time) {
	callSID := session.CallSID()
	transcript := session.Transcript()
	turnCount := session.TurnCount()
	transferred := session.Transferred()
	action := string(session.LastDecision().Action)

	session.Close()
	outcome := session.Outcome()

	if h.callStore != nil {
		if err := h.callStore.End(ctx, callSID, outcome, transferred); err != nil {
			h.logger.Warn("failed to finalize call state", "error", err, "call_sid", callSID)
		}
	}
	if h.recStore != nil {
		rec := &records.CallRecord{
			CallSID:     callSID,
			CallerPhone: h.lookupEndedCallerPhone(ctx, callSID),
			Outcome:     outcome,
			Action:      action,
			Transferred: transferred,
			TurnCount:   turnCount,
			Transcript:  transcript,
			StartedAt:   started,
			EndedAt:     time.Now().UTC(),
		}
		if err := h.recStore.Insert(ctx, rec); err != nil {
			h.logger.Error("failed to persist call record", "error", err, "call_sid", callSID)
		}
	}
}

func (h *MediaStreamHandler) lookupEndedCallerPhone(ctx context.Context, callSID string) string {
	if h.callStore == nil {
		return ""
	}
	state, err := h.callStore.Get(ctx, callSID)
	if err != nil || state == nil {
		return ""
	}
	return state.CallerPhone
}
