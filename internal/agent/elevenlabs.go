package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/clearskymed/voicedesk/pkg/logging"
)

const defaultConvAIBaseURL = "wss://api.elevenlabs.io/v1/convai/conversation"

// ElevenLabsDialer opens conversational-agent sessions over the ConvAI
// websocket protocol.
type ElevenLabsDialer struct {
	APIKey  string
	AgentID string
	// BaseURL overrides the upstream endpoint, used by tests.
	BaseURL string
	Logger  *logging.Logger
}

func NewElevenLabsDialer(apiKey, agentID string, logger *logging.Logger) (*ElevenLabsDialer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("agent: api key is required")
	}
	if strings.TrimSpace(agentID) == "" {
		return nil, fmt.Errorf("agent: agent id is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ElevenLabsDialer{
		APIKey:  apiKey,
		AgentID: agentID,
		BaseURL: defaultConvAIBaseURL,
		Logger:  logger.WithComponent("agent"),
	}, nil
}

// Dial connects a new agent session for one call and starts its read loop.
func (d *ElevenLabsDialer) Dial(ctx context.Context, callSID string, cb Callbacks) (Bridge, error) {
	wsURL := d.BaseURL + "?agent_id=" + d.AgentID
	header := http.Header{}
	header.Set("xi-api-key", d.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("agent: dial conversation: %w", err)
	}

	b := &elevenLabsBridge{
		conn:   conn,
		cb:     cb,
		logger: d.Logger.WithCall(callSID),
		closed: make(chan struct{}),
	}
	go b.readLoop()
	return b, nil
}

type elevenLabsBridge struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	cb     Callbacks
	logger *logging.Logger

	closed    chan struct{}
	closeOnce sync.Once
}

// convAIEvent is the envelope for every server-to-client ConvAI message.
type convAIEvent struct {
	Type string `json:"type"`

	AgentResponseEvent *struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event,omitempty"`

	UserTranscriptEvent *struct {
		UserTranscript string `json:"user_transcript"`
	} `json:"user_transcription_event,omitempty"`

	AudioEvent *struct {
		AudioBase64 string `json:"audio_base_64"`
	} `json:"audio_event,omitempty"`

	PingEvent *struct {
		EventID int `json:"event_id"`
	} `json:"ping_event,omitempty"`
}

func (b *elevenLabsBridge) readLoop() {
	defer b.closeConn()
	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			select {
			case <-b.closed:
			default:
				b.logger.Warn("agent connection closed", "error", err)
			}
			return
		}

		var evt convAIEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			b.logger.Warn("unparseable agent event", "error", err)
			continue
		}

		switch evt.Type {
		case "agent_response":
			if evt.AgentResponseEvent != nil && b.cb.OnAgentResponse != nil {
				b.cb.OnAgentResponse(evt.AgentResponseEvent.AgentResponse)
			}
		case "user_transcript":
			if evt.UserTranscriptEvent != nil && b.cb.OnUserTranscript != nil {
				b.cb.OnUserTranscript(evt.UserTranscriptEvent.UserTranscript)
			}
		case "audio":
			if evt.AudioEvent != nil && b.cb.OnAudio != nil {
				b.cb.OnAudio(evt.AudioEvent.AudioBase64)
			}
		case "interruption":
			if b.cb.OnInterruption != nil {
				b.cb.OnInterruption()
			}
		case "ping":
			if evt.PingEvent != nil {
				b.pong(evt.PingEvent.EventID)
			}
		}
	}
}

func (b *elevenLabsBridge) pong(eventID int) {
	msg := map[string]any{"type": "pong", "event_id": eventID}
	if err := b.writeJSON(msg); err != nil {
		b.logger.Warn("pong failed", "error", err)
	}
}

// SendAudio forwards one base64 caller audio chunk to the agent.
func (b *elevenLabsBridge) SendAudio(_ context.Context, audioB64 string) error {
	select {
	case <-b.closed:
		return fmt.Errorf("agent: session closed")
	default:
	}
	return b.writeJSON(map[string]any{"user_audio_chunk": audioB64})
}

func (b *elevenLabsBridge) writeJSON(v any) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.conn.WriteJSON(v)
}

func (b *elevenLabsBridge) closeConn() {
	b.closeOnce.Do(func() {
		close(b.closed)
		_ = b.conn.Close()
	})
}

// Close tears the agent session down.
func (b *elevenLabsBridge) Close() error {
	b.closeConn()
	return nil
}
