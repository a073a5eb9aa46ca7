package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CallState is the Redis-backed record of a live call, written by the webhook
// when the call arrives and updated as the session progresses. It exists so
// operators can inspect in-flight calls and so a restarted process can see
// what was live.
type CallState struct {
	CallSID        string    `json:"call_sid"`
	StreamSID      string    `json:"stream_sid,omitempty"`
	CallerPhone    string    `json:"caller_phone"`
	OfficePhone    string    `json:"office_phone"`
	Status         string    `json:"status"`
	TurnCount      int       `json:"turn_count"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	Outcome        string    `json:"outcome,omitempty"`
	Transferred    bool      `json:"transferred,omitempty"`
}

const (
	callKeyPrefix = "voice:call:"

	CallStatusRinging   = "ringing"
	CallStatusStreaming = "streaming"
	CallStatusEnded     = "ended"
)

// CallStore manages live call state in Redis. Entries expire on their own so
// abandoned calls never need explicit cleanup.
type CallStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCallStore(rdb *redis.Client, ttl time.Duration) *CallStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CallStore{rdb: rdb, ttl: ttl}
}

func callKey(callSID string) string {
	return callKeyPrefix + callSID
}

// Save persists or updates call state.
func (s *CallStore) Save(ctx context.Context, state *CallState) error {
	if state == nil || state.CallSID == "" {
		return fmt.Errorf("call state: call_sid required")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("call state: marshal: %w", err)
	}
	return s.rdb.Set(ctx, callKey(state.CallSID), data, s.ttl).Err()
}

// Get retrieves call state. Unknown calls return (nil, nil).
func (s *CallStore) Get(ctx context.Context, callSID string) (*CallState, error) {
	data, err := s.rdb.Get(ctx, callKey(callSID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("call state: get: %w", err)
	}
	var state CallState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("call state: unmarshal: %w", err)
	}
	return &state, nil
}

// MarkStreaming records the media stream attaching to the call.
func (s *CallStore) MarkStreaming(ctx context.Context, callSID, streamSID string) error {
	state, err := s.Get(ctx, callSID)
	if err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("call state: call %s not found", callSID)
	}
	state.StreamSID = streamSID
	state.Status = CallStatusStreaming
	state.LastActivityAt = time.Now().UTC()
	return s.Save(ctx, state)
}

// IncrementTurn bumps the turn counter and refreshes last activity.
func (s *CallStore) IncrementTurn(ctx context.Context, callSID string) error {
	state, err := s.Get(ctx, callSID)
	if err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("call state: call %s not found", callSID)
	}
	state.TurnCount++
	state.LastActivityAt = time.Now().UTC()
	return s.Save(ctx, state)
}

// End marks the call finished with its terminal outcome.
func (s *CallStore) End(ctx context.Context, callSID, outcome string, transferred bool) error {
	state, err := s.Get(ctx, callSID)
	if err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("call state: call %s not found", callSID)
	}
	state.Status = CallStatusEnded
	state.Outcome = outcome
	state.Transferred = transferred
	state.LastActivityAt = time.Now().UTC()
	return s.Save(ctx, state)
}
