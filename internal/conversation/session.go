package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/clearskymed/voicedesk/internal/observability/metrics"
	"github.com/clearskymed/voicedesk/pkg/logging"
)

// SessionState is a call session's lifecycle phase.
type SessionState string

const (
	// StateOpen: stream active, relaying audio, classifying on each user turn.
	StateOpen SessionState = "open"
	// StateHandoffTriggered: warm transfer fired; normal relay is over.
	StateHandoffTriggered SessionState = "handoff_triggered"
	// StateClosing: stream ended or disconnected; terminal workflow running.
	StateClosing SessionState = "closing"
	// StateClosed: teardown complete.
	StateClosed SessionState = "closed"
)

// Outcome labels for completed calls.
const (
	OutcomeScheduled   = "scheduled"
	OutcomeRescheduled = "rescheduled"
	OutcomeHandoff     = "handoff"
	OutcomeNoBooking   = "no_booking"
	OutcomeAbandoned   = "abandoned"
)

// Session owns one live call. It serializes the transport's ordered events,
// drives the classifier on every user turn, and dispatches exactly one
// terminal workflow per call. Sessions share no mutable state with each other.
//
// The mutex exists because transcript callbacks arrive from the agent bridge
// goroutine while stream events arrive from the websocket read loop.
type Session struct {
	mu sync.Mutex

	callSID     string
	streamSID   string
	callerPhone string

	state   SessionState
	log     *Log
	last    Decision
	outcome string

	// Sticky per-call flags: once set, never cleared. Handoff is checked
	// ahead of reschedule on every dispatch, so handoff dominates.
	handoffTriggered    bool
	rescheduleRequested bool
	workflowDispatched  bool

	classifier *Classifier
	workflows  *Workflows
	handoff    *HandoffCoordinator
	metrics    *metrics.CallMetrics
	logger     *logging.Logger
	now        func() time.Time
}

// SessionConfig wires a session's collaborators.
type SessionConfig struct {
	CallSID     string
	CallerPhone string
	Classifier  *Classifier
	Workflows   *Workflows
	Handoff     *HandoffCoordinator
	Metrics     *metrics.CallMetrics
	Logger      *logging.Logger
	Now         func() time.Time
}

func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		callSID:     cfg.CallSID,
		callerPhone: cfg.CallerPhone,
		state:       StateOpen,
		log:         NewLog(),
		outcome:     OutcomeAbandoned,
		classifier:  cfg.Classifier,
		workflows:   cfg.Workflows,
		handoff:     cfg.Handoff,
		metrics:     cfg.Metrics,
		logger:      logger.WithComponent("session").WithCall(cfg.CallSID),
		now:         now,
	}
}

// State returns the current lifecycle phase.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transferred reports whether the warm transfer fired for this call.
func (s *Session) Transferred() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handoffTriggered
}

// LastDecision returns the most recent classifier verdict.
func (s *Session) LastDecision() Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Transcript returns the rendered conversation so far.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Render()
}

// TurnCount reports how many turns the transcript holds.
func (s *Session) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Len()
}

// CallSID returns the call identifier the session is bound to.
func (s *Session) CallSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callSID
}

// HandleStart records the media stream identifiers from the stream's start
// event. The call SID carried by the event wins over the one the session was
// created with, when present.
func (s *Session) HandleStart(streamSID, callSID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamSID = streamSID
	if callSID != "" {
		s.callSID = callSID
		s.logger = s.logger.WithCall(callSID)
	}
	s.logger.Info("media stream started", "stream_sid", streamSID)
}

// HandleAgentTurn appends an agent utterance to the transcript. Agent turns
// are not classified.
func (s *Session) HandleAgentTurn(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return
	}
	s.log.AddAgentTurn(text)
	s.logger.Debug("agent turn", "text", text)
}

// HandleUserTurn appends a caller utterance and classifies the conversation.
// A human-handoff verdict fires the warm transfer exactly once; a reschedule
// verdict latches the sticky reschedule flag and keeps the session open.
func (s *Session) HandleUserTurn(ctx context.Context, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return
	}
	s.log.AddUserTurn(text)
	s.logger.Debug("user turn", "text", text)

	d := s.classifier.Classify(ctx, s.log)
	s.last = d

	switch d.Action {
	case ActionHumanHandoff:
		s.triggerHandoffLocked(ctx, d.Reason)
	case ActionReschedule:
		if !s.rescheduleRequested {
			s.logger.Info("reschedule intent latched", "reason", d.Reason)
		}
		s.rescheduleRequested = true
	}
}

// triggerHandoffLocked fires the one-shot warm transfer. Caller holds s.mu.
func (s *Session) triggerHandoffLocked(ctx context.Context, reason string) {
	if s.handoffTriggered || s.workflowDispatched {
		return
	}
	s.handoffTriggered = true
	s.workflowDispatched = true
	s.state = StateHandoffTriggered
	s.outcome = OutcomeHandoff
	s.handoff.Trigger(ctx, s.callSID, s.callerPhone, reason, s.log)
}

// HandleStop processes the stream's explicit stop event: the session closes
// and runs its booking workflow, reschedule if the sticky flag was latched,
// otherwise a new appointment.
func (s *Session) HandleStop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return
	}
	s.state = StateClosing
	s.dispatchBookingLocked(ctx)
}

// HandleDisconnect processes a transport drop. The booking workflow still
// runs best-effort, but never when a handoff already fired: a disconnect
// during an active transfer must not also attempt to book.
func (s *Session) HandleDisconnect(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateOpen:
		s.state = StateClosing
		s.dispatchBookingLocked(ctx)
	case StateHandoffTriggered:
		s.state = StateClosing
	}
}

// dispatchBookingLocked runs the terminal booking workflow at most once.
// Caller holds s.mu.
func (s *Session) dispatchBookingLocked(ctx context.Context) {
	if s.workflowDispatched {
		return
	}
	s.workflowDispatched = true

	if s.rescheduleRequested {
		if s.workflows.Reschedule(ctx, s.log, s.now()) {
			s.outcome = OutcomeRescheduled
		} else {
			s.outcome = OutcomeNoBooking
		}
		return
	}
	if s.workflows.Schedule(ctx, s.log, s.now()) {
		s.outcome = OutcomeScheduled
	} else {
		s.outcome = OutcomeNoBooking
	}
}

// Close finishes teardown. Always safe to call, runs once, and is attempted
// regardless of whether the terminal workflow succeeded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed
	s.metrics.ObserveCallCompleted(s.outcome)
	s.logger.Info("session closed", "outcome", s.outcome, "turns", s.log.Len())
	s.log.Clear()
}

// Outcome returns the call's terminal outcome label.
func (s *Session) Outcome() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}
