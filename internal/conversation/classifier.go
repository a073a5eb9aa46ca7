package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/clearskymed/voicedesk/internal/llm"
	"github.com/clearskymed/voicedesk/internal/observability/metrics"
	"github.com/clearskymed/voicedesk/pkg/logging"
)

// Action is the terminal intent detected for a call.
type Action string

const (
	ActionNewAppointment Action = "new_appointment"
	ActionReschedule     Action = "reschedule"
	ActionHumanHandoff   Action = "human_handoff"
)

// Decision is one classifier verdict for the conversation so far.
type Decision struct {
	Action                       Action `json:"action"`
	Reason                       string `json:"reason"`
	ExistingAppointmentMentioned bool   `json:"existing_appointment_mentioned"`
}

// failOpenDecision is returned when classification cannot complete. Defaulting
// to a new appointment keeps the call moving instead of going silent.
func failOpenDecision() Decision {
	return Decision{
		Action:                       ActionNewAppointment,
		Reason:                       "error in detection",
		ExistingAppointmentMentioned: false,
	}
}

// Classifier infers the required action from the transcript on every user
// turn. Classification never fails upward: any transport or parse error is
// absorbed into the fail-open default and counted separately.
type Classifier struct {
	caller  llm.FunctionCaller
	metrics *metrics.CallMetrics
	logger  *logging.Logger
}

func NewClassifier(caller llm.FunctionCaller, m *metrics.CallMetrics, logger *logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifier{
		caller:  caller,
		metrics: m,
		logger:  logger.WithComponent("classifier"),
	}
}

// Classify runs one forced-choice detection over the full conversation.
func (c *Classifier) Classify(ctx context.Context, log *Log) Decision {
	raw, err := c.caller.Invoke(ctx, llm.Invocation{
		Prompt:      detectActionPrompt(log),
		Tool:        detectActionTool(),
		MaxTokens:   256,
		Temperature: 0,
	})
	if err != nil {
		c.logger.Error("action detection failed, defaulting to new appointment", "error", err)
		c.metrics.ObserveClassifierFailOpen()
		c.metrics.ObserveClassification(string(ActionNewAppointment), "fail_open")
		return failOpenDecision()
	}

	d, err := parseDecision(raw)
	if err != nil {
		c.logger.Error("action detection returned malformed arguments", "error", err)
		c.metrics.ObserveClassifierFailOpen()
		c.metrics.ObserveClassification(string(ActionNewAppointment), "fail_open")
		return failOpenDecision()
	}

	c.metrics.ObserveClassification(string(d.Action), "ok")
	c.logger.Debug("action detected", "action", d.Action, "reason", d.Reason,
		"existing_appointment_mentioned", d.ExistingAppointmentMentioned)
	return d
}

func parseDecision(raw json.RawMessage) (Decision, error) {
	var d Decision
	if err := json.Unmarshal(raw, &d); err != nil {
		return Decision{}, fmt.Errorf("decode decision: %w", err)
	}
	switch d.Action {
	case ActionNewAppointment, ActionReschedule, ActionHumanHandoff:
		return d, nil
	default:
		return Decision{}, fmt.Errorf("unknown action %q", d.Action)
	}
}
