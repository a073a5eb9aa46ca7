package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearskymed/voicedesk/internal/observability/metrics"
)

func newTestMetrics(t *testing.T) *metrics.CallMetrics {
	t.Helper()
	return metrics.NewCallMetrics(prometheus.NewRegistry())
}

func TestClassifyParsesForcedToolOutput(t *testing.T) {
	caller := &fakeCaller{response: json.RawMessage(`{
		"action": "reschedule",
		"reason": "caller wants to move an existing appointment",
		"existing_appointment_mentioned": true
	}`)}
	classifier := NewClassifier(caller, newTestMetrics(t), nil)

	log := NewLog()
	log.AddUserTurn("I need to change my appointment to next week")

	d := classifier.Classify(context.Background(), log)
	assert.Equal(t, ActionReschedule, d.Action)
	assert.True(t, d.ExistingAppointmentMentioned)

	require.Len(t, caller.calls, 1)
	assert.Equal(t, "detect_appointment_action", caller.calls[0].Tool.Name)
	assert.Contains(t, caller.calls[0].Prompt, "user: I need to change my appointment to next week")
}

func TestClassifyFailsOpenOnTransportError(t *testing.T) {
	caller := &fakeCaller{err: errors.New("model unavailable")}
	classifier := NewClassifier(caller, newTestMetrics(t), nil)

	log := NewLog()
	log.AddUserTurn("hello")

	d := classifier.Classify(context.Background(), log)
	assert.Equal(t, ActionNewAppointment, d.Action)
	assert.Equal(t, "error in detection", d.Reason)
	assert.False(t, d.ExistingAppointmentMentioned)
}

func TestClassifyFailsOpenOnMalformedArguments(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"action": "transfer_to_mars", "reason": "", "existing_appointment_mentioned": false}`,
		`{}`,
	} {
		caller := &fakeCaller{response: json.RawMessage(raw)}
		classifier := NewClassifier(caller, newTestMetrics(t), nil)

		log := NewLog()
		log.AddUserTurn("hello")

		d := classifier.Classify(context.Background(), log)
		assert.Equal(t, ActionNewAppointment, d.Action, "raw=%s", raw)
		assert.Equal(t, "error in detection", d.Reason)
	}
}

func TestClassifyNeverPanicsOrErrorsToCaller(t *testing.T) {
	// Classification must always produce a usable decision so a single
	// misfire never blocks the call from progressing.
	caller := &fakeCaller{err: errors.New("boom")}
	classifier := NewClassifier(caller, newTestMetrics(t), nil)

	log := NewLog()
	for i := 0; i < 5; i++ {
		log.AddUserTurn("turn")
		d := classifier.Classify(context.Background(), log)
		require.NotEmpty(t, d.Action)
	}
}
