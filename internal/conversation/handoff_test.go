package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingTransfer struct {
	announceErr error
	dialErr     error
	dialCalls   int
}

func (f *failingTransfer) AnnounceAndJoinConference(_ context.Context, callSID, announcement, conference string) error {
	return f.announceErr
}

func (f *failingTransfer) DialIntoConference(_ context.Context, to, announcement, conference string) (string, error) {
	f.dialCalls++
	if f.dialErr != nil {
		return "", f.dialErr
	}
	return "leg-1", nil
}

type fakeAlerter struct {
	calls int
	tail  []string
}

func (a *fakeAlerter) NotifyHandoff(_ context.Context, callSID, callerPhone, reason string, transcriptTail []string) error {
	a.calls++
	a.tail = transcriptTail
	return nil
}

func TestHandoffStillDialsStaffWhenCallerMoveFails(t *testing.T) {
	// The caller was already told a transfer is happening; the conference
	// join is still attempted rather than aborting silently.
	transfer := &failingTransfer{announceErr: errors.New("call update rejected")}
	h := NewHandoffCoordinator(transfer, nil, "+15559998888", newTestMetrics(t), nil)

	h.Trigger(context.Background(), "CA123", "+15550001111", "caller asked for a human", NewLog())
	assert.Equal(t, 1, transfer.dialCalls)
}

func TestHandoffAlertCarriesTranscriptTail(t *testing.T) {
	transfer := &failingTransfer{}
	alerter := &fakeAlerter{}
	h := NewHandoffCoordinator(transfer, alerter, "+15559998888", newTestMetrics(t), nil)

	log := NewLog()
	log.AddAgentTurn("How can I help?")
	log.AddUserTurn("I'm having severe chest pain")

	h.Trigger(context.Background(), "CA123", "+15550001111", "medical emergency", log)
	require.Equal(t, 1, alerter.calls)
	assert.Equal(t, []string{"agent: How can I help?", "user: I'm having severe chest pain"}, alerter.tail)
}

func TestHandoffOriginationFailureDoesNotPanic(t *testing.T) {
	transfer := &failingTransfer{dialErr: errors.New("carrier rejected")}
	h := NewHandoffCoordinator(transfer, nil, "+15559998888", newTestMetrics(t), nil)

	h.Trigger(context.Background(), "CA123", "+15550001111", "technical issue", NewLog())
	assert.Equal(t, 1, transfer.dialCalls)
}
