package conversation

import (
	"context"

	"github.com/clearskymed/voicedesk/internal/observability/metrics"
	"github.com/clearskymed/voicedesk/pkg/logging"
)

const handoffTranscriptTailTurns = 6

// TransferClient re-parents live call legs into a named conference.
type TransferClient interface {
	// AnnounceAndJoinConference plays an announcement on the identified call
	// and moves it into the conference.
	AnnounceAndJoinConference(ctx context.Context, callSID, announcement, conference string) error
	// DialIntoConference originates a new outbound leg that hears the
	// announcement and joins the conference.
	DialIntoConference(ctx context.Context, to, announcement, conference string) (string, error)
}

// HandoffAlerter notifies staff out of band that a transfer happened.
type HandoffAlerter interface {
	NotifyHandoff(ctx context.Context, callSID, callerPhone, reason string, transcriptTail []string) error
}

// HandoffCoordinator performs the warm transfer of a live call to a human
// line: caller into a conference keyed by the call SID, then a staff leg
// dialed into the same conference carrying the detection reason. The transfer
// is one-shot per call; the session enforces that, this type just executes it.
type HandoffCoordinator struct {
	transfer    TransferClient
	alerter     HandoffAlerter
	staffNumber string
	metrics     *metrics.CallMetrics
	logger      *logging.Logger
}

func NewHandoffCoordinator(transfer TransferClient, alerter HandoffAlerter, staffNumber string, m *metrics.CallMetrics, logger *logging.Logger) *HandoffCoordinator {
	if logger == nil {
		logger = logging.Default()
	}
	return &HandoffCoordinator{
		transfer:    transfer,
		alerter:     alerter,
		staffNumber: staffNumber,
		metrics:     m,
		logger:      logger.WithComponent("handoff"),
	}
}

// Trigger runs the warm transfer. It never returns an error: a failed
// origination or conference join is logged and the call is still treated as
// transferred, because the caller has already been told a transfer is
// happening and a retry would double-transfer.
func (h *HandoffCoordinator) Trigger(ctx context.Context, callSID, callerPhone, reason string, log *Log) {
	logger := h.logger.WithCall(callSID)
	logger.Info("initiating warm transfer", "reason", reason)

	conference := "handoff-" + callSID
	failed := false

	callerAnnouncement := "Please hold while I connect you with a member of our staff."
	if err := h.transfer.AnnounceAndJoinConference(ctx, callSID, callerAnnouncement, conference); err != nil {
		logger.Error("failed to move caller into conference", "error", err)
		failed = true
	}

	staffAnnouncement := "Incoming transferred caller. Reason: " + reason
	legSID, err := h.transfer.DialIntoConference(ctx, h.staffNumber, staffAnnouncement, conference)
	if err != nil {
		logger.Error("failed to originate staff leg", "error", err)
		failed = true
	} else {
		logger.Info("staff leg dialed", "leg_sid", legSID, "conference", conference)
	}

	if h.alerter != nil {
		if err := h.alerter.NotifyHandoff(ctx, callSID, callerPhone, reason, log.Tail(handoffTranscriptTailTurns)); err != nil {
			logger.Error("staff handoff alert failed", "error", err)
		}
	}

	if failed {
		h.metrics.ObserveHandoff("error")
		return
	}
	h.metrics.ObserveHandoff("transferred")
}
