package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clearskymed/voicedesk/internal/messaging"
	"github.com/clearskymed/voicedesk/pkg/logging"
)

// SMSSender sends SMS messages to patients.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Service sends patient-facing confirmations and staff-facing alerts.
type Service struct {
	sms        SMSSender
	email      EmailSender
	staffEmail string
	logger     *logging.Logger
}

// NewService creates a notification service. Either sender may be nil; the
// corresponding notifications become no-ops that log a skip.
func NewService(sms SMSSender, email EmailSender, staffEmail string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		sms:        sms,
		email:      email,
		staffEmail: staffEmail,
		logger:     logger,
	}
}

// SendBookingConfirmation texts the patient the booked slot. The send is
// awaited so a failure can be logged, but the caller treats booking success
// and notification success as independent outcomes.
func (s *Service) SendBookingConfirmation(ctx context.Context, phone, patientName string, start time.Time, rescheduled bool) error {
	if s.sms == nil {
		s.logger.Debug("notify: sms sender not configured, skipping confirmation")
		return nil
	}
	if strings.TrimSpace(phone) == "" {
		s.logger.Info("notify: no patient phone on record, skipping confirmation", "patient", patientName)
		return nil
	}

	header := "Your appointment has been confirmed:"
	if rescheduled {
		header = "Your appointment has been rescheduled:"
	}
	body := fmt.Sprintf("%s\n%s", header, FormatAppointmentDetails(patientName, start))

	if err := s.sms.SendSMS(ctx, phone, body); err != nil {
		s.logger.Error("notify: confirmation sms failed",
			"error", err,
			"to", messaging.MaskPhone(phone),
		)
		return fmt.Errorf("notify: confirmation sms: %w", err)
	}
	s.logger.Info("notify: confirmation sms sent", "to", messaging.MaskPhone(phone))
	return nil
}

// NotifyHandoff emails the front desk that a live call was transferred,
// including the classifier's reason and the tail of the transcript.
func (s *Service) NotifyHandoff(ctx context.Context, callSID, callerPhone, reason string, transcriptTail []string) error {
	if s.email == nil || strings.TrimSpace(s.staffEmail) == "" {
		s.logger.Debug("notify: staff email not configured, skipping handoff alert")
		return nil
	}

	var body strings.Builder
	fmt.Fprintf(&body, "A caller was transferred to the staff line.\n\n")
	fmt.Fprintf(&body, "Call: %s\n", callSID)
	if callerPhone != "" {
		fmt.Fprintf(&body, "Caller: %s\n", callerPhone)
	}
	fmt.Fprintf(&body, "Reason: %s\n", reason)
	if len(transcriptTail) > 0 {
		body.WriteString("\nLast turns:\n")
		for _, line := range transcriptTail {
			fmt.Fprintf(&body, "  %s\n", line)
		}
	}

	msg := EmailMessage{
		To:      s.staffEmail,
		Subject: "Live call transferred to staff",
		Body:    body.String(),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notify: handoff alert failed", "error", err, "call_sid", callSID)
		return fmt.Errorf("notify: handoff alert: %w", err)
	}
	s.logger.Info("notify: handoff alert sent", "call_sid", callSID)
	return nil
}

// FormatAppointmentDetails renders the human-readable appointment summary used
// in confirmation messages.
func FormatAppointmentDetails(patientName string, start time.Time) string {
	return fmt.Sprintf(
		"Appointment Details:\nPatient: %s\nDate: %s\nTime: %s\n",
		patientName,
		start.Format("January 02, 2006"),
		start.Format("03:04 PM"),
	)
}
