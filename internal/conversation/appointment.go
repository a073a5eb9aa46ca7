package conversation

import (
	"context"
	"time"

	"github.com/clearskymed/voicedesk/internal/emr"
	"github.com/clearskymed/voicedesk/internal/observability/metrics"
	"github.com/clearskymed/voicedesk/pkg/logging"
)

// ConfirmationSender delivers a booking confirmation text. Failures are logged
// by the workflow but never undo an already-created appointment.
type ConfirmationSender interface {
	SendBookingConfirmation(ctx context.Context, phone, patientName string, start time.Time, rescheduled bool) error
}

// Workflows runs the terminal schedule and reschedule flows for a call. Every
// entry point absorbs its own faults and reports success as a boolean; no
// error propagates past the session boundary.
type Workflows struct {
	extractor *Extractor
	directory emr.Directory
	notifier  ConfirmationSender
	metrics   *metrics.CallMetrics
	logger    *logging.Logger
}

func NewWorkflows(extractor *Extractor, directory emr.Directory, notifier ConfirmationSender, m *metrics.CallMetrics, logger *logging.Logger) *Workflows {
	if logger == nil {
		logger = logging.Default()
	}
	return &Workflows{
		extractor: extractor,
		directory: directory,
		notifier:  notifier,
		metrics:   m,
		logger:    logger.WithComponent("workflows"),
	}
}

// Schedule books a new appointment from the conversation. Returns true only
// when the booking was created; a log without appointment details is a normal
// false outcome by itself.
func (w *Workflows) Schedule(ctx context.Context, log *Log, now time.Time) bool {
	w.logger.Info("scheduling appointment")

	draft, err := w.extractor.ExtractNew(ctx, log, now)
	if err != nil {
		w.logger.Error("appointment extraction failed", "error", err)
		w.metrics.ObserveWorkflow("schedule", "extraction_failed")
		return false
	}
	if draft == nil {
		w.logger.Info("no appointment details could be extracted from conversation")
		w.metrics.ObserveWorkflow("schedule", "no_draft")
		return false
	}

	patientID, err := w.directory.FindOrCreatePatient(ctx, draft.PatientName, draft.PhoneNumber)
	if err != nil {
		w.logger.Error("patient registration failed, aborting booking", "error", err, "patient", draft.PatientName)
		w.metrics.ObserveWorkflow("schedule", "directory_failed")
		return false
	}

	end := draft.Start.Add(emr.SlotDuration)
	appointmentID, err := w.directory.CreateAppointment(ctx, patientID, draft.PatientName, draft.Start, end, draft.Notes)
	if err != nil {
		w.logger.Error("appointment creation failed", "error", err, "patient_id", patientID)
		w.metrics.ObserveWorkflow("schedule", "directory_failed")
		return false
	}
	w.logger.Info("appointment created", "appointment_id", appointmentID, "patient_id", patientID, "start", draft.Start)

	if err := w.notifier.SendBookingConfirmation(ctx, draft.PhoneNumber, draft.PatientName, draft.Start, false); err != nil {
		w.logger.Error("confirmation SMS failed", "error", err)
	}

	w.metrics.ObserveWorkflow("schedule", "success")
	return true
}

// Reschedule moves an existing appointment to the slot extracted from the
// conversation.
func (w *Workflows) Reschedule(ctx context.Context, log *Log, now time.Time) bool {
	w.logger.Info("processing rescheduling request")

	draft, err := w.extractor.ExtractReschedule(ctx, log, now)
	if err != nil {
		w.logger.Error("reschedule extraction failed", "error", err)
		w.metrics.ObserveWorkflow("reschedule", "extraction_failed")
		return false
	}
	if draft == nil {
		w.logger.Info("no rescheduling details could be extracted from conversation")
		w.metrics.ObserveWorkflow("reschedule", "no_draft")
		return false
	}

	patient, err := w.directory.SearchPatient(ctx, draft.PatientName)
	if err != nil {
		w.logger.Error("patient lookup failed", "error", err, "patient", draft.PatientName)
		w.metrics.ObserveWorkflow("reschedule", "directory_failed")
		return false
	}
	if patient == nil {
		w.logger.Error("no existing patient found for rescheduling", "patient", draft.PatientName)
		w.metrics.ObserveWorkflow("reschedule", "patient_not_found")
		return false
	}

	existing, err := w.directory.SearchAppointment(ctx, patient.ID)
	if err != nil {
		w.logger.Error("appointment lookup failed", "error", err, "patient_id", patient.ID)
		w.metrics.ObserveWorkflow("reschedule", "directory_failed")
		return false
	}
	if existing == nil {
		w.logger.Error("no existing appointment found for rescheduling", "patient_id", patient.ID)
		w.metrics.ObserveWorkflow("reschedule", "appointment_not_found")
		return false
	}

	end := draft.NewStart.Add(emr.SlotDuration)
	notes := "Rescheduled from " + existing.Start.Format(time.RFC3339)
	if err := w.directory.UpdateAppointment(ctx, existing.ID, patient.ID, patient.Name, draft.NewStart, end, notes); err != nil {
		w.logger.Error("appointment update failed", "error", err, "appointment_id", existing.ID)
		w.metrics.ObserveWorkflow("reschedule", "directory_failed")
		return false
	}
	w.logger.Info("appointment rescheduled", "appointment_id", existing.ID, "patient_id", patient.ID, "start", draft.NewStart)

	if patient.Phone != "" {
		if err := w.notifier.SendBookingConfirmation(ctx, patient.Phone, patient.Name, draft.NewStart, true); err != nil {
			w.logger.Error("rescheduling confirmation SMS failed", "error", err)
		}
	} else {
		w.logger.Warn("patient record has no phone, skipping rescheduling confirmation", "patient_id", patient.ID)
	}

	w.metrics.ObserveWorkflow("reschedule", "success")
	return true
}
