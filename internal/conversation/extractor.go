package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/clearskymed/voicedesk/internal/llm"
	"github.com/clearskymed/voicedesk/pkg/logging"
)

// appointmentDatetimeLayout parses the concatenated date and time fields the
// extraction schema returns. The hour is unpadded so both "2:00 PM" and
// "02:00 PM" are accepted.
const appointmentDatetimeLayout = "2006-01-02 3:04 PM"

// AppointmentDraft is a complete extracted booking request. Drafts are never
// partially populated: extraction yields a full draft or nothing.
type AppointmentDraft struct {
	PatientName string
	PhoneNumber string
	Start       time.Time
	Notes       string
}

// RescheduleDraft carries the fields needed to move an existing booking.
type RescheduleDraft struct {
	PatientName string
	NewStart    time.Time
}

// ExtractionError reports malformed structured-extraction output. A missing
// draft is a normal outcome; a draft with an unparseable date is not, because
// booking the wrong date is worse than not booking.
type ExtractionError struct {
	Field string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("conversation: extract %s: %v", e.Field, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Extractor pulls structured appointment fields out of the transcript. It is
// side-effect-free: it only reads the log and returns a value.
type Extractor struct {
	caller llm.FunctionCaller
	logger *logging.Logger
}

func NewExtractor(caller llm.FunctionCaller, logger *logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Extractor{
		caller: caller,
		logger: logger.WithComponent("extractor"),
	}
}

type extractedAppointment struct {
	HasAppointmentInfo bool `json:"has_appointment_info"`
	AppointmentDetails struct {
		PatientName     string `json:"patient_name"`
		PhoneNumber     string `json:"phone_number"`
		AppointmentDate string `json:"appointment_date"`
		AppointmentTime string `json:"appointment_time"`
		Notes           string `json:"notes"`
	} `json:"appointment_details"`
}

type extractedReschedule struct {
	HasRescheduleInfo          bool   `json:"has_reschedule_info"`
	Name                       string `json:"name"`
	RescheduledAppointmentDate string `json:"rescheduled_appointment_date"`
	RescheduledAppointmentTime string `json:"rescheduled_appointment_time"`
}

// ExtractNew pulls a complete booking draft from the conversation. A log with
// no appointment language yields (nil, nil); that is the common case while a
// call is still in progress.
func (e *Extractor) ExtractNew(ctx context.Context, log *Log, now time.Time) (*AppointmentDraft, error) {
	raw, err := e.caller.Invoke(ctx, llm.Invocation{
		Prompt:      extractAppointmentPrompt(log, now),
		Tool:        extractAppointmentTool(),
		MaxTokens:   512,
		Temperature: 0,
	})
	if err != nil {
		return nil, &ExtractionError{Field: "appointment", Err: err}
	}

	var out extractedAppointment
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &ExtractionError{Field: "appointment", Err: err}
	}
	if !out.HasAppointmentInfo {
		e.logger.Info("no appointment details present in conversation")
		return nil, nil
	}

	start, err := parseAppointmentDatetime(out.AppointmentDetails.AppointmentDate, out.AppointmentDetails.AppointmentTime)
	if err != nil {
		return nil, &ExtractionError{Field: "appointment_datetime", Err: err}
	}

	return &AppointmentDraft{
		PatientName: out.AppointmentDetails.PatientName,
		PhoneNumber: normalizeDraftPhone(out.AppointmentDetails.PhoneNumber),
		Start:       start,
		Notes:       out.AppointmentDetails.Notes,
	}, nil
}

// ExtractReschedule pulls the patient name and new slot for a reschedule.
// Returns (nil, nil) when the conversation lacks the needed fields.
func (e *Extractor) ExtractReschedule(ctx context.Context, log *Log, now time.Time) (*RescheduleDraft, error) {
	raw, err := e.caller.Invoke(ctx, llm.Invocation{
		Prompt:      extractReschedulePrompt(log, now),
		Tool:        extractRescheduleTool(),
		MaxTokens:   256,
		Temperature: 0,
	})
	if err != nil {
		return nil, &ExtractionError{Field: "reschedule", Err: err}
	}

	var out extractedReschedule
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &ExtractionError{Field: "reschedule", Err: err}
	}
	if !out.HasRescheduleInfo || out.Name == "" {
		e.logger.Info("no rescheduling details present in conversation")
		return nil, nil
	}

	start, err := parseAppointmentDatetime(out.RescheduledAppointmentDate, out.RescheduledAppointmentTime)
	if err != nil {
		return nil, &ExtractionError{Field: "rescheduled_appointment_datetime", Err: err}
	}

	return &RescheduleDraft{
		PatientName: out.Name,
		NewStart:    start,
	}, nil
}

// parseAppointmentDatetime combines the separate date and time strings into
// one absolute instant. Date and time never survive separately past this
// point.
func parseAppointmentDatetime(date, clock string) (time.Time, error) {
	return time.Parse(appointmentDatetimeLayout, strings.TrimSpace(date)+" "+strings.TrimSpace(clock))
}

// normalizeDraftPhone replaces hyphens with spaces before storage.
func normalizeDraftPhone(phone string) string {
	return strings.ReplaceAll(strings.TrimSpace(phone), "-", " ")
}
