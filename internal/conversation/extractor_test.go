package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearskymed/voicedesk/internal/llm"
)

// fakeCaller returns canned tool arguments, or an error, for each invocation.
type fakeCaller struct {
	response json.RawMessage
	err      error
	calls    []llm.Invocation
}

func (f *fakeCaller) Invoke(_ context.Context, inv llm.Invocation) (json.RawMessage, error) {
	f.calls = append(f.calls, inv)
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func bookingLog() *Log {
	log := NewLog()
	log.AddUserTurn("I'd like to book an appointment for Jane Doe, 555-123-4567, tomorrow at 2:00 PM")
	return log
}

func TestExtractNewReturnsCompleteDraft(t *testing.T) {
	caller := &fakeCaller{response: json.RawMessage(`{
		"has_appointment_info": true,
		"appointment_details": {
			"patient_name": "Jane Doe",
			"phone_number": "555-123-4567",
			"appointment_date": "2026-08-31",
			"appointment_time": "2:00 PM",
			"notes": "annual checkup"
		}
	}`)}
	extractor := NewExtractor(caller, nil)

	draft, err := extractor.ExtractNew(context.Background(), bookingLog(), time.Now())
	require.NoError(t, err)
	require.NotNil(t, draft)

	assert.Equal(t, "Jane Doe", draft.PatientName)
	assert.Equal(t, "555 123 4567", draft.PhoneNumber)
	assert.Equal(t, "annual checkup", draft.Notes)
	assert.Equal(t, time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC), draft.Start)

	require.Len(t, caller.calls, 1)
	assert.Equal(t, "extract_appointment_info", caller.calls[0].Tool.Name)
}

func TestExtractNewNoAppointmentLanguage(t *testing.T) {
	caller := &fakeCaller{response: json.RawMessage(`{
		"has_appointment_info": false,
		"appointment_details": {}
	}`)}
	extractor := NewExtractor(caller, nil)

	log := NewLog()
	log.AddUserTurn("what are your office hours?")

	draft, err := extractor.ExtractNew(context.Background(), log, time.Now())
	require.NoError(t, err)
	assert.Nil(t, draft)
}

func TestExtractNewDatetimeRoundTrip(t *testing.T) {
	cases := []struct {
		date string
		time string
	}{
		{"2026-08-31", "02:00 PM"},
		{"2026-12-01", "09:15 AM"},
		{"2027-01-20", "11:59 PM"},
		{"2026-09-05", "12:30 AM"},
	}
	for _, tc := range cases {
		caller := &fakeCaller{response: json.RawMessage(`{
			"has_appointment_info": true,
			"appointment_details": {
				"patient_name": "Jane Doe",
				"phone_number": "555-123-4567",
				"appointment_date": "` + tc.date + `",
				"appointment_time": "` + tc.time + `"
			}
		}`)}
		extractor := NewExtractor(caller, nil)

		draft, err := extractor.ExtractNew(context.Background(), bookingLog(), time.Now())
		require.NoError(t, err, "%s %s", tc.date, tc.time)
		require.NotNil(t, draft)

		assert.Equal(t, tc.date, draft.Start.Format("2006-01-02"))
		assert.Equal(t, tc.time, draft.Start.Format("03:04 PM"))
	}
}

func TestExtractNewMalformedDatetimeIsExtractionError(t *testing.T) {
	caller := &fakeCaller{response: json.RawMessage(`{
		"has_appointment_info": true,
		"appointment_details": {
			"patient_name": "Jane Doe",
			"phone_number": "555-123-4567",
			"appointment_date": "next Tuesday",
			"appointment_time": "2:00 PM"
		}
	}`)}
	extractor := NewExtractor(caller, nil)

	draft, err := extractor.ExtractNew(context.Background(), bookingLog(), time.Now())
	assert.Nil(t, draft)
	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, "appointment_datetime", extErr.Field)
}

func TestExtractNewTransportFailure(t *testing.T) {
	caller := &fakeCaller{err: errors.New("model unavailable")}
	extractor := NewExtractor(caller, nil)

	draft, err := extractor.ExtractNew(context.Background(), bookingLog(), time.Now())
	assert.Nil(t, draft)
	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
}

func TestExtractReschedule(t *testing.T) {
	caller := &fakeCaller{response: json.RawMessage(`{
		"has_reschedule_info": true,
		"name": "John Smith",
		"rescheduled_appointment_date": "2026-09-04",
		"rescheduled_appointment_time": "10:00 AM"
	}`)}
	extractor := NewExtractor(caller, nil)

	log := NewLog()
	log.AddUserTurn("I need to reschedule my appointment to Friday at 10 AM, my name is John Smith")

	draft, err := extractor.ExtractReschedule(context.Background(), log, time.Now())
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, "John Smith", draft.PatientName)
	assert.Equal(t, time.Date(2026, 9, 4, 10, 0, 0, 0, time.UTC), draft.NewStart)

	require.Len(t, caller.calls, 1)
	assert.Equal(t, "extract_rescheduled_appointment_info", caller.calls[0].Tool.Name)
}

func TestExtractRescheduleMissingInfo(t *testing.T) {
	caller := &fakeCaller{response: json.RawMessage(`{
		"has_reschedule_info": false,
		"name": "",
		"rescheduled_appointment_date": "",
		"rescheduled_appointment_time": ""
	}`)}
	extractor := NewExtractor(caller, nil)

	log := NewLog()
	log.AddUserTurn("I might want to move my appointment, not sure yet")

	draft, err := extractor.ExtractReschedule(context.Background(), log, time.Now())
	require.NoError(t, err)
	assert.Nil(t, draft)
}

func TestExtractPromptsCarryTranscriptAndClock(t *testing.T) {
	caller := &fakeCaller{response: json.RawMessage(`{"has_appointment_info": false, "appointment_details": {}}`)}
	extractor := NewExtractor(caller, nil)

	log := NewLog()
	log.AddUserTurn("hello there")
	now := time.Date(2026, 8, 30, 14, 5, 0, 0, time.UTC)

	_, err := extractor.ExtractNew(context.Background(), log, now)
	require.NoError(t, err)
	require.Len(t, caller.calls, 1)
	assert.Contains(t, caller.calls[0].Prompt, "user: hello there")
	assert.Contains(t, caller.calls[0].Prompt, "date: 2026-08-30, time: 02:05 PM")
}
