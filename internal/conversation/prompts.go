package conversation

import (
	"fmt"
	"time"

	"github.com/clearskymed/voicedesk/internal/llm"
)

const detectActionPromptTemplate = `As an AI assistant, analyze the conversation to determine if this is a new appointment request, a rescheduling request, or requires human handoff.

Key Detection Criteria:
1. Rescheduling Request:
   - Mentions of changing existing appointment
   - References to previous/current appointment
   - Words like "reschedule", "change", "move", "switch"
   - Mentions of being unable to make current appointment time

2. Human Handoff Required:
   - Medical emergencies or urgent symptoms
   - Complex medical questions beyond scheduling
   - Aggressive or distressed patients
   - Technical issues
   - Requests for medical advice
   - Explicit requests for human staff

3. New Appointment:
   - First-time appointment requests
   - No mention of existing appointments
   - General scheduling inquiries

Conversation History:
%s

Determine the appropriate action based on the conversation content.
Remember: Only use human handoff when absolutely necessary. In most cases, you can simply tell the user to schedule or reschedule.`

const extractAppointmentPromptTemplate = `You are a medical office assistant. Extract appointment details from the conversation.
appointment details include:
- patient name
- phone number
- appointment date and time
- appointment notes

The current date and time is:
    %s

Conversation History:
    %s

If the conversation history does not contain any appointment details, indicate that no appointment information is present.`

const extractReschedulePromptTemplate = `You are a medical office assistant. The caller wants to move an existing appointment. Extract the patient's name and the new appointment date and time from the conversation.

The current date and time is:
    %s

Conversation History:
    %s

If the conversation does not contain a name or a new date and time, indicate that no rescheduling information is present.`

// formatCurrentDatetime renders "now" the way prompts reference it, so the
// model can resolve relative dates like "tomorrow".
func formatCurrentDatetime(now time.Time) string {
	return fmt.Sprintf("date: %s, time: %s", now.Format("2006-01-02"), now.Format("03:04 PM"))
}

func detectActionPrompt(log *Log) string {
	return fmt.Sprintf(detectActionPromptTemplate, log.Render())
}

func extractAppointmentPrompt(log *Log, now time.Time) string {
	return fmt.Sprintf(extractAppointmentPromptTemplate, formatCurrentDatetime(now), log.Render())
}

func extractReschedulePrompt(log *Log, now time.Time) string {
	return fmt.Sprintf(extractReschedulePromptTemplate, formatCurrentDatetime(now), log.Render())
}

func detectActionTool() llm.Tool {
	return llm.Tool{
		Name:        "detect_appointment_action",
		Description: "Classifies the conversation as a new appointment request, a rescheduling request, or a human handoff",
		Parameters: llm.ObjectSchema("",
			map[string]*llm.Schema{
				"action": llm.EnumSchema("The action the conversation requires",
					"new_appointment", "reschedule", "human_handoff"),
				"reason": llm.StringSchema("Explanation of why this action was chosen"),
				"existing_appointment_mentioned": llm.BoolSchema("True if the caller referenced an existing appointment"),
			},
			"action", "reason", "existing_appointment_mentioned"),
	}
}

func extractAppointmentTool() llm.Tool {
	return llm.Tool{
		Name:        "extract_appointment_info",
		Description: "Extract appointment information from conversation if available, indicate absence if no detailed appointment information is present",
		Parameters: llm.ObjectSchema("",
			map[string]*llm.Schema{
				"has_appointment_info": llm.BoolSchema("Whether the conversation contains detailed appointment information"),
				"appointment_details": llm.ObjectSchema("Detailed appointment information if available",
					map[string]*llm.Schema{
						"patient_name":     llm.StringSchema("Full name of the patient"),
						"phone_number":     llm.StringSchema("Patient's phone number (XXX-XXX-XXXX)"),
						"appointment_date": llm.StringSchema("Appointment date (YYYY-MM-DD)"),
						"appointment_time": llm.StringSchema("Appointment time (HH:MM AM/PM)"),
						"notes":            llm.StringSchema("Some notes about the appointment"),
					}),
			},
			"has_appointment_info", "appointment_details"),
	}
}

func extractRescheduleTool() llm.Tool {
	return llm.Tool{
		Name:        "extract_rescheduled_appointment_info",
		Description: "Extract the patient name and the rescheduled appointment date and time from the conversation",
		Parameters: llm.ObjectSchema("",
			map[string]*llm.Schema{
				"has_reschedule_info":          llm.BoolSchema("Whether the conversation contains the name and new date and time"),
				"name":                         llm.StringSchema("Full name of the patient"),
				"rescheduled_appointment_date": llm.StringSchema("New appointment date (YYYY-MM-DD)"),
				"rescheduled_appointment_time": llm.StringSchema("New appointment time (HH:MM AM/PM)"),
			},
			"has_reschedule_info", "name", "rescheduled_appointment_date", "rescheduled_appointment_time"),
	}
}
