package emr

import (
	"context"
	"time"
)

// Directory is the patient/appointment directory every EHR integration must
// implement. Not-found is reported as a nil result, not an error; errors mean
// the directory call itself failed.
type Directory interface {
	// FindOrCreatePatient registers the caller in the EHR and returns the
	// patient id. Creation is attempted first; the directory is the source of
	// truth for deduplication.
	FindOrCreatePatient(ctx context.Context, name, phone string) (string, error)

	// CreateAppointment books a slot for the patient and returns the
	// appointment id.
	CreateAppointment(ctx context.Context, patientID, patientName string, start, end time.Time, notes string) (string, error)

	// SearchPatient looks a patient up by name.
	SearchPatient(ctx context.Context, name string) (*Patient, error)

	// SearchAppointment returns the patient's booked appointment, if any.
	SearchAppointment(ctx context.Context, patientID string) (*Appointment, error)

	// UpdateAppointment rewrites an existing booking in place.
	UpdateAppointment(ctx context.Context, appointmentID, patientID, patientName string, start, end time.Time, notes string) error
}

// Patient is a patient record in the EHR.
type Patient struct {
	ID    string
	Name  string
	Phone string
}

// Appointment is a booked appointment in the EHR.
type Appointment struct {
	ID        string
	PatientID string
	Start     time.Time
	End       time.Time
	Notes     string
}

// SlotDuration is the fixed booking length for every appointment. There is no
// availability or overlap check on this side; the directory owns conflicts.
const SlotDuration = 30 * time.Minute
