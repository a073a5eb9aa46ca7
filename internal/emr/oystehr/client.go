package oystehr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clearskymed/voicedesk/internal/emr"
)

// Client implements the emr.Directory interface against the Oystehr FHIR API.
// Appointments live in Schedule resources with a planningHorizon window, the
// shape the upstream project exposes.
type Client struct {
	baseURL    string
	authToken  string
	projectID  string
	httpClient *http.Client
}

// Config holds configuration for the Oystehr client
type Config struct {
	BaseURL   string // e.g. "https://fhir-api.zapehr.com/r4"
	AuthToken string // Bearer token
	ProjectID string // x-zapehr-project-id header value
	Timeout   time.Duration
}

// New creates a new Oystehr directory client
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("oystehr: BaseURL is required")
	}
	if cfg.AuthToken == "" {
		return nil, fmt.Errorf("oystehr: AuthToken is required")
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("oystehr: ProjectID is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		authToken: cfg.AuthToken,
		projectID: cfg.ProjectID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

var _ emr.Directory = (*Client)(nil)

type fhirName struct {
	Text string `json:"text"`
}

type fhirTelecom struct {
	System string `json:"system"`
	Value  string `json:"value"`
}

type fhirPatient struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Active       bool          `json:"active"`
	Name         []fhirName    `json:"name"`
	Telecom      []fhirTelecom `json:"telecom,omitempty"`
}

type fhirReference struct {
	Reference string `json:"reference"`
	Display   string `json:"display,omitempty"`
}

type fhirPlanningHorizon struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type fhirSchedule struct {
	ResourceType    string              `json:"resourceType"`
	ID              string              `json:"id,omitempty"`
	Active          bool                `json:"active"`
	Actor           []fhirReference     `json:"actor"`
	PlanningHorizon fhirPlanningHorizon `json:"planningHorizon"`
	Comment         string              `json:"comment,omitempty"`
}

type fhirBundle struct {
	Total int `json:"total"`
	Entry []struct {
		Resource json.RawMessage `json:"resource"`
	} `json:"entry"`
}

// FindOrCreatePatient registers the caller as a Patient resource.
// Oystehr FHIR: POST /Patient
func (c *Client) FindOrCreatePatient(ctx context.Context, name, phone string) (string, error) {
	payload := fhirPatient{
		ResourceType: "Patient",
		Active:       true,
		Name:         []fhirName{{Text: name}},
	}
	if phone != "" {
		payload.Telecom = []fhirTelecom{{System: "phone", Value: phone}}
	}

	var created fhirPatient
	if err := c.post(ctx, "/Patient", payload, &created); err != nil {
		return "", fmt.Errorf("oystehr: create patient: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("oystehr: create patient: response missing id")
	}
	return created.ID, nil
}

// CreateAppointment books a Schedule resource for the patient.
// Oystehr FHIR: POST /Schedule
func (c *Client) CreateAppointment(ctx context.Context, patientID, patientName string, start, end time.Time, notes string) (string, error) {
	payload := fhirSchedule{
		ResourceType: "Schedule",
		Active:       true,
		Actor: []fhirReference{
			{Reference: "Patient/" + patientID, Display: patientName},
		},
		PlanningHorizon: fhirPlanningHorizon{
			Start: start.Format(time.RFC3339),
			End:   end.Format(time.RFC3339),
		},
		Comment: notes,
	}

	var created fhirSchedule
	if err := c.post(ctx, "/Schedule", payload, &created); err != nil {
		return "", fmt.Errorf("oystehr: create appointment: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("oystehr: create appointment: response missing id")
	}
	return created.ID, nil
}

// SearchPatient looks a patient up by name.
// Oystehr FHIR: GET /Patient?name={name}
func (c *Client) SearchPatient(ctx context.Context, name string) (*emr.Patient, error) {
	endpoint := "/Patient?name=" + url.QueryEscape(name)

	var bundle fhirBundle
	if err := c.get(ctx, endpoint, &bundle); err != nil {
		return nil, fmt.Errorf("oystehr: search patient: %w", err)
	}
	if bundle.Total == 0 || len(bundle.Entry) == 0 {
		return nil, nil
	}

	var resource fhirPatient
	if err := json.Unmarshal(bundle.Entry[0].Resource, &resource); err != nil {
		return nil, fmt.Errorf("oystehr: decode patient resource: %w", err)
	}

	patient := &emr.Patient{ID: resource.ID}
	if len(resource.Name) > 0 {
		patient.Name = resource.Name[0].Text
	}
	for _, telecom := range resource.Telecom {
		if telecom.System == "phone" {
			patient.Phone = telecom.Value
			break
		}
	}
	return patient, nil
}

// SearchAppointment returns the patient's booked Schedule, if any.
// Oystehr FHIR: GET /Schedule?actor={patientID}
func (c *Client) SearchAppointment(ctx context.Context, patientID string) (*emr.Appointment, error) {
	endpoint := "/Schedule?actor=" + url.QueryEscape(patientID)

	var bundle fhirBundle
	if err := c.get(ctx, endpoint, &bundle); err != nil {
		return nil, fmt.Errorf("oystehr: search appointment: %w", err)
	}
	if bundle.Total == 0 || len(bundle.Entry) == 0 {
		return nil, nil
	}

	var resource fhirSchedule
	if err := json.Unmarshal(bundle.Entry[0].Resource, &resource); err != nil {
		return nil, fmt.Errorf("oystehr: decode schedule resource: %w", err)
	}

	appointment := &emr.Appointment{
		ID:        resource.ID,
		PatientID: patientID,
		Notes:     resource.Comment,
	}
	if resource.PlanningHorizon.Start != "" {
		start, err := time.Parse(time.RFC3339, resource.PlanningHorizon.Start)
		if err != nil {
			return nil, fmt.Errorf("oystehr: parse appointment start: %w", err)
		}
		appointment.Start = start
	}
	if resource.PlanningHorizon.End != "" {
		end, err := time.Parse(time.RFC3339, resource.PlanningHorizon.End)
		if err != nil {
			return nil, fmt.Errorf("oystehr: parse appointment end: %w", err)
		}
		appointment.End = end
	}
	return appointment, nil
}

// UpdateAppointment rewrites an existing Schedule resource.
// Oystehr FHIR: PUT /Schedule/{id}
func (c *Client) UpdateAppointment(ctx context.Context, appointmentID, patientID, patientName string, start, end time.Time, notes string) error {
	payload := fhirSchedule{
		ResourceType: "Schedule",
		ID:           appointmentID,
		Active:       true,
		Actor: []fhirReference{
			{Reference: "Patient/" + patientID, Display: patientName},
		},
		PlanningHorizon: fhirPlanningHorizon{
			Start: start.Format(time.RFC3339),
			End:   end.Format(time.RFC3339),
		},
		Comment: notes,
	}

	if err := c.put(ctx, "/Schedule/"+url.PathEscape(appointmentID), payload, nil); err != nil {
		return fmt.Errorf("oystehr: update appointment: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	return c.do(ctx, http.MethodPost, path, payload, out, http.StatusCreated)
}

func (c *Client) put(ctx context.Context, path string, payload, out any) error {
	return c.do(ctx, http.MethodPut, path, payload, out, http.StatusOK)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out, http.StatusOK)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any, wantStatus int) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.authToken)
	req.Header.Set("x-zapehr-project-id", c.projectID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != wantStatus {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
