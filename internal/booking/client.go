// Package booking creates appointments in the salon's booking system and
// guarantees that one confirmed conversation produces exactly one appointment.
package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/salonflow/alexis-engine/pkg/logging"
)

const defaultTimeout = 15 * time.Second

// AppointmentRequest is one create-appointment call.
type AppointmentRequest struct {
	SalonID        string    `json:"salonId"`
	ClientPhone    string    `json:"clientPhone"`
	ServiceID      string    `json:"serviceId"`
	ProfessionalID string    `json:"professionalId,omitempty"`
	StartsAt       time.Time `json:"startsAt"`
	// IdempotencyKey lets the backend collapse retried creates; the committer
	// always sets it to the conversation id.
	IdempotencyKey string `json:"idempotencyKey"`
}

// Appointment is the booking system's record of a created appointment.
type Appointment struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Booker creates appointments.
type Booker interface {
	CreateAppointment(ctx context.Context, req AppointmentRequest) (Appointment, error)
}

// HTTPBooker talks to the salon platform's booking API.
type HTTPBooker struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *logging.Logger
}

var _ Booker = (*HTTPBooker)(nil)

// NewHTTPBooker constructs a booking API client.
func NewHTTPBooker(baseURL, token string, logger *logging.Logger) *HTTPBooker {
	if strings.TrimSpace(baseURL) == "" {
		panic("booking: base URL cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTPBooker{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		logger:     logger,
	}
}

// CreateAppointment posts the appointment and returns the created record.
func (c *HTTPBooker) CreateAppointment(ctx context.Context, req AppointmentRequest) (Appointment, error) {
	var appt Appointment
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/appointments", req, &appt); err != nil {
		return Appointment{}, fmt.Errorf("booking: create appointment: %w", err)
	}
	if appt.ID == "" {
		return Appointment{}, fmt.Errorf("booking: backend returned appointment without id")
	}
	return appt, nil
}

func (c *HTTPBooker) doJSON(ctx context.Context, method, path string, body any, out any) error {
	endpoint := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.logger.Warn("booking API non-2xx response", "status", resp.StatusCode, "path", path, "body", msg)
		return fmt.Errorf("booking API returned %d: %s", resp.StatusCode, msg)
	}

	if len(respBody) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
