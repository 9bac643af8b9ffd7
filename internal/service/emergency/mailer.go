package emergency

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/msfrancis/mediguide/backend/internal/model/emergency"
)

// Mailer is the email delivery channel: it carries the structured alert to
// the external notification endpoint.
type Mailer interface {
	Send(ctx context.Context, alert emergency.Alert) error
}

// HTTPMailer posts the alert to the transactional-email endpoint. Template
// rendering and addressing live on the other side; this side only ships the
// structured payload.
type HTTPMailer struct {
	URL    string
	APIKey string
	Client *http.Client
}

func (m *HTTPMailer) Send(ctx context.Context, alert emergency.Alert) error {
	payload := struct {
		Profile  any `json:"profile"`
		Location struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Accuracy  float64 `json:"accuracy"`
		} `json:"location"`
		IsAutoTriggered bool `json:"isAutoTriggered"`
	}{IsAutoTriggered: alert.AutoTriggered}
	if alert.Profile != nil {
		payload.Profile = alert.Profile
	}
	payload.Location.Latitude = alert.Location.Latitude
	payload.Location.Longitude = alert.Location.Longitude
	payload.Location.Accuracy = alert.Location.Accuracy

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal emergency email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build emergency email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.APIKey)
	}

	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("emergency email endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error != "" {
			return fmt.Errorf("emergency email rejected: %s", errBody.Error)
		}
		return fmt.Errorf("emergency email rejected with status %d", resp.StatusCode)
	}
	return nil
}
