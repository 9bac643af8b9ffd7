package emergency

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	emergencyModel "github.com/msfrancis/mediguide/backend/internal/model/emergency"
	"github.com/msfrancis/mediguide/backend/internal/model/profile"
)

func TestHTTPMailerPayload(t *testing.T) {
	var captured map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode payload: %v", err)
		}
	}))
	defer srv.Close()

	m := &HTTPMailer{URL: srv.URL, APIKey: "test-key"}
	err := m.Send(context.Background(), emergencyModel.Alert{
		Profile:       &profile.Profile{UserID: "user-1", FullName: "Asha Rao"},
		Location:      emergencyModel.Location{Latitude: 13.0827, Longitude: 80.2707, Accuracy: 12},
		AutoTriggered: true,
	})
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}

	var loc struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Accuracy  float64 `json:"accuracy"`
	}
	if err := json.Unmarshal(captured["location"], &loc); err != nil {
		t.Fatalf("location field: %v", err)
	}
	if loc.Latitude != 13.0827 || loc.Longitude != 80.2707 || loc.Accuracy != 12 {
		t.Fatalf("location = %+v", loc)
	}

	var auto bool
	if err := json.Unmarshal(captured["isAutoTriggered"], &auto); err != nil || !auto {
		t.Fatalf("isAutoTriggered = %s err=%v", captured["isAutoTriggered"], err)
	}
	if !strings.Contains(string(captured["profile"]), `"full_name":"Asha Rao"`) {
		t.Fatalf("profile field = %s", captured["profile"])
	}
}

func TestHTTPMailerSurfacesRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exhausted"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	m := &HTTPMailer{URL: srv.URL}
	err := m.Send(context.Background(), emergencyModel.Alert{})
	if err == nil || !strings.Contains(err.Error(), "quota exhausted") {
		t.Fatalf("expected rejection error, got %v", err)
	}
}
