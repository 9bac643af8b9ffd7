package emergency

import (
	"fmt"
	"time"

	"github.com/msfrancis/mediguide/backend/internal/model/hospital"
	"github.com/msfrancis/mediguide/backend/internal/model/profile"
)

// Location is a one-shot geolocation fix.
type Location struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
	CapturedAt time.Time `json:"capturedAt,omitempty"`
}

// MapsURL builds the shareable map link for the fix.
func (l Location) MapsURL() string {
	return fmt.Sprintf("https://www.google.com/maps?q=%v,%v", l.Latitude, l.Longitude)
}

// Alert is the structured payload composed for one emergency event. It is
// built fresh per dispatch and never persisted here.
type Alert struct {
	Profile       *profile.Profile          `json:"profile"`
	Location      Location                  `json:"location"`
	Hospital      *hospital.TrustedHospital `json:"hospital,omitempty"`
	AutoTriggered bool                      `json:"isAutoTriggered"`
}
