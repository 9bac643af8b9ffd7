package emergency

import (
	"fmt"
	"strings"

	"github.com/msfrancis/mediguide/backend/internal/model/emergency"
)

const alertBanner = "EMERGENCY ALERT - MediGuide"

// autoTriggerSuffix is appended to the message text when the inactivity
// watchdog dispatched the alert.
const autoTriggerSuffix = "AUTO-TRIGGERED: User unresponsive"

// ComposeMessage renders the alert as the text block shared over the
// messaging channel: banner, optional hospital, optional profile fields,
// live coordinates and the map link.
func ComposeMessage(alert emergency.Alert) string {
	parts := []string{alertBanner, ""}

	if alert.Hospital != nil {
		parts = append(parts,
			"Requesting emergency assistance from: "+alert.Hospital.Name,
			"")
	}

	if p := alert.Profile; p != nil {
		parts = append(parts, "Name: "+p.FullName)
		if p.Age > 0 {
			parts = append(parts, fmt.Sprintf("Age: %d years", p.Age))
		}
		if p.HeightCM > 0 {
			parts = append(parts, fmt.Sprintf("Height: %v cm", p.HeightCM))
		}
		if p.WeightKG > 0 {
			parts = append(parts, fmt.Sprintf("Weight: %v kg", p.WeightKG))
		}
		parts = append(parts, "")
		if p.HealthConditions != "" {
			parts = append(parts, "Health Conditions: "+p.HealthConditions)
		}
		if p.CheckupData != "" {
			parts = append(parts, "Checkup Data: "+p.CheckupData)
		}
		parts = append(parts, "")
		if p.Location != "" {
			parts = append(parts, "Registered Location: "+p.Location)
		}
		if p.ContactNumber != "" {
			parts = append(parts, "Contact: "+p.ContactNumber)
		}
		if p.EmergencyContactNumber != "" {
			parts = append(parts, "Emergency Contact: "+p.EmergencyContactNumber)
		}
	} else {
		parts = append(parts, "User profile not available")
	}

	loc := alert.Location
	parts = append(parts,
		"",
		"LIVE LOCATION:",
		fmt.Sprintf("Lat: %.6f", loc.Latitude),
		fmt.Sprintf("Long: %.6f", loc.Longitude),
		fmt.Sprintf("Accuracy: %.0fm", loc.Accuracy),
		"",
		"Google Maps: "+loc.MapsURL(),
	)

	if alert.AutoTriggered {
		parts = append(parts, "", autoTriggerSuffix)
	}

	compact := parts[:0]
	blank := false
	for _, p := range parts {
		// Collapse runs of blank separators left by omitted fields.
		if p == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		compact = append(compact, p)
	}

	return strings.Join(compact, "\n")
}
