package chat

import (
	"fmt"
	"strings"

	"github.com/msfrancis/mediguide/backend/internal/model/profile"
)

// buildProfileContext renders the health-profile block prepended to the
// earliest user message of a request window so the backend can personalize
// its advice. Returns "" when there is nothing worth sending.
func buildProfileContext(p *profile.Profile) string {
	if p == nil {
		return ""
	}

	var parts []string

	if p.FullName != "" {
		first := strings.Fields(p.FullName)[0]
		parts = append(parts, fmt.Sprintf("User's name is %s", first))
	}
	if p.Age > 0 {
		parts = append(parts, fmt.Sprintf("Age: %d years", p.Age))
	}
	if bmi := p.BMI(); bmi > 0 {
		parts = append(parts, fmt.Sprintf("Height: %vcm, Weight: %vkg (BMI: %.1f)", p.HeightCM, p.WeightKG, bmi))
	}
	if strings.TrimSpace(p.HealthConditions) != "" {
		parts = append(parts, "Known health conditions: "+p.HealthConditions)
	}
	if strings.TrimSpace(p.Allergies) != "" {
		parts = append(parts, "ALLERGIES (CRITICAL - NEVER suggest remedies containing these): "+p.Allergies)
	}
	if strings.TrimSpace(p.CheckupData) != "" {
		parts = append(parts, "Recent checkup data: "+p.CheckupData)
	}

	if len(parts) == 0 {
		return ""
	}

	return "\n\n[USER HEALTH PROFILE - Use this to personalize your advice and consider any contraindications. NEVER suggest remedies containing user's listed allergies.]\n" +
		strings.Join(parts, "\n")
}
