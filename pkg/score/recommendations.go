package score

import (
	"time"

	"github.com/google/uuid"
)

// Recommendation types.
const (
	TypeRespiratory = "respiratory"
	TypeActivity    = "activity"
	TypeLifestyle   = "lifestyle"
)

// buildRecommendations produces guidance for the effective AQI band,
// adjusted for the user's profile. Texts follow the EPA advisory wording
// for each band.
func buildRecommendations(aqi float64, profile *HealthProfile, category RiskCategory, now time.Time) []Recommendation {
	var recs []Recommendation

	add := func(recType, recCategory, title, description string, priority Priority, urgent bool) {
		recs = append(recs, Recommendation{
			ID:          uuid.New().String(),
			Title:       title,
			Description: description,
			Type:        recType,
			Category:    recCategory,
			Priority:    priority,
			IsUrgent:    urgent,
			CreatedAt:   now,
		})
	}

	sensitive := profile.HasRespiratoryConditions || profile.HasCardiovascularConditions ||
		profile.AgeBand == AgeChild || profile.AgeBand == AgeSenior

	switch {
	case aqi <= 50:
		add(TypeActivity, "outdoor", "Air quality is good",
			"All outdoor activities are safe. A good time for outdoor exercise.",
			PriorityLow, false)

	case aqi <= 100:
		add(TypeActivity, "outdoor", "Moderate air quality",
			"Normal outdoor activities are safe for most people.",
			PriorityLow, false)
		if sensitive {
			add(TypeRespiratory, "exertion", "Reduce prolonged exertion",
				"Unusually sensitive people should consider reducing prolonged outdoor exertion.",
				PriorityMedium, false)
		}

	case aqi <= 150:
		add(TypeActivity, "outdoor", "Limit heavy outdoor exertion",
			"Consider reducing prolonged or heavy exertion outdoors.",
			PriorityMedium, false)
		if sensitive {
			add(TypeRespiratory, "exertion", "Sensitive groups: limit outdoor time",
				"Members of sensitive groups may experience health effects. Limit prolonged outdoor exertion.",
				PriorityHigh, false)
		}

	case aqi <= 200:
		add(TypeActivity, "outdoor", "Reschedule strenuous activities",
			"Everyone may begin to experience health effects. Reduce or reschedule strenuous outdoor activities.",
			PriorityHigh, false)
		add(TypeRespiratory, "protection", "Wear a respirator outdoors",
			"Use an N95-rated mask if extended time outdoors is unavoidable.",
			PriorityHigh, sensitive)
		if profile.IsSmoker {
			add(TypeLifestyle, "smoking", "Avoid smoking today",
				"Combined exposure compounds respiratory strain on poor air days.",
				PriorityMedium, false)
		}

	case aqi <= 300:
		add(TypeRespiratory, "indoor", "Stay indoors",
			"Health alert: everyone may experience serious effects. Remain indoors and avoid outdoor activities.",
			PriorityCritical, true)
		add(TypeLifestyle, "filtration", "Run air filtration",
			"Keep windows closed and run an air purifier if available.",
			PriorityHigh, false)

	default:
		add(TypeRespiratory, "indoor", "Hazardous air: remain indoors",
			"Health warnings of emergency conditions. Avoid all outdoor activities. Stay indoors with air filtration.",
			PriorityCritical, true)
	}

	if category == RiskCritical {
		add(TypeLifestyle, "medical", "Consider medical advice",
			"Your personalized score is critically low. Consult a medical professional if you experience symptoms.",
			PriorityCritical, true)
	}

	return recs
}
