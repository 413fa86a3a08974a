package matching

import (
	"strconv"

	"hostel-allocation-backend/internal/model"
	"hostel-allocation-backend/internal/scorer"
)

// Payloads converts students and their compatibility profiles into the wire
// form the scoring service expects. Students without a saved profile are
// sent with empty preference fields, which the scorer treats as neutral.
func Payloads(students []model.Student, profiles []model.CompatibilityProfile) []scorer.StudentPayload {
	profileMap := make(map[int64]model.CompatibilityProfile, len(profiles))
	for _, p := range profiles {
		profileMap[p.StudentID] = p
	}

	payloads := make([]scorer.StudentPayload, 0, len(students))
	for _, st := range students {
		payload := scorer.StudentPayload{
			ID:   strconv.FormatInt(st.ID, 10),
			Name: st.Name,
		}
		if p, ok := profileMap[st.ID]; ok {
			payload.SleepSchedule = p.SleepSchedule
			payload.Cleanliness = p.Cleanliness
			payload.StudyHabits = p.StudyHabits
			payload.NoiseTolerance = p.NoiseTolerance
			payload.Lifestyle = p.Lifestyle
		}
		payloads = append(payloads, payload)
	}
	return payloads
}
