package scorer

// StudentPayload is the student representation sent to the scoring service.
// IDs travel as strings; preference fields left empty are treated as neutral
// by the scorer.
type StudentPayload struct {
	ID             string `json:"_id"`
	Name           string `json:"name"`
	SleepSchedule  string `json:"sleepSchedule,omitempty"`
	Cleanliness    string `json:"cleanliness,omitempty"`
	StudyHabits    string `json:"studyHabits,omitempty"`
	NoiseTolerance string `json:"noiseTolerance,omitempty"`
	Lifestyle      string `json:"lifestyle,omitempty"`
}

type matchRequest struct {
	TargetStudent StudentPayload   `json:"targetStudent"`
	Candidates    []StudentPayload `json:"candidates"`
	TopK          int              `json:"topK"`
}

type matchResponse struct {
	Matches []struct {
		Student struct {
			ID   string `json:"_id"`
			Name string `json:"name"`
		} `json:"student"`
		CompatibilityScore float64 `json:"compatibilityScore"`
	} `json:"matches"`
	MatchesFound int `json:"matchesFound"`
}

type groupRequest struct {
	Students      []StudentPayload `json:"students"`
	RoomCapacity  int              `json:"roomCapacity"`
	MinGroupScore float64          `json:"minGroupScore"`
}

type groupResponse struct {
	Groups []struct {
		Students []struct {
			ID   string `json:"_id"`
			Name string `json:"name"`
		} `json:"students"`
		AverageScore float64 `json:"averageScore"`
	} `json:"groups"`
	TotalGroups int `json:"totalGroups"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// RankedMatch is one pairwise result from the scorer, mapped back to a
// numeric student id.
type RankedMatch struct {
	StudentID int64   `json:"student_id"`
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
}

// ProposedGroup is one grouping suggested by the scorer's clustering call.
type ProposedGroup struct {
	StudentIDs     []int64 `json:"student_ids"`
	AggregateScore float64 `json:"aggregate_score"`
}
