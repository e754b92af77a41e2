package models

// Recommendation is the engine's verdict on one candidate course for a
// student and target term. It is computed fresh per request and never
// persisted; callers decide which entries to surface based on the flags.
type Recommendation struct {
	CourseID          string     `json:"course_id"`
	CourseCode        string     `json:"course_code"`
	CourseName        string     `json:"course_name"`
	Subject           string     `json:"subject"`
	CourseType        CourseType `json:"course_type"`
	PrerequisitesMet  bool       `json:"prerequisites_met"`
	GPARequirementMet bool       `json:"gpa_requirement_met"`
	Confidence        int        `json:"confidence"`
	Reason            string     `json:"reason"`
	TargetTerm        string     `json:"target_term"`
}
