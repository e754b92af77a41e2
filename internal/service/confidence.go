package service

import "github.com/noah-isme/course-rec-api/internal/models"

// confidenceBaseline is the starting score, and the score reported when no
// required prerequisite carries a grade: "no historical basis", not an error.
const confidenceBaseline = 50.0

// dampingFactors scales confidence down for higher-rigor course types.
// Unlisted types keep the full score.
var dampingFactors = map[models.CourseType]float64{
	models.CourseTypeHonors:     0.90,
	models.CourseTypeAP:         0.85,
	models.CourseTypeIB:         0.85,
	models.CourseTypeDualCredit: 0.90,
}

// gradeAdjustment maps a grade-point value to a bounded confidence
// adjustment. Monotonic: stronger grades raise confidence.
func gradeAdjustment(points float64) float64 {
	switch {
	case points >= 3.5:
		return 15
	case points >= 3.0:
		return 10
	case points >= 2.0:
		return 5
	default:
		return -10
	}
}

// confidenceScore computes the 0-100 confidence for a candidate course from
// the grades earned in its required prerequisites, plus the number of graded
// required prerequisites the score rests on. Adjustments combine by simple
// average so several prerequisites do not stack additively. The course-type
// damping factor applies after the adjustment and before clamping.
func confidenceScore(courseType models.CourseType, groups []models.PrerequisiteGroup, gradePoints map[string]float64) (int, int) {
	var sum float64
	graded := 0
	for _, group := range groups {
		for _, member := range group.Members {
			if !member.Required {
				continue
			}
			points, ok := gradePoints[member.PrerequisiteID]
			if !ok {
				continue
			}
			sum += gradeAdjustment(points)
			graded++
		}
	}

	score := confidenceBaseline
	if graded > 0 {
		score += sum / float64(graded)
	}
	if factor, ok := dampingFactors[courseType]; ok {
		score *= factor
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(score), graded
}
