package service

import "github.com/noah-isme/course-rec-api/internal/models"

// groupSatisfied reports whether one prerequisite group is met by the
// completed-course set. A group holding required members demands every one
// of them; non-required members are ignored in that case. A group with no
// required members is satisfied by any single completed member. An empty
// group holds nothing over the student.
func groupSatisfied(group models.PrerequisiteGroup, completed map[string]bool) bool {
	hasRequired := false
	for _, member := range group.Members {
		if member.Required {
			hasRequired = true
			if !completed[member.PrerequisiteID] {
				return false
			}
		}
	}
	if hasRequired {
		return true
	}
	for _, member := range group.Members {
		if completed[member.PrerequisiteID] {
			return true
		}
	}
	return len(group.Members) == 0
}

// prerequisitesSatisfied applies AND semantics across all groups. Zero
// groups are vacuously satisfied.
func prerequisitesSatisfied(groups []models.PrerequisiteGroup, completed map[string]bool) bool {
	for _, group := range groups {
		if !groupSatisfied(group, completed) {
			return false
		}
	}
	return true
}

// gpaRequirementSatisfied gates on the course minimum GPA. A course without
// a requirement always passes; a nil student GPA fails any gated course.
func gpaRequirementSatisfied(minGPA, currentGPA *float64) bool {
	if minGPA == nil {
		return true
	}
	if currentGPA == nil {
		return false
	}
	return *currentGPA >= *minGPA
}
