package models

import "time"

// PrerequisiteLink ties a course to one prerequisite course. Links sharing
// the same (CourseID, GroupNo) pair form a single prerequisite group.
type PrerequisiteLink struct {
	ID             string    `db:"id" json:"id"`
	CourseID       string    `db:"course_id" json:"course_id"`
	PrerequisiteID string    `db:"prerequisite_id" json:"prerequisite_id"`
	GroupNo        int       `db:"group_no" json:"group_no"`
	Required       bool      `db:"required" json:"required"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// PrerequisiteMember is one entry inside a resolved prerequisite group.
type PrerequisiteMember struct {
	PrerequisiteID string `json:"prerequisite_id"`
	Required       bool   `json:"required"`
}

// PrerequisiteGroup is the resolved view of one group. A group with required
// members needs every required member completed; a group with none is
// satisfied by completing any single member. A course requires all of its
// groups satisfied.
type PrerequisiteGroup struct {
	GroupNo int                  `json:"group_no"`
	Members []PrerequisiteMember `json:"members"`
}
