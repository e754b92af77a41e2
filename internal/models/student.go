package models

import "time"

// Student represents a learner whose academic record drives recommendations.
// CurrentGPA is nil until at least one grade has been recorded.
type Student struct {
	ID            string    `db:"id" json:"id"`
	StudentNumber string    `db:"student_number" json:"student_number"`
	FullName      string    `db:"full_name" json:"full_name"`
	GradeLevel    string    `db:"grade_level" json:"grade_level"`
	CurrentGPA    *float64  `db:"current_gpa" json:"current_gpa,omitempty"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search     string
	GradeLevel string
	Active     *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
