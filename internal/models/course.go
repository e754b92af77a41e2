package models

import "time"

// CourseType classifies catalog courses by rigor track. The set is closed;
// type-specific behavior is table-driven off these values.
type CourseType string

// Supported course types.
const (
	CourseTypeRegular    CourseType = "REGULAR"
	CourseTypeHonors     CourseType = "HONORS"
	CourseTypeAP         CourseType = "AP"
	CourseTypeIB         CourseType = "IB"
	CourseTypeDualCredit CourseType = "DUAL_CREDIT"
	CourseTypeRemedial   CourseType = "REMEDIAL"
	CourseTypeElective   CourseType = "ELECTIVE"
)

// Valid reports whether the value is one of the supported course types.
func (t CourseType) Valid() bool {
	switch t {
	case CourseTypeRegular, CourseTypeHonors, CourseTypeAP, CourseTypeIB,
		CourseTypeDualCredit, CourseTypeRemedial, CourseTypeElective:
		return true
	}
	return false
}

// Course represents a catalog course students can be recommended into.
// MinGPA is nil when the course has no GPA gate.
type Course struct {
	ID         string     `db:"id" json:"id"`
	Code       string     `db:"code" json:"code"`
	Name       string     `db:"name" json:"name"`
	Subject    string     `db:"subject" json:"subject"`
	CourseType CourseType `db:"course_type" json:"course_type"`
	MinGPA     *float64   `db:"min_gpa" json:"min_gpa,omitempty"`
	Credits    float64    `db:"credits" json:"credits"`
	Active     bool       `db:"active" json:"active"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// CourseFilter captures supported filters for listing courses.
type CourseFilter struct {
	Subject    string
	CourseType CourseType
	Active     *bool
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
