package models

import "time"

// Grade records the outcome of a completed course for a student. GradePoints
// holds the letter grade converted to the 4.0 scale at record time, so
// downstream consumers never parse letters.
type Grade struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	CourseID     string    `db:"course_id" json:"course_id"`
	LetterGrade  string    `db:"letter_grade" json:"letter_grade"`
	GradePoints  float64   `db:"grade_points" json:"grade_points"`
	Term         string    `db:"term" json:"term"`
	AcademicYear int       `db:"academic_year" json:"academic_year"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// GradeFilter allows querying of grade entries.
type GradeFilter struct {
	StudentID    string
	CourseID     string
	Term         string
	AcademicYear int
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

var letterGradePoints = map[string]float64{
	"A+": 4.0,
	"A":  4.0,
	"A-": 3.7,
	"B+": 3.3,
	"B":  3.0,
	"B-": 2.7,
	"C+": 2.3,
	"C":  2.0,
	"C-": 1.7,
	"D+": 1.3,
	"D":  1.0,
	"D-": 0.7,
	"F":  0.0,
}

// GradePointsForLetter converts a letter grade to its 4.0-scale value.
// The second return value is false for unrecognized letters.
func GradePointsForLetter(letter string) (float64, bool) {
	points, ok := letterGradePoints[letter]
	return points, ok
}
