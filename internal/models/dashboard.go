package models

import "time"

// GradeLevelCount aggregates active students per grade level.
type GradeLevelCount struct {
	GradeLevel string `db:"grade_level" json:"grade_level"`
	Count      int    `db:"count" json:"count"`
}

// CourseTypeCount aggregates active catalog courses per course type.
type CourseTypeCount struct {
	CourseType CourseType `db:"course_type" json:"course_type"`
	Count      int        `db:"count" json:"count"`
}

// EnrollmentStatusCount aggregates enrollments per status.
type EnrollmentStatusCount struct {
	Status EnrollmentStatus `db:"status" json:"status"`
	Count  int              `db:"count" json:"count"`
}

// SystemMetrics aggregates instrumentation counters for dashboard surfacing.
type SystemMetrics struct {
	CacheHitRatio               float64   `json:"cache_hit_ratio"`
	CacheHits                   uint64    `json:"cache_hits"`
	CacheMisses                 uint64    `json:"cache_misses"`
	RequestsTotal               uint64    `json:"requests_total"`
	AverageRequestDurationMs    float64   `json:"average_request_duration_ms"`
	DBQueryCount                uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs    float64   `json:"average_db_query_duration_ms"`
	RecommendationRuns          uint64    `json:"recommendation_runs"`
	AverageCandidatesPerRun     float64   `json:"average_candidates_per_run"`
	PrerequisiteInconsistencies uint64    `json:"prerequisite_inconsistencies"`
	ReportQueueDepth            int       `json:"report_queue_depth"`
	Goroutines                  int       `json:"goroutines"`
	GeneratedAt                 time.Time `json:"generated_at"`
}

// DashboardOverview summarises the data the recommendation engine draws on.
type DashboardOverview struct {
	TotalStudents        int                     `json:"total_students"`
	TotalCourses         int                     `json:"total_courses"`
	TotalEnrollments     int                     `json:"total_enrollments"`
	StudentsByGradeLevel []GradeLevelCount       `json:"students_by_grade_level"`
	CoursesByType        []CourseTypeCount       `json:"courses_by_type"`
	EnrollmentsByStatus  []EnrollmentStatusCount `json:"enrollments_by_status"`
	GeneratedAt          time.Time               `json:"generated_at"`
}
