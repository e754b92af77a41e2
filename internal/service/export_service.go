package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-rec-api/internal/models"
	"github.com/noah-isme/course-rec-api/pkg/export"
	"github.com/noah-isme/course-rec-api/pkg/storage"
)

type recommendationGenerator interface {
	Generate(ctx context.Context, studentID, term string) ([]models.Recommendation, error)
}

type exportStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService renders recommendation runs into downloadable files.
type ExportService struct {
	recommendations recommendationGenerator
	students        exportStudentReader
	storage         fileStorage
	csv             csvRenderer
	pdf             pdfRenderer
	signer          *storage.SignedURLSigner
	logger          *zap.Logger
	cfg             ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(recommendations recommendationGenerator, students exportStudentReader, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		recommendations: recommendations,
		students:        students,
		storage:         storage,
		csv:             csv,
		pdf:             pdf,
		signer:          signer,
		logger:          logger,
		cfg:             cfg,
	}
}

// Generate runs the engine for the job's student and term and stores the
// rendered export. The run happens at processing time, so the file reflects
// the data as of generation, not as of enqueueing.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	if job.Type != models.ReportTypeRecommendations {
		return nil, fmt.Errorf("unsupported report type %s", job.Type)
	}
	dataset, err := s.buildRecommendationDataset(ctx, job.Params)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/reports/download?token=%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	termPart := sanitizeFilename(job.Params.Term)
	studentPart := sanitizeFilename(job.Params.StudentID)
	return fmt.Sprintf("recommendations_%s_%s_%s.%s", studentPart, termPart, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildRecommendationDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, error) {
	student, err := s.students.FindByID(ctx, params.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return export.Dataset{}, fmt.Errorf("student %s not found", params.StudentID)
		}
		return export.Dataset{}, fmt.Errorf("load student: %w", err)
	}
	recommendations, err := s.recommendations.Generate(ctx, params.StudentID, params.Term)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("generate recommendations: %w", err)
	}

	rows := make([]map[string]string, 0, len(recommendations))
	for _, rec := range recommendations {
		rows = append(rows, map[string]string{
			"Course Code": rec.CourseCode,
			"Course Name": rec.CourseName,
			"Subject":     rec.Subject,
			"Type":        string(rec.CourseType),
			"Confidence":  fmt.Sprintf("%d", rec.Confidence),
			"Prereqs Met": formatBool(rec.PrerequisitesMet),
			"GPA Met":     formatBool(rec.GPARequirementMet),
			"Reason":      rec.Reason,
		})
	}
	dataset := export.Dataset{
		Title:       fmt.Sprintf("Course Recommendations %s %s", student.StudentNumber, params.Term),
		GeneratedAt: time.Now().UTC(),
		Headers:     []string{"Course Code", "Course Name", "Subject", "Type", "Confidence", "Prereqs Met", "GPA Met", "Reason"},
		Rows:        rows,
	}
	return dataset, nil
}

func formatBool(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
