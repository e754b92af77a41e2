package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-rec-api/internal/dto"
	"github.com/noah-isme/course-rec-api/internal/middleware"
	"github.com/noah-isme/course-rec-api/internal/models"
)

type engineMock struct {
	recommendations []models.Recommendation
	err             error
	lastStudentID   string
	lastTerm        string
}

func (m *engineMock) Generate(ctx context.Context, studentID, term string) ([]models.Recommendation, error) {
	m.lastStudentID = studentID
	m.lastTerm = term
	if m.err != nil {
		return nil, m.err
	}
	return m.recommendations, nil
}

type exporterMock struct {
	resp *dto.ReportJobResponse
	err  error
}

func (m *exporterMock) CreateJob(ctx context.Context, studentID string, req dto.ExportRecommendationsRequest, actorID string) (*dto.ReportJobResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func TestRecommendationHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := &engineMock{recommendations: []models.Recommendation{
		{CourseID: "crs-1", CourseCode: "MATH-201", Confidence: 65, TargetTerm: "2026-SPRING"},
	}}
	handler := NewRecommendationHandler(engine, &exporterMock{})

	c, w := newGinContext(http.MethodGet, "/students/stu-1/recommendations?term=2026-SPRING", nil)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu-1", engine.lastStudentID)
	assert.Equal(t, "2026-SPRING", engine.lastTerm)

	var envelope struct {
		Data []models.Recommendation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "MATH-201", envelope.Data[0].CourseCode)
}

func TestRecommendationHandlerListMissingTerm(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRecommendationHandler(&engineMock{}, &exporterMock{})

	c, w := newGinContext(http.MethodGet, "/students/stu-1/recommendations", nil)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}

	handler.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecommendationHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exporter := &exporterMock{resp: &dto.ReportJobResponse{ID: "job-1", Status: models.ReportStatusQueued}}
	handler := NewRecommendationHandler(&engineMock{}, exporter)

	payload, _ := json.Marshal(dto.ExportRecommendationsRequest{Term: "2026-SPRING", Format: models.ReportFormatCSV})
	c, w := newGinContext(http.MethodPost, "/students/stu-1/recommendations/export", payload)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "counselor-1", Role: models.RoleCounselor})

	handler.Export(c)
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestRecommendationHandlerExportRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRecommendationHandler(&engineMock{}, &exporterMock{})

	payload, _ := json.Marshal(dto.ExportRecommendationsRequest{Term: "2026-SPRING", Format: models.ReportFormatCSV})
	c, w := newGinContext(http.MethodPost, "/students/stu-1/recommendations/export", payload)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}

	handler.Export(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
