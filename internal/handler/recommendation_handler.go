package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-rec-api/internal/dto"
	"github.com/noah-isme/course-rec-api/internal/models"
	appErrors "github.com/noah-isme/course-rec-api/pkg/errors"
	"github.com/noah-isme/course-rec-api/pkg/response"
)

type recommendationEngine interface {
	Generate(ctx context.Context, studentID, term string) ([]models.Recommendation, error)
}

type recommendationExporter interface {
	CreateJob(ctx context.Context, studentID string, req dto.ExportRecommendationsRequest, actorID string) (*dto.ReportJobResponse, error)
}

// RecommendationHandler exposes the recommendation engine over HTTP.
type RecommendationHandler struct {
	recommendations recommendationEngine
	reports         recommendationExporter
}

// NewRecommendationHandler constructs RecommendationHandler.
func NewRecommendationHandler(recommendations recommendationEngine, reports recommendationExporter) *RecommendationHandler {
	return &RecommendationHandler{recommendations: recommendations, reports: reports}
}

// List godoc
// @Summary Generate course recommendations for a student
// @Tags Recommendations
// @Produce json
// @Param id path string true "Student ID"
// @Param term query string true "Target term, e.g. 2026-SPRING"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/recommendations [get]
func (h *RecommendationHandler) List(c *gin.Context) {
	term := strings.TrimSpace(c.Query("term"))
	if term == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "term query parameter is required"))
		return
	}
	recommendations, err := h.recommendations.Generate(c.Request.Context(), c.Param("id"), term)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, recommendations, nil)
}

// Export godoc
// @Summary Enqueue a recommendation export job
// @Tags Recommendations
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.ExportRecommendationsRequest true "Export payload"
// @Success 202 {object} response.Envelope
// @Failure 429 {object} response.Envelope "Too many pending report jobs"
// @Router /students/{id}/recommendations/export [post]
func (h *RecommendationHandler) Export(c *gin.Context) {
	var req dto.ExportRecommendationsRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	job, err := h.reports.CreateJob(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}
