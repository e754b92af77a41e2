package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-rec-api/internal/middleware"
	"github.com/noah-isme/course-rec-api/internal/models"
	appErrors "github.com/noah-isme/course-rec-api/pkg/errors"
	"github.com/noah-isme/course-rec-api/pkg/response"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// requireClaims returns the caller's claims, writing a 401 when the
// route was wired without the JWT middleware.
func requireClaims(c *gin.Context) (*models.JWTClaims, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

// bindJSON decodes the request body into dest and writes the 400
// response on failure. Callers return immediately when it reports false.
func bindJSON(c *gin.Context, dest interface{}, msg string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, msg))
		return false
	}
	return true
}

// pageParams parses page and limit query values, clamping the size so
// one request cannot sweep a whole table.
func pageParams(c *gin.Context) (page, size int) {
	page, size = 1, defaultPageSize
	if v, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && v > 0 {
		size = v
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

// boolParam parses an optional boolean query value; unparseable input
// is treated as absent.
func boolParam(c *gin.Context, name string) *bool {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}
