package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/course-rec-api/internal/models"
	"github.com/noah-isme/course-rec-api/internal/repository"
)

var errDatabaseDown = errors.New("database down")

func auditRouter(t *testing.T, handlerStatus int, logger *zap.Logger) (*gin.Engine, sqlmock.Sqlmock, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	repo := repository.NewUserRepository(sqlx.NewDb(db, "sqlmock"))

	router := gin.New()
	router.PUT("/courses/:id",
		func(c *gin.Context) {
			c.Set(ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin})
		},
		Audit(repo, logger, models.AuditActionUpdate, "course"),
		func(c *gin.Context) {
			c.Status(handlerStatus)
		},
	)
	return router, mock, func() { db.Close() }
}

func TestAuditRecordsSuccessfulMutation(t *testing.T) {
	router, mock, cleanup := auditRouter(t, http.StatusOK, nil)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs(
			sqlmock.AnyArg(), // id
			"user-1",
			models.AuditActionUpdate,
			"course",
			"crs-7",
			nil,              // old_values
			sqlmock.AnyArg(), // new_values
			sqlmock.AnyArg(), // ip_address
			sqlmock.AnyArg(), // user_agent
			sqlmock.AnyArg(), // created_at
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPut, "/courses/crs-7", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("audit row not written: %v", err)
	}
}

func TestAuditInsertFailureLogsWarning(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	router, mock, cleanup := auditRouter(t, http.StatusOK, zap.New(core))
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnError(errDatabaseDown)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPut, "/courses/crs-7", nil))

	// The trail is best-effort: the caller still gets their response.
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	entries := observed.FilterMessage("failed to record audit log").All()
	if len(entries) != 1 {
		t.Fatalf("expected one warning, got %d", len(entries))
	}
}

func TestAuditSkipsFailedRequests(t *testing.T) {
	router, mock, cleanup := auditRouter(t, http.StatusNotFound, nil)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPut, "/courses/crs-7", nil))

	// The unmet expectation proves no row was written for the 404.
	if err := mock.ExpectationsWereMet(); err == nil {
		t.Fatal("expected no audit insert for a failed request")
	}
}
