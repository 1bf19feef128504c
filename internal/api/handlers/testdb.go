package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dolos-sec/dolos/internal/models"
)

// setupHandlerTestDB returns a fresh in-memory database with all models
// migrated, plus a gin engine in test mode.
func setupHandlerTestDB(t *testing.T) (*gorm.DB, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.BlockRecord{},
		&models.AuditEntry{},
		&models.NotificationProvider{},
	))

	return db, gin.New()
}

func doJSON(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	return doAuthedJSON(router, method, path, body, "")
}

func doAuthedJSON(router http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
