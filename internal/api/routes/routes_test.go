package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dolos-sec/dolos/internal/blocklist"
	"github.com/dolos-sec/dolos/internal/clock"
	"github.com/dolos-sec/dolos/internal/config"
	"github.com/dolos-sec/dolos/internal/detect"
	"github.com/dolos-sec/dolos/internal/engine"
	"github.com/dolos-sec/dolos/internal/history"
	"github.com/dolos-sec/dolos/internal/models"
	"github.com/dolos-sec/dolos/internal/services"
	"github.com/dolos-sec/dolos/internal/stats"
)

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	clk := clock.System()
	registry := blocklist.NewRegistry(blocklist.NewGormStore(db), clk)
	eng := engine.New(history.NewStore(0, clk), registry, clk)

	router := gin.New()
	err = Register(router, db, config.Config{JWTSecret: "test-secret"}, Deps{
		Classifier: detect.NewClassifier(),
		Engine:     eng,
		Registry:   registry,
		Stats:      stats.NewAggregator(0),
	})
	require.NoError(t, err)
	return router, db
}

func login(t *testing.T, router *gin.Engine, db *gorm.DB) string {
	t.Helper()
	authService := services.NewAuthService(db, config.Config{JWTSecret: "test-secret"})
	_, err := authService.Register("admin@example.com", "password123", "Admin")
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/auth/login",
		strings.NewReader(`{"email":"admin@example.com","password":"password123"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body["token"])
	return body["token"]
}

func TestRegister_MigratesModels(t *testing.T) {
	_, db := setupRouter(t)

	for _, model := range []interface{}{
		&models.User{}, &models.BlockRecord{}, &models.AuditEntry{}, &models.NotificationProvider{},
	} {
		assert.True(t, db.Migrator().HasTable(model))
	}
}

func TestRoutes_EndToEndBlockFlow(t *testing.T) {
	router, db := setupRouter(t)
	token := login(t, router, db)

	// An obvious webshell upload should be blocked immediately.
	req := httptest.NewRequest("POST", "/api/v1/events",
		strings.NewReader(`{"address":"203.0.113.20","path":"/shell","body":"system($_GET['cmd'])"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"blocked":true`)

	// The block surfaces in the registry listing.
	req = httptest.NewRequest("GET", "/api/v1/blocks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "203.0.113.20")

	// Unblocking through the API clears it.
	req = httptest.NewRequest("DELETE", "/api/v1/blocks/203.0.113.20", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_ProviderEndpointsRequireAdmin(t *testing.T) {
	router, db := setupRouter(t)
	token := login(t, router, db) // first registered user is admin

	req := httptest.NewRequest("GET", "/api/v1/notification-providers", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// A viewer must be rejected.
	authService := services.NewAuthService(db, config.Config{JWTSecret: "test-secret"})
	_, err := authService.Register("viewer@example.com", "password123", "Viewer")
	require.NoError(t, err)
	viewerToken, err := authService.Login("viewer@example.com", "password123")
	require.NoError(t, err)

	req = httptest.NewRequest("GET", "/api/v1/notification-providers", nil)
	req.Header.Set("Authorization", "Bearer "+viewerToken)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
