package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dolos-sec/dolos/internal/config"
	"github.com/dolos-sec/dolos/internal/models"
)

func setupAuthTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	return db
}

func TestAuthService_Register(t *testing.T) {
	db := setupAuthTestDB(t)
	service := NewAuthService(db, config.Config{JWTSecret: "test-secret"})

	admin, err := service.Register("admin@example.com", "password123", "Admin User")
	require.NoError(t, err)
	assert.Equal(t, "admin", admin.Role)
	assert.NotEmpty(t, admin.PasswordHash)
	assert.NotEqual(t, "password123", admin.PasswordHash)

	viewer, err := service.Register("viewer@example.com", "password123", "Viewer")
	require.NoError(t, err)
	assert.Equal(t, "viewer", viewer.Role)
}

func TestAuthService_Login(t *testing.T) {
	db := setupAuthTestDB(t)
	service := NewAuthService(db, config.Config{JWTSecret: "test-secret"})

	_, err := service.Register("test@example.com", "password123", "Test User")
	require.NoError(t, err)

	token, err := service.Login("test@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	token, err = service.Login("test@example.com", "wrongpassword")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Empty(t, token)

	_, err = service.Login("nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_LoginLockout(t *testing.T) {
	db := setupAuthTestDB(t)
	service := NewAuthService(db, config.Config{JWTSecret: "test-secret"})

	_, err := service.Register("test@example.com", "password123", "Test User")
	require.NoError(t, err)

	for i := 0; i < maxFailedLogins; i++ {
		_, err = service.Login("test@example.com", "wrongpassword")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	var user models.User
	require.NoError(t, db.Where("email = ?", "test@example.com").First(&user).Error)
	assert.Equal(t, maxFailedLogins, user.FailedLoginAttempts)
	require.NotNil(t, user.LockedUntil)
	assert.True(t, user.LockedUntil.After(time.Now()))

	// Correct password while locked still fails.
	_, err = service.Login("test@example.com", "password123")
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestAuthService_ValidateToken(t *testing.T) {
	db := setupAuthTestDB(t)
	service := NewAuthService(db, config.Config{JWTSecret: "test-secret"})

	user, err := service.Register("test@example.com", "password123", "Test User")
	require.NoError(t, err)

	token, err := service.Login("test@example.com", "password123")
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "test@example.com", claims.Subject)

	_, err = service.ValidateToken("not-a-token")
	assert.Error(t, err)

	other := NewAuthService(db, config.Config{JWTSecret: "different-secret"})
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestAuthService_ChangePassword(t *testing.T) {
	db := setupAuthTestDB(t)
	service := NewAuthService(db, config.Config{JWTSecret: "test-secret"})

	user, err := service.Register("test@example.com", "password123", "Test User")
	require.NoError(t, err)

	err = service.ChangePassword(user.ID, "wrongpassword", "newpassword1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, service.ChangePassword(user.ID, "password123", "newpassword1"))

	_, err = service.Login("test@example.com", "password123")
	assert.Error(t, err)
	token, err := service.Login("test@example.com", "newpassword1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}
