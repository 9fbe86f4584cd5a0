package handlers

import (
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/HamzaArc/Tontine-app-chat/internal/models"
	"github.com/HamzaArc/Tontine-app-chat/internal/services"
)

// newTestDB opens a throwaway sqlite database with the full schema migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// newCtx builds an echo context carrying a JSON body and the authenticated
// caller, the way requests arrive past the auth middleware.
func newCtx(t *testing.T, method, target, body string, callerID uint) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if callerID != 0 {
		c.Set("userID", callerID)
	}
	return c, rec
}

// httpStatus unwraps the status code a handler failed with.
func httpStatus(t *testing.T, err error) int {
	t.Helper()

	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he.Code
}

func createUser(t *testing.T, db *gorm.DB, name string) models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := models.User{
		Name:         name,
		Email:        fmt.Sprintf("%s@example.com", strings.ToLower(name)),
		PasswordHash: string(hash),
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
	return user
}

// createGroup creates a group with the given admin already enrolled.
func createGroup(t *testing.T, db *gorm.DB, admin models.User, contribution *float64) models.Group {
	t.Helper()

	group := models.Group{Name: "Test Circle", Contribution: contribution}
	if err := db.Create(&group).Error; err != nil {
		t.Fatalf("failed to create group: %v", err)
	}
	enroll(t, db, admin, group, models.RoleAdmin)
	return group
}

func enroll(t *testing.T, db *gorm.DB, user models.User, group models.Group, role models.Role) models.Membership {
	t.Helper()

	membership := models.Membership{UserID: user.ID, GroupID: group.ID, Role: role}
	if err := db.Create(&membership).Error; err != nil {
		t.Fatalf("failed to enroll user %d in group %d: %v", user.ID, group.ID, err)
	}
	return membership
}

func floatPtr(f float64) *float64 { return &f }
