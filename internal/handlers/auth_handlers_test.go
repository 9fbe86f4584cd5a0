package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/HamzaArc/Tontine-app-chat/internal/models"
	"github.com/HamzaArc/Tontine-app-chat/internal/services"
)

func newAuthHandler(t *testing.T) (*AuthHandler, *services.JWTService) {
	t.Helper()
	db := newTestDB(t)
	jwt := services.NewJWTService("test-secret", time.Hour)
	return NewAuthHandler(db, jwt), jwt
}

func TestRegister(t *testing.T) {
	t.Run("creates user with default settings", func(t *testing.T) {
		h, _ := newAuthHandler(t)
		c, rec := newCtx(t, http.MethodPost, "/users",
			`{"name":"Alice","email":"Alice@Example.com","password":"password123","phone":"+212600000001"}`, 0)

		if err := h.Register(c); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if rec.Code != http.StatusCreated {
			t.Fatalf("status: expected 201, got %d", rec.Code)
		}

		var user models.User
		if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if user.Email != "alice@example.com" {
			t.Errorf("email: expected lowercased, got %q", user.Email)
		}
		if strings.Contains(rec.Body.String(), "password") {
			t.Error("response must not contain any password material")
		}

		var settings models.UserSettings
		if err := h.db.Where("user_id = ?", user.ID).First(&settings).Error; err != nil {
			t.Fatalf("expected default settings row: %v", err)
		}
		if !settings.EmailReminders || !settings.PushReminders || settings.ReminderLeadDays != 3 {
			t.Errorf("unexpected default settings: %+v", settings)
		}
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		h, _ := newAuthHandler(t)
		createUser(t, h.db, "Bob")

		c, _ := newCtx(t, http.MethodPost, "/users",
			`{"name":"Bob 2","email":"bob@example.com","password":"password123"}`, 0)
		err := h.Register(c)
		if got := httpStatus(t, err); got != http.StatusBadRequest {
			t.Errorf("status: expected 400, got %d", got)
		}
	})

	t.Run("rejects short password", func(t *testing.T) {
		h, _ := newAuthHandler(t)
		c, _ := newCtx(t, http.MethodPost, "/users",
			`{"name":"Carl","email":"carl@example.com","password":"short"}`, 0)
		err := h.Register(c)
		if got := httpStatus(t, err); got != http.StatusBadRequest {
			t.Errorf("status: expected 400, got %d", got)
		}
	})

	t.Run("rejects missing name", func(t *testing.T) {
		h, _ := newAuthHandler(t)
		c, _ := newCtx(t, http.MethodPost, "/users",
			`{"email":"dora@example.com","password":"password123"}`, 0)
		err := h.Register(c)
		if got := httpStatus(t, err); got != http.StatusBadRequest {
			t.Errorf("status: expected 400, got %d", got)
		}
	})
}

func TestLogin(t *testing.T) {
	h, jwt := newAuthHandler(t)
	user := createUser(t, h.db, "Alice")

	t.Run("issues a valid token", func(t *testing.T) {
		c, rec := newCtx(t, http.MethodPost, "/auth/login",
			`{"email":"alice@example.com","password":"password123"}`, 0)
		if err := h.Login(c); err != nil {
			t.Fatalf("Login failed: %v", err)
		}

		var resp struct {
			Token string      `json:"token"`
			User  models.User `json:"user"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Token == "" {
			t.Fatal("expected a token")
		}
		claims, err := jwt.Validate(resp.Token)
		if err != nil {
			t.Fatalf("token did not validate: %v", err)
		}
		if claims.UserID != user.ID || claims.Email != user.Email {
			t.Errorf("claims: expected (%d, %s), got (%d, %s)", user.ID, user.Email, claims.UserID, claims.Email)
		}
	})

	t.Run("rejects wrong password", func(t *testing.T) {
		c, _ := newCtx(t, http.MethodPost, "/auth/login",
			`{"email":"alice@example.com","password":"wrong-password"}`, 0)
		err := h.Login(c)
		if got := httpStatus(t, err); got != http.StatusUnauthorized {
			t.Errorf("status: expected 401, got %d", got)
		}
	})

	t.Run("rejects unknown email with the same status", func(t *testing.T) {
		c, _ := newCtx(t, http.MethodPost, "/auth/login",
			`{"email":"nobody@example.com","password":"password123"}`, 0)
		err := h.Login(c)
		if got := httpStatus(t, err); got != http.StatusUnauthorized {
			t.Errorf("status: expected 401, got %d", got)
		}
	})
}
