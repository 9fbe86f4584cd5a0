package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/HamzaArc/Tontine-app-chat/internal/models"
)

func TestMe(t *testing.T) {
	db := newTestDB(t)
	h := NewUserHandler(db)
	alice := createUser(t, db, "Alice")
	settings := models.DefaultUserSettings(alice.ID)
	if err := db.Create(&settings).Error; err != nil {
		t.Fatalf("failed to create settings: %v", err)
	}

	c, rec := newCtx(t, http.MethodGet, "/users/me", "", alice.ID)
	if err := h.Me(c); err != nil {
		t.Fatalf("Me failed: %v", err)
	}

	var user models.User
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if user.ID != alice.ID {
		t.Errorf("id: expected %d, got %d", alice.ID, user.ID)
	}
	if user.Settings == nil {
		t.Error("expected settings nested in the profile")
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("profile must not contain password material")
	}
}

func TestUpdateProfile(t *testing.T) {
	db := newTestDB(t)
	h := NewUserHandler(db)
	alice := createUser(t, db, "Alice")
	bob := createUser(t, db, "Bob")

	t.Run("other accounts are off limits", func(t *testing.T) {
		c, _ := newCtx(t, http.MethodPut, "/users/:id", `{"name":"Mallory"}`, bob.ID)
		c.SetParamNames("id")
		c.SetParamValues(fmt.Sprint(alice.ID))
		err := h.UpdateProfile(c)
		if got := httpStatus(t, err); got != http.StatusForbidden {
			t.Errorf("status: expected 403, got %d", got)
		}
	})

	t.Run("own profile fields are patched", func(t *testing.T) {
		c, _ := newCtx(t, http.MethodPut, "/users/:id", `{"phone":"+212600000042"}`, alice.ID)
		c.SetParamNames("id")
		c.SetParamValues(fmt.Sprint(alice.ID))
		if err := h.UpdateProfile(c); err != nil {
			t.Fatalf("UpdateProfile failed: %v", err)
		}

		var got models.User
		if err := db.First(&got, alice.ID).Error; err != nil {
			t.Fatalf("failed to reload user: %v", err)
		}
		if got.Phone != "+212600000042" {
			t.Errorf("phone: expected updated, got %q", got.Phone)
		}
		if got.Name != alice.Name {
			t.Errorf("name: expected untouched, got %q", got.Name)
		}
	})
}

func TestUpdatePassword(t *testing.T) {
	db := newTestDB(t)
	h := NewUserHandler(db)
	alice := createUser(t, db, "Alice")

	t.Run("wrong current password is rejected", func(t *testing.T) {
		c, _ := newCtx(t, http.MethodPut, "/users/:id/password",
			`{"current_password":"wrong","new_password":"new-password-1"}`, alice.ID)
		c.SetParamNames("id")
		c.SetParamValues(fmt.Sprint(alice.ID))
		err := h.UpdatePassword(c)
		if got := httpStatus(t, err); got != http.StatusUnauthorized {
			t.Errorf("status: expected 401, got %d", got)
		}
	})

	t.Run("short replacement is rejected", func(t *testing.T) {
		c, _ := newCtx(t, http.MethodPut, "/users/:id/password",
			`{"current_password":"password123","new_password":"short"}`, alice.ID)
		c.SetParamNames("id")
		c.SetParamValues(fmt.Sprint(alice.ID))
		err := h.UpdatePassword(c)
		if got := httpStatus(t, err); got != http.StatusBadRequest {
			t.Errorf("status: expected 400, got %d", got)
		}
	})

	t.Run("valid rotation replaces the hash", func(t *testing.T) {
		c, _ := newCtx(t, http.MethodPut, "/users/:id/password",
			`{"current_password":"password123","new_password":"new-password-1"}`, alice.ID)
		c.SetParamNames("id")
		c.SetParamValues(fmt.Sprint(alice.ID))
		if err := h.UpdatePassword(c); err != nil {
			t.Fatalf("UpdatePassword failed: %v", err)
		}

		var got models.User
		if err := db.First(&got, alice.ID).Error; err != nil {
			t.Fatalf("failed to reload user: %v", err)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("new-password-1")); err != nil {
			t.Errorf("new password does not verify: %v", err)
		}
	})
}

func TestUpdateSettings(t *testing.T) {
	db := newTestDB(t)
	h := NewUserHandler(db)
	alice := createUser(t, db, "Alice")

	t.Run("first write creates the row from defaults", func(t *testing.T) {
		c, rec := newCtx(t, http.MethodPut, "/users/:id/settings", `{"push_reminders":false}`, alice.ID)
		c.SetParamNames("id")
		c.SetParamValues(fmt.Sprint(alice.ID))
		if err := h.UpdateSettings(c); err != nil {
			t.Fatalf("UpdateSettings failed: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d", rec.Code)
		}

		var got models.UserSettings
		if err := db.Where("user_id = ?", alice.ID).First(&got).Error; err != nil {
			t.Fatalf("failed to load settings: %v", err)
		}
		if got.PushReminders {
			t.Error("push_reminders: expected false")
		}
		if !got.EmailReminders || got.ReminderLeadDays != 3 {
			t.Errorf("untouched fields should keep defaults, got %+v", got)
		}
	})

	t.Run("negative lead days are rejected", func(t *testing.T) {
		c, _ := newCtx(t, http.MethodPut, "/users/:id/settings", `{"reminder_lead_days":-1}`, alice.ID)
		c.SetParamNames("id")
		c.SetParamValues(fmt.Sprint(alice.ID))
		err := h.UpdateSettings(c)
		if got := httpStatus(t, err); got != http.StatusBadRequest {
			t.Errorf("status: expected 400, got %d", got)
		}
	})
}

func TestUpdatePushToken(t *testing.T) {
	db := newTestDB(t)
	h := NewUserHandler(db)
	alice := createUser(t, db, "Alice")

	set := func(token string) {
		t.Helper()
		c, _ := newCtx(t, http.MethodPut, "/users/:id/push-token",
			fmt.Sprintf(`{"push_token":%q}`, token), alice.ID)
		c.SetParamNames("id")
		c.SetParamValues(fmt.Sprint(alice.ID))
		if err := h.UpdatePushToken(c); err != nil {
			t.Fatalf("UpdatePushToken failed: %v", err)
		}
	}

	set("fcm-token-abc")
	var got models.User
	if err := db.First(&got, alice.ID).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if got.PushToken != "fcm-token-abc" {
		t.Errorf("push_token: expected stored, got %q", got.PushToken)
	}

	// An empty token unregisters the device.
	set("")
	if err := db.First(&got, alice.ID).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if got.PushToken != "" {
		t.Errorf("push_token: expected cleared, got %q", got.PushToken)
	}
}
