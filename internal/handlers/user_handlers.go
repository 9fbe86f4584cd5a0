package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/HamzaArc/Tontine-app-chat/internal/models"
)

type UserHandler struct {
	db *gorm.DB
}

func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

// Me returns the authenticated user's own record with settings.
func (h *UserHandler) Me(c echo.Context) error {
	var user models.User
	if err := h.db.Preload("Settings").First(&user, callerID(c)).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, user)
}

// requireSelf parses the :id parameter and rejects calls against other users.
// Profile endpoints are strictly self-service.
func requireSelf(c echo.Context) (uint, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return 0, err
	}
	if id != callerID(c) {
		return 0, echo.NewHTTPError(http.StatusForbidden, "you can only modify your own account")
	}
	return id, nil
}

type updateProfileRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

// UpdateProfile overwrites the provided profile fields.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	id, err := requireSelf(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}

	if err := h.db.Save(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update user")
	}

	return c.JSON(http.StatusOK, user)
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UpdatePassword verifies the current password before replacing it.
func (h *UserHandler) UpdatePassword(c echo.Context) error {
	id, err := requireSelf(c)
	if err != nil {
		return err
	}

	var req updatePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.NewPassword) < 8 {
		return echo.NewHTTPError(http.StatusBadRequest, "password must be at least 8 characters")
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to hash password")
	}

	user.PasswordHash = string(hash)
	if err := h.db.Save(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update password")
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "password updated"})
}

type updateSettingsRequest struct {
	EmailReminders   *bool `json:"email_reminders"`
	PushReminders    *bool `json:"push_reminders"`
	ReminderLeadDays *int  `json:"reminder_lead_days"`
}

// UpdateSettings upserts the user's notification preferences. Users without
// a settings row get the defaults as the base to patch against.
func (h *UserHandler) UpdateSettings(c echo.Context) error {
	id, err := requireSelf(c)
	if err != nil {
		return err
	}

	var req updateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var settings models.UserSettings
	err = h.db.Where("user_id = ?", id).First(&settings).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to load settings")
		}
		settings = models.DefaultUserSettings(id)
	}

	if req.EmailReminders != nil {
		settings.EmailReminders = *req.EmailReminders
	}
	if req.PushReminders != nil {
		settings.PushReminders = *req.PushReminders
	}
	if req.ReminderLeadDays != nil {
		if *req.ReminderLeadDays < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "reminder_lead_days must be zero or positive")
		}
		settings.ReminderLeadDays = *req.ReminderLeadDays
	}

	if err := h.db.Save(&settings).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save settings")
	}

	return c.JSON(http.StatusOK, settings)
}

type updatePushTokenRequest struct {
	PushToken string `json:"push_token"`
}

// UpdatePushToken registers or clears the device token reminders are sent to.
func (h *UserHandler) UpdatePushToken(c echo.Context) error {
	id, err := requireSelf(c)
	if err != nil {
		return err
	}

	var req updatePushTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.db.Model(&models.User{}).Where("id = ?", id).Update("push_token", req.PushToken).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update push token")
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "push token updated"})
}
