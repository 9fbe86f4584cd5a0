package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/HamzaArc/Tontine-app-chat/internal/models"
)

// findMembership loads one user's membership row in a group. Returns
// gorm.ErrRecordNotFound when no such row exists.
func findMembership(db *gorm.DB, userID, groupID uint) (*models.Membership, error) {
	var membership models.Membership
	err := db.Where("user_id = ? AND group_id = ?", userID, groupID).First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// requireMember resolves the caller's membership or fails with Forbidden.
// Membership is the sole authorization fact; there are no global roles.
func requireMember(db *gorm.DB, userID, groupID uint) (*models.Membership, error) {
	membership, err := findMembership(db, userID, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusForbidden, "you are not a member of this group")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to check membership")
	}
	return membership, nil
}

// requireAdmin resolves the caller's membership and fails with Forbidden
// unless its role is admin.
func requireAdmin(db *gorm.DB, userID, groupID uint) (*models.Membership, error) {
	membership, err := requireMember(db, userID, groupID)
	if err != nil {
		return nil, err
	}
	if !membership.IsAdmin() {
		return nil, echo.NewHTTPError(http.StatusForbidden, "admin role required")
	}
	return membership, nil
}
