package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/HamzaArc/Tontine-app-chat/internal/models"
)

type MembershipHandler struct {
	db *gorm.DB
}

func NewMembershipHandler(db *gorm.DB) *MembershipHandler {
	return &MembershipHandler{db: db}
}

type addMembershipRequest struct {
	UserID  uint        `json:"user_id"`
	GroupID uint        `json:"group_id"`
	Role    models.Role `json:"role"`
}

// AddMembership enrolls a user into a group. Only admins of the target group
// may add members; the role defaults to member when omitted.
func (h *MembershipHandler) AddMembership(c echo.Context) error {
	var req addMembershipRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == 0 || req.GroupID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and group_id are required")
	}

	var group models.Group
	if err := h.db.First(&group, req.GroupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "group not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch group")
	}

	if _, err := requireAdmin(h.db, callerID(c), group.ID); err != nil {
		return err
	}

	var user models.User
	if err := h.db.First(&user, req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch user")
	}

	role := req.Role
	if role == "" {
		role = models.RoleMember
	}
	if !models.ValidRole(role) {
		return echo.NewHTTPError(http.StatusBadRequest, "role must be admin or member")
	}

	if _, err := findMembership(h.db, req.UserID, req.GroupID); err == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "user is already a member of this group")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to check membership")
	}

	if group.MaxMembers != nil {
		var count int64
		if err := h.db.Model(&models.Membership{}).Where("group_id = ?", group.ID).Count(&count).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to count members")
		}
		if count >= int64(*group.MaxMembers) {
			return echo.NewHTTPError(http.StatusBadRequest, "group is full")
		}
	}

	membership := models.Membership{
		UserID:  req.UserID,
		GroupID: req.GroupID,
		Role:    role,
	}
	if err := h.db.Create(&membership).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create membership")
	}

	if err := h.db.Preload("User").First(&membership, membership.ID).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load membership")
	}

	return c.JSON(http.StatusCreated, membership)
}

// ListMemberships returns memberships matching the optional user_id and
// group_id query filters, each with nested User and Group projections.
func (h *MembershipHandler) ListMemberships(c echo.Context) error {
	query := h.db.Preload("User").Preload("Group")

	if raw := c.QueryParam("user_id"); raw != "" {
		userID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid user_id")
		}
		query = query.Where("user_id = ?", uint(userID))
	}

	if raw := c.QueryParam("group_id"); raw != "" {
		groupID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid group_id")
		}
		query = query.Where("group_id = ?", uint(groupID))
	}

	var memberships []models.Membership
	if err := query.Find(&memberships).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch memberships")
	}

	return c.JSON(http.StatusOK, memberships)
}

type updateRoleRequest struct {
	Role models.Role `json:"role"`
}

// UpdateRole changes a membership's role. Only admins of the membership's
// group may call this, and the new role must be exactly admin or member.
func (h *MembershipHandler) UpdateRole(c echo.Context) error {
	membershipID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var membership models.Membership
	if err := h.db.First(&membership, membershipID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "membership not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch membership")
	}

	if _, err := requireAdmin(h.db, callerID(c), membership.GroupID); err != nil {
		return err
	}

	var req updateRoleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if !models.ValidRole(req.Role) {
		return echo.NewHTTPError(http.StatusBadRequest, "role must be admin or member")
	}

	membership.Role = req.Role
	if err := h.db.Save(&membership).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update membership")
	}

	return c.JSON(http.StatusOK, membership)
}

// RemoveMembership deletes a membership. The member may leave on their own;
// otherwise a group admin is required. The member's payments across all of
// the group's cycles are deleted in the same transaction, so ListForCycle
// never returns a payment for a removed member.
func (h *MembershipHandler) RemoveMembership(c echo.Context) error {
	membershipID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var membership models.Membership
	if err := h.db.First(&membership, membershipID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "membership not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch membership")
	}

	caller := callerID(c)
	if caller != membership.UserID {
		if _, err := requireAdmin(h.db, caller, membership.GroupID); err != nil {
			return err
		}
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		var cycleIDs []uint
		if err := tx.Model(&models.Cycle{}).Where("group_id = ?", membership.GroupID).Pluck("id", &cycleIDs).Error; err != nil {
			return err
		}
		if len(cycleIDs) > 0 {
			if err := tx.Where("cycle_id IN ? AND user_id = ?", cycleIDs, membership.UserID).Delete(&models.Payment{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&membership).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to remove membership")
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "membership removed"})
}
