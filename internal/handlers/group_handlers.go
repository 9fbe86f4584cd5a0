package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/HamzaArc/Tontine-app-chat/internal/models"
	"github.com/HamzaArc/Tontine-app-chat/internal/services"
)

// groupListTTL bounds how stale a member's group list may go after another
// member mutates it.
const groupListTTL = 30 * time.Second

type GroupHandler struct {
	db    *gorm.DB
	cache *services.RedisCache
}

func NewGroupHandler(db *gorm.DB, cache *services.RedisCache) *GroupHandler {
	return &GroupHandler{db: db, cache: cache}
}

func groupListKey(userID uint) string {
	return fmt.Sprintf("groups:user:%d", userID)
}

type createGroupRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Contribution *float64 `json:"contribution"`
	Frequency    string   `json:"frequency"`
	MaxMembers   *int     `json:"max_members"`
}

// CreateGroup creates a group and enrolls the caller as its first admin.
// Both writes commit together or not at all.
func (h *GroupHandler) CreateGroup(c echo.Context) error {
	var req createGroupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	group := models.Group{
		Name:         req.Name,
		Description:  req.Description,
		Contribution: req.Contribution,
		Frequency:    req.Frequency,
		MaxMembers:   req.MaxMembers,
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		membership := models.Membership{
			UserID:  callerID(c),
			GroupID: group.ID,
			Role:    models.RoleAdmin,
		}
		return tx.Create(&membership).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create group")
	}

	h.invalidateList(c, callerID(c))

	return c.JSON(http.StatusCreated, group)
}

// ListGroups returns the groups the caller belongs to, briefly cached per user.
func (h *GroupHandler) ListGroups(c echo.Context) error {
	userID := callerID(c)

	fetch := func() ([]models.Group, error) {
		var groups []models.Group
		err := h.db.
			Joins("JOIN memberships ON memberships.group_id = groups.id").
			Where("memberships.user_id = ? AND memberships.deleted_at IS NULL", userID).
			Find(&groups).Error
		return groups, err
	}

	var groups []models.Group
	var err error
	if h.cache != nil {
		groups, err = services.GetOrSet(h.cache, c.Request().Context(), groupListKey(userID), groupListTTL, fetch)
	} else {
		groups, err = fetch()
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch groups")
	}

	if groups == nil {
		groups = []models.Group{}
	}

	return c.JSON(http.StatusOK, groups)
}

// GetGroup returns one group with its member roster. Existence is checked
// before membership so absent groups read as 404, not 403.
func (h *GroupHandler) GetGroup(c echo.Context) error {
	groupID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var group models.Group
	if err := h.db.Preload("Memberships.User").First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "group not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch group")
	}

	if _, err := requireMember(h.db, callerID(c), group.ID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, group)
}

type updateGroupRequest struct {
	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	Contribution *float64 `json:"contribution"`
	Frequency    *string  `json:"frequency"`
	MaxMembers   *int     `json:"max_members"`
}

// UpdateGroup overwrites the provided fields verbatim; the contribution
// amount is deliberately not range-checked.
func (h *GroupHandler) UpdateGroup(c echo.Context) error {
	groupID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var group models.Group
	if err := h.db.First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "group not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch group")
	}

	if _, err := requireAdmin(h.db, callerID(c), group.ID); err != nil {
		return err
	}

	var req updateGroupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Name != nil {
		group.Name = *req.Name
	}
	if req.Description != nil {
		group.Description = *req.Description
	}
	if req.Contribution != nil {
		group.Contribution = req.Contribution
	}
	if req.Frequency != nil {
		group.Frequency = *req.Frequency
	}
	if req.MaxMembers != nil {
		group.MaxMembers = req.MaxMembers
	}

	if err := h.db.Save(&group).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update group")
	}

	h.invalidateList(c, callerID(c))

	return c.JSON(http.StatusOK, group)
}

// DeleteGroup removes the group and everything under it: payments first,
// then cycles, memberships, and finally the group row, in one transaction.
func (h *GroupHandler) DeleteGroup(c echo.Context) error {
	groupID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var group models.Group
	if err := h.db.First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "group not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch group")
	}

	if _, err := requireAdmin(h.db, callerID(c), group.ID); err != nil {
		return err
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		var cycleIDs []uint
		if err := tx.Model(&models.Cycle{}).Where("group_id = ?", group.ID).Pluck("id", &cycleIDs).Error; err != nil {
			return err
		}
		if len(cycleIDs) > 0 {
			if err := tx.Where("cycle_id IN ?", cycleIDs).Delete(&models.Payment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("group_id = ?", group.ID).Delete(&models.Cycle{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("group_id = ?", group.ID).Delete(&models.Membership{}).Error; err != nil {
			return err
		}
		return tx.Delete(&group).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete group")
	}

	h.invalidateList(c, callerID(c))

	return c.JSON(http.StatusOK, map[string]string{"message": "group deleted"})
}

func (h *GroupHandler) invalidateList(c echo.Context, userID uint) {
	if h.cache != nil {
		h.cache.Delete(c.Request().Context(), groupListKey(userID))
	}
}
