package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/HamzaArc/Tontine-app-chat/internal/metrics"
	"github.com/HamzaArc/Tontine-app-chat/internal/models"
)

type CycleHandler struct {
	db *gorm.DB
}

func NewCycleHandler(db *gorm.DB) *CycleHandler {
	return &CycleHandler{db: db}
}

// ListCycles returns the cycles of a group, newest index first.
func (h *CycleHandler) ListCycles(c echo.Context) error {
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

	if _, err := requireMember(h.db, callerID(c), group.ID); err != nil {
		return err
	}

	var cycles []models.Cycle
	if err := h.db.Preload("Recipient").Where("group_id = ?", group.ID).Order("cycle_index desc, id desc").Find(&cycles).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch cycles")
	}

	return c.JSON(http.StatusOK, cycles)
}

type createCycleRequest struct {
	CycleIndex      int        `json:"cycle_index"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
	RecipientUserID *uint      `json:"recipient_user_id"`
	Status          *string    `json:"status"`
	AutoAssign      bool       `json:"auto_assign_recipient"`
}

// CreateCycle opens a new cycle and fans out one payment per current member.
//
// The membership roster is snapshotted inside the transaction: members added
// later get no retroactive payment. Each payment is fixed to the group's
// contribution amount at this instant. The index is written as supplied;
// nothing prevents two cycles from sharing one, and a group with no members
// yields a cycle with zero payments.
func (h *CycleHandler) CreateCycle(c echo.Context) error {
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

	var req createCycleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	recipientID := req.RecipientUserID
	if recipientID != nil {
		if _, err := findMembership(h.db, *recipientID, group.ID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusBadRequest, "recipient must be a member of this group")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to check recipient")
		}
	} else if req.AutoAssign {
		recipientID, err = pickRecipient(h.db, group.ID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to pick recipient")
		}
	}

	endDate := req.EndDate
	if endDate == nil {
		start := time.Now()
		if req.StartDate != nil {
			start = *req.StartDate
		}
		if next, err := group.NextOccurrence(start); err == nil {
			endDate = &next
		}
	}

	// Like on update, the status is written verbatim.
	status := models.CycleStatusActive
	if req.Status != nil && *req.Status != "" {
		status = models.CycleStatus(*req.Status)
	}

	cycle := models.Cycle{
		GroupID:         group.ID,
		Index:           req.CycleIndex,
		StartDate:       req.StartDate,
		EndDate:         endDate,
		RecipientUserID: recipientID,
		Status:          status,
	}

	var fannedOut int
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&cycle).Error; err != nil {
			return err
		}

		var memberships []models.Membership
		if err := tx.Where("group_id = ?", group.ID).Find(&memberships).Error; err != nil {
			return err
		}

		amount := group.ContributionOrDefault()
		payments := make([]models.Payment, 0, len(memberships))
		for _, m := range memberships {
			payments = append(payments, models.Payment{
				CycleID: cycle.ID,
				UserID:  m.UserID,
				Amount:  amount,
				Paid:    false,
				UUID:    uuid.NewString(),
			})
		}
		if len(payments) > 0 {
			if err := tx.Create(&payments).Error; err != nil {
				return err
			}
		}

		fannedOut = len(payments)
		return nil
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create cycle")
	}

	metrics.CyclesCreated.Inc()
	metrics.PaymentsFannedOut.Add(float64(fannedOut))

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"cycle":   cycle,
		"message": fmt.Sprintf("cycle created with %d payments", fannedOut),
	})
}

// pickRecipient chooses the next payout recipient: the member assigned the
// fewest past cycles in the group, ties broken by earliest join. Returns nil
// when the group has no members.
func pickRecipient(db *gorm.DB, groupID uint) (*uint, error) {
	var memberships []models.Membership
	if err := db.Where("group_id = ?", groupID).Order("created_at asc, id asc").Find(&memberships).Error; err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, nil
	}

	type recipientCount struct {
		RecipientUserID *uint `gorm:"column:recipient_user_id"`
		N               int64 `gorm:"column:n"`
	}
	var rows []recipientCount
	err := db.Model(&models.Cycle{}).
		Select("recipient_user_id, count(*) as n").
		Where("group_id = ? AND recipient_user_id IS NOT NULL", groupID).
		Group("recipient_user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		if r.RecipientUserID != nil {
			counts[*r.RecipientUserID] = r.N
		}
	}

	best := memberships[0].UserID
	bestCount := counts[best]
	for _, m := range memberships[1:] {
		if counts[m.UserID] < bestCount {
			best = m.UserID
			bestCount = counts[m.UserID]
		}
	}
	return &best, nil
}

// GetCycle returns one cycle with its group and recipient.
func (h *CycleHandler) GetCycle(c echo.Context) error {
	cycleID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var cycle models.Cycle
	if err := h.db.Preload("Group").Preload("Recipient").First(&cycle, cycleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "cycle not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch cycle")
	}

	if _, err := requireMember(h.db, callerID(c), cycle.GroupID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, cycle)
}

type updateCycleRequest struct {
	RecipientUserID *uint      `json:"recipient_user_id"`
	Status          *string    `json:"status"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
}

// UpdateCycle changes the recipient, status or date range. The recipient
// must hold a membership in the cycle's group. Status is written verbatim;
// there is no transition check, so reopening a completed cycle is allowed.
func (h *CycleHandler) UpdateCycle(c echo.Context) error {
	cycleID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var cycle models.Cycle
	if err := h.db.First(&cycle, cycleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "cycle not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch cycle")
	}

	if _, err := requireAdmin(h.db, callerID(c), cycle.GroupID); err != nil {
		return err
	}

	var req updateCycleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.RecipientUserID != nil {
		if _, err := findMembership(h.db, *req.RecipientUserID, cycle.GroupID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusBadRequest, "recipient must be a member of this group")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to check recipient")
		}
		cycle.RecipientUserID = req.RecipientUserID
	}

	if req.Status != nil {
		cycle.Status = models.CycleStatus(*req.Status)
	}
	if req.StartDate != nil {
		cycle.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		cycle.EndDate = req.EndDate
	}

	if err := h.db.Save(&cycle).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update cycle")
	}

	return c.JSON(http.StatusOK, cycle)
}

// DeleteCycle removes a cycle and its payments in one transaction.
func (h *CycleHandler) DeleteCycle(c echo.Context) error {
	cycleID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var cycle models.Cycle
	if err := h.db.First(&cycle, cycleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "cycle not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch cycle")
	}

	if _, err := requireAdmin(h.db, callerID(c), cycle.GroupID); err != nil {
		return err
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cycle_id = ?", cycle.ID).Delete(&models.Payment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&cycle).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete cycle")
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "cycle deleted"})
}
