package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/HamzaArc/Tontine-app-chat/internal/metrics"
	"github.com/HamzaArc/Tontine-app-chat/internal/models"
	"github.com/HamzaArc/Tontine-app-chat/internal/services"
)

// reminderDedupTTL suppresses repeat reminders for the same payment: one
// nudge per payment per day at most.
const reminderDedupTTL = 24 * time.Hour

// PaymentReminderTaskDef scans unpaid payments of active cycles and nudges
// their owners over push and email, honoring each user's settings.
type PaymentReminderTaskDef struct {
	Cache *services.RedisCache
	Push  *services.PushService
	Email *services.EmailService
}

// TaskID returns the unique identifier for this task
func (t *PaymentReminderTaskDef) TaskID() string {
	return "payment_reminders"
}

// CreateTask builds the recurring ScheduledTask record for this task
func (t *PaymentReminderTaskDef) CreateTask(due time.Time) (*models.ScheduledTask, error) {
	interval := "FREQ=DAILY"
	return BuildScheduledTask(t.TaskID(), map[string]interface{}{}, due, &interval, models.ScheduledTaskTypeRecurring)
}

// HandleExecution walks every unpaid payment on an active cycle and reminds
// the owner when the cycle's end date is inside their lead window. Cycles
// without an end date are treated as due now.
func (t *PaymentReminderTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	var payments []models.Payment
	err := db.Preload("User").Preload("Cycle.Group").
		Joins("JOIN cycles ON cycles.id = payments.cycle_id").
		Where("payments.paid = ? AND cycles.status = ? AND cycles.deleted_at IS NULL", false, models.CycleStatusActive).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to scan unpaid payments: %w", err)
	}

	now := time.Now()
	reminded := 0
	skipped := 0
	failed := 0

	for _, payment := range payments {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		settings := loadSettings(db, payment.UserID)

		wantPush := settings.PushReminders && payment.User.PushToken != "" && t.Push != nil
		wantEmail := settings.EmailReminders && t.Email != nil && t.Email.Configured()
		if !wantPush && !wantEmail {
			skipped++
			continue
		}

		if !dueForReminder(payment, settings.ReminderLeadDays, now) {
			skipped++
			continue
		}

		if !t.claimReminder(ctx, payment.ID) {
			skipped++
			continue
		}

		okCount := 0
		if wantPush {
			if err := t.sendPush(ctx, payment); err != nil {
				slog.Warn("push reminder failed", "payment_id", payment.ID, "error", err)
				metrics.RemindersSent.WithLabelValues("push", "error").Inc()
			} else {
				metrics.RemindersSent.WithLabelValues("push", "ok").Inc()
				okCount++
			}
		}
		if wantEmail {
			if err := t.sendEmail(payment); err != nil {
				slog.Warn("email reminder failed", "payment_id", payment.ID, "error", err)
				metrics.RemindersSent.WithLabelValues("email", "error").Inc()
			} else {
				metrics.RemindersSent.WithLabelValues("email", "ok").Inc()
				okCount++
			}
		}

		if okCount > 0 {
			reminded++
		} else {
			failed++
		}
	}

	return map[string]interface{}{
		"scanned":  len(payments),
		"reminded": reminded,
		"skipped":  skipped,
		"failed":   failed,
	}, nil
}

// loadSettings returns the user's saved settings or the defaults.
func loadSettings(db *gorm.DB, userID uint) models.UserSettings {
	var settings models.UserSettings
	if err := db.Where("user_id = ?", userID).First(&settings).Error; err != nil {
		return models.DefaultUserSettings(userID)
	}
	return settings
}

// dueForReminder reports whether now falls inside the owner's reminder window
// before (or after) the cycle's end date.
func dueForReminder(payment models.Payment, leadDays int, now time.Time) bool {
	end := payment.Cycle.EndDate
	if end == nil {
		return true
	}
	windowStart := end.AddDate(0, 0, -leadDays)
	return !now.Before(windowStart)
}

// claimReminder takes the dedup latch for a payment. False means another run
// already reminded within the TTL. When Redis is unreachable we send anyway
// rather than stay silent.
func (t *PaymentReminderTaskDef) claimReminder(ctx context.Context, paymentID uint) bool {
	if t.Cache == nil {
		return true
	}
	key := fmt.Sprintf("reminder:payment:%d", paymentID)
	ok, err := t.Cache.SetNX(ctx, key, time.Now().Unix(), reminderDedupTTL)
	if err != nil {
		slog.Warn("reminder dedup unavailable", "error", err)
		return true
	}
	return ok
}

func (t *PaymentReminderTaskDef) sendPush(ctx context.Context, payment models.Payment) error {
	title := "Contribution reminder"
	body := fmt.Sprintf("%.2f due for %s", payment.Amount, payment.Cycle.Group.Name)
	data := map[string]string{
		"payment_uuid": payment.UUID,
		"group_id":     fmt.Sprintf("%d", payment.Cycle.GroupID),
	}
	return t.Push.Send(ctx, payment.User.PushToken, title, body, data)
}

func (t *PaymentReminderTaskDef) sendEmail(payment models.Payment) error {
	subject := fmt.Sprintf("Reminder: contribution due for %s", payment.Cycle.Group.Name)
	body := services.ReminderBody(payment.User.Name, payment.Cycle.Group.Name, payment.Amount, payment.Cycle.EndDate, payment.UUID)
	return t.Email.SendEmail([]string{payment.User.Email}, subject, body)
}

// PaymentReminderTask is the singleton instance of PaymentReminderTaskDef
var PaymentReminderTask = &PaymentReminderTaskDef{}
