package tasks

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/HamzaArc/Tontine-app-chat/internal/models"
	"github.com/HamzaArc/Tontine-app-chat/internal/services"
)

// Deps carries the shared services task handlers need. A nil field disables
// the corresponding delivery channel.
type Deps struct {
	Cache *services.RedisCache
	Push  *services.PushService
	Email *services.EmailService
}

// DefineTasks registers all available tasks
func DefineTasks(deps Deps) {
	PaymentReminderTask.Cache = deps.Cache
	PaymentReminderTask.Push = deps.Push
	PaymentReminderTask.Email = deps.Email

	RegisterHandler(PaymentReminderTask.TaskID(), PaymentReminderTask.HandleExecution)
	RegisterHandler(SessionSweeperTask.TaskID(), SessionSweeperTask.HandleExecution)
}

// SeedDefaultTasks ensures the recurring maintenance tasks exist, creating
// any missing one due immediately.
func SeedDefaultTasks(db *gorm.DB) error {
	builders := map[string]func(time.Time) (*models.ScheduledTask, error){
		PaymentReminderTask.TaskID(): PaymentReminderTask.CreateTask,
		SessionSweeperTask.TaskID():  SessionSweeperTask.CreateTask,
	}

	for name, build := range builders {
		var existing models.ScheduledTask
		err := db.Where("task_name = ? AND status = ?", name, models.ScheduledTaskStatusActive).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		task, err := build(time.Now())
		if err != nil {
			return err
		}
		if err := db.Create(task).Error; err != nil {
			return err
		}
	}

	return nil
}
