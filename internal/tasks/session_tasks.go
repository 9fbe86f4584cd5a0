package tasks

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/HamzaArc/Tontine-app-chat/internal/models"
)

// staleSessionAge is how long a checkout session may stay active before the
// sweeper releases it. Gateway payment links expire on the same order.
const staleSessionAge = 24 * time.Hour

// SessionSweeperTaskDef deactivates checkout sessions that never completed,
// so a later checkout opens a fresh gateway link instead of resuming a dead one.
type SessionSweeperTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *SessionSweeperTaskDef) TaskID() string {
	return "session_sweeper"
}

// CreateTask builds the recurring ScheduledTask record for this task
func (t *SessionSweeperTaskDef) CreateTask(due time.Time) (*models.ScheduledTask, error) {
	interval := "FREQ=DAILY"
	return BuildScheduledTask(t.TaskID(), map[string]interface{}{}, due, &interval, models.ScheduledTaskTypeRecurring)
}

// HandleExecution releases every active session older than staleSessionAge.
func (t *SessionSweeperTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	cutoff := time.Now().Add(-staleSessionAge)

	res := db.Model(&models.PaymentSession{}).
		Where("is_active = ? AND created_at < ?", true, cutoff).
		Update("is_active", false)
	if res.Error != nil {
		return nil, res.Error
	}

	return map[string]interface{}{
		"swept": res.RowsAffected,
	}, nil
}

// SessionSweeperTask is the singleton instance of SessionSweeperTaskDef
var SessionSweeperTask = &SessionSweeperTaskDef{}
