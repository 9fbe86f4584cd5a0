package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/HamzaArc/Tontine-app-chat/internal/metrics"
	"github.com/HamzaArc/Tontine-app-chat/internal/models"
	"github.com/HamzaArc/Tontine-app-chat/internal/services"
	"github.com/HamzaArc/Tontine-app-chat/internal/tasks"
	"github.com/HamzaArc/Tontine-app-chat/pkg/logging"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using system environment")
	}
	logging.Setup()

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		slog.Error("DATABASE_URL not set")
		os.Exit(1)
	}

	db, err := services.InitDB(databaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Delivery channels are all optional: a missing one is skipped, never fatal.
	var cache *services.RedisCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err = services.NewRedisCache(redisURL)
		if err != nil {
			slog.Warn("redis unavailable, reminders will not be deduplicated", "error", err)
			cache = nil
		}
	}

	var push *services.PushService
	credPath := os.Getenv("FIREBASE_CREDENTIALS_PATH")
	if credPath == "" {
		credPath = "./firebase-service-account.json"
	}
	push, err = services.InitFirebase(credPath)
	if err != nil {
		slog.Warn("firebase initialization failed, push reminders disabled", "error", err)
		push = nil
	}

	email := services.NewEmailService()
	if !email.Configured() {
		slog.Warn("SMTP not fully configured, email reminders disabled")
	}

	// Initialize Task Registry
	tasks.DefineTasks(tasks.Deps{
		Cache: cache,
		Push:  push,
		Email: email,
	})

	if err := tasks.SeedDefaultTasks(db); err != nil {
		slog.Error("failed to seed recurring tasks", "error", err)
		os.Exit(1)
	}

	// Expose worker metrics separately from the API server.
	metricsAddr := os.Getenv("METRICS_ADDR")
	if metricsAddr == "" {
		metricsAddr = ":2112"
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			slog.Error("metrics listener stopped", "error", err)
		}
	}()

	pollMinutes := 5
	if raw := os.Getenv("REMINDER_POLL_MINUTES"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			pollMinutes = parsed
		}
	}

	slog.Info("worker started", "poll_minutes", pollMinutes, "metrics_addr", metricsAddr)

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutting down worker")
		cancel()
	}()

	ticker := time.NewTicker(time.Duration(pollMinutes) * time.Minute)
	defer ticker.Stop()

	// Run once at boot so a restart never delays overdue work by a full tick.
	processScheduledTasks(ctx, db)

	for {
		select {
		case <-ticker.C:
			processScheduledTasks(ctx, db)
		case <-ctx.Done():
			return
		}
	}
}

func processScheduledTasks(ctx context.Context, db *gorm.DB) {
	var pendingTasks []models.ScheduledTask
	now := time.Now()
	if err := db.Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, now).Find(&pendingTasks).Error; err != nil {
		slog.Error("failed to fetch pending tasks", "error", err)
		return
	}

	if len(pendingTasks) == 0 {
		return
	}

	slog.Info("processing pending tasks", "count", len(pendingTasks))

	for _, task := range pendingTasks {
		if ctx.Err() != nil {
			return
		}
		executeTask(ctx, db, task)
	}
}

func executeTask(ctx context.Context, db *gorm.DB, task models.ScheduledTask) {
	slog.Info("executing task", "task", task.TaskName, "id", task.ID)

	handler, found := tasks.GetHandler(task.TaskName)
	if !found {
		slog.Error("task handler not found", "task", task.TaskName)

		now := time.Now()
		db.Model(&task).Updates(map[string]interface{}{
			"status":   models.ScheduledTaskStatusFailure,
			"last_run": &now,
		})

		db.Create(&models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           now,
			Status:          "handler_not_found",
			Arguments:       task.Arguments,
			Result:          map[string]interface{}{"error": "handler not found"},
		})
		metrics.TaskRuns.WithLabelValues(task.TaskName, "handler_not_found").Inc()
		return
	}

	startTime := time.Now()
	result, err := handler(ctx, db, task)
	runtimeMs := int(time.Since(startTime).Milliseconds())

	status := "success"
	resultData := result
	if err != nil {
		status = "failure"
		resultData = map[string]interface{}{"error": err.Error()}
		slog.Error("task failed", "task", task.TaskName, "error", err)
	} else {
		slog.Info("task completed", "task", task.TaskName, "runtime_ms", runtimeMs)
	}
	metrics.TaskRuns.WithLabelValues(task.TaskName, status).Inc()

	db.Create(&models.ScheduledTaskHistory{
		ScheduledTaskID: task.ID,
		TaskName:        task.TaskName,
		RunAt:           startTime,
		RuntimeMs:       runtimeMs,
		Status:          status,
		Arguments:       task.Arguments,
		Result:          resultData,
	})

	taskUpdates := map[string]interface{}{
		"last_run": &startTime,
	}

	switch task.TaskType {
	case models.ScheduledTaskTypeOneTime:
		if status == "success" {
			taskUpdates["status"] = models.ScheduledTaskStatusDone
		} else {
			taskUpdates["status"] = models.ScheduledTaskStatusFailure
		}
	case models.ScheduledTaskTypeRecurring:
		// A failed run does not kill a recurring task; it just waits for
		// its next occurrence.
		nextDue := task.NextDue()
		if nextDue.After(task.Due) {
			taskUpdates["status"] = models.ScheduledTaskStatusActive
			taskUpdates["due"] = nextDue
		} else {
			taskUpdates["status"] = models.ScheduledTaskStatusDone
		}
	}

	db.Model(&task).Updates(taskUpdates)
}
